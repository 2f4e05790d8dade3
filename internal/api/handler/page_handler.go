package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"academic-info/internal/dto"
	"academic-info/internal/model"
	"academic-info/internal/service"
	"academic-info/internal/source"
	"academic-info/internal/view"
)

// RefreshSeconds 页面自动刷新间隔
const RefreshSeconds = 60

// PageHandler 服务端渲染页面
//
// 交互以 GET ?do=&v= 或表单 POST 提交，处理后 303 重定向回页面，
// 自动刷新不会重复执行同一动作。
type PageHandler struct {
	timetable service.TimetableService
	calendar  service.CalendarService
	admin     service.AdminService
	prefs     service.PreferenceService
	panels    *view.PanelStore
	logger    *zap.Logger
}

// NewPageHandler 创建 PageHandler 实例
func NewPageHandler(svc *service.Service, panels *view.PanelStore, logger *zap.Logger) *PageHandler {
	return &PageHandler{
		timetable: svc.Timetable,
		calendar:  svc.Calendar,
		admin:     svc.Admin,
		prefs:     svc.Prefs,
		panels:    panels,
		logger:    logger,
	}
}

// indexPage 首页模板数据
type indexPage struct {
	State          view.State
	Tabs           []string
	ExamTypes      []string
	RefreshSeconds int

	Batches  []dto.BatchSummary
	Batch    string
	Day      *dto.DayResponse
	Editable bool
	Stale    bool

	ExamNotice          *dto.ExamResponse
	ExamNoticeAvailable bool // 提示块被隐藏时决定是否给出恢复链接
	Calendar            *dto.CalendarResponse
	Exam                *dto.ExamResponse

	Notice string
}

// Index 课表 / 校历页
// GET /
func (h *PageHandler) Index(c *gin.Context) {
	ctx := c.Request.Context()
	clientID := ClientID(c)
	st := h.prefs.Load(ctx, clientID)

	if a, ok := view.ParseAction(c.Query("do"), c.Query("v")); ok {
		if err := h.prefs.Save(ctx, clientID, view.Reduce(st, a)); err != nil {
			h.logger.Warn("保存视图状态失败", zap.String("client_id", clientID), zap.Error(err))
		}
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	page := indexPage{
		State:          st,
		Tabs:           view.Tabs,
		ExamTypes:      view.ExamTypes,
		RefreshSeconds: RefreshSeconds,
	}

	if st.Page == view.PageCalendar {
		h.fillCalendar(&page)
	} else {
		h.fillTimetable(c, &page)
	}

	c.HTML(http.StatusOK, "index.html", page)
}

func (h *PageHandler) fillTimetable(c *gin.Context, page *indexPage) {
	ctx := c.Request.Context()
	st := page.State

	list, err := h.timetable.ListBatches(ctx)
	if err != nil {
		page.Notice = "Failed to load timetable."
		return
	}
	page.Batches = list.Batches
	page.Editable = source.Capability(list.Capability).CanEdit()
	page.Stale = list.Stale
	if len(list.Batches) == 0 {
		page.Notice = "No batches available."
		return
	}

	page.Batch = list.Batches[0].Batch
	for _, b := range list.Batches {
		if b.Batch == st.Batch {
			page.Batch = b.Batch
			break
		}
	}

	day, err := h.timetable.GetDay(ctx, page.Batch, st.Day, nil)
	if err != nil {
		page.Notice = "No classes scheduled for this batch."
	} else {
		page.Day = day
	}

	if e, ok := h.calendar.ExamNotice(h.timetable.Resolver().Now()); ok {
		page.ExamNoticeAvailable = true
		if st.ShowExamBlock {
			page.ExamNotice = e
		}
	}
}

func (h *PageHandler) fillCalendar(page *indexPage) {
	st := page.State
	cal, err := h.calendar.GetSemester(st.Semester)
	if err != nil {
		page.Notice = "Failed to load academic calendar."
		return
	}
	page.Calendar = cal
	if e, err := h.calendar.GetExam(st.Semester, st.ExamType); err == nil {
		page.Exam = e
	}
}

// ═══════════════════════════════════════════════════════════
// 管理面板
// ═══════════════════════════════════════════════════════════

// adminPage 管理面板模板数据
type adminPage struct {
	Panel      view.PanelView
	State      view.State
	Capability string
	Editable   bool
}

// Admin 管理面板页
// GET /admin
func (h *PageHandler) Admin(c *gin.Context) {
	clientID := ClientID(c)
	capability := h.timetable.Capability()
	c.HTML(http.StatusOK, "admin.html", adminPage{
		Panel:      h.panels.Get(clientID).View(),
		State:      h.prefs.Load(c.Request.Context(), clientID),
		Capability: string(capability),
		Editable:   capability.CanEdit(),
	})
}

// PanelShow 打开面板
// POST /admin/panel/show
func (h *PageHandler) PanelShow(c *gin.Context) {
	if err := h.panels.Get(ClientID(c)).Show(c.Request.Context()); err != nil {
		h.logger.Warn("面板状态迁移失败", zap.Error(err))
	}
	h.backToPanel(c)
}

// PanelHide 关闭面板
// POST /admin/panel/hide
func (h *PageHandler) PanelHide(c *gin.Context) {
	if err := h.panels.Get(ClientID(c)).Hide(c.Request.Context()); err != nil {
		h.logger.Warn("面板状态迁移失败", zap.Error(err))
	}
	h.backToPanel(c)
}

// PanelLogin 面板登录，成功后以当前数据预填编辑框
// POST /admin/panel/login
func (h *PageHandler) PanelLogin(c *gin.Context) {
	ctx := c.Request.Context()
	panel := h.panels.Get(ClientID(c))

	var form dto.PanelLoginForm
	_ = c.ShouldBind(&form)

	token, err := h.admin.Login(ctx, &dto.LoginRequest{Username: form.Username, Password: form.Password})
	if err != nil {
		_ = panel.Show(ctx)
		panel.LoginFailed(panelErrorText(err))
		h.backToPanel(c)
		return
	}

	if err := panel.LoginSucceeded(ctx, token, h.draft(c)); err != nil {
		h.logger.Warn("面板状态迁移失败", zap.Error(err))
	}
	h.backToPanel(c)
}

// PanelLogout 仅清除面板中的 token
// POST /admin/panel/logout
func (h *PageHandler) PanelLogout(c *gin.Context) {
	if err := h.panels.Get(ClientID(c)).Logout(c.Request.Context()); err != nil {
		h.logger.Warn("面板状态迁移失败", zap.Error(err))
	}
	h.backToPanel(c)
}

// PanelUpdate 提交批量编辑；失败时保留用户输入
// POST /admin/panel/update
func (h *PageHandler) PanelUpdate(c *gin.Context) {
	ctx := c.Request.Context()
	panel := h.panels.Get(ClientID(c))

	var form dto.PanelUpdateForm
	_ = c.ShouldBind(&form)

	msg, err := h.admin.Update(ctx, &dto.UpdateRequest{Token: panel.Token(), Data: []byte(form.Data)})
	if err != nil {
		panel.UpdateResult(form.Data, panelErrorText(err), true)
	} else {
		panel.UpdateResult(h.draft(c), msg, false)
	}
	h.backToPanel(c)
}

func (h *PageHandler) backToPanel(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/admin")
}

// draft 当前数据的缩进 JSON；拉取失败时为空
func (h *PageHandler) draft(c *gin.Context) string {
	snap, err := h.timetable.Snapshot(c.Request.Context())
	if err != nil {
		return ""
	}
	data, err := model.MarshalBatches(snap.Batches, true)
	if err != nil {
		return ""
	}
	return string(data)
}
