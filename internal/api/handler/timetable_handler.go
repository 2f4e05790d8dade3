package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"academic-info/internal/api/middleware"
	"academic-info/internal/dto"
	"academic-info/internal/model"
	"academic-info/internal/service"
	"academic-info/pkg/response"
)

// TimetableHandler 课表模块 Handler
type TimetableHandler struct {
	svc    service.TimetableService
	admin  service.AdminService
	logger *zap.Logger
}

// NewTimetableHandler 创建 TimetableHandler 实例
func NewTimetableHandler(svc service.TimetableService, admin service.AdminService, logger *zap.Logger) *TimetableHandler {
	return &TimetableHandler{svc: svc, admin: admin, logger: logger}
}

// ── 原始数据接口（需要 x-api-key） ──

// RawArray 全部班级，顶层数组形式
// GET /api/timetable
func (h *TimetableHandler) RawArray(c *gin.Context) {
	snap, err := h.svc.Snapshot(c.Request.Context())
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	data, err := model.MarshalBatches(snap.Batches, false)
	if err != nil {
		h.logger.Error("序列化课表失败", zap.Error(err))
		response.InternalError(c)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// RawGrouped 全部班级，{"batches":{id:{...}}} 形式
// GET /api/timetable/batches
func (h *TimetableHandler) RawGrouped(c *gin.Context) {
	snap, err := h.svc.Snapshot(c.Request.Context())
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	data, err := model.MarshalGrouped(snap.Batches)
	if err != nil {
		h.logger.Error("序列化课表失败", zap.Error(err))
		response.InternalError(c)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// ── v1 查询 ──

// ListBatches 班级列表
// GET /api/v1/batches
func (h *TimetableHandler) ListBatches(c *gin.Context) {
	resp, err := h.svc.ListBatches(c.Request.Context())
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// GetBatch 单个班级完整课表
// GET /api/v1/batches/:batch
func (h *TimetableHandler) GetBatch(c *gin.Context) {
	b, err := h.svc.GetBatch(c.Request.Context(), c.Param("batch"))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, b)
}

// GetDay 某天课表与当前课程；星期不存在时回退
// GET /api/v1/batches/:batch/days/:day?at=HH:MM
func (h *TimetableHandler) GetDay(c *gin.Context) {
	var q dto.DayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	at, err := service.ParseAt(q.At)
	if err != nil {
		handleTimetableError(c, err)
		return
	}

	resp, err := h.svc.GetDay(c.Request.Context(), c.Param("batch"), c.Param("day"), at)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// Current 当前课程；无课时 current 为 null
// GET /api/v1/batches/:batch/current?day=&at=
func (h *TimetableHandler) Current(c *gin.Context) {
	var q dto.DayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	at, err := service.ParseAt(q.At)
	if err != nil {
		handleTimetableError(c, err)
		return
	}

	resp, err := h.svc.Current(c.Request.Context(), c.Param("batch"), q.Day, at)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// ── v1 编辑 ──

// EditSession 字段级编辑单节课
// PUT /api/v1/batches/:batch/days/:day/sessions/:index
func (h *TimetableHandler) EditSession(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.BadRequest(c, 10001, "index 必须是整数")
		return
	}

	var req dto.SessionPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			return
		}
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, 10001, err.Error())
		return
	}

	resp, err := h.admin.EditSession(c.Request.Context(), p, c.Param("batch"), c.Param("day"), index, &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// ── 错误映射 ──

func handleTimetableError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBatchNotFound):
		response.NotFound(c, 12001, "班级不存在")
	case errors.Is(err, service.ErrDayNotFound):
		response.NotFound(c, 12002, "该班级没有任何课表")
	case errors.Is(err, service.ErrSessionIndex):
		response.NotFound(c, 12003, "课程序号超出范围")
	case errors.Is(err, service.ErrInvalidClock):
		response.BadRequest(c, 12004, "时刻格式应为 HH:MM")
	case errors.Is(err, service.ErrTimetableUnavailable):
		response.Unavailable(c, 12005, "课表数据暂时无法获取")
	case errors.Is(err, service.ErrReadOnlySource):
		response.Forbidden(c, 12006, "当前数据源为只读")
	case errors.Is(err, service.ErrUnauthorized):
		response.Unauthorized(c, 10002, "Unauthorized")
	case errors.Is(err, service.ErrRemoteGateway):
		response.Unavailable(c, 11004, "远程管理网关暂时不可用")
	default:
		response.InternalError(c)
	}
}
