package router

import (
	"html/template"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"academic-info/config"
	"academic-info/internal/api/handler"
	"academic-info/internal/api/middleware"
	"academic-info/internal/dto"
	"academic-info/internal/service"
	"academic-info/pkg/redis"
	"academic-info/web"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时登录限流使用进程内计数
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	admin service.AdminService,
	rdb *redis.Client,
	logger *zap.Logger,
) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	dto.RegisterValidators()

	r := gin.New()

	tmpl, err := web.Templates(template.FuncMap{"humanize": service.Humanize})
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", h.Health.Health)

	secureCookie := strings.HasPrefix(cfg.Server.BaseURL, "https://")
	loginLimit := middleware.RateLimit(rdb, cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow)

	// ── 页面 ──
	pages := r.Group("")
	pages.Use(middleware.ClientID(secureCookie))
	{
		pages.GET("/", h.Page.Index)
		pages.GET("/admin", h.Page.Admin)

		panel := pages.Group("/admin/panel")
		{
			panel.POST("/show", h.Page.PanelShow)
			panel.POST("/hide", h.Page.PanelHide)
			panel.POST("/login", loginLimit, h.Page.PanelLogin)
			panel.POST("/logout", h.Page.PanelLogout)
			panel.POST("/update", h.Page.PanelUpdate)
		}
	}

	// ── 管理网关 ──
	gateway := r.Group("/admin")
	{
		gateway.POST("/login", loginLimit, h.Admin.Login)
		gateway.POST("/update", h.Admin.Update)
	}

	// ── 原始数据接口 ──
	raw := r.Group("/api/timetable")
	raw.Use(middleware.APIKey(cfg.API.Key))
	{
		raw.GET("", h.Timetable.RawArray)
		raw.GET("/batches", h.Timetable.RawGrouped)
	}

	// ── WebSocket ──
	r.GET("/ws/current", h.Live.Current)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		batches := v1.Group("/batches")
		{
			batches.GET("", h.Timetable.ListBatches)
			batches.GET("/:batch", h.Timetable.GetBatch)
			batches.GET("/:batch/current", h.Timetable.Current)
			batches.GET("/:batch/days/:day", h.Timetable.GetDay)
			batches.PUT("/:batch/days/:day/sessions/:index",
				middleware.AdminAuth(admin),
				middleware.RoleAuth(service.RoleAdmin),
				h.Timetable.EditSession,
			)
		}

		calendar := v1.Group("/calendar")
		{
			calendar.GET("/:semester", h.Calendar.GetSemester)
			calendar.GET("/:semester/exams/:type", h.Calendar.GetExam)
		}

		export := v1.Group("/export")
		{
			export.GET("/batches/:batch/pdf", h.Export.BatchPDF)
			export.GET("/batches/:batch/xlsx", h.Export.BatchXLSX)
			export.GET("/batches/:batch/ics", h.Export.BatchICS)
			export.GET("/calendar/:semester/ics", h.Export.CalendarICS)
		}
	}

	return r, nil
}
