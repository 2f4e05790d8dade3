package handler

import (
	"go.uber.org/zap"

	"academic-info/internal/live"
	"academic-info/internal/service"
	"academic-info/internal/view"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Timetable *TimetableHandler
	Calendar  *CalendarHandler
	Admin     *AdminHandler
	Export    *ExportHandler
	Page      *PageHandler
	Live      *LiveHandler
	Health    *HealthHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, hub *live.Hub, panels *view.PanelStore, logger *zap.Logger) *Handler {
	return &Handler{
		Timetable: NewTimetableHandler(svc.Timetable, svc.Admin, logger),
		Calendar:  NewCalendarHandler(svc.Calendar),
		Admin:     NewAdminHandler(svc.Admin),
		Export:    NewExportHandler(svc.Export),
		Page:      NewPageHandler(svc, panels, logger),
		Live:      NewLiveHandler(hub),
		Health:    NewHealthHandler(svc.Timetable),
	}
}
