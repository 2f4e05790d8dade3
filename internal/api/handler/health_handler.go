package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"academic-info/internal/service"
)

// HealthHandler 健康检查
type HealthHandler struct {
	timetable service.TimetableService
}

// NewHealthHandler 创建 HealthHandler 实例
func NewHealthHandler(timetable service.TimetableService) *HealthHandler {
	return &HealthHandler{timetable: timetable}
}

// Health 进程存活即返回 200；数据源从未成功时 status 为 degraded
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":     "ok",
		"capability": string(h.timetable.Capability()),
	}
	snap, err := h.timetable.Snapshot(c.Request.Context())
	if err != nil {
		body["status"] = "degraded"
	} else {
		body["stale"] = snap.Stale
		body["fetched_at"] = snap.FetchedAt
		body["batches"] = len(snap.Batches)
	}
	c.JSON(http.StatusOK, body)
}
