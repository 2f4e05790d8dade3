package handler

import (
	"github.com/gin-gonic/gin"

	"academic-info/internal/live"
	"academic-info/pkg/response"
)

// LiveHandler 当前课程 WebSocket 推送
type LiveHandler struct {
	hub *live.Hub
}

// NewLiveHandler 创建 LiveHandler 实例
func NewLiveHandler(hub *live.Hub) *LiveHandler {
	return &LiveHandler{hub: hub}
}

// Current 订阅某班级的当前课程
// GET /ws/current?batch=&day=
func (h *LiveHandler) Current(c *gin.Context) {
	batch := c.Query("batch")
	if batch == "" {
		response.BadRequest(c, 10001, "batch 不能为空")
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, batch, c.Query("day")); err != nil {
		handleTimetableError(c, err)
	}
}
