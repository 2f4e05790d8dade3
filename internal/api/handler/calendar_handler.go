package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"academic-info/internal/service"
	"academic-info/pkg/response"
)

// CalendarHandler 校历模块 Handler
type CalendarHandler struct {
	svc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler 实例
func NewCalendarHandler(svc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{svc: svc}
}

// GetSemester 学期校历
// GET /api/v1/calendar/:semester
func (h *CalendarHandler) GetSemester(c *gin.Context) {
	resp, err := h.svc.GetSemester(c.Param("semester"))
	if err != nil {
		handleCalendarError(c, err)
		return
	}
	response.OK(c, resp)
}

// GetExam 某类考试安排
// GET /api/v1/calendar/:semester/exams/:type
func (h *CalendarHandler) GetExam(c *gin.Context) {
	resp, err := h.svc.GetExam(c.Param("semester"), c.Param("type"))
	if err != nil {
		handleCalendarError(c, err)
		return
	}
	response.OK(c, resp)
}

func handleCalendarError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSemesterNotFound):
		response.NotFound(c, 13001, "学期不存在，可选 odd / even")
	case errors.Is(err, service.ErrExamTypeNotFound):
		response.NotFound(c, 13002, "该学期没有这一类考试")
	case errors.Is(err, service.ErrCalendarMissing):
		response.Unavailable(c, 13003, "校历数据暂时无法获取")
	default:
		response.InternalError(c)
	}
}
