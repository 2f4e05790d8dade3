package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"academic-info/internal/service"
	"academic-info/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// BatchPDF 班级课表 PDF
// GET /api/v1/export/batches/:batch/pdf
func (h *ExportHandler) BatchPDF(c *gin.Context) {
	f, err := h.exportSvc.BatchPDF(c.Request.Context(), c.Param("batch"))
	h.send(c, f, err)
}

// BatchXLSX 班级周课表 Excel
// GET /api/v1/export/batches/:batch/xlsx
func (h *ExportHandler) BatchXLSX(c *gin.Context) {
	f, err := h.exportSvc.BatchXLSX(c.Request.Context(), c.Param("batch"))
	h.send(c, f, err)
}

// BatchICS 班级课表日历订阅
// GET /api/v1/export/batches/:batch/ics
func (h *ExportHandler) BatchICS(c *gin.Context) {
	f, err := h.exportSvc.BatchICS(c.Request.Context(), c.Param("batch"))
	h.send(c, f, err)
}

// CalendarICS 校历日历订阅
// GET /api/v1/export/calendar/:semester/ics
func (h *ExportHandler) CalendarICS(c *gin.Context) {
	f, err := h.exportSvc.CalendarICS(c.Request.Context(), c.Param("semester"))
	h.send(c, f, err)
}

func (h *ExportHandler) send(c *gin.Context, f *service.ExportFile, err error) {
	if err != nil {
		h.handleExportError(c, err)
		return
	}
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(f.Filename))
	c.Data(http.StatusOK, f.ContentType, f.Buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportEmpty):
		response.BadRequest(c, 16101, "没有可导出的课程")
	case errors.Is(err, service.ErrBatchNotFound),
		errors.Is(err, service.ErrSemesterNotFound),
		errors.Is(err, service.ErrTimetableUnavailable),
		errors.Is(err, service.ErrCalendarMissing):
		handleLookupError(c, err)
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}

// handleLookupError 导出前的数据查询错误沿用各模块的映射
func handleLookupError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrSemesterNotFound) || errors.Is(err, service.ErrCalendarMissing) {
		handleCalendarError(c, err)
		return
	}
	handleTimetableError(c, err)
}
