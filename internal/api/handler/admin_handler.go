package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"academic-info/internal/api/middleware"
	"academic-info/internal/dto"
	"academic-info/internal/service"
	"academic-info/pkg/response"
)

// AdminHandler 管理网关 Handler
// 请求与响应字段沿用既有网关协议：{success, token} / {success, message} / {success:false, error}
type AdminHandler struct {
	svc service.AdminService
}

// NewAdminHandler 创建 AdminHandler 实例
func NewAdminHandler(svc service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// Login 管理员登录
// POST /admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Username and password are required")
		return
	}

	token, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}
	response.Token(c, token)
}

// Update 整份覆盖课表
// POST /admin/update
func (h *AdminHandler) Update(c *gin.Context) {
	var req dto.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			return
		}
		response.BadRequest(c, 11003, "Invalid JSON")
		return
	}

	msg, err := h.svc.Update(c.Request.Context(), &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}
	response.Message(c, msg)
}

func handleAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		response.BadRequest(c, 11001, "Username and password are required")
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, 11002, "Invalid credentials")
	case errors.Is(err, service.ErrUnauthorized):
		response.Unauthorized(c, 10002, "Unauthorized")
	case errors.Is(err, service.ErrInvalidJSON):
		response.BadRequest(c, 11003, "Invalid JSON")
	case errors.Is(err, service.ErrReadOnlySource):
		response.Forbidden(c, 12006, "Timetable source is read-only")
	case errors.Is(err, service.ErrRemoteGateway):
		response.Unavailable(c, 11004, "Admin gateway unavailable")
	case errors.Is(err, service.ErrTimetableUnavailable):
		response.Unavailable(c, 12005, "Timetable unavailable")
	default:
		response.InternalError(c)
	}
}
