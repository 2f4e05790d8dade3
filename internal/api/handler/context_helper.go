package handler

import (
	"github.com/gin-gonic/gin"

	"academic-info/internal/api/middleware"
	"academic-info/internal/service"
	"academic-info/pkg/response"
)

// MustGetPrincipal 从 Gin 上下文中安全提取认证后的调用方。
// 如果 AdminAuth 中间件未注入，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetPrincipal(c *gin.Context) (*service.Principal, bool) {
	v, exists := c.Get(middleware.CtxPrincipal)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	p, ok := v.(*service.Principal)
	if !ok || p == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return p, true
}

// ClientID 页面访问者标识，ClientID 中间件未启用时为空
func ClientID(c *gin.Context) string {
	return c.GetString(middleware.CtxClientID)
}
