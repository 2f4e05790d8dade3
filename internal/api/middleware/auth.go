package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"academic-info/internal/service"
	"academic-info/pkg/response"
)

// 上下文键
const (
	CtxPrincipal = "principal"
	CtxUsername  = "username"
	CtxRole      = "role"
)

// APIKey 只读数据接口的 x-api-key 校验；key 为空表示不校验
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader("x-api-key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			response.Unauthorized(c, 10002, "Unauthorized")
			c.Abort()
			return
		}
		c.Next()
	}
}

// BearerToken 从 Authorization: Bearer <token> 中取出 token
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// AdminAuth 管理员认证中间件
// 本地模式校验 JWT；远程模式 token 由网关在写入时判定
func AdminAuth(admin service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		p, err := admin.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		c.Set(CtxPrincipal, p)
		c.Set(CtxUsername, p.Username)
		c.Set(CtxRole, p.Role)
		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 检查当前调用方是否具有指定角色之一
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(CtxRole)
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		userRole, _ := role.(string)
		for _, r := range allowedRoles {
			if userRole == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "无权限访问")
		c.Abort()
	}
}
