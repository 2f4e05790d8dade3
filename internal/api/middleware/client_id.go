package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CtxClientID 上下文中的客户端标识
	CtxClientID = "client_id"

	clientCookie    = "client_id"
	clientCookieAge = 365 * 24 * 3600
)

// ClientID 为页面访问者分配持久的匿名标识，用于保存视图偏好和管理面板会话
func ClientID(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(clientCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(clientCookie, id, clientCookieAge, "/", "", secure, true)
		}
		c.Set(CtxClientID, id)
		c.Next()
	}
}
