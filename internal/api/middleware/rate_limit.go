package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"

	"academic-info/pkg/redis"
	"academic-info/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// limit: 窗口内允许的最大请求数
// window: 滑动窗口时长
// rdb 为 nil 或 Redis 出错时改用进程内固定窗口计数
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	local := newLocalLimiter(limit, window)

	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.FullPath())

		var allowed bool
		if rdb != nil {
			ok, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
			if err == nil {
				allowed = ok
			} else {
				allowed = local.allow(key)
			}
		} else {
			allowed = local.allow(key)
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}

type localLimiter struct {
	limit  int
	window time.Duration
	counts *gocache.Cache
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &localLimiter{limit: limit, window: window, counts: gocache.New(window, 2*window)}
}

func (l *localLimiter) allow(key string) bool {
	if err := l.counts.Add(key, 1, l.window); err == nil {
		return true
	}
	n, err := l.counts.IncrementInt(key, 1)
	if err != nil {
		// 计数项恰好过期
		_ = l.counts.Add(key, 1, l.window)
		return true
	}
	return n <= l.limit
}
