package middleware

import (
	"log/slog"
	"net/http"

	"taskr/internal/pkg/metrics"
	"taskr/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware 按客户端 IP 限流。
//
// 令牌不足时直接返回 429，不阻塞请求协程。
func RateLimitMiddleware(limiter *ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Redis 不可用时放行，但要让故障可见
			if logger != nil {
				logger.Warn("rate limiter unavailable, allowing request",
					slog.String("client_ip", c.ClientIP()),
					slog.String("error", err.Error()),
				)
			}
			c.Next()
			return
		}
		if !allowed {
			metrics.RateLimitRejectedTotal.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":          "too many requests",
				"retry_after_ms": retryAfter.Milliseconds(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
