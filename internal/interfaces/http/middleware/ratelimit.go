package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"novel-writer/internal/interfaces/http/dto"
	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool
	// Limit 每个窗口内允许的请求数
	Limit  int
	Window time.Duration
	// KeyFunc 由客户端 IP 与路由构建限流键
	KeyFunc func(clientIP, path string) string
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP 与路由限流，限流器故障时放行
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.Limit <= 0 {
		cfg.Limit = 120
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(clientIP, path string) string {
			return "ratelimit:" + clientIP + ":" + path
		}
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := cfg.KeyFunc(c.ClientIP(), path)

		allowed, err := limiter.Allow(c.Request.Context(), key, cfg.Limit, cfg.Window)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		if !allowed {
			dto.FromError(c, apperrors.New(apperrors.CodeTooManyRequests, "rate limit exceeded"))
			return
		}

		c.Next()
	}
}
