// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"novel-writer/internal/config"
	"novel-writer/internal/interfaces/http/handler"
	"novel-writer/internal/interfaces/http/middleware"
)

// Handlers 路由需要的处理器
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Chapter *handler.ChapterHandler
	Memory  *handler.MemoryHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  middleware.RateLimiter
	keyFunc  func(clientIP, path string) string
}

// Option 路由选项
type Option func(*Router)

// WithRateLimiter 启用基于 Redis 的限流，是否生效仍取决于 security.rate_limit.enabled
func WithRateLimiter(limiter middleware.RateLimiter, keyFunc func(clientIP, path string) string) Option {
	return func(r *Router) {
		r.limiter = limiter
		r.keyFunc = keyFunc
	}
}

// New 创建新的路由器
func New(cfg *config.Config, handlers Handlers, opts ...Option) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(r.metricsPath()))
	}
}

func (r *Router) metricsPath() string {
	if path := r.cfg.Observability.Metrics.Path; path != "" {
		return path
	}
	return "/metrics"
}

func (r *Router) setupRoutes() {
	h := r.handlers

	r.engine.GET("/health", h.Health.Health)
	r.engine.GET("/ready", h.Health.Ready)
	r.engine.GET("/live", h.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	rl := r.cfg.Security.RateLimit
	v1 := r.engine.Group("/v1", middleware.RateLimit(middleware.RateLimitConfig{
		Enabled: rl.Enabled,
		Limit:   rl.Limit,
		Window:  rl.Window,
		KeyFunc: r.keyFunc,
	}, r.limiter))
	{
		v1.GET("/status", h.Status.GetStatus)
		v1.GET("/chapters", h.Chapter.ListChapters)
		v1.GET("/chapters/:n", h.Chapter.GetChapter)
		v1.GET("/memory", h.Memory.ListFacts)
	}
}
