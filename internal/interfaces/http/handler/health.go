// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const readyTimeout = 2 * time.Second

const (
	checkOK       = "ok"
	checkDegraded = "degraded"
	checkError    = "error"
	checkDisabled = "disabled"
)

// HealthChecker 可探活的依赖
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependency 就绪检查项。Required 为 false 时失败只标记 degraded
type Dependency struct {
	Name     string
	Checker  HealthChecker
	Required bool
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	version string
	deps    []Dependency
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(version string, deps ...Dependency) *HealthHandler {
	return &HealthHandler{version: version, deps: deps}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// Ready 就绪检查接口
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	// 各依赖并发探测，结果按下标写回，不需要加锁
	results := make([]*readinessCheck, len(h.deps))
	var g errgroup.Group
	for i, dep := range h.deps {
		g.Go(func() error {
			results[i] = probe(ctx, dep)
			return nil
		})
	}
	_ = g.Wait()

	resp := readinessResponse{Status: "ok", Checks: make(map[string]*readinessCheck, len(h.deps))}
	status := http.StatusOK
	for i, dep := range h.deps {
		resp.Checks[dep.Name] = results[i]
		if results[i].Status == checkError {
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, resp)
}

func probe(ctx context.Context, dep Dependency) *readinessCheck {
	if dep.Checker == nil {
		return &readinessCheck{Status: checkDisabled}
	}
	start := time.Now()
	err := dep.Checker.HealthCheck(ctx)
	check := &readinessCheck{Status: checkOK, LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Error = err.Error()
		check.Status = checkDegraded
		if dep.Required {
			check.Status = checkError
		}
	}
	return check
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
