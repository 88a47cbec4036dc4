package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"novel-writer/pkg/metrics"
)

// unmatchedRoute 未命中路由的请求共用一个标签，避免任意路径撑大指标基数
const unmatchedRoute = "unmatched"

// Metrics 按路由模板记录请求数与耗时，skip 中的路由（通常是 /metrics 自身）不计入
func Metrics(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		route := routeLabel(c)
		if _, ok := skipped[route]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}
