package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"novel-writer/pkg/logger"
	"novel-writer/pkg/tracer"
)

const (
	RequestIDHeader = "X-Request-ID"
	TraceIDHeader   = "X-Trace-ID"
)

// RequestID 读取或生成请求 ID，写入日志上下文与响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		ctx := logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// Trace OpenTelemetry 追踪中间件
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceContext 把当前 span 的 trace_id/span_id 注入日志上下文，并回写 X-Trace-ID
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := tracer.WithLogContext(c.Request.Context())
		if traceID := tracer.TraceID(ctx); traceID != "" {
			c.Set("trace_id", traceID)
			c.Header(TraceIDHeader, traceID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
