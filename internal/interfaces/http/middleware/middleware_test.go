package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRateLimit(t *testing.T) {
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	t.Run("rejects over limit", func(t *testing.T) {
		limiter := &stubLimiter{allow: false}
		engine := gin.New()
		engine.GET("/v1/status", RateLimit(RateLimitConfig{Enabled: true}, limiter), ok)

		w := serve(engine, "/v1/status")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), string(apperrors.CodeTooManyRequests))
		assert.Len(t, limiter.keys, 1)
		assert.Contains(t, limiter.keys[0], "/v1/status")
	})

	t.Run("fails open when limiter errors", func(t *testing.T) {
		engine := gin.New()
		engine.GET("/v1/status", RateLimit(RateLimitConfig{Enabled: true}, &stubLimiter{err: errors.New("redis down")}), ok)
		assert.Equal(t, http.StatusOK, serve(engine, "/v1/status").Code)
	})

	t.Run("disabled skips limiter", func(t *testing.T) {
		limiter := &stubLimiter{}
		engine := gin.New()
		engine.GET("/v1/status", RateLimit(RateLimitConfig{Enabled: false}, limiter), ok)
		assert.Equal(t, http.StatusOK, serve(engine, "/v1/status").Code)
		assert.Empty(t, limiter.keys)
	})
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := serve(engine, "/ping")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(Recovery())
	engine.GET("/boom", func(*gin.Context) { panic("boom") })

	w := serve(engine, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(apperrors.CodeInternalError))
}

func TestMetrics(t *testing.T) {
	engine := gin.New()
	engine.Use(Metrics("/metrics"))
	engine.GET("/v1/chapters/:n", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	route := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/v1/chapters/:n", "200")
	before := testutil.ToFloat64(route)
	serve(engine, "/v1/chapters/1")
	serve(engine, "/v1/chapters/2")
	assert.Equal(t, before+2, testutil.ToFloat64(route))

	self := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	before = testutil.ToFloat64(self)
	serve(engine, "/metrics")
	assert.Equal(t, before, testutil.ToFloat64(self))

	missing := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	before = testutil.ToFloat64(missing)
	serve(engine, "/nope/1")
	assert.Equal(t, before+1, testutil.ToFloat64(missing))
}
