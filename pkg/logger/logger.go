// Package logger 基于 slog 的结构化日志，上下文字段随 context 传递
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// ContextKey 日志字段在 context 中的键
type ContextKey string

const (
	TraceIDKey   ContextKey = "trace_id"
	SpanIDKey    ContextKey = "span_id"
	ProjectIDKey ContextKey = "project_id"
	RequestIDKey ContextKey = "request_id"
	ChapterKey   ContextKey = "chapter"
	RunIDKey     ContextKey = "run_id"
	StageKey     ContextKey = "stage"
)

// 输出顺序固定，便于肉眼对齐同一次运行的多行日志
var contextKeys = []ContextKey{TraceIDKey, SpanIDKey, ProjectIDKey, RequestIDKey, RunIDKey, ChapterKey, StageKey}

var current atomic.Pointer[slog.Logger]

// Init 输出到 stderr，stdout 留给命令结果
func Init(level, format string) {
	InitWithWriter(os.Stderr, level, format)
}

// InitWithWriter level 取 debug/info/warn/error，format 取 json/text
func InitWithWriter(w io.Writer, level, format string) {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl == slog.LevelDebug}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	}
	l := slog.New(h)
	current.Store(l)
	slog.SetDefault(l)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default 未初始化时按 info/text 初始化
func Default() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	Init("info", "text")
	return current.Load()
}

// FromContext 带上 ctx 中已有的日志字段
func FromContext(ctx context.Context) *slog.Logger {
	l := Default()
	var attrs []any
	for _, key := range contextKeys {
		if v := ctx.Value(key); v != nil {
			attrs = append(attrs, string(key), v)
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

func WithContext(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

func WithProject(ctx context.Context, projectID string) context.Context {
	return WithContext(ctx, ProjectIDKey, projectID)
}

func WithChapter(ctx context.Context, chapter int) context.Context {
	return WithContext(ctx, ChapterKey, chapter)
}

func WithRun(ctx context.Context, runID string) context.Context {
	return WithContext(ctx, RunIDKey, runID)
}

func WithStage(ctx context.Context, stage string) context.Context {
	return WithContext(ctx, StageKey, stage)
}

func Debug(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}

// Error err 为 nil 时不附加 error 字段
func Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	FromContext(ctx).Error(msg, args...)
}
