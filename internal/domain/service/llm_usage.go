package service

import "context"

// LLMUsageInput 一次成功生成调用的用量
type LLMUsageInput struct {
	Workflow string
	Provider string
	Model    string

	PromptTokens     int
	CompletionTokens int
	Attempts         int
	DurationMs       int
}

// LLMUsageRecorder 记录 LLM 用量。实现应当是 best-effort，不能阻塞生成流程
type LLMUsageRecorder interface {
	Record(ctx context.Context, in LLMUsageInput) error
}

type usageRecorderKey struct{}

// WithUsageRecorder 把用量记录器挂到 ctx 上，之后的生成调用都会向它汇报
func WithUsageRecorder(ctx context.Context, r LLMUsageRecorder) context.Context {
	if r == nil {
		return ctx
	}
	return context.WithValue(ctx, usageRecorderKey{}, r)
}

// UsageRecorderFromContext 取出用量记录器，没有时返回 nil
func UsageRecorderFromContext(ctx context.Context) LLMUsageRecorder {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(usageRecorderKey{}).(LLMUsageRecorder)
	return r
}
