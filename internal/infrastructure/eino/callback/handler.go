// Package callback 注册 Eino 全局回调，为每次模型调用记录指标与 span
package callback

import (
	"context"
	"sync"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"novel-writer/internal/domain/service"
	"novel-writer/pkg/metrics"
	"novel-writer/pkg/tracer"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

var initOnce sync.Once

// Init 注册进程级全局回调，重复调用无副作用
func Init() {
	initOnce.Do(func() {
		einocb.AppendGlobalHandlers(cbtemplate.NewHandlerHelper().
			ChatModel(newChatModelCallbackHandler()).
			Handler())
	})
}

// call 一次模型调用的标签与开始时间，OnStart 写入 ctx，OnEnd/OnError 读取
type call struct {
	workflow string
	provider string
	model    string
	start    time.Time
	span     trace.Span
}

type callKey struct{}

func callFrom(ctx context.Context) *call {
	c, _ := ctx.Value(callKey{}).(*call)
	return c
}

func (c *call) labels(extra ...string) []string {
	return append([]string{c.workflow, c.provider, c.model}, extra...)
}

// finish 记录调用次数与耗时并结束 span
func (c *call) finish(status string, err error) {
	metrics.LLMCallTotal.WithLabelValues(c.labels(status)...).Inc()
	metrics.LLMCallDuration.WithLabelValues(c.labels()...).Observe(time.Since(c.start).Seconds())
	tracer.RecordError(c.span, err)
	c.span.End()
}

func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			c := &call{
				workflow: service.WorkflowFromContext(ctx),
				provider: service.ProviderFromContext(ctx),
				start:    time.Now(),
			}
			if input != nil && input.Config != nil {
				c.model = input.Config.Model
			}

			ctx, c.span = tracer.Start(ctx, "llm.generate")
			c.span.SetAttributes(
				attribute.String("eino.workflow", c.workflow),
				attribute.String("llm.provider", c.provider),
				attribute.String("llm.model", c.model),
			)
			if info != nil {
				c.span.SetAttributes(attribute.String("eino.node_name", info.Name))
			}
			return context.WithValue(ctx, callKey{}, c)
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			c := callFrom(ctx)
			if c == nil {
				return ctx
			}
			if output != nil && output.Config != nil && output.Config.Model != "" {
				// 网关可能改写模型名，以响应为准
				c.model = output.Config.Model
			}
			if output != nil && output.TokenUsage != nil {
				usage := output.TokenUsage
				metrics.LLMTokensUsed.WithLabelValues(c.labels("prompt")...).Add(float64(usage.PromptTokens))
				metrics.LLMTokensUsed.WithLabelValues(c.labels("completion")...).Add(float64(usage.CompletionTokens))
				c.span.SetAttributes(
					attribute.Int("llm.prompt_tokens", usage.PromptTokens),
					attribute.Int("llm.completion_tokens", usage.CompletionTokens),
				)
			}
			c.finish(statusSuccess, nil)
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			if c := callFrom(ctx); c != nil {
				c.finish(statusError, err)
			}
			return ctx
		},
	}
}
