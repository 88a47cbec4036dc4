package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"novel-writer/internal/config"
	llmctx "novel-writer/internal/domain/service"
	wfmodel "novel-writer/internal/workflow/model"
	workflowport "novel-writer/internal/workflow/port"
	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/logger"
	"novel-writer/pkg/metrics"
)

// RetryPolicy 瞬时错误的重试策略，与质量门重试计数相互独立
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
}

// RetryPolicyFromConfig 从配置构造重试策略
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Initial:     cfg.Backoff.Initial,
		Max:         cfg.Backoff.Max,
		Multiplier:  cfg.Backoff.Multiplier,
	}
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		b.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		b.MaxInterval = p.Max
	}
	if p.Multiplier > 1 {
		b.Multiplier = p.Multiplier
	}
	return b
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// GenerateRequest 一次生成请求
type GenerateRequest struct {
	Workflow string
	Params   wfmodel.GenerationParams
	Messages []*schema.Message

	// JSONSchema 非空时优先以 json_schema response_format 请求结构化输出，
	// 服务端不支持时自动退回普通文本。
	JSONSchema map[string]any
	SchemaName string
}

// GenerateResult 生成结果
type GenerateResult struct {
	Message *schema.Message
	Meta    wfmodel.LLMUsageMeta
}

// Generator 封装生成能力：选择模型、结构化输出回退、瞬时错误退避重试
type Generator struct {
	factory workflowport.ChatModelFactory
	policy  RetryPolicy
}

// NewGenerator 创建 Generator
func NewGenerator(factory workflowport.ChatModelFactory, policy RetryPolicy) *Generator {
	return &Generator{factory: factory, policy: policy}
}

// Generate 执行生成。瞬时错误按策略重试，耗尽后返回 GenerationError；
// 永久错误不重试，同样包装为 GenerationError 并保留原因。
func (g *Generator) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if g == nil || g.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if req == nil || len(req.Messages) == 0 {
		return nil, apperrors.Validationf("generate request has no messages")
	}
	if t := req.Params.Temperature; t != nil && (*t < 0 || *t > 2) {
		return nil, apperrors.Validationf("temperature must be within [0,2], got %v", *t)
	}

	provider := strings.TrimSpace(req.Params.Provider)
	ctx = llmctx.WithWorkflowProvider(ctx, req.Workflow, provider)

	chatModel, err := g.factory.Get(ctx, provider)
	if err != nil {
		return nil, g.escalate(req.Workflow, 1, err)
	}

	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      req.Workflow,
		Type:      provider,
		Component: components.ComponentOfChatModel,
	})

	start := time.Now()
	attempts := 0
	operation := func() (*schema.Message, error) {
		attempts++
		msg, err := g.call(ctx, chatModel, req)
		if err == nil {
			return msg, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, backoff.Permanent(apperrors.Wrap(ctxErr, apperrors.CodeCancelled, "generation cancelled"))
		}
		if !IsTransientError(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, next time.Duration) {
		metrics.LLMRetriesTotal.WithLabelValues(req.Workflow).Inc()
		logger.Warn(ctx, "transient generation failure, retrying",
			"workflow", req.Workflow,
			"attempt", attempts,
			"next_in", next.String(),
			"error", err.Error(),
		)
	}

	msg, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(g.policy.newBackOff()),
		backoff.WithMaxTries(uint(g.policy.attempts())),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return nil, g.escalate(req.Workflow, attempts, err)
	}

	meta := wfmodel.LLMUsageMeta{
		Provider:    provider,
		Model:       req.Params.ModelName(),
		Attempts:    attempts,
		GeneratedAt: time.Now().UTC(),
	}
	if req.Params.Temperature != nil {
		meta.Temperature = float64(*req.Params.Temperature)
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		meta.PromptTokens = msg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = msg.ResponseMeta.Usage.CompletionTokens
	}

	if recorder := llmctx.UsageRecorderFromContext(ctx); recorder != nil {
		if err := recorder.Record(ctx, llmctx.LLMUsageInput{
			Workflow:         req.Workflow,
			Provider:         provider,
			Model:            meta.Model,
			PromptTokens:     meta.PromptTokens,
			CompletionTokens: meta.CompletionTokens,
			Attempts:         attempts,
			DurationMs:       int(time.Since(start).Milliseconds()),
		}); err != nil {
			logger.Warn(ctx, "failed to record llm usage", "workflow", req.Workflow, "error", err.Error())
		}
	}

	return &GenerateResult{Message: msg, Meta: meta}, nil
}

// call 单次尝试；结构化输出不被支持时在同一次尝试内去掉 schema 再调一次
func (g *Generator) call(ctx context.Context, chatModel model.BaseChatModel, req *GenerateRequest) (*schema.Message, error) {
	withSchema := req.JSONSchema != nil
	msg, err := chatModel.Generate(ctx, req.Messages, buildModelOptions(req, withSchema)...)
	if err != nil && withSchema && IsResponseFormatUnsupportedError(err) {
		msg, err = chatModel.Generate(ctx, req.Messages, buildModelOptions(req, false)...)
	}
	if err != nil {
		return nil, err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, apperrors.New(apperrors.CodeLLMTransient, "empty llm response")
	}
	return msg, nil
}

// escalate 把最终失败归类为 Cancelled / Validation / GenerationError
func (g *Generator) escalate(workflow string, attempts int, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrCancelled):
		return err
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(err, apperrors.CodeCancelled, "generation cancelled")
	case errors.Is(err, apperrors.ErrValidation):
		return err
	}

	if IsTransientError(err) {
		if !apperrors.IsAppError(err) {
			err = apperrors.Wrap(err, apperrors.CodeLLMTransient, "transient generation failure")
		}
		return apperrors.Wrap(err, apperrors.CodeGenerationFailed,
			fmt.Sprintf("%s: generation failed after %d attempts", workflow, attempts))
	}
	if !apperrors.IsAppError(err) {
		err = apperrors.Wrap(err, apperrors.CodeLLMPermanent, "permanent generation failure")
	}
	return apperrors.Wrap(err, apperrors.CodeGenerationFailed, workflow+": generation failed")
}

func buildModelOptions(req *GenerateRequest, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	p := req.Params
	if p.Temperature != nil {
		opts = append(opts, model.WithTemperature(*p.Temperature))
	}
	if p.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*p.MaxTokens))
	}
	if p.ModelName() != "" {
		opts = append(opts, model.WithModel(p.ModelName()))
	}
	if enableSchema {
		name := req.SchemaName
		if name == "" {
			name = req.Workflow
		}
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   name,
					"strict": false,
					"schema": req.JSONSchema,
				},
			},
		}))
	}
	return opts
}
