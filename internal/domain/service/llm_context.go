// Package service 生成调用在 context 上携带的元信息：工作流名、provider 与用量记录器
package service

import (
	"context"
	"strings"
)

// UnknownLabel 未设置工作流或 provider 时的指标标签
const UnknownLabel = "unknown"

type (
	workflowKey struct{}
	providerKey struct{}
)

// WithWorkflow 标记当前生成调用所属的工作流，空值不覆盖已有标记
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return withLabel(ctx, workflowKey{}, workflow)
}

// WithProvider 标记当前生成调用使用的 provider
func WithProvider(ctx context.Context, provider string) context.Context {
	return withLabel(ctx, providerKey{}, provider)
}

func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	return WithProvider(WithWorkflow(ctx, workflow), provider)
}

// WorkflowFromContext 没有标记时返回 UnknownLabel
func WorkflowFromContext(ctx context.Context) string {
	return labelFrom(ctx, workflowKey{})
}

// ProviderFromContext 没有标记时返回 UnknownLabel
func ProviderFromContext(ctx context.Context) string {
	return labelFrom(ctx, providerKey{})
}

func withLabel(ctx context.Context, key any, value string) context.Context {
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func labelFrom(ctx context.Context, key any) string {
	if s, ok := ctx.Value(key).(string); ok && s != "" {
		return s
	}
	return UnknownLabel
}
