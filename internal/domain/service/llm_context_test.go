package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type usageSink struct{ calls []LLMUsageInput }

func (s *usageSink) Record(_ context.Context, in LLMUsageInput) error {
	s.calls = append(s.calls, in)
	return nil
}

func TestWorkflowProviderLabels(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, UnknownLabel, WorkflowFromContext(ctx))
	assert.Equal(t, UnknownLabel, ProviderFromContext(ctx))

	ctx = WithWorkflowProvider(ctx, " writer_draft ", "openai")
	assert.Equal(t, "writer_draft", WorkflowFromContext(ctx))
	assert.Equal(t, "openai", ProviderFromContext(ctx))

	// 空值不覆盖
	ctx = WithWorkflow(ctx, "  ")
	assert.Equal(t, "writer_draft", WorkflowFromContext(ctx))
}

func TestUsageRecorder(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, UsageRecorderFromContext(ctx))
	assert.Equal(t, ctx, WithUsageRecorder(ctx, nil))

	sink := &usageSink{}
	ctx = WithUsageRecorder(ctx, sink)
	r := UsageRecorderFromContext(ctx)
	if assert.NotNil(t, r) {
		assert.NoError(t, r.Record(ctx, LLMUsageInput{Workflow: "reviewer", PromptTokens: 3}))
	}
	assert.Len(t, sink.calls, 1)
}
