package callback

import (
	"context"
	"errors"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-writer/internal/domain/service"
	"novel-writer/pkg/metrics"
)

func TestChatModelHandlerRecordsUsage(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithWorkflowProvider(context.Background(), "writer_draft", "cbtest")
	info := &einocb.RunInfo{Name: "writer_draft"}

	ctx = h.OnStart(ctx, info, &model.CallbackInput{Config: &model.Config{Model: "m1"}})
	c := callFrom(ctx)
	require.NotNil(t, c)
	assert.Equal(t, "m1", c.model)
	assert.Equal(t, "writer_draft", c.workflow)

	h.OnEnd(ctx, info, &model.CallbackOutput{
		Config:     &model.Config{Model: "m1"},
		TokenUsage: &model.TokenUsage{PromptTokens: 12, CompletionTokens: 30},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("writer_draft", "cbtest", "m1", statusSuccess)))
	assert.Equal(t, 12.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("writer_draft", "cbtest", "m1", "prompt")))
	assert.Equal(t, 30.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("writer_draft", "cbtest", "m1", "completion")))
}

func TestChatModelHandlerRecordsErrors(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithWorkflowProvider(context.Background(), "reviewer", "cbtest")

	ctx = h.OnStart(ctx, nil, &model.CallbackInput{
		Messages: []*schema.Message{schema.UserMessage("hi")},
		Config:   &model.Config{Model: "m2"},
	})
	h.OnError(ctx, nil, errors.New("502 bad gateway"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("reviewer", "cbtest", "m2", statusError)))
}

func TestHandlerIgnoresCallsWithoutStart(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := context.Background()

	assert.Nil(t, callFrom(ctx))
	assert.NotPanics(t, func() {
		h.OnEnd(ctx, nil, &model.CallbackOutput{})
		h.OnError(ctx, nil, errors.New("boom"))
	})
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}
