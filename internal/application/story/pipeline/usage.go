package pipeline

import (
	"context"
	"sync"
	"time"

	"novel-writer/internal/domain/entity"
	llmctx "novel-writer/internal/domain/service"
	"novel-writer/internal/workflow/chain"
)

// usageTally 汇总一次运行中所有生成调用的用量
type usageTally struct {
	mu               sync.Mutex
	provider         string
	model            string
	promptTokens     int
	completionTokens int
	calls            int
}

var _ llmctx.LLMUsageRecorder = (*usageTally)(nil)

func (u *usageTally) Record(_ context.Context, in llmctx.LLMUsageInput) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.promptTokens += in.PromptTokens
	u.completionTokens += in.CompletionTokens
	u.calls++
	// 章节元数据里的模型以写作阶段为准
	if in.Workflow == chain.WorkflowWriter || in.Workflow == chain.WorkflowReviser || u.model == "" {
		if in.Provider != "" {
			u.provider = in.Provider
		}
		if in.Model != "" {
			u.model = in.Model
		}
	}
	return nil
}

func (u *usageTally) metadata(temperature float64) *entity.GenerationMetadata {
	u.mu.Lock()
	defer u.mu.Unlock()
	return &entity.GenerationMetadata{
		Model:            u.model,
		Provider:         u.provider,
		PromptTokens:     u.promptTokens,
		CompletionTokens: u.completionTokens,
		Temperature:      temperature,
		GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
	}
}
