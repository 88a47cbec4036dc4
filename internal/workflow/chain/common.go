package chain

import (
	"context"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	wfmodel "novel-writer/internal/workflow/model"
	wfnode "novel-writer/internal/workflow/node"
	workflowprompt "novel-writer/internal/workflow/prompt"
)

// 各阶段的工作流名，用于日志、指标和 LLM 上下文
const (
	WorkflowDirector  = "director_plan"
	WorkflowWriter    = "writer_draft"
	WorkflowReviser   = "writer_revise"
	WorkflowReviewer  = "reviewer"
	WorkflowArchivist = "archivist"
)

var storyPromptRegistry = workflowprompt.NewRegistry()

const (
	placeholderNone     = "（无）"
	placeholderFirst    = "（这是第一章，没有上一章）"
	placeholderNoMemory = "（暂无剧情记忆）"
)

func blockVars(b wfmodel.StoryBlocks) map[string]any {
	return map[string]any{
		"chapter_number": strconv.Itoa(b.ChapterNumber),
		"chapter_title":  strings.TrimSpace(b.ChapterTitle),
		"outline_entry":  wfnode.OrPlaceholder(b.OutlineEntry, placeholderNone),
		"role_sheet":     wfnode.OrPlaceholder(b.RoleSheet, placeholderNone),
		"style_guide":    wfnode.OrPlaceholder(b.Style, placeholderNone),
		"previous_tail":  wfnode.OrPlaceholder(b.PreviousTail, placeholderFirst),
		"memory_facts":   wfnode.OrPlaceholder(b.MemoryFacts, placeholderNoMemory),
		"chapter_plan":   wfnode.OrPlaceholder(b.Plan, placeholderNone),
	}
}

func formatMessages(ctx context.Context, id workflowprompt.PromptID, vars map[string]any) ([]*schema.Message, error) {
	return storyPromptRegistry.Format(ctx, id, vars)
}

func stringArraySchema() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}
