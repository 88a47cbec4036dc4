package chain

import (
	"context"
	"fmt"
	"strings"

	wfmodel "novel-writer/internal/workflow/model"
	wfnode "novel-writer/internal/workflow/node"
	workflowprompt "novel-writer/internal/workflow/prompt"
)

const (
	reviseModePartial = "在上一版基础上逐条修正审稿意见指出的问题，其余部分尽量保持不变"
	reviseModeRewrite = "上一版存在根本性问题，请在吸收审稿意见的前提下整章重写"
)

// WriterChain 生成或修改章节正文
type WriterChain struct {
	generator *wfnode.Generator
}

func NewWriterChain(generator *wfnode.Generator) *WriterChain {
	return &WriterChain{generator: generator}
}

// Invoke 没有审稿意见时写初稿；有意见时把上一版正文和意见原文一起交给模型
func (c *WriterChain) Invoke(ctx context.Context, in *wfmodel.WriterInput) (*wfmodel.WriterOutput, error) {
	if c == nil || c.generator == nil {
		return nil, fmt.Errorf("generator not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.OutlineEntry) == "" {
		return nil, fmt.Errorf("outline entry is required")
	}

	vars := blockVars(in.StoryBlocks)
	promptID := workflowprompt.PromptWriterDraftV1
	workflow := WorkflowWriter
	if in.Revision() {
		promptID = workflowprompt.PromptWriterReviseV1
		workflow = WorkflowReviser
		vars["previous_draft"] = in.PreviousDraft
		vars["review_feedback"] = in.Feedback
		vars["revise_mode"] = reviseModePartial
		if in.Rewrite {
			vars["revise_mode"] = reviseModeRewrite
		}
	}

	msgs, err := formatMessages(ctx, promptID, vars)
	if err != nil {
		return nil, err
	}

	res, err := c.generator.Generate(ctx, &wfnode.GenerateRequest{
		Workflow: workflow,
		Params:   in.GenerationParams,
		Messages: msgs,
	})
	if err != nil {
		return nil, err
	}

	return &wfmodel.WriterOutput{
		Content: stripChapterHeading(res.Message.Content),
		Meta:    res.Meta,
	}, nil
}

// stripChapterHeading 去掉模型自作主张加上的 markdown 标题行。
// 只有标题没有正文时返回空串，由审稿短路判定不通过
func stripChapterHeading(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return s
	}
	_, body, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(body)
}
