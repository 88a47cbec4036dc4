package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"novel-writer/internal/domain/entity"
	wfmodel "novel-writer/internal/workflow/model"
	wfnode "novel-writer/internal/workflow/node"
	workflowprompt "novel-writer/internal/workflow/prompt"
	"novel-writer/pkg/logger"
)

// DirectorChain 把单章大纲细化为章节计划
type DirectorChain struct {
	generator *wfnode.Generator
}

func NewDirectorChain(generator *wfnode.Generator) *DirectorChain {
	return &DirectorChain{generator: generator}
}

func (c *DirectorChain) Invoke(ctx context.Context, in *wfmodel.DirectorInput) (*wfmodel.DirectorOutput, error) {
	if c == nil || c.generator == nil {
		return nil, fmt.Errorf("generator not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.OutlineEntry) == "" {
		return nil, fmt.Errorf("outline entry is required")
	}

	msgs, err := formatMessages(ctx, workflowprompt.PromptDirectorPlanV1, blockVars(in.StoryBlocks))
	if err != nil {
		return nil, err
	}

	res, err := c.generator.Generate(ctx, &wfnode.GenerateRequest{
		Workflow:   WorkflowDirector,
		Params:     in.GenerationParams,
		Messages:   msgs,
		JSONSchema: directorJSONSchema(),
	})
	if err != nil {
		return nil, err
	}

	raw := wfnode.ExtractJSONObject(res.Message.Content)
	out := &wfmodel.DirectorOutput{Raw: raw, Meta: res.Meta}

	var plan entity.ChapterPlan
	if err := json.Unmarshal([]byte(raw), &plan); err == nil {
		normalizePlan(&plan)
		if !plan.Empty() {
			out.Plan = &plan
			out.Parsed = true
			return out, nil
		}
	}

	// 模型没有给出可用计划时退回大纲本身
	logger.Warn(ctx, "director output unparseable, falling back to outline", "raw_len", len(raw))
	out.Plan = &entity.ChapterPlan{Goals: []string{strings.TrimSpace(in.OutlineEntry)}}
	return out, nil
}

func normalizePlan(p *entity.ChapterPlan) {
	p.Goals = wfnode.NormalizeNames(p.Goals)
	p.Checkpoints = wfnode.NormalizeNames(p.Checkpoints)
	scenes := p.Scenes[:0]
	for _, s := range p.Scenes {
		s.Title = strings.TrimSpace(s.Title)
		s.Summary = strings.TrimSpace(s.Summary)
		if s.Title == "" && s.Summary == "" {
			continue
		}
		s.Characters = wfnode.NormalizeNames(s.Characters)
		scenes = append(scenes, s)
	}
	p.Scenes = scenes
}

func directorJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"goals", "scenes", "checkpoints"},
		"properties": map[string]any{
			"goals": stringArraySchema(),
			"scenes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"title", "summary"},
					"properties": map[string]any{
						"title":      map[string]any{"type": "string"},
						"summary":    map[string]any{"type": "string"},
						"characters": stringArraySchema(),
					},
				},
			},
			"checkpoints": stringArraySchema(),
		},
	}
}
