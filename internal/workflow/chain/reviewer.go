package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"novel-writer/internal/domain/entity"
	wfmodel "novel-writer/internal/workflow/model"
	wfnode "novel-writer/internal/workflow/node"
	workflowprompt "novel-writer/internal/workflow/prompt"
)

// ReviewerChain 审阅章节草稿并给出结构化意见
type ReviewerChain struct {
	generator *wfnode.Generator
}

func NewReviewerChain(generator *wfnode.Generator) *ReviewerChain {
	return &ReviewerChain{generator: generator}
}

func (c *ReviewerChain) Invoke(ctx context.Context, in *wfmodel.ReviewerInput) (*wfmodel.ReviewerOutput, error) {
	if c == nil || c.generator == nil {
		return nil, fmt.Errorf("generator not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}

	vars := blockVars(in.StoryBlocks)
	vars["draft"] = in.Draft
	vars["pass_score"] = strconv.Itoa(in.PassScore)

	msgs, err := formatMessages(ctx, workflowprompt.PromptReviewerV1, vars)
	if err != nil {
		return nil, err
	}

	res, err := c.generator.Generate(ctx, &wfnode.GenerateRequest{
		Workflow:   WorkflowReviewer,
		Params:     in.GenerationParams,
		Messages:   msgs,
		JSONSchema: reviewerJSONSchema(),
	})
	if err != nil {
		return nil, err
	}

	raw := wfnode.ExtractJSONObject(res.Message.Content)
	out := &wfmodel.ReviewerOutput{Raw: raw, Meta: res.Meta}

	var feedback entity.ReviewFeedback
	if err := json.Unmarshal([]byte(raw), &feedback); err != nil {
		out.Feedback = &entity.ReviewFeedback{
			Status:  entity.ReviewStatusRevisionNeeded,
			Summary: "审稿结果无法解析，请对照大纲、计划与角色设定自查后重写：" + wfnode.TruncateByRunes(strings.TrimSpace(res.Message.Content), 500),
		}
		return out, nil
	}

	normalizeFeedback(&feedback, in.PassScore)
	out.Feedback = &feedback
	out.Parsed = true
	return out, nil
}

func normalizeFeedback(f *entity.ReviewFeedback, passScore int) {
	if f.Score < 0 {
		f.Score = 0
	}
	if f.Score > 100 {
		f.Score = 100
	}
	switch f.Status {
	case entity.ReviewStatusPass, entity.ReviewStatusRevisionNeeded, entity.ReviewStatusRewriteNeeded:
	default:
		if f.Score >= passScore {
			f.Status = entity.ReviewStatusPass
		} else {
			f.Status = entity.ReviewStatusRevisionNeeded
		}
	}
	f.Summary = strings.TrimSpace(f.Summary)
	f.Instructions = strings.TrimSpace(f.Instructions)

	issues := f.Issues[:0]
	for _, issue := range f.Issues {
		issue.Description = strings.TrimSpace(issue.Description)
		if issue.Description == "" {
			continue
		}
		switch issue.Severity {
		case entity.SeverityCritical, entity.SeverityMajor, entity.SeverityMinor:
		default:
			issue.Severity = entity.SeverityMinor
		}
		issues = append(issues, issue)
	}
	f.Issues = issues
}

func reviewerJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"status", "score", "summary", "issues"},
		"properties": map[string]any{
			"status": map[string]any{
				"type": "string",
				"enum": []any{string(entity.ReviewStatusPass), string(entity.ReviewStatusRevisionNeeded), string(entity.ReviewStatusRewriteNeeded)},
			},
			"score":   map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"summary": map[string]any{"type": "string"},
			"issues": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"category", "severity", "description"},
					"properties": map[string]any{
						"category": map[string]any{"type": "string"},
						"severity": map[string]any{
							"type": "string",
							"enum": []any{string(entity.SeverityCritical), string(entity.SeverityMajor), string(entity.SeverityMinor)},
						},
						"description": map[string]any{"type": "string"},
						"location":    map[string]any{"type": "string"},
						"suggestion":  map[string]any{"type": "string"},
					},
				},
			},
			"revision_instructions": map[string]any{"type": "string"},
		},
	}
}
