package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	wfmodel "novel-writer/internal/workflow/model"
	wfnode "novel-writer/internal/workflow/node"
	workflowprompt "novel-writer/internal/workflow/prompt"
	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/logger"
)

// archivistParseAttempts 输出无法解析时重新生成的次数上限
const archivistParseAttempts = 2

// ArchivistChain 从定稿章节提取摘要与记忆事实
type ArchivistChain struct {
	generator *wfnode.Generator
}

func NewArchivistChain(generator *wfnode.Generator) *ArchivistChain {
	return &ArchivistChain{generator: generator}
}

func (c *ArchivistChain) Invoke(ctx context.Context, in *wfmodel.ArchivistInput) (*wfmodel.ArchivistOutput, error) {
	if c == nil || c.generator == nil {
		return nil, fmt.Errorf("generator not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperrors.Validationf("chapter %d content is empty", in.ChapterNumber)
	}

	roleNames := strings.Join(wfnode.NormalizeNames(in.RoleNames), "、")
	msgs, err := formatMessages(ctx, workflowprompt.PromptArchivistV1, map[string]any{
		"chapter_number": strconv.Itoa(in.ChapterNumber),
		"chapter_title":  strings.TrimSpace(in.ChapterTitle),
		"role_names":     wfnode.OrPlaceholder(roleNames, placeholderNone),
		"content":        in.Content,
	})
	if err != nil {
		return nil, err
	}

	var meta wfmodel.LLMUsageMeta
	var lastErr error
	for i := 0; i < archivistParseAttempts; i++ {
		res, err := c.generator.Generate(ctx, &wfnode.GenerateRequest{
			Workflow:   WorkflowArchivist,
			Params:     in.GenerationParams,
			Messages:   msgs,
			JSONSchema: archivistJSONSchema(),
		})
		if err != nil {
			return nil, err
		}
		meta.Add(res.Meta)

		raw := wfnode.ExtractJSONObject(res.Message.Content)
		var out wfmodel.ArchivistOutput
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			lastErr = err
			logger.Warn(ctx, "archivist output unparseable", "attempt", i+1, "error", err.Error())
			continue
		}
		out.Summary = strings.TrimSpace(out.Summary)
		out.Raw = raw
		out.Meta = meta
		return &out, nil
	}

	return nil, apperrors.Wrap(lastErr, apperrors.CodeGenerationFailed,
		fmt.Sprintf("archivist output unparseable after %d attempts", archivistParseAttempts))
}

func archivistJSONSchema() map[string]any {
	item := func(required ...any) map[string]any {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"subjects": stringArraySchema(),
				"name":     map[string]any{"type": "string"},
				"state":    map[string]any{"type": "string"},
				"content":  map[string]any{"type": "string"},
				"status":   map[string]any{"type": "string", "enum": []any{"planted", "resolved"}},
			},
			"required": required,
		}
	}
	return map[string]any{
		"type":     "object",
		"required": []any{"summary", "events", "character_states", "relationships", "foreshadowing"},
		"properties": map[string]any{
			"summary":          map[string]any{"type": "string"},
			"events":           map[string]any{"type": "array", "items": item("subjects", "content")},
			"character_states": map[string]any{"type": "array", "items": item("name", "state")},
			"relationships":    map[string]any{"type": "array", "items": item("subjects", "content")},
			"foreshadowing":    map[string]any{"type": "array", "items": item("subjects", "content", "status")},
		},
	}
}
