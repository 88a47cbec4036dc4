// Package prompt 内嵌各阶段的提示词模板，按 ID 取得 Eino ChatTemplate
package prompt

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 模板标识，对应 templates/<id>.system.txt 与 templates/<id>.user.txt
type PromptID string

const (
	PromptDirectorPlanV1 PromptID = "director_plan_v1"
	PromptWriterDraftV1  PromptID = "writer_draft_v1"
	PromptWriterReviseV1 PromptID = "writer_revise_v1"
	PromptReviewerV1     PromptID = "reviewer_v1"
	PromptArchivistV1    PromptID = "archivist_v1"
)

// All 全部内置模板
func All() []PromptID {
	return []PromptID{
		PromptDirectorPlanV1,
		PromptWriterDraftV1,
		PromptWriterReviseV1,
		PromptReviewerV1,
		PromptArchivistV1,
	}
}

// Registry 首次使用时解析全部内置模板，之后只读
type Registry struct {
	once      sync.Once
	templates map[PromptID]einoprompt.ChatTemplate
	err       error
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) load() {
	r.templates = make(map[PromptID]einoprompt.ChatTemplate, len(All()))
	for _, id := range All() {
		system, err := readTemplate(id, "system")
		if err != nil {
			r.err = err
			return
		}
		user, err := readTemplate(id, "user")
		if err != nil {
			r.err = err
			return
		}
		r.templates[id] = einoprompt.FromMessages(schema.FString,
			schema.SystemMessage(system),
			schema.UserMessage(user),
		)
	}
}

// ChatTemplate 按 ID 取模板
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	r.once.Do(r.load)
	if r.err != nil {
		return nil, r.err
	}
	tpl, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}
	return tpl, nil
}

// Format 渲染模板为 system + user 两条消息
func (r *Registry) Format(ctx context.Context, id PromptID, vars map[string]any) ([]*schema.Message, error) {
	tpl, err := r.ChatTemplate(id)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt %s: %w", id, err)
	}
	return msgs, nil
}

func readTemplate(id PromptID, role string) (string, error) {
	path := fmt.Sprintf("templates/%s.%s.txt", id, role)
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt template %s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}
