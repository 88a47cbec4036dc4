package entity

import (
	"fmt"
	"strings"
)

// ScenePlan 场景计划
type ScenePlan struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Characters []string `json:"characters,omitempty"`
}

// ChapterPlan Director 输出的章节计划
type ChapterPlan struct {
	Goals       []string    `json:"goals"`
	Scenes      []ScenePlan `json:"scenes"`
	Checkpoints []string    `json:"checkpoints"`
}

// Empty 是否没有任何内容
func (p *ChapterPlan) Empty() bool {
	return p == nil || (len(p.Goals) == 0 && len(p.Scenes) == 0 && len(p.Checkpoints) == 0)
}

// Render 渲染为提示词文本
func (p *ChapterPlan) Render() string {
	if p.Empty() {
		return ""
	}
	var b strings.Builder
	if len(p.Goals) > 0 {
		b.WriteString("目标：\n")
		for _, g := range p.Goals {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}
	if len(p.Scenes) > 0 {
		b.WriteString("场景：\n")
		for i, s := range p.Scenes {
			fmt.Fprintf(&b, "%d. %s：%s", i+1, s.Title, s.Summary)
			if len(s.Characters) > 0 {
				fmt.Fprintf(&b, "（%s）", strings.Join(s.Characters, "、"))
			}
			b.WriteString("\n")
		}
	}
	if len(p.Checkpoints) > 0 {
		b.WriteString("检查点：\n")
		for _, c := range p.Checkpoints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ChapterDraft 单次流水线运行中的章节草稿，不持久化
type ChapterDraft struct {
	Number int
	Plan   *ChapterPlan
	Text   string
	// Attempt 当前是第几次 Writer 尝试，从 1 开始
	Attempt  int
	Feedback *ReviewFeedback
}

// RetryCount 质量门重试次数
func (d *ChapterDraft) RetryCount() int {
	if d.Attempt <= 1 {
		return 0
	}
	return d.Attempt - 1
}

// IsRevision 是否带着审稿意见重写
func (d *ChapterDraft) IsRevision() bool {
	return d.Feedback != nil && strings.TrimSpace(d.Text) != ""
}
