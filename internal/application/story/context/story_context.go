package context

import (
	"strings"
	"unicode/utf8"

	"novel-writer/internal/domain/entity"
	wfmodel "novel-writer/internal/workflow/model"
)

// StoryContext 某一章生成时的有界上下文。
// 大纲条目、角色表、文风完整保留；上一章结尾、计划与记忆事实共享预算。
type StoryContext struct {
	ProjectID string
	Chapter   int

	Entry *entity.OutlineEntry
	Roles *entity.RoleSheet
	Style string

	// Previous 上一章，未提交或第一章时为 nil
	Previous     *entity.Chapter
	PreviousTail string

	// Facts 按时间升序，已按预算截断
	Facts        []*entity.MemoryFact
	DroppedFacts int

	Plan *entity.ChapterPlan

	Budget int
	Used   int
}

// Title 本章标题
func (c *StoryContext) Title() string {
	if c.Entry == nil {
		return ""
	}
	return c.Entry.Title
}

// RenderFacts 每条事实一行
func (c *StoryContext) RenderFacts() string {
	if len(c.Facts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(c.Facts))
	for _, f := range c.Facts {
		lines = append(lines, f.Render())
	}
	return strings.Join(lines, "\n")
}

// Blocks 转成工作流使用的已渲染片段
func (c *StoryContext) Blocks() wfmodel.StoryBlocks {
	b := wfmodel.StoryBlocks{
		ChapterNumber: c.Chapter,
		ChapterTitle:  c.Title(),
		Style:         c.Style,
		PreviousTail:  c.PreviousTail,
		MemoryFacts:   c.RenderFacts(),
		Plan:          c.Plan.Render(),
	}
	if c.Entry != nil {
		b.OutlineEntry = c.Entry.Render()
	}
	if c.Roles != nil {
		b.RoleSheet = c.Roles.Render()
	}
	return b
}

// RoleNames 角色名列表
func (c *StoryContext) RoleNames() []string {
	if c.Roles == nil {
		return nil
	}
	return c.Roles.Names()
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
