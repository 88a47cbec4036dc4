// Package entity 定义领域实体
package entity

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// GenerationMetadata 生成元数据
type GenerationMetadata struct {
	Model            string  `json:"model,omitempty"`
	Provider         string  `json:"provider,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	GeneratedAt      string  `json:"generated_at,omitempty"`
}

// Chapter 已提交章节，写入后不可修改
type Chapter struct {
	ID                 string              `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID          string              `json:"project_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_chapters_project_number"`
	Number             int                 `json:"number" gorm:"column:number;not null;uniqueIndex:idx_chapters_project_number"`
	Title              string              `json:"title,omitempty" gorm:"type:varchar(255)"`
	Content            string              `json:"content" gorm:"type:text;not null"`
	Summary            string              `json:"summary,omitempty" gorm:"type:text"`
	WordCount          int                 `json:"word_count" gorm:"default:0"`
	Attempts           int                 `json:"attempts" gorm:"default:1"`
	GenerationMetadata *GenerationMetadata `json:"generation_metadata,omitempty" gorm:"type:jsonb;serializer:json"`
	CommittedAt        time.Time           `json:"committed_at" gorm:"not null"`
}

// TableName 指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// NewChapter 创建待提交章节
func NewChapter(projectID string, number int, title, content string) *Chapter {
	return &Chapter{
		ProjectID:   projectID,
		Number:      number,
		Title:       title,
		Content:     content,
		WordCount:   utf8.RuneCountInString(content),
		Attempts:    1,
		CommittedAt: time.Now(),
	}
}

// Heading 章节标题行，如 "第3章：夜雨"
func (c *Chapter) Heading() string {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Sprintf("第%d章", c.Number)
	}
	return fmt.Sprintf("第%d章：%s", c.Number, c.Title)
}

// Markdown 渲染为导出用的 markdown 文本
func (c *Chapter) Markdown() string {
	return "# " + c.Heading() + "\n\n" + strings.TrimSpace(c.Content) + "\n"
}

// Tail 返回正文结尾最多 n 个字符
func (c *Chapter) Tail(n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(c.Content)
	if len(runes) <= n {
		return c.Content
	}
	return string(runes[len(runes)-n:])
}
