package model

import (
	"strings"
	"time"
)

// GenerationParams 单次生成调用的模型参数
type GenerationParams struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// ModelName 返回去除空白的模型名
func (p GenerationParams) ModelName() string {
	return strings.TrimSpace(p.Model)
}

// LLMUsageMeta 生成调用的用量信息
type LLMUsageMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Temperature      float64
	Attempts         int
	GeneratedAt      time.Time
}

// Add 累加另一次调用的 token 用量
func (m *LLMUsageMeta) Add(other LLMUsageMeta) {
	m.PromptTokens += other.PromptTokens
	m.CompletionTokens += other.CompletionTokens
	m.Attempts += other.Attempts
	if other.Model != "" {
		m.Model = other.Model
	}
	if other.Provider != "" {
		m.Provider = other.Provider
	}
	if !other.GeneratedAt.IsZero() {
		m.GeneratedAt = other.GeneratedAt
	}
}

// StoryBlocks 各阶段共享的已渲染上下文片段
type StoryBlocks struct {
	ChapterNumber int
	ChapterTitle  string
	OutlineEntry  string
	RoleSheet     string
	Style         string
	PreviousTail  string
	MemoryFacts   string
	Plan          string
}
