package entity

import "time"

// ChapterEventType 章节流水线事件类型
type ChapterEventType string

const (
	ChapterEventCommitted ChapterEventType = "chapter.committed"
	ChapterEventAbandoned ChapterEventType = "chapter.abandoned"
)

// ChapterEvent 流水线进入终态时对外发布的事件
type ChapterEvent struct {
	Type       ChapterEventType `json:"type"`
	RunID      string           `json:"run_id"`
	ProjectID  string           `json:"project_id"`
	Chapter    int              `json:"chapter"`
	State      PipelineState    `json:"state"`
	Attempts   int              `json:"attempts"`
	Reason     string           `json:"reason,omitempty"`
	WordCount  int              `json:"word_count,omitempty"`
	Facts      int              `json:"facts,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
