package entity

import "time"

// PipelineState 章节流水线状态
type PipelineState string

const (
	StatePlanning        PipelineState = "PLANNING"
	StateBuildingContext PipelineState = "BUILDING_CONTEXT"
	StateWriting         PipelineState = "WRITING"
	StateReviewing       PipelineState = "REVIEWING"
	StateRetryWriting    PipelineState = "RETRY_WRITING"
	StateArchiving       PipelineState = "ARCHIVING"
	StateCommitted       PipelineState = "COMMITTED"
	StateAbandoned       PipelineState = "ABANDONED"
)

// Terminal 是否为终态
func (s PipelineState) Terminal() bool {
	return s == StateCommitted || s == StateAbandoned
}

// RunStatus 某次流水线运行的快照，供 status 查询
type RunStatus struct {
	RunID     string        `json:"run_id"`
	ProjectID string        `json:"project_id"`
	Chapter   int           `json:"chapter"`
	State     PipelineState `json:"state"`
	Attempt   int           `json:"attempt"`
	Reason    string        `json:"reason,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
