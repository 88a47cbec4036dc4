package model

import "novel-writer/internal/domain/entity"

// DirectorInput 章节计划输入
type DirectorInput struct {
	GenerationParams
	StoryBlocks
}

// DirectorOutput 章节计划输出
type DirectorOutput struct {
	Plan *entity.ChapterPlan
	// Parsed 为 false 时 Plan 是由大纲兜底生成的
	Parsed bool
	Raw    string
	Meta   LLMUsageMeta
}

// WriterInput 正文写作输入，PreviousDraft 与 Feedback 同时存在时走修改模板
type WriterInput struct {
	GenerationParams
	StoryBlocks

	PreviousDraft string
	Feedback      string
	Rewrite       bool
}

// Revision 是否为带审稿意见的修改
func (in *WriterInput) Revision() bool {
	return in.Feedback != "" && in.PreviousDraft != ""
}

// WriterOutput 正文写作输出
type WriterOutput struct {
	Content string
	Meta    LLMUsageMeta
}

// ReviewerInput 审稿输入
type ReviewerInput struct {
	GenerationParams
	StoryBlocks

	Draft     string
	PassScore int
}

// ReviewerOutput 审稿输出
type ReviewerOutput struct {
	Feedback *entity.ReviewFeedback
	Parsed   bool
	Raw      string
	Meta     LLMUsageMeta
}

// ArchivistInput 资料提取输入
type ArchivistInput struct {
	GenerationParams

	ChapterNumber int
	ChapterTitle  string
	RoleNames     []string
	Content       string
}

// ArchivedItem 资料提取出的单条信息
type ArchivedItem struct {
	Subjects []string `json:"subjects"`
	Name     string   `json:"name,omitempty"`
	State    string   `json:"state,omitempty"`
	Content  string   `json:"content,omitempty"`
	Status   string   `json:"status,omitempty"`
}

// ArchivistOutput 资料提取输出
type ArchivistOutput struct {
	Summary         string         `json:"summary"`
	Events          []ArchivedItem `json:"events"`
	CharacterStates []ArchivedItem `json:"character_states"`
	Relationships   []ArchivedItem `json:"relationships"`
	Foreshadowing   []ArchivedItem `json:"foreshadowing"`

	Raw  string       `json:"-"`
	Meta LLMUsageMeta `json:"-"`
}
