package story

import (
	"context"
	"time"

	"novel-writer/internal/application/memory"
	"novel-writer/internal/domain/entity"
	apperrors "novel-writer/pkg/errors"
)

// RunStatusReader 读取最近一次流水线运行状态
type RunStatusReader interface {
	Latest(ctx context.Context, projectID string) (*entity.RunStatus, error)
}

// ChapterInfo 已提交章节概要
type ChapterInfo struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	WordCount   int       `json:"word_count"`
	Attempts    int       `json:"attempts"`
	CommittedAt time.Time `json:"committed_at"`
}

// Summary 项目进度概览，status 命令与 HTTP 接口共用
type Summary struct {
	ProjectID       string            `json:"project_id"`
	Title           string            `json:"title"`
	Root            string            `json:"root"`
	OutlineChapters int               `json:"outline_chapters"`
	OutlineMissing  bool              `json:"outline_missing,omitempty"`
	Committed       []ChapterInfo     `json:"committed"`
	TotalWords      int               `json:"total_words"`
	NextChapter     int               `json:"next_chapter"`
	Remaining       int               `json:"remaining"`
	Memory          *memory.Stats     `json:"memory"`
	LastRun         *entity.RunStatus `json:"last_run,omitempty"`
}

// Complete 大纲中的章节是否已全部提交
func (s *Summary) Complete() bool {
	return !s.OutlineMissing && s.Remaining == 0
}

// Summary 汇总项目进度。大纲缺失不算错误，status 在 init 之前也能使用；
// runs 为空时不查询最近运行状态
func (p *Project) Summary(ctx context.Context, runs RunStatusReader) (*Summary, error) {
	s := &Summary{
		ProjectID: p.info.ID,
		Title:     p.info.Title,
		Root:      p.info.Root,
	}

	last := 0
	outline, err := p.LoadOutline(ctx)
	switch {
	case err == nil:
		s.OutlineChapters = len(outline)
		last = outline.Last()
	case apperrors.GetCode(err) == apperrors.CodeMissingInput:
		s.OutlineMissing = true
	default:
		return nil, err
	}

	chapters, err := p.Chapters(ctx)
	if err != nil {
		return nil, err
	}
	s.Committed = make([]ChapterInfo, 0, len(chapters))
	for _, ch := range chapters {
		s.Committed = append(s.Committed, ChapterInfo{
			Number:      ch.Number,
			Title:       ch.Title,
			WordCount:   ch.WordCount,
			Attempts:    ch.Attempts,
			CommittedAt: ch.CommittedAt,
		})
		s.TotalWords += ch.WordCount
	}
	s.NextChapter = 1
	if n := len(chapters); n > 0 {
		s.NextChapter = chapters[n-1].Number + 1
	}
	if last >= s.NextChapter {
		s.Remaining = last - s.NextChapter + 1
	}

	if s.Memory, err = p.memory.Stats(ctx); err != nil {
		return nil, err
	}

	if runs != nil {
		if s.LastRun, err = runs.Latest(ctx, p.info.ID); err != nil {
			return nil, err
		}
	}
	return s, nil
}
