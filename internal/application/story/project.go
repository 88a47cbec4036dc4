// Package story 组织小说项目的读写与章节流水线
package story

import (
	"context"

	"novel-writer/internal/application/memory"
	"novel-writer/internal/domain/entity"
	"novel-writer/internal/domain/repository"
	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/logger"
	"novel-writer/pkg/metrics"
)

// Project 项目的读写入口：只读输入来自 ProjectSource，已提交章节与记忆事实来自存储。
// 提交是唯一的写路径，章节与其记忆事实在同一事务内写入。
type Project struct {
	info     *entity.Project
	source   repository.ProjectSource
	chapters repository.ChapterRepository
	memory   *memory.Store
	tx       repository.Transactor
	exporter repository.ChapterExporter
}

// ProjectDeps Project 依赖
type ProjectDeps struct {
	Info     *entity.Project
	Source   repository.ProjectSource
	Chapters repository.ChapterRepository
	Facts    repository.MemoryFactRepository
	Tx       repository.Transactor
	// Exporter 可选，为空时不导出 markdown
	Exporter repository.ChapterExporter
}

// NewProject 创建项目
func NewProject(deps ProjectDeps) *Project {
	return &Project{
		info:     deps.Info,
		source:   deps.Source,
		chapters: deps.Chapters,
		memory:   memory.NewStore(deps.Info.ID, deps.Facts),
		tx:       deps.Tx,
		exporter: deps.Exporter,
	}
}

func (p *Project) ProjectID() string { return p.info.ID }

func (p *Project) Info() *entity.Project { return p.info }

// Memory 项目的记忆存储
func (p *Project) Memory() *memory.Store { return p.memory }

func (p *Project) LoadOutline(ctx context.Context) (entity.Outline, error) {
	return p.source.LoadOutline(ctx)
}

func (p *Project) LoadRoles(ctx context.Context) (*entity.RoleSheet, error) {
	return p.source.LoadRoles(ctx)
}

func (p *Project) LoadStyle(ctx context.Context) (string, error) {
	return p.source.LoadStyle(ctx)
}

// LoadChapter 读取已提交章节，未提交时返回 nil, nil
func (p *Project) LoadChapter(ctx context.Context, number int) (*entity.Chapter, error) {
	ch, err := p.chapters.GetByNumber(ctx, p.info.ID, number)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load chapter")
	}
	return ch, nil
}

// ListCommittedChapters 已提交章节号，升序
func (p *Project) ListCommittedChapters(ctx context.Context) ([]int, error) {
	nums, err := p.chapters.ListNumbers(ctx, p.info.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list chapters")
	}
	return nums, nil
}

// Chapters 已提交章节，升序
func (p *Project) Chapters(ctx context.Context) ([]*entity.Chapter, error) {
	chapters, err := p.chapters.ListByProject(ctx, p.info.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list chapters")
	}
	return chapters, nil
}

// NextChapter 下一个待写章节号：已提交章节连续，因此为最大章节号加一
func (p *Project) NextChapter(ctx context.Context) (int, error) {
	nums, err := p.ListCommittedChapters(ctx)
	if err != nil {
		return 0, err
	}
	if len(nums) == 0 {
		return 1, nil
	}
	return nums[len(nums)-1] + 1, nil
}

// SaveChapter 在一个事务内写入章节及其记忆事实，任一失败则全部回滚。
// 事务提交后导出 markdown，导出失败只记录日志。
func (p *Project) SaveChapter(ctx context.Context, chapter *entity.Chapter, facts []*entity.MemoryFact) error {
	chapter.ProjectID = p.info.ID
	err := p.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := p.chapters.Create(ctx, chapter); err != nil {
			return err
		}
		for _, fact := range facts {
			if err := p.memory.Record(ctx, fact); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to commit chapter")
	}
	for _, fact := range facts {
		metrics.MemoryFactsRecorded.WithLabelValues(string(fact.Kind)).Inc()
	}

	if p.exporter != nil {
		if err := p.exporter.Export(ctx, chapter); err != nil {
			logger.Warn(ctx, "chapter export failed", "chapter", chapter.Number, "error", err.Error())
		}
	}
	return nil
}

// DeleteChapter 删除已提交章节及其导出文件。
// 只允许删除最后一章，保持章节号连续；记忆事实保留，重新生成时不会重复提取。
func (p *Project) DeleteChapter(ctx context.Context, number int) error {
	if number < 1 {
		return apperrors.Validationf("invalid chapter number %d", number)
	}
	nums, err := p.ListCommittedChapters(ctx)
	if err != nil {
		return err
	}
	if len(nums) == 0 || nums[len(nums)-1] < number {
		return apperrors.Newf(apperrors.CodeChapterNotFound, "chapter %d is not committed", number)
	}
	if last := nums[len(nums)-1]; last != number {
		return apperrors.Newf(apperrors.CodeConflict, "chapter %d cannot be deleted while chapter %d is committed", number, last)
	}

	deleted, err := p.chapters.Delete(ctx, p.info.ID, number)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to delete chapter")
	}
	if !deleted {
		return apperrors.Newf(apperrors.CodeChapterNotFound, "chapter %d is not committed", number)
	}
	if p.exporter != nil {
		if err := p.exporter.Remove(ctx, number); err != nil {
			logger.Warn(ctx, "chapter export removal failed", "chapter", number, "error", err.Error())
		}
	}
	logger.Info(ctx, "chapter deleted", "chapter", number)
	return nil
}
