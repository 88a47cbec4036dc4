package pipeline

import (
	"context"
	"fmt"

	"novel-writer/internal/domain/entity"
	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/logger"
)

// BatchError 批量运行在某一章停止
type BatchError struct {
	Chapter int
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("chapter %d: %v", e.Chapter, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Progress 批量运行需要的项目进度
type Progress interface {
	LoadOutline(ctx context.Context) (entity.Outline, error)
	NextChapter(ctx context.Context) (int, error)
}

// Batch 顺序运行多章，遇到第一个失败立即停止，已提交的章节保留
type Batch struct {
	controller *Controller
	progress   Progress
}

func NewBatch(controller *Controller, progress Progress) *Batch {
	return &Batch{controller: controller, progress: progress}
}

// RunRange 依次运行 [from, to]
func (b *Batch) RunRange(ctx context.Context, from, to int) ([]*RunResult, error) {
	if from < 1 || to < from {
		return nil, apperrors.Validationf("invalid chapter range %d-%d", from, to)
	}
	results := make([]*RunResult, 0, to-from+1)
	for n := from; n <= to; n++ {
		if err := ctx.Err(); err != nil {
			return results, &BatchError{Chapter: n, Err: apperrors.Wrap(err, apperrors.CodeCancelled, "batch cancelled")}
		}
		res, err := b.controller.Run(ctx, n)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			logger.Warn(ctx, "batch stopped", "chapter", n, "error", err.Error())
			return results, &BatchError{Chapter: n, Err: err}
		}
	}
	return results, nil
}

// RunNext 从下一个未提交章节开始写 count 章，不超过大纲范围
func (b *Batch) RunNext(ctx context.Context, count int) ([]*RunResult, error) {
	if count < 1 {
		return nil, apperrors.Validationf("chapter count must be >= 1, got %d", count)
	}
	next, last, err := b.bounds(ctx)
	if err != nil {
		return nil, err
	}
	if next > last {
		return nil, apperrors.MissingInputf("outline has no entry for chapter %d, every outlined chapter is committed", next)
	}
	return b.RunRange(ctx, next, min(next+count-1, last))
}

// RunAll 写完大纲中所有未提交章节，没有剩余时返回空结果
func (b *Batch) RunAll(ctx context.Context) ([]*RunResult, error) {
	next, last, err := b.bounds(ctx)
	if err != nil {
		return nil, err
	}
	if next > last {
		return nil, nil
	}
	return b.RunRange(ctx, next, last)
}

func (b *Batch) bounds(ctx context.Context) (next, last int, err error) {
	outline, err := b.progress.LoadOutline(ctx)
	if err != nil {
		return 0, 0, err
	}
	next, err = b.progress.NextChapter(ctx)
	if err != nil {
		return 0, 0, err
	}
	return next, outline.Last(), nil
}
