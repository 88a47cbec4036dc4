// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"novel-writer/internal/domain/entity"
)

// ChapterRepository 已提交章节仓储接口
type ChapterRepository interface {
	// Create 写入章节，同一项目同一章节号已存在时返回 Conflict
	Create(ctx context.Context, chapter *entity.Chapter) error

	// GetByNumber 按章节号获取，不存在时返回 nil, nil
	GetByNumber(ctx context.Context, projectID string, number int) (*entity.Chapter, error)

	// Delete 删除章节，返回是否确实删除
	Delete(ctx context.Context, projectID string, number int) (bool, error)

	// ListByProject 获取项目章节列表（按章节号升序）
	ListByProject(ctx context.Context, projectID string) ([]*entity.Chapter, error)

	// ListNumbers 获取已提交章节号（升序）
	ListNumbers(ctx context.Context, projectID string) ([]int, error)
}
