package repository

import (
	"context"

	"novel-writer/internal/domain/entity"
)

// ProjectSource 项目只读输入：大纲、角色、文风
type ProjectSource interface {
	LoadOutline(ctx context.Context) (entity.Outline, error)
	LoadRoles(ctx context.Context) (*entity.RoleSheet, error)
	LoadStyle(ctx context.Context) (string, error)
}

// ChapterExporter 已提交章节的导出副本（如 chapters/NNN.md）
type ChapterExporter interface {
	Export(ctx context.Context, chapter *entity.Chapter) error
	Remove(ctx context.Context, number int) error
}
