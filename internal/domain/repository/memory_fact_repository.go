package repository

import (
	"context"
	"iter"

	"novel-writer/internal/domain/entity"
)

// MemoryFactQuery 记忆事实查询条件
type MemoryFactQuery struct {
	ProjectID string
	// UpToChapter 起源章节上界（含）
	UpToChapter int
	// Chapter 仅查询某一章，0 表示不限
	Chapter int
	Kinds   []entity.FactKind
	Subject string
	Order   SortOrder
}

// MemoryFactRepository 记忆事实仓储接口，只追加
type MemoryFactRepository interface {
	// Append 追加一条事实，写入 Seq 与 CreatedAt
	Append(ctx context.Context, fact *entity.MemoryFact) error

	// Iterate 按 (章节, Seq) 顺序惰性遍历，每次 range 重新查询
	Iterate(ctx context.Context, q MemoryFactQuery) iter.Seq2[*entity.MemoryFact, error]

	// CountByChapter 某章节已记录的事实数
	CountByChapter(ctx context.Context, projectID string, chapter int) (int, error)

	// CountByKind 按类型统计
	CountByKind(ctx context.Context, projectID string) (map[entity.FactKind]int, error)
}
