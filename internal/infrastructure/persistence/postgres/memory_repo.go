package postgres

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"novel-writer/internal/domain/entity"
	"novel-writer/internal/domain/repository"
	"novel-writer/pkg/tracer"
)

// MemoryFactRepository 记忆事实仓储实现
type MemoryFactRepository struct {
	client *Client
}

// NewMemoryFactRepository 创建记忆事实仓储
func NewMemoryFactRepository(client *Client) *MemoryFactRepository {
	return &MemoryFactRepository{client: client}
}

// Append 追加事实
func (r *MemoryFactRepository) Append(ctx context.Context, fact *entity.MemoryFact) error {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFactRepository.Append")
	defer span.End()

	if fact.ID == "" {
		fact.ID = uuid.NewString()
	}
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = time.Now()
	}

	db := getDB(ctx, r.client.db)
	if err := db.Create(fact).Error; err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("failed to append memory fact: %w", err)
	}
	return nil
}

// Iterate 以游标逐行读取，每次 range 重新查询
func (r *MemoryFactRepository) Iterate(ctx context.Context, q repository.MemoryFactQuery) iter.Seq2[*entity.MemoryFact, error] {
	subject := strings.TrimSpace(q.Subject)

	return func(yield func(*entity.MemoryFact, error) bool) {
		ctx, span := tracer.Start(ctx, "postgres.MemoryFactRepository.Iterate")
		defer span.End()

		db := getDB(ctx, r.client.db)
		query := db.Model(&entity.MemoryFact{}).
			Where("project_id = ? AND chapter_number <= ?", q.ProjectID, q.UpToChapter)
		if q.Chapter > 0 {
			query = query.Where("chapter_number = ?", q.Chapter)
		}
		if len(q.Kinds) > 0 {
			query = query.Where("kind IN ?", q.Kinds)
		}
		dir := "ASC"
		if q.Order == repository.SortOrderDesc {
			dir = "DESC"
		}
		query = query.Order("chapter_number " + dir).Order("seq " + dir)

		rows, err := query.Rows()
		if err != nil {
			tracer.RecordError(span, err)
			yield(nil, fmt.Errorf("failed to query memory facts: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var fact entity.MemoryFact
			if err := db.ScanRows(rows, &fact); err != nil {
				yield(nil, fmt.Errorf("failed to scan memory fact: %w", err))
				return
			}
			// 主体匹配与 sqlite 实现一致：忽略首尾空白与大小写
			if subject != "" && !fact.HasSubject(subject) {
				continue
			}
			if !yield(&fact, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("failed to iterate memory facts: %w", err))
		}
	}
}

// CountByChapter 某章节已记录的事实数
func (r *MemoryFactRepository) CountByChapter(ctx context.Context, projectID string, chapter int) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFactRepository.CountByChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var n int64
	if err := db.Model(&entity.MemoryFact{}).
		Where("project_id = ? AND chapter_number = ?", projectID, chapter).
		Count(&n).Error; err != nil {
		tracer.RecordError(span, err)
		return 0, fmt.Errorf("failed to count memory facts: %w", err)
	}
	return int(n), nil
}

// CountByKind 按类型统计
func (r *MemoryFactRepository) CountByKind(ctx context.Context, projectID string) (map[entity.FactKind]int, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFactRepository.CountByKind")
	defer span.End()

	var rows []struct {
		Kind  string
		Total int
	}
	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.MemoryFact{}).
		Select("kind, COUNT(*) AS total").
		Where("project_id = ?", projectID).
		Group("kind").
		Scan(&rows).Error; err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to count memory facts: %w", err)
	}

	counts := make(map[entity.FactKind]int, len(rows))
	for _, row := range rows {
		counts[entity.FactKind(row.Kind)] = row.Total
	}
	return counts, nil
}
