package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"novel-writer/internal/domain/entity"
	"novel-writer/internal/domain/repository"
	"novel-writer/pkg/tracer"
)

const factColumns = `seq, id, project_id, kind, subjects, content, chapter_number, created_at`

// MemoryFactRepository 记忆事实仓储实现，只追加
type MemoryFactRepository struct {
	client *Client
}

// NewMemoryFactRepository 创建记忆事实仓储
func NewMemoryFactRepository(client *Client) *MemoryFactRepository {
	return &MemoryFactRepository{client: client}
}

// Append 追加一条事实，单条 INSERT 要么整条可见要么不可见
func (r *MemoryFactRepository) Append(ctx context.Context, fact *entity.MemoryFact) error {
	ctx, span := tracer.Start(ctx, "sqlite.MemoryFactRepository.Append")
	defer span.End()

	if fact.ID == "" {
		fact.ID = uuid.NewString()
	}
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = time.Now()
	}
	subjects, err := json.Marshal(fact.Subjects)
	if err != nil {
		return fmt.Errorf("failed to encode subjects: %w", err)
	}

	q := getQuerier(ctx, r.client.db)
	res, err := q.ExecContext(ctx,
		`INSERT INTO memory_facts (id, project_id, kind, subjects, content, chapter_number, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fact.ID, fact.ProjectID, string(fact.Kind), string(subjects), fact.Content, fact.Chapter, formatTime(fact.CreatedAt),
	)
	if err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("failed to append memory fact: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read memory fact seq: %w", err)
	}
	fact.Seq = seq
	return nil
}

// Iterate 惰性遍历；每次 range 都重新执行查询，因此可以重复遍历
func (r *MemoryFactRepository) Iterate(ctx context.Context, query repository.MemoryFactQuery) iter.Seq2[*entity.MemoryFact, error] {
	stmt, args := buildFactQuery(query)
	subject := strings.TrimSpace(query.Subject)

	return func(yield func(*entity.MemoryFact, error) bool) {
		ctx, span := tracer.Start(ctx, "sqlite.MemoryFactRepository.Iterate")
		defer span.End()

		q := getQuerier(ctx, r.client.db)
		rows, err := q.QueryContext(ctx, stmt, args...)
		if err != nil {
			tracer.RecordError(span, err)
			yield(nil, fmt.Errorf("failed to query memory facts: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			fact, err := scanFact(rows)
			if err != nil {
				yield(nil, fmt.Errorf("failed to scan memory fact: %w", err))
				return
			}
			// 主体存放在 JSON 列中，在内存里过滤
			if subject != "" && !fact.HasSubject(subject) {
				continue
			}
			if !yield(fact, nil) {
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
	ctx, span := tracer.Start(ctx, "sqlite.MemoryFactRepository.CountByChapter")
	defer span.End()

	var n int
	q := getQuerier(ctx, r.client.db)
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memory_facts WHERE project_id = ? AND chapter_number = ?`,
		projectID, chapter,
	).Scan(&n)
	if err != nil {
		tracer.RecordError(span, err)
		return 0, fmt.Errorf("failed to count memory facts: %w", err)
	}
	return n, nil
}

// CountByKind 按类型统计
func (r *MemoryFactRepository) CountByKind(ctx context.Context, projectID string) (map[entity.FactKind]int, error) {
	ctx, span := tracer.Start(ctx, "sqlite.MemoryFactRepository.CountByKind")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	rows, err := q.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM memory_facts WHERE project_id = ? GROUP BY kind`,
		projectID,
	)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to count memory facts: %w", err)
	}
	defer rows.Close()

	counts := make(map[entity.FactKind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan memory fact count: %w", err)
		}
		counts[entity.FactKind(kind)] = n
	}
	return counts, rows.Err()
}

func buildFactQuery(query repository.MemoryFactQuery) (string, []any) {
	var (
		where = []string{"project_id = ?", "chapter_number <= ?"}
		args  = []any{query.ProjectID, query.UpToChapter}
	)
	if query.Chapter > 0 {
		where = append(where, "chapter_number = ?")
		args = append(args, query.Chapter)
	}
	if len(query.Kinds) > 0 {
		marks := make([]string, len(query.Kinds))
		for i, k := range query.Kinds {
			marks[i] = "?"
			args = append(args, string(k))
		}
		where = append(where, "kind IN ("+strings.Join(marks, ", ")+")")
	}

	dir := "ASC"
	if query.Order == repository.SortOrderDesc {
		dir = "DESC"
	}
	stmt := `SELECT ` + factColumns + ` FROM memory_facts WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY chapter_number ` + dir + `, seq ` + dir
	return stmt, args
}

func scanFact(row rowScanner) (*entity.MemoryFact, error) {
	var (
		f         entity.MemoryFact
		kind      string
		subjects  string
		createdAt string
	)
	if err := row.Scan(&f.Seq, &f.ID, &f.ProjectID, &kind, &subjects, &f.Content, &f.Chapter, &createdAt); err != nil {
		return nil, err
	}
	f.Kind = entity.FactKind(kind)
	if err := json.Unmarshal([]byte(subjects), &f.Subjects); err != nil {
		return nil, fmt.Errorf("decode subjects: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	f.CreatedAt = t
	return &f, nil
}
