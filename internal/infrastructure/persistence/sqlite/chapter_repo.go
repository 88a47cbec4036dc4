package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"novel-writer/internal/domain/entity"
	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/tracer"
)

const chapterColumns = `id, project_id, number, title, content, summary, word_count, attempts, generation_metadata, committed_at`

// ChapterRepository 章节仓储实现
type ChapterRepository struct {
	client *Client
}

// NewChapterRepository 创建章节仓储
func NewChapterRepository(client *Client) *ChapterRepository {
	return &ChapterRepository{client: client}
}

// Create 写入已提交章节
func (r *ChapterRepository) Create(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "sqlite.ChapterRepository.Create")
	defer span.End()

	if chapter.ID == "" {
		chapter.ID = uuid.NewString()
	}
	if chapter.CommittedAt.IsZero() {
		chapter.CommittedAt = time.Now()
	}

	var meta sql.NullString
	if chapter.GenerationMetadata != nil {
		raw, err := json.Marshal(chapter.GenerationMetadata)
		if err != nil {
			return fmt.Errorf("failed to encode generation metadata: %w", err)
		}
		meta = sql.NullString{String: string(raw), Valid: true}
	}

	q := getQuerier(ctx, r.client.db)
	_, err := q.ExecContext(ctx,
		`INSERT INTO chapters (`+chapterColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chapter.ID, chapter.ProjectID, chapter.Number, chapter.Title, chapter.Content, chapter.Summary,
		chapter.WordCount, chapter.Attempts, meta, formatTime(chapter.CommittedAt),
	)
	if err != nil {
		tracer.RecordError(span, err)
		if isUniqueViolation(err) {
			return apperrors.Newf(apperrors.CodeConflict, "chapter %d already committed", chapter.Number)
		}
		return fmt.Errorf("failed to create chapter: %w", err)
	}
	return nil
}

// GetByNumber 按章节号获取章节
func (r *ChapterRepository) GetByNumber(ctx context.Context, projectID string, number int) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "sqlite.ChapterRepository.GetByNumber")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	row := q.QueryRowContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE project_id = ? AND number = ?`,
		projectID, number,
	)
	chapter, err := scanChapter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return chapter, nil
}

// Delete 删除章节
func (r *ChapterRepository) Delete(ctx context.Context, projectID string, number int) (bool, error) {
	ctx, span := tracer.Start(ctx, "sqlite.ChapterRepository.Delete")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	res, err := q.ExecContext(ctx, `DELETE FROM chapters WHERE project_id = ? AND number = ?`, projectID, number)
	if err != nil {
		tracer.RecordError(span, err)
		return false, fmt.Errorf("failed to delete chapter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete chapter: %w", err)
	}
	return n > 0, nil
}

// ListByProject 获取项目的章节列表
func (r *ChapterRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "sqlite.ChapterRepository.ListByProject")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	rows, err := q.QueryContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE project_id = ? ORDER BY number ASC`,
		projectID,
	)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*entity.Chapter
	for rows.Next() {
		chapter, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		chapters = append(chapters, chapter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return chapters, nil
}

// ListNumbers 获取已提交章节号
func (r *ChapterRepository) ListNumbers(ctx context.Context, projectID string) ([]int, error) {
	ctx, span := tracer.Start(ctx, "sqlite.ChapterRepository.ListNumbers")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	rows, err := q.QueryContext(ctx,
		`SELECT number FROM chapters WHERE project_id = ? ORDER BY number ASC`,
		projectID,
	)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to list chapter numbers: %w", err)
	}
	defer rows.Close()

	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan chapter number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChapter(row rowScanner) (*entity.Chapter, error) {
	var (
		c           entity.Chapter
		meta        sql.NullString
		committedAt string
	)
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Number, &c.Title, &c.Content, &c.Summary,
		&c.WordCount, &c.Attempts, &meta, &committedAt); err != nil {
		return nil, err
	}
	if meta.Valid && meta.String != "" {
		c.GenerationMetadata = &entity.GenerationMetadata{}
		if err := json.Unmarshal([]byte(meta.String), c.GenerationMetadata); err != nil {
			return nil, fmt.Errorf("decode generation metadata: %w", err)
		}
	}
	t, err := parseTime(committedAt)
	if err != nil {
		return nil, err
	}
	c.CommittedAt = t
	return &c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
