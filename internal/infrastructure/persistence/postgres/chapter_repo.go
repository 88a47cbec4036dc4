package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"novel-writer/internal/domain/entity"
	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/tracer"
)

// ChapterRepository 章节仓储实现
type ChapterRepository struct {
	client *Client
}

// NewChapterRepository 创建章节仓储
func NewChapterRepository(client *Client) *ChapterRepository {
	return &ChapterRepository{client: client}
}

// Create 创建章节
func (r *ChapterRepository) Create(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Create")
	defer span.End()

	if chapter.ID == "" {
		chapter.ID = uuid.NewString()
	}
	if chapter.CommittedAt.IsZero() {
		chapter.CommittedAt = time.Now()
	}

	db := getDB(ctx, r.client.db)
	if err := db.Create(chapter).Error; err != nil {
		tracer.RecordError(span, err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Newf(apperrors.CodeConflict, "chapter %d already committed", chapter.Number)
		}
		return fmt.Errorf("failed to create chapter: %w", err)
	}
	return nil
}

// GetByNumber 根据章节号获取章节
func (r *ChapterRepository) GetByNumber(ctx context.Context, projectID string, number int) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.Chapter
	if err := db.Where("project_id = ? AND number = ?", projectID, number).First(&chapter).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &chapter, nil
}

// Delete 删除章节
func (r *ChapterRepository) Delete(ctx context.Context, projectID string, number int) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	res := db.Where("project_id = ? AND number = ?", projectID, number).Delete(&entity.Chapter{})
	if res.Error != nil {
		tracer.RecordError(span, res.Error)
		return false, fmt.Errorf("failed to delete chapter: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListByProject 获取项目的章节列表
func (r *ChapterRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.ListByProject")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapters []*entity.Chapter
	if err := db.Where("project_id = ?", projectID).Order("number ASC").Find(&chapters).Error; err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return chapters, nil
}

// ListNumbers 获取已提交章节号
func (r *ChapterRepository) ListNumbers(ctx context.Context, projectID string) ([]int, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.ListNumbers")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var numbers []int
	if err := db.Model(&entity.Chapter{}).
		Where("project_id = ?", projectID).
		Order("number ASC").
		Pluck("number", &numbers).Error; err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to list chapter numbers: %w", err)
	}
	return numbers, nil
}
