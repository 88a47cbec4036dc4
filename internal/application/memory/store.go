// Package memory 提供只追加的剧情记忆存储
package memory

import (
	"context"
	"iter"
	"math"
	"strings"

	"novel-writer/internal/domain/entity"
	"novel-writer/internal/domain/repository"
	apperrors "novel-writer/pkg/errors"
)

// Filter 查询过滤条件，零值表示全部
type Filter struct {
	Kinds   []entity.FactKind
	Subject string
}

// Stats 记忆概况
type Stats struct {
	Total  int                     `json:"total"`
	ByKind map[entity.FactKind]int `json:"by_kind"`
}

// Store 单个项目的记忆存储。没有删除操作：覆盖通过追加同 (kind, subject) 的新事实表达
type Store struct {
	projectID string
	repo      repository.MemoryFactRepository
}

// NewStore 创建记忆存储
func NewStore(projectID string, repo repository.MemoryFactRepository) *Store {
	return &Store{projectID: projectID, repo: repo}
}

// ProjectID 所属项目
func (s *Store) ProjectID() string {
	return s.projectID
}

// Record 追加一条事实。只在输入不合法时失败；ctx 带事务时加入调用方事务
func (s *Store) Record(ctx context.Context, fact *entity.MemoryFact) error {
	if err := s.validate(fact); err != nil {
		return err
	}
	if err := s.repo.Append(ctx, fact); err != nil {
		return apperrors.Wrap(err, apperrors.CodeMemoryWriteFailed, "failed to record memory fact")
	}
	return nil
}

func (s *Store) validate(fact *entity.MemoryFact) error {
	if fact == nil {
		return apperrors.Validationf("memory fact is nil")
	}
	if !fact.Kind.Valid() {
		return apperrors.Validationf("memory fact has invalid kind %q", fact.Kind)
	}
	fact.Subjects = normalizeSubjects(fact.Subjects)
	if len(fact.Subjects) == 0 {
		return apperrors.Validationf("memory fact of kind %s has no subject", fact.Kind)
	}
	fact.Content = strings.TrimSpace(fact.Content)
	if fact.Content == "" {
		return apperrors.Validationf("memory fact of kind %s has empty content", fact.Kind)
	}
	if fact.Chapter < 1 {
		return apperrors.Validationf("memory fact has invalid chapter %d", fact.Chapter)
	}
	switch fact.ProjectID {
	case "":
		fact.ProjectID = s.projectID
	case s.projectID:
	default:
		return apperrors.Validationf("memory fact belongs to project %s, store is %s", fact.ProjectID, s.projectID)
	}
	return nil
}

// Query 起源章节不超过 upTo 的事实，按章节升序、同章按插入顺序。
// 返回的序列是惰性的，每次 range 重新读取存储
func (s *Store) Query(ctx context.Context, upTo int, filter Filter) iter.Seq2[*entity.MemoryFact, error] {
	return s.iterate(ctx, upTo, filter, repository.SortOrderAsc)
}

// Recent 与 Query 相同的范围，但从最新的事实开始
func (s *Store) Recent(ctx context.Context, upTo int, filter Filter) iter.Seq2[*entity.MemoryFact, error] {
	return s.iterate(ctx, upTo, filter, repository.SortOrderDesc)
}

// All 全部事实
func (s *Store) All(ctx context.Context, filter Filter) iter.Seq2[*entity.MemoryFact, error] {
	return s.Query(ctx, math.MaxInt32, filter)
}

func (s *Store) iterate(ctx context.Context, upTo int, filter Filter, order repository.SortOrder) iter.Seq2[*entity.MemoryFact, error] {
	if upTo < 1 {
		return func(func(*entity.MemoryFact, error) bool) {}
	}
	return s.repo.Iterate(ctx, repository.MemoryFactQuery{
		ProjectID:   s.projectID,
		UpToChapter: upTo,
		Kinds:       filter.Kinds,
		Subject:     strings.TrimSpace(filter.Subject),
		Order:       order,
	})
}

// ForChapter 某一章记录的事实
func (s *Store) ForChapter(ctx context.Context, chapter int) iter.Seq2[*entity.MemoryFact, error] {
	return s.repo.Iterate(ctx, repository.MemoryFactQuery{
		ProjectID:   s.projectID,
		UpToChapter: chapter,
		Chapter:     chapter,
		Order:       repository.SortOrderAsc,
	})
}

// HasChapter 该章节是否已经归档过事实
func (s *Store) HasChapter(ctx context.Context, chapter int) (bool, error) {
	n, err := s.repo.CountByChapter(ctx, s.projectID, chapter)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to count memory facts")
	}
	return n > 0, nil
}

// Stats 按类型统计
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	byKind, err := s.repo.CountByKind(ctx, s.projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to count memory facts")
	}
	stats := &Stats{ByKind: byKind}
	for _, n := range byKind {
		stats.Total += n
	}
	return stats, nil
}

func normalizeSubjects(subjects []string) []string {
	seen := make(map[string]struct{}, len(subjects))
	out := make([]string, 0, len(subjects))
	for _, s := range subjects {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
