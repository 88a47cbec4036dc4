package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"novel-writer/internal/domain/entity"
)

// RunStatusStore 把最近一次流水线运行状态写入 Redis，供其他进程的 status 查询
type RunStatusStore struct {
	cache *Cache
	ttl   time.Duration
}

// NewRunStatusStore 创建运行状态存储
func NewRunStatusStore(cache *Cache, ttl time.Duration) *RunStatusStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RunStatusStore{cache: cache, ttl: ttl}
}

// Save 覆盖写入
func (s *RunStatusStore) Save(ctx context.Context, status *entity.RunStatus) error {
	if err := s.cache.Set(ctx, BuildStatusKey(status.ProjectID), status, s.ttl); err != nil {
		return fmt.Errorf("failed to save run status: %w", err)
	}
	// 概况里带着运行状态，写入后让缓存失效
	return s.cache.Delete(ctx, BuildSummaryKey(status.ProjectID))
}

// Latest 最近一次运行，没有记录时返回 nil, nil
func (s *RunStatusStore) Latest(ctx context.Context, projectID string) (*entity.RunStatus, error) {
	raw, ok, err := s.cache.Get(ctx, BuildStatusKey(projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to load run status: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var status entity.RunStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("failed to decode run status: %w", err)
	}
	return &status, nil
}
