package pipeline

import (
	"context"
	"sync"

	"novel-writer/internal/domain/entity"
)

// StatusRecorder 保存每个项目最近一次运行的状态
type StatusRecorder interface {
	Save(ctx context.Context, status *entity.RunStatus) error
	Latest(ctx context.Context, projectID string) (*entity.RunStatus, error)
}

// MemoryStatusStore 进程内状态存储，serve 与测试使用
type MemoryStatusStore struct {
	mu     sync.RWMutex
	latest map[string]entity.RunStatus
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{latest: make(map[string]entity.RunStatus)}
}

func (s *MemoryStatusStore) Save(_ context.Context, status *entity.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[status.ProjectID] = *status
	return nil
}

func (s *MemoryStatusStore) Latest(_ context.Context, projectID string) (*entity.RunStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.latest[projectID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}
