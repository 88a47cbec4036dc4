package pipeline

import (
	"context"
	"sync"

	apperrors "novel-writer/pkg/errors"
)

// RunLock 保证同一项目同时只有一条章节流水线
type RunLock interface {
	// Acquire 非阻塞获取，已被占用时返回 CodePipelineBusy
	Acquire(ctx context.Context, projectID string) (release func(context.Context) error, err error)
}

// LocalLock 进程内的项目锁
type LocalLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]struct{})}
}

func (l *LocalLock) Acquire(_ context.Context, projectID string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[projectID]; busy {
		return nil, apperrors.Newf(apperrors.CodePipelineBusy, "project %s already has an active pipeline", projectID)
	}
	l.held[projectID] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, projectID)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
