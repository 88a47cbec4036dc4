package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/tracer"
)

// 已过期的租约可被新的持有者直接覆盖
const acquireLockSQL = `
	INSERT INTO run_locks (project_id, token, expires_at) VALUES (?, ?, ?)
	ON CONFLICT (project_id) DO UPDATE
		SET token = excluded.token, expires_at = excluded.expires_at
		WHERE run_locks.expires_at <= ?`

// RunLock 基于数据库租约的项目运行锁，同一数据库文件上的多个进程互斥
type RunLock struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRunLock 创建运行锁，ttl 为租期
func NewRunLock(client *Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RunLock{client: client, ttl: ttl, now: time.Now}
}

// Acquire 非阻塞获取，未过期的租约仍被占用时返回 PipelineBusy
func (l *RunLock) Acquire(ctx context.Context, projectID string) (func(context.Context) error, error) {
	ctx, span := tracer.Start(ctx, "sqlite.RunLock.Acquire")
	defer span.End()

	token := uuid.NewString()
	now := l.now()
	res, err := l.client.db.ExecContext(ctx, acquireLockSQL,
		projectID, token, now.Add(l.ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		tracer.RecordError(span, err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to acquire run lock")
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, apperrors.Newf(apperrors.CodePipelineBusy, "project %s already has a running pipeline", projectID)
	}

	release := func(ctx context.Context) error {
		_, err := l.client.db.ExecContext(ctx,
			`DELETE FROM run_locks WHERE project_id = ? AND token = ?`, projectID, token)
		if err != nil {
			return fmt.Errorf("failed to release run lock: %w", err)
		}
		return nil
	}
	return release, nil
}
