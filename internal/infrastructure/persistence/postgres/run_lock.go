package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/tracer"
)

// runLease 运行锁租约行
type runLease struct {
	ProjectID string `gorm:"type:varchar(64);primaryKey"`
	Token     string `gorm:"type:uuid;not null"`
	ExpiresAt int64  `gorm:"not null"`
}

func (runLease) TableName() string {
	return "run_locks"
}

const acquireLockSQL = `
	INSERT INTO run_locks (project_id, token, expires_at) VALUES (?, ?, ?)
	ON CONFLICT (project_id) DO UPDATE
		SET token = excluded.token, expires_at = excluded.expires_at
		WHERE run_locks.expires_at <= ?`

// RunLock 基于数据库租约的项目运行锁，共享同一数据库的进程互斥
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
	ctx, span := tracer.Start(ctx, "postgres.RunLock.Acquire")
	defer span.End()

	token := uuid.NewString()
	now := l.now()
	res := l.client.db.WithContext(ctx).Exec(acquireLockSQL,
		projectID, token, now.Add(l.ttl).UnixMilli(), now.UnixMilli())
	if res.Error != nil {
		tracer.RecordError(span, res.Error)
		return nil, apperrors.Wrap(res.Error, apperrors.CodeDatabaseError, "failed to acquire run lock")
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.Newf(apperrors.CodePipelineBusy, "project %s already has a running pipeline", projectID)
	}

	release := func(ctx context.Context) error {
		err := l.client.db.WithContext(ctx).
			Where("project_id = ? AND token = ?", projectID, token).
			Delete(&runLease{}).Error
		if err != nil {
			return fmt.Errorf("failed to release run lock: %w", err)
		}
		return nil
	}
	return release, nil
}
