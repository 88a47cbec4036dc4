package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/tracer"
)

// 仅当持有者 token 匹配时才删除，避免误删过期后被别人拿到的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock 项目级运行锁，同一项目同一时间只允许一条章节流水线
type RunLock struct {
	client *Client
	ttl    time.Duration
}

// NewRunLock 创建运行锁
func NewRunLock(client *Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RunLock{client: client, ttl: ttl}
}

// Acquire 获取锁，已被占用时返回 PipelineBusy
func (l *RunLock) Acquire(ctx context.Context, projectID string) (func(context.Context) error, error) {
	key := BuildRunLockKey(projectID)
	ctx, span := tracer.Start(ctx, "redis.RunLock.Acquire")
	span.SetAttributes(attribute.String("lock.key", key))
	defer span.End()

	token := uuid.NewString()
	ok, err := l.client.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		tracer.RecordError(span, err)
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to acquire run lock")
	}
	if !ok {
		span.SetAttributes(attribute.Bool("lock.acquired", false))
		return nil, apperrors.Newf(apperrors.CodePipelineBusy, "project %s already has a running pipeline", projectID)
	}
	span.SetAttributes(attribute.Bool("lock.acquired", true))

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client.rdb, []string{key}, token).Err(); err != nil && !IsNil(err) {
			return fmt.Errorf("failed to release run lock: %w", err)
		}
		return nil
	}
	return release, nil
}
