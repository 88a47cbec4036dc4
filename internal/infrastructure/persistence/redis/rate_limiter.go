package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"novel-writer/pkg/tracer"
)

// RateLimiter 基于有序集合的滑动窗口限流，serve 模式的 /v1 接口使用
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow 记录本次请求并判断窗口内请求数是否超过 limit
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.RateLimiter.Allow")
	defer span.End()

	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	var count *redis.IntCmd
	_, err := l.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff)
		// 成员带随机后缀，同一纳秒内的两次请求不会互相覆盖
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
		count = pipe.ZCard(ctx, key)
		pipe.PExpire(ctx, key, window)
		return nil
	})
	if err != nil {
		tracer.RecordError(span, err)
		return false, err
	}

	allowed := count.Val() <= int64(limit)
	span.SetAttributes(
		attribute.String("ratelimit.key", key),
		attribute.Int64("ratelimit.count", count.Val()),
		attribute.Bool("ratelimit.allowed", allowed),
	)
	return allowed, nil
}
