package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"novel-writer/pkg/tracer"
)

// Cache 以 JSON 编码存取值。GetOrLoad 在本进程内合并同一个键的并发加载
type Cache struct {
	client *Client
	group  singleflight.Group
}

func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// Get 读取原始字节，键不存在时 ok 为 false
func (c *Cache) Get(ctx context.Context, key string) (raw []byte, ok bool, err error) {
	ctx, span := tracer.Start(ctx, "redis.Cache.Get")
	defer span.End()
	span.SetAttributes(attribute.String("cache.key", key))

	raw, err = c.client.rdb.Get(ctx, key).Bytes()
	switch {
	case IsNil(err):
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, false, nil
	case err != nil:
		tracer.RecordError(span, err)
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return raw, true, nil
}

// Set 编码后写入，ttl 为 0 表示不过期
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value %s: %w", key, err)
	}
	return c.client.rdb.Set(ctx, key, raw, ttl).Err()
}

// GetOrLoad 未命中时调用 loader 并回填；回填失败只影响下一次命中率
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, error) {
	if raw, ok, err := c.Get(ctx, key); err != nil || ok {
		return raw, err
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode cache value %s: %w", key, err)
		}
		_ = c.client.rdb.Set(ctx, key, raw, ttl).Err()
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.rdb.Del(ctx, keys...).Err()
}
