package messaging

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"novel-writer/internal/domain/entity"
	"novel-writer/pkg/metrics"
	"novel-writer/pkg/tracer"
)

const defaultMaxLen = 100000

// Producer 向单个流追加事件，流长度按 MAXLEN ~ 近似裁剪
type Producer struct {
	client *redis.Client
	stream Stream
	maxLen int64
}

// NewProducer stream 为空时使用 StreamChapterEvents
func NewProducer(client *redis.Client, stream string, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	s := StreamChapterEvents
	if stream != "" {
		s = Stream(stream)
	}
	return &Producer{client: client, stream: s, maxLen: maxLen}
}

// Publish 追加一条事件，返回 Redis 分配的条目 ID
func (p *Producer) Publish(ctx context.Context, e *Envelope) (string, error) {
	ctx, span := tracer.Start(ctx, "messaging.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.stream", string(p.stream)),
		attribute.String("messaging.event_type", e.Type),
	)

	values, err := e.fields()
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("failed to encode event %s: %w", e.ID, err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(p.stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		tracer.RecordError(span, err)
		metrics.EventsPublishedTotal.WithLabelValues(string(p.stream), "error").Inc()
		return "", fmt.Errorf("failed to publish event %s: %w", e.ID, err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(p.stream), "ok").Inc()
	span.SetAttributes(attribute.String("messaging.entry_id", id))
	return id, nil
}

// PublishChapterEvent 章节提交或放弃时由流水线观察者调用
func (p *Producer) PublishChapterEvent(ctx context.Context, event *entity.ChapterEvent) error {
	e, err := NewEnvelope(event.RunID, string(event.Type), event.ProjectID, event)
	if err != nil {
		return err
	}
	e.Headers["chapter"] = strconv.Itoa(event.Chapter)
	e.Headers["state"] = string(event.State)

	_, err = p.Publish(ctx, e)
	return err
}
