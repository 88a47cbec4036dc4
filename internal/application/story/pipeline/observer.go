package pipeline

import (
	"context"
	"time"

	"novel-writer/internal/domain/entity"
	"novel-writer/pkg/logger"
	"novel-writer/pkg/metrics"
)

// Transition 一次状态迁移
type Transition struct {
	RunID     string
	ProjectID string
	Chapter   int
	From      entity.PipelineState
	To        entity.PipelineState
	Attempt   int
	Reason    string
	StartedAt time.Time
	At        time.Time
}

// Observer 观察流水线。回调是 best-effort 的，不影响流水线结果
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
	OnFinish(ctx context.Context, r *RunResult)
}

// EventPublisher 对外发布章节事件，例如写入 Redis Stream
type EventPublisher interface {
	PublishChapterEvent(ctx context.Context, event *entity.ChapterEvent) error
}

// LogObserver 迁移记 Info，放弃记 Warn
type LogObserver struct{}

func (LogObserver) OnTransition(ctx context.Context, t Transition) {
	args := []any{"from", t.From, "to", t.To, "attempt", t.Attempt}
	if t.Reason != "" {
		args = append(args, "reason", t.Reason)
	}
	if t.To == entity.StateAbandoned {
		logger.Warn(ctx, "pipeline abandoned", args...)
		return
	}
	logger.Info(ctx, "pipeline transition", args...)
}

func (LogObserver) OnFinish(ctx context.Context, r *RunResult) {
	if r.State == entity.StateCommitted {
		logger.Info(ctx, "chapter committed",
			"attempts", r.Attempts,
			"facts", r.Facts,
			"duration", r.Duration.String(),
		)
	}
}

// MetricsObserver 运行结果与尝试次数
type MetricsObserver struct{}

func (MetricsObserver) OnTransition(context.Context, Transition) {}

func (MetricsObserver) OnFinish(_ context.Context, r *RunResult) {
	metrics.PipelineRunsTotal.WithLabelValues(r.Outcome).Inc()
	if r.Attempts > 0 {
		metrics.WriterAttempts.Observe(float64(r.Attempts))
	}
	if r.Chapter != nil {
		metrics.ChapterWordCount.Observe(float64(r.Chapter.WordCount))
	}
}

// StatusObserver 每次迁移都刷新项目的最近运行状态
type StatusObserver struct {
	recorder StatusRecorder
}

func NewStatusObserver(recorder StatusRecorder) *StatusObserver {
	return &StatusObserver{recorder: recorder}
}

func (o *StatusObserver) OnTransition(ctx context.Context, t Transition) {
	err := o.recorder.Save(ctx, &entity.RunStatus{
		RunID:     t.RunID,
		ProjectID: t.ProjectID,
		Chapter:   t.Chapter,
		State:     t.To,
		Attempt:   t.Attempt,
		Reason:    t.Reason,
		StartedAt: t.StartedAt,
		UpdatedAt: t.At,
	})
	if err != nil {
		logger.Warn(ctx, "failed to save run status", "error", err.Error())
	}
}

func (o *StatusObserver) OnFinish(context.Context, *RunResult) {}

// EventObserver 终态时发布章节事件
type EventObserver struct {
	publisher EventPublisher
}

func NewEventObserver(publisher EventPublisher) *EventObserver {
	return &EventObserver{publisher: publisher}
}

func (o *EventObserver) OnTransition(context.Context, Transition) {}

func (o *EventObserver) OnFinish(ctx context.Context, r *RunResult) {
	event := &entity.ChapterEvent{
		RunID:      r.RunID,
		ProjectID:  r.ProjectID,
		Chapter:    r.Number,
		State:      r.State,
		Attempts:   r.Attempts,
		Reason:     r.Reason,
		Facts:      r.Facts,
		OccurredAt: time.Now().UTC(),
	}
	switch r.State {
	case entity.StateCommitted:
		event.Type = entity.ChapterEventCommitted
		if r.Chapter != nil {
			event.WordCount = r.Chapter.WordCount
		}
	case entity.StateAbandoned:
		event.Type = entity.ChapterEventAbandoned
	default:
		return
	}
	if err := o.publisher.PublishChapterEvent(ctx, event); err != nil {
		logger.Warn(ctx, "failed to publish chapter event", "type", event.Type, "error", err.Error())
	}
}
