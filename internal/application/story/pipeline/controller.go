// Package pipeline 章节流水线控制器：显式状态机驱动 Director、Writer、Reviewer、Archivist，
// 负责质量门重试与原子提交。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	storycontext "novel-writer/internal/application/story/context"
	"novel-writer/internal/application/story/stage"
	"novel-writer/internal/config"
	"novel-writer/internal/domain/entity"
	llmctx "novel-writer/internal/domain/service"
	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/logger"
	"novel-writer/pkg/metrics"
	"novel-writer/pkg/tracer"
)

// DefaultMaxAttempts 每章默认的 Writer 尝试次数
const DefaultMaxAttempts = 3

// 运行结果分类，用于指标与 CLI 输出
const (
	OutcomeCommitted   = "committed"
	OutcomeQualityGate = "quality_gate"
	OutcomeGeneration  = "generation"
	OutcomeCancelled   = "cancelled"
	OutcomeValidation  = "validation"
	OutcomeBusy        = "busy"
	OutcomeError       = "error"
)

type Planner interface {
	Plan(ctx context.Context, sc *storycontext.StoryContext) (*entity.ChapterPlan, error)
}

type Writer interface {
	Write(ctx context.Context, sc *storycontext.StoryContext, draft *entity.ChapterDraft) (string, error)
}

type Reviewer interface {
	Review(ctx context.Context, sc *storycontext.StoryContext, text string) (*entity.ReviewVerdict, error)
}

type Archivist interface {
	Extract(ctx context.Context, sc *storycontext.StoryContext, text string) (*stage.ArchiveResult, error)
}

type ContextBuilder interface {
	Build(ctx context.Context, n int, opts ...storycontext.BuildOption) (*storycontext.StoryContext, error)
}

// ChapterStore 控制器需要的项目读写能力
type ChapterStore interface {
	ProjectID() string
	LoadChapter(ctx context.Context, number int) (*entity.Chapter, error)
	// SaveChapter 原子写入章节与记忆事实
	SaveChapter(ctx context.Context, chapter *entity.Chapter, facts []*entity.MemoryFact) error
}

// Stages 四个生成阶段
type Stages struct {
	Director  Planner
	Writer    Writer
	Reviewer  Reviewer
	Archivist Archivist
}

// RunResult 一次运行的结果。Chapter 只在提交成功时非空
type RunResult struct {
	RunID     string                `json:"run_id"`
	ProjectID string                `json:"project_id"`
	Number    int                   `json:"chapter"`
	State     entity.PipelineState  `json:"state"`
	Outcome   string                `json:"outcome"`
	Attempts  int                   `json:"attempts"`
	Facts     int                   `json:"facts"`
	Reason    string                `json:"reason,omitempty"`
	Chapter   *entity.Chapter       `json:"-"`
	Verdict   *entity.ReviewVerdict `json:"verdict,omitempty"`
	Duration  time.Duration         `json:"duration"`
}

// Option 控制器选项
type Option func(*Controller)

// WithLock 替换默认的进程内锁
func WithLock(lock RunLock) Option {
	return func(c *Controller) { c.lock = lock }
}

// WithObservers 追加观察者
func WithObservers(observers ...Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, observers...) }
}

// Controller 章节流水线控制器
type Controller struct {
	store       ChapterStore
	builder     ContextBuilder
	stages      Stages
	maxAttempts int
	temperature float64
	lock        RunLock
	observers   []Observer
}

func NewController(store ChapterStore, builder ContextBuilder, stages Stages, cfg config.PipelineConfig, opts ...Option) *Controller {
	c := &Controller{
		store:       store,
		builder:     builder,
		stages:      stages,
		maxAttempts: cfg.MaxRetries,
		temperature: cfg.Stages.Writer.Temperature,
		lock:        NewLocalLock(),
		observers:   []Observer{LogObserver{}, MetricsObserver{}},
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = DefaultMaxAttempts
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run 生成并提交第 n 章。
// 前置条件不满足时直接返回错误；进入状态机后无论成败都返回 RunResult。
// 取消只在状态迁移之间检查，进行中的生成调用不会被打断。
func (c *Controller) Run(ctx context.Context, n int) (*RunResult, error) {
	projectID := c.store.ProjectID()
	runID := uuid.NewString()
	ctx = logger.WithRun(logger.WithChapter(logger.WithProject(ctx, projectID), n), runID)

	release, err := c.lock.Acquire(ctx, projectID)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues(outcomeOf(err)).Inc()
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "failed to release run lock", "error", err.Error())
		}
	}()

	if err := c.checkPreconditions(ctx, n); err != nil {
		metrics.PipelineRunsTotal.WithLabelValues(outcomeOf(err)).Inc()
		logger.Warn(ctx, "pipeline refused", "error", err.Error())
		return nil, err
	}

	r := &run{
		c:         c,
		startedAt: time.Now(),
		usage:     &usageTally{},
		draft:     &entity.ChapterDraft{Number: n},
		result: &RunResult{
			RunID:     runID,
			ProjectID: projectID,
			Number:    n,
		},
	}
	err = r.loop(ctx)
	r.finish(ctx, err)
	return r.result, err
}

func (c *Controller) checkPreconditions(ctx context.Context, n int) error {
	if n < 1 {
		return apperrors.Validationf("invalid chapter number %d", n)
	}
	existing, err := c.store.LoadChapter(ctx, n)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperrors.Newf(apperrors.CodeConflict, "chapter %d already committed, delete it first to regenerate", n)
	}
	if n == 1 {
		return nil
	}
	prev, err := c.store.LoadChapter(ctx, n-1)
	if err != nil {
		return err
	}
	if prev == nil {
		return apperrors.Validationf("chapter %d not committed", n-1)
	}
	return nil
}

// run 单次运行的可变状态，ChapterDraft 只存在于这里
type run struct {
	c         *Controller
	state     entity.PipelineState
	startedAt time.Time
	usage     *usageTally
	result    *RunResult

	plan    *entity.ChapterPlan
	sc      *storycontext.StoryContext
	draft   *entity.ChapterDraft
	verdict *entity.ReviewVerdict
}

func (r *run) loop(ctx context.Context) error {
	// 生成调用不随取消中断，由 provider 超时约束
	stageCtx := llmctx.WithUsageRecorder(context.WithoutCancel(ctx), r.usage)

	r.transition(ctx, entity.StatePlanning, "")
	for !r.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return apperrors.Wrap(err, apperrors.CodeCancelled, fmt.Sprintf("pipeline cancelled before %s", r.state))
		}
		next, err := r.step(ctx, stageCtx)
		if err != nil {
			return err
		}
		r.transition(ctx, next, "")
	}
	return nil
}

func (r *run) step(ctx, stageCtx context.Context) (entity.PipelineState, error) {
	c := r.c
	n := r.draft.Number

	switch r.state {
	case entity.StatePlanning:
		err := r.timed(stageCtx, stage.NameDirector, func(ctx context.Context) error {
			view, err := c.builder.Build(ctx, n)
			if err != nil {
				return err
			}
			r.plan, err = c.stages.Director.Plan(ctx, view)
			return err
		})
		return entity.StateBuildingContext, err

	case entity.StateBuildingContext:
		err := r.timed(stageCtx, "context", func(ctx context.Context) error {
			var err error
			r.sc, err = c.builder.Build(ctx, n, storycontext.WithPlan(r.plan))
			return err
		})
		if err != nil {
			return "", err
		}
		r.draft.Plan = r.plan
		r.draft.Attempt = 1
		return entity.StateWriting, nil

	case entity.StateWriting:
		err := r.timed(stageCtx, stage.NameWriter, func(ctx context.Context) error {
			text, err := c.stages.Writer.Write(ctx, r.sc, r.draft)
			if err != nil {
				return err
			}
			r.draft.Text = text
			return nil
		})
		return entity.StateReviewing, err

	case entity.StateReviewing:
		err := r.timed(stageCtx, stage.NameReviewer, func(ctx context.Context) error {
			var err error
			r.verdict, err = c.stages.Reviewer.Review(ctx, r.sc, r.draft.Text)
			return err
		})
		if err != nil {
			return "", err
		}
		r.result.Verdict = r.verdict
		if r.verdict.Pass {
			return entity.StateArchiving, nil
		}
		if r.draft.Attempt < c.maxAttempts {
			return entity.StateRetryWriting, nil
		}
		return "", apperrors.Newf(apperrors.CodeQualityGateExceeded,
			"chapter %d failed review after %d attempts", n, r.draft.Attempt).
			WithDetail(feedbackSummary(r.verdict))

	case entity.StateRetryWriting:
		r.draft.Feedback = r.verdict.Feedback
		r.draft.Attempt++
		return entity.StateWriting, nil

	case entity.StateArchiving:
		var archive *stage.ArchiveResult
		err := r.timed(stageCtx, stage.NameArchivist, func(ctx context.Context) error {
			var err error
			archive, err = c.stages.Archivist.Extract(ctx, r.sc, r.draft.Text)
			return err
		})
		if err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeCancelled, "pipeline cancelled before commit")
		}
		return entity.StateCommitted, r.commit(stageCtx, archive)
	}

	return "", fmt.Errorf("unexpected pipeline state %q", r.state)
}

func (r *run) commit(ctx context.Context, archive *stage.ArchiveResult) error {
	c := r.c
	ch := entity.NewChapter(c.store.ProjectID(), r.draft.Number, r.sc.Title(), r.draft.Text)
	ch.Summary = archive.Summary
	ch.Attempts = r.draft.Attempt
	ch.GenerationMetadata = r.usage.metadata(c.temperature)

	err := r.timed(ctx, "commit", func(ctx context.Context) error {
		return c.store.SaveChapter(ctx, ch, archive.Facts)
	})
	if err != nil {
		return err
	}
	r.result.Chapter = ch
	r.result.Facts = len(archive.Facts)
	return nil
}

func (r *run) timed(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(logger.WithStage(tracer.WithLogContext(ctx), name))
	metrics.PipelineStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	tracer.RecordError(span, err)
	return err
}

func (r *run) transition(ctx context.Context, to entity.PipelineState, reason string) {
	t := Transition{
		RunID:     r.result.RunID,
		ProjectID: r.result.ProjectID,
		Chapter:   r.draft.Number,
		From:      r.state,
		To:        to,
		Attempt:   r.draft.Attempt,
		Reason:    reason,
		StartedAt: r.startedAt,
		At:        time.Now(),
	}
	r.state = to
	obsCtx := context.WithoutCancel(ctx)
	for _, o := range r.c.observers {
		o.OnTransition(obsCtx, t)
	}
}

// finish 失败时进入 ABANDONED，已持久化的状态保持运行前的样子
func (r *run) finish(ctx context.Context, err error) {
	if err != nil {
		r.result.Reason = err.Error()
		r.transition(ctx, entity.StateAbandoned, r.result.Reason)
	}
	r.result.State = r.state
	r.result.Outcome = outcomeOf(err)
	r.result.Attempts = r.draft.Attempt
	r.result.Duration = time.Since(r.startedAt)

	obsCtx := context.WithoutCancel(ctx)
	for _, o := range r.c.observers {
		o.OnFinish(obsCtx, r.result)
	}
}

func feedbackSummary(v *entity.ReviewVerdict) string {
	if v == nil || v.Feedback == nil {
		return ""
	}
	return fmt.Sprintf("last score %d: %s", v.Feedback.Score, v.Feedback.Summary)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeCommitted
	case errors.Is(err, apperrors.ErrCancelled):
		return OutcomeCancelled
	case errors.Is(err, apperrors.ErrQualityGateExceeded):
		return OutcomeQualityGate
	case errors.Is(err, apperrors.ErrGeneration):
		return OutcomeGeneration
	case errors.Is(err, apperrors.ErrPipelineBusy):
		return OutcomeBusy
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrConflict):
		return OutcomeValidation
	default:
		return OutcomeError
	}
}
