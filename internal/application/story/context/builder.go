// Package context 组装单章生成用的有界上下文
package context

import (
	"context"
	"iter"

	"novel-writer/internal/application/memory"
	"novel-writer/internal/config"
	"novel-writer/internal/domain/entity"
	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/logger"
)

const (
	DefaultBudget       = 12000
	DefaultPreviousTail = 3000
)

// Source 项目输入的只读视图
type Source interface {
	ProjectID() string
	LoadOutline(ctx context.Context) (entity.Outline, error)
	LoadRoles(ctx context.Context) (*entity.RoleSheet, error)
	LoadStyle(ctx context.Context) (string, error)
	// LoadChapter 未提交时返回 nil, nil
	LoadChapter(ctx context.Context, number int) (*entity.Chapter, error)
}

// FactSource 从最新开始遍历不晚于 upTo 章的记忆事实
type FactSource interface {
	Recent(ctx context.Context, upTo int, filter memory.Filter) iter.Seq2[*entity.MemoryFact, error]
}

// Budget 上下文预算，按字符（rune）计
type Budget struct {
	Total        int
	PreviousTail int
}

// BudgetFromConfig 从流水线配置读取预算
func BudgetFromConfig(cfg config.PipelineConfig) Budget {
	return Budget{Total: cfg.ContextBudget, PreviousTail: cfg.PreviousTailRunes}
}

func (b Budget) normalize() Budget {
	if b.Total <= 0 {
		b.Total = DefaultBudget
	}
	if b.PreviousTail <= 0 {
		b.PreviousTail = DefaultPreviousTail
	}
	return b
}

type buildOptions struct {
	plan *entity.ChapterPlan
}

// BuildOption 构建选项
type BuildOption func(*buildOptions)

// WithPlan 绑定 Director 的计划，计划计入预算
func WithPlan(plan *entity.ChapterPlan) BuildOption {
	return func(o *buildOptions) { o.plan = plan }
}

// Builder 上下文构建器，只读
type Builder struct {
	source Source
	facts  FactSource
	budget Budget
}

// NewBuilder 创建上下文构建器
func NewBuilder(source Source, facts FactSource, budget Budget) *Builder {
	return &Builder{source: source, facts: facts, budget: budget.normalize()}
}

// Build 组装第 n 章的上下文。
// 预算依次分给计划、上一章结尾、记忆事实；事实从最新开始装入，装不下时丢弃其余更早的事实，不截断单条事实。
func (b *Builder) Build(ctx context.Context, n int, opts ...BuildOption) (*StoryContext, error) {
	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if n < 1 {
		return nil, apperrors.Validationf("invalid chapter number %d", n)
	}

	outline, err := b.source.LoadOutline(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := outline.Find(n)
	if !ok {
		return nil, apperrors.MissingInputf("outline has no entry for chapter %d", n)
	}
	roles, err := b.source.LoadRoles(ctx)
	if err != nil {
		return nil, err
	}
	style, err := b.source.LoadStyle(ctx)
	if err != nil {
		return nil, err
	}

	sc := &StoryContext{
		ProjectID: b.source.ProjectID(),
		Chapter:   n,
		Entry:     entry,
		Roles:     roles,
		Style:     style,
		Plan:      o.plan,
		Budget:    b.budget.Total,
	}
	remaining := b.budget.Total

	// 计划不可丢弃，超出预算时挤占后面两项
	remaining -= runeLen(o.plan.Render())

	if n > 1 {
		prev, err := b.source.LoadChapter(ctx, n-1)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			sc.Previous = prev
			sc.PreviousTail = prev.Tail(min(b.budget.PreviousTail, max(remaining, 0)))
			remaining -= runeLen(sc.PreviousTail)
		}
	}

	if err := b.fillFacts(ctx, sc, max(remaining, 0)); err != nil {
		return nil, err
	}
	sc.Used = b.budget.Total - remaining
	for _, f := range sc.Facts {
		sc.Used += runeLen(f.Render()) + 1
	}

	logger.Debug(ctx, "story context built",
		"chapter", n,
		"facts", len(sc.Facts),
		"dropped_facts", sc.DroppedFacts,
		"budget", sc.Budget,
		"used", sc.Used,
		"planned", o.plan != nil,
	)
	return sc, nil
}

// fillFacts 从最新的事实开始装入，被更新事实覆盖的旧事实跳过，最后按时间升序排列
func (b *Builder) fillFacts(ctx context.Context, sc *StoryContext, remaining int) error {
	if sc.Chapter <= 1 {
		return nil
	}

	var (
		picked     []*entity.MemoryFact
		superseded = make(map[string]struct{})
		full       bool
	)
	for fact, err := range b.facts.Recent(ctx, sc.Chapter-1, memory.Filter{}) {
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to read memory facts")
		}
		if fact.Kind.Supersedes() {
			key := fact.SupersedeKey()
			if _, seen := superseded[key]; seen {
				continue
			}
			superseded[key] = struct{}{}
		}
		if full {
			sc.DroppedFacts++
			continue
		}
		cost := runeLen(fact.Render()) + 1
		if cost > remaining {
			full = true
			sc.DroppedFacts++
			continue
		}
		remaining -= cost
		picked = append(picked, fact)
	}

	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	sc.Facts = picked
	return nil
}
