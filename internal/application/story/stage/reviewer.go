package stage

import (
	"context"
	"strings"
	"unicode/utf8"

	storycontext "novel-writer/internal/application/story/context"
	"novel-writer/internal/domain/entity"
	"novel-writer/internal/workflow/chain"
	wfmodel "novel-writer/internal/workflow/model"
	wfnode "novel-writer/internal/workflow/node"
	"novel-writer/pkg/logger"
	"novel-writer/pkg/metrics"
)

// DefaultPassScore 审稿通过的默认最低分
const DefaultPassScore = 70

// Reviewer 审稿，给出通过或带意见的不通过
type Reviewer struct {
	chain     *chain.ReviewerChain
	params    wfmodel.GenerationParams
	passScore int
}

func NewReviewer(generator *wfnode.Generator, params wfmodel.GenerationParams, passScore int) *Reviewer {
	if passScore <= 0 {
		passScore = DefaultPassScore
	}
	return &Reviewer{chain: chain.NewReviewerChain(generator), params: params, passScore: passScore}
}

// Review 通过条件：结论为 pass、分数不低于及格线、没有严重问题。
// 空白或非法文本直接判定不通过，不调用模型。
func (r *Reviewer) Review(ctx context.Context, sc *storycontext.StoryContext, text string) (*entity.ReviewVerdict, error) {
	if reason := malformed(text); reason != "" {
		metrics.ReviewVerdictTotal.WithLabelValues("short_circuit").Inc()
		logger.Debug(ctx, "reviewer short-circuited", "chapter", sc.Chapter, "reason", reason)
		v := entity.FailVerdict(&entity.ReviewFeedback{
			Status:  entity.ReviewStatusRewriteNeeded,
			Summary: reason,
		})
		v.ShortCircuit = true
		return v, nil
	}

	logger.Debug(ctx, "reviewer stage started", "chapter", sc.Chapter)
	out, err := r.chain.Invoke(ctx, &wfmodel.ReviewerInput{
		GenerationParams: r.params,
		StoryBlocks:      sc.Blocks(),
		Draft:            text,
		PassScore:        r.passScore,
	})
	if err != nil {
		return nil, wrapErr(NameReviewer, err)
	}

	fb := out.Feedback
	pass := fb.Status == entity.ReviewStatusPass && fb.Score >= r.passScore && !fb.HasCritical()
	if !pass && fb.Status == entity.ReviewStatusPass {
		// 模型自称通过但不满足条件，交给 Writer 的结论要与判定一致
		fb.Status = entity.ReviewStatusRevisionNeeded
	}

	verdict := "fail"
	if pass {
		verdict = "pass"
	}
	metrics.ReviewVerdictTotal.WithLabelValues(verdict).Inc()
	logger.Debug(ctx, "reviewer stage finished",
		"chapter", sc.Chapter,
		"verdict", verdict,
		"score", fb.Score,
		"issues", len(fb.Issues),
		"parsed", out.Parsed,
	)

	if pass {
		return entity.PassVerdict(fb), nil
	}
	return entity.FailVerdict(fb), nil
}

func malformed(text string) string {
	switch {
	case !utf8.ValidString(text):
		return "草稿不是合法的 UTF-8 文本"
	case strings.TrimSpace(text) == "":
		return "草稿为空"
	}
	return ""
}
