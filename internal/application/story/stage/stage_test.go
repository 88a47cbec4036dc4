package stage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storycontext "novel-writer/internal/application/story/context"
	"novel-writer/internal/config"
	"novel-writer/internal/domain/entity"
	"novel-writer/internal/testutil/fakellm"
	"novel-writer/internal/workflow/chain"
	wfmodel "novel-writer/internal/workflow/model"
	wfnode "novel-writer/internal/workflow/node"
	apperrors "novel-writer/pkg/errors"
)

func newGenerator(fake *fakellm.Model) *wfnode.Generator {
	return wfnode.NewGenerator(&fakellm.Factory{Model: fake}, wfnode.RetryPolicy{
		MaxAttempts: 3,
		Initial:     time.Microsecond,
		Max:         time.Microsecond,
		Multiplier:  2,
	})
}

func storyContext() *storycontext.StoryContext {
	return &storycontext.StoryContext{
		ProjectID: "novel_test",
		Chapter:   2,
		Entry:     &entity.OutlineEntry{Number: 2, Title: "夜雨", Goal: "夜探旧宅", KeyEvents: []string{"发现暗格"}},
		Roles: &entity.RoleSheet{Roles: []entity.Role{
			{Name: "林远", Description: "沉默寡言的剑客"},
		}},
		Style:        "冷峻克制",
		PreviousTail: "他推开了门。",
		Plan:         &entity.ChapterPlan{Goals: []string{"发现暗格"}},
	}
}

type archiveStub struct {
	archived bool
	err      error
}

func (a archiveStub) HasChapter(context.Context, int) (bool, error) { return a.archived, a.err }

func TestParamsFromConfig(t *testing.T) {
	p := ParamsFromConfig(config.StageConfig{Provider: "openai", Model: "gpt", Temperature: 0.5, MaxTokens: 100})
	require.NotNil(t, p.Temperature)
	assert.InDelta(t, 0.5, *p.Temperature, 1e-6)
	require.NotNil(t, p.MaxTokens)
	assert.Equal(t, 100, *p.MaxTokens)

	p = ParamsFromConfig(config.StageConfig{})
	assert.Nil(t, p.Temperature)
	assert.Nil(t, p.MaxTokens)
}

func TestDirectorPlan(t *testing.T) {
	fake := fakellm.New().Script(chain.WorkflowDirector, fakellm.Text(
		`{"goals":["发现暗格"],"scenes":[{"title":"旧宅","summary":"林远撬开地板"}],"checkpoints":["玉佩发光"]}`,
	))
	sc := storyContext()
	sc.Plan = nil

	plan, err := NewDirector(newGenerator(fake), wfmodel.GenerationParams{}).Plan(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"发现暗格"}, plan.Goals)
	require.Len(t, plan.Scenes, 1)
	assert.Contains(t, fake.CallsFor(chain.WorkflowDirector)[0].Prompt(), "他推开了门。")
}

func TestDirectorTransientThenSuccess(t *testing.T) {
	fake := fakellm.New().Script(chain.WorkflowDirector,
		fakellm.Fail(errors.New("429 Too Many Requests")),
		fakellm.Fail(errors.New("read: connection reset by peer")),
		fakellm.Text(`{"goals":["第三次"],"scenes":[],"checkpoints":[]}`),
	)
	plan, err := NewDirector(newGenerator(fake), wfmodel.GenerationParams{}).Plan(context.Background(), storyContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"第三次"}, plan.Goals)
	assert.Len(t, fake.CallsFor(chain.WorkflowDirector), 3)
}

func TestDirectorExhaustedRetries(t *testing.T) {
	fake := fakellm.New().Script(chain.WorkflowDirector, fakellm.Fail(errors.New("503 service unavailable")))
	_, err := NewDirector(newGenerator(fake), wfmodel.GenerationParams{}).Plan(context.Background(), storyContext())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGeneration)
	assert.Len(t, fake.CallsFor(chain.WorkflowDirector), 3)
}

func TestWriterDraftAndRevision(t *testing.T) {
	fake := fakellm.New().
		Script(chain.WorkflowWriter, fakellm.Text("# 第2章\n\n初稿正文")).
		Script(chain.WorkflowReviser, fakellm.Text("修改后的正文"))
	w := NewWriter(newGenerator(fake), wfmodel.GenerationParams{})
	sc := storyContext()

	draft := &entity.ChapterDraft{Number: 2, Plan: sc.Plan, Attempt: 1}
	text, err := w.Write(context.Background(), sc, draft)
	require.NoError(t, err)
	assert.Equal(t, "初稿正文", text)

	draft.Text = text
	draft.Attempt = 2
	draft.Feedback = &entity.ReviewFeedback{
		Status:  entity.ReviewStatusRevisionNeeded,
		Score:   55,
		Summary: "林远的台词过多",
		Issues: []entity.ReviewIssue{
			{Category: "character", Severity: entity.SeverityMajor, Description: "林远不该主动寒暄"},
		},
	}
	text, err = w.Write(context.Background(), sc, draft)
	require.NoError(t, err)
	assert.Equal(t, "修改后的正文", text)

	calls := fake.CallsFor(chain.WorkflowReviser)
	require.Len(t, calls, 1)
	prompt := calls[0].Prompt()
	assert.Contains(t, prompt, "初稿正文")
	assert.Contains(t, prompt, "林远不该主动寒暄")
	assert.Contains(t, prompt, draft.Feedback.Format())
}

func TestReviewerShortCircuits(t *testing.T) {
	fake := fakellm.New()
	r := NewReviewer(newGenerator(fake), wfmodel.GenerationParams{}, 0)

	for _, text := range []string{"", "  \n\t", string([]byte{0xff, 0xfe})} {
		v, err := r.Review(context.Background(), storyContext(), text)
		require.NoError(t, err)
		assert.False(t, v.Pass)
		assert.True(t, v.ShortCircuit)
		require.NotNil(t, v.Feedback)
		assert.NotEmpty(t, v.Feedback.Summary)
	}
	assert.Empty(t, fake.Calls())
}

func TestReviewerVerdicts(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		pass  bool
	}{
		{"pass", `{"status":"pass","score":88,"summary":"好","issues":[]}`, true},
		{"low score", `{"status":"pass","score":60,"summary":"一般","issues":[]}`, false},
		{"critical issue", `{"status":"pass","score":90,"summary":"好","issues":[{"category":"logic","severity":"critical","description":"人物复活"}]}`, false},
		{"revision", `{"status":"revision_needed","score":75,"summary":"需修改","issues":[]}`, false},
		{"unparseable", `这章写得不错`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := fakellm.New().Script(chain.WorkflowReviewer, fakellm.Text(tc.reply))
			v, err := NewReviewer(newGenerator(fake), wfmodel.GenerationParams{}, 70).
				Review(context.Background(), storyContext(), "正文")
			require.NoError(t, err)
			assert.Equal(t, tc.pass, v.Pass)
			require.NotNil(t, v.Feedback)
			if !tc.pass {
				assert.NotEqual(t, entity.ReviewStatusPass, v.Feedback.Status)
			}
		})
	}
}

func TestArchivistExtractsAndDedups(t *testing.T) {
	fake := fakellm.New().Script(chain.WorkflowArchivist, fakellm.Text(`{
		"summary": "林远在旧宅发现暗格",
		"events": [
			{"subjects": ["林远"], "content": "发现暗格"},
			{"subjects": ["林远", " "], "content": "发现暗格 "},
			{"subjects": [], "content": "没有主体"}
		],
		"character_states": [{"name": "林远", "state": "右手受伤"}],
		"relationships": [{"subjects": ["林远", "苏晴"], "content": "互生疑窦"}],
		"foreshadowing": [
			{"subjects": ["玉佩"], "content": "玉佩发光", "status": "planted"},
			{"subjects": ["暗格"], "content": "", "status": "resolved"}
		]
	}`))
	a := NewArchivist(newGenerator(fake), wfmodel.GenerationParams{}, archiveStub{})

	res, err := a.Extract(context.Background(), storyContext(), "定稿正文")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, "林远在旧宅发现暗格", res.Summary)
	require.Len(t, res.Facts, 4)

	kinds := make(map[entity.FactKind]*entity.MemoryFact)
	for _, f := range res.Facts {
		assert.Equal(t, 2, f.Chapter)
		assert.Equal(t, "novel_test", f.ProjectID)
		kinds[f.Kind] = f
	}
	assert.Equal(t, []string{"林远"}, kinds[entity.FactKindCharacterState].Subjects)
	assert.Equal(t, "右手受伤", kinds[entity.FactKindCharacterState].Content)
	assert.Equal(t, "【埋下】玉佩发光", kinds[entity.FactKindForeshadowing].Content)
	assert.Contains(t, fake.CallsFor(chain.WorkflowArchivist)[0].Prompt(), "定稿正文")
}

func TestArchivistSkipsArchivedChapter(t *testing.T) {
	fake := fakellm.New()
	a := NewArchivist(newGenerator(fake), wfmodel.GenerationParams{}, archiveStub{archived: true})

	res, err := a.Extract(context.Background(), storyContext(), "定稿正文")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Facts)
	assert.Empty(t, fake.Calls())
}
