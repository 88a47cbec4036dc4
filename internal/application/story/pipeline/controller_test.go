package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-writer/internal/application/memory"
	"novel-writer/internal/application/story"
	storycontext "novel-writer/internal/application/story/context"
	"novel-writer/internal/application/story/stage"
	"novel-writer/internal/config"
	"novel-writer/internal/domain/entity"
	"novel-writer/internal/infrastructure/persistence/sqlite"
	"novel-writer/internal/infrastructure/project"
	"novel-writer/internal/testutil/fakellm"
	"novel-writer/internal/workflow/chain"
	wfmodel "novel-writer/internal/workflow/model"
	wfnode "novel-writer/internal/workflow/node"
	apperrors "novel-writer/pkg/errors"
)

const testOutline = `# 大纲

## 第一章：开端
林远回到故乡。

## 第二章：夜雨
夜探旧宅。
- 发现暗格

## 第三章：对峙
与长老对峙。
`

const (
	planReply    = `{"goals":["推进剧情"],"scenes":[{"title":"场景","summary":"概要"}],"checkpoints":[]}`
	passReply    = `{"status":"pass","score":85,"summary":"通过","issues":[]}`
	failReply    = `{"status":"revision_needed","score":50,"summary":"人物动机不足","issues":[{"category":"character","severity":"major","description":"林远不该主动寒暄"}],"revision_instructions":"删掉寒暄"}`
	archiveReply = `{"summary":"本章摘要","events":[{"subjects":["林远"],"content":"回到故乡"}],"character_states":[{"name":"林远","state":"心事重重"}],"relationships":[],"foreshadowing":[]}`
)

type eventRecorder struct {
	mu     sync.Mutex
	events []*entity.ChapterEvent
}

func (r *eventRecorder) PublishChapterEvent(_ context.Context, e *entity.ChapterEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) last() *entity.ChapterEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type harness struct {
	fake       *fakellm.Model
	files      *project.Files
	project    *story.Project
	status     *MemoryStatusStore
	events     *eventRecorder
	lock       *LocalLock
	controller *Controller
}

func newHarness(t *testing.T, fake *fakellm.Model) *harness {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, project.OutlineMarkdown), []byte(testOutline), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, project.RolesMarkdown), []byte("## 林远\n沉默寡言的剑客。\n"), 0o644))

	info, err := entity.NewProject(root)
	require.NoError(t, err)
	client, err := sqlite.NewClient(filepath.Join(root, project.DataDir, "novel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	files := project.NewFiles(root)
	proj := story.NewProject(story.ProjectDeps{
		Info:     info,
		Source:   files,
		Chapters: sqlite.NewChapterRepository(client),
		Facts:    sqlite.NewMemoryFactRepository(client),
		Tx:       sqlite.NewTxManager(client),
		Exporter: files,
	})

	gen := wfnode.NewGenerator(&fakellm.Factory{Model: fake}, wfnode.RetryPolicy{
		MaxAttempts: 3,
		Initial:     time.Microsecond,
		Max:         time.Microsecond,
		Multiplier:  2,
	})
	params := wfmodel.GenerationParams{Provider: "openai", Model: "test-model"}
	cfg := config.PipelineConfig{MaxRetries: 3, ContextBudget: 12000, PreviousTailRunes: 3000, PassScore: 70}

	h := &harness{
		fake:    fake,
		files:   files,
		project: proj,
		status:  NewMemoryStatusStore(),
		events:  &eventRecorder{},
		lock:    NewLocalLock(),
	}
	h.controller = NewController(
		proj,
		storycontext.NewBuilder(proj, proj.Memory(), storycontext.BudgetFromConfig(cfg)),
		Stages{
			Director:  stage.NewDirector(gen, params),
			Writer:    stage.NewWriter(gen, params),
			Reviewer:  stage.NewReviewer(gen, params, cfg.PassScore),
			Archivist: stage.NewArchivist(gen, params, proj.Memory()),
		},
		cfg,
		WithLock(h.lock),
		WithObservers(NewStatusObserver(h.status), NewEventObserver(h.events)),
	)
	return h
}

func happyModel() *fakellm.Model {
	return fakellm.New().
		Script(chain.WorkflowDirector, fakellm.Text(planReply)).
		Script(chain.WorkflowWriter, fakellm.Text("林远推开了家门。")).
		Script(chain.WorkflowReviewer, fakellm.Text(passReply)).
		Script(chain.WorkflowArchivist, fakellm.Text(archiveReply))
}

func (h *harness) facts(t *testing.T) []*entity.MemoryFact {
	t.Helper()
	facts, err := memory.Collect(h.project.Memory().All(context.Background(), memory.Filter{}))
	require.NoError(t, err)
	return facts
}

func (h *harness) committed(t *testing.T) []int {
	t.Helper()
	nums, err := h.project.ListCommittedChapters(context.Background())
	require.NoError(t, err)
	return nums
}

func TestRunCommitsChapter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, happyModel())

	res, err := h.controller.Run(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.StateCommitted, res.State)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 2, res.Facts)
	require.NotNil(t, res.Chapter)

	ch, err := h.project.LoadChapter(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, "开端", ch.Title)
	assert.Equal(t, "林远推开了家门。", ch.Content)
	assert.Equal(t, "本章摘要", ch.Summary)
	require.NotNil(t, ch.GenerationMetadata)
	assert.Equal(t, "test-model", ch.GenerationMetadata.Model)
	assert.Equal(t, 40, ch.GenerationMetadata.PromptTokens)

	data, err := os.ReadFile(h.files.ChapterPath(1))
	require.NoError(t, err)
	assert.Contains(t, string(data), "林远推开了家门。")

	assert.Len(t, h.facts(t), 2)

	st, err := h.status.Latest(ctx, h.project.ProjectID())
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, entity.StateCommitted, st.State)
	assert.Equal(t, res.RunID, st.RunID)

	ev := h.events.last()
	require.NotNil(t, ev)
	assert.Equal(t, entity.ChapterEventCommitted, ev.Type)
	assert.Equal(t, 2, ev.Facts)
}

func TestRunRequiresPreviousChapter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, happyModel())

	_, err := h.controller.Run(ctx, 1)
	require.NoError(t, err)

	res, err := h.controller.Run(ctx, 3)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "chapter 2 not committed")
	assert.Equal(t, []int{1}, h.committed(t))
	assert.Len(t, h.fake.CallsFor(chain.WorkflowDirector), 1)
}

func TestRunRefusesCommittedChapter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, happyModel())

	_, err := h.controller.Run(ctx, 1)
	require.NoError(t, err)

	_, err = h.controller.Run(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Len(t, h.facts(t), 2)
}

func TestRunQualityGateExceeded(t *testing.T) {
	ctx := context.Background()
	fake := fakellm.New().
		Script(chain.WorkflowDirector, fakellm.Text(planReply)).
		Script(chain.WorkflowWriter, fakellm.Text("初稿")).
		Script(chain.WorkflowReviser, fakellm.Text("改过的正文")).
		Script(chain.WorkflowReviewer, fakellm.Text(failReply)).
		Script(chain.WorkflowArchivist, fakellm.Text(archiveReply))
	h := newHarness(t, fake)

	res, err := h.controller.Run(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQualityGateExceeded)
	require.NotNil(t, res)
	assert.Equal(t, entity.StateAbandoned, res.State)
	assert.Equal(t, OutcomeQualityGate, res.Outcome)
	assert.Equal(t, 3, res.Attempts)

	writerCalls := len(fake.CallsFor(chain.WorkflowWriter)) + len(fake.CallsFor(chain.WorkflowReviser))
	assert.Equal(t, 3, writerCalls)
	assert.Len(t, fake.CallsFor(chain.WorkflowReviewer), 3)
	assert.Empty(t, fake.CallsFor(chain.WorkflowArchivist))

	assert.Empty(t, h.committed(t))
	assert.Empty(t, h.facts(t))
	_, statErr := os.Stat(h.files.ChapterPath(1))
	assert.True(t, os.IsNotExist(statErr))

	ev := h.events.last()
	require.NotNil(t, ev)
	assert.Equal(t, entity.ChapterEventAbandoned, ev.Type)
}

func TestRunThreadsFeedbackIntoRetry(t *testing.T) {
	ctx := context.Background()
	fake := fakellm.New().
		Script(chain.WorkflowDirector, fakellm.Text(planReply)).
		Script(chain.WorkflowWriter, fakellm.Text("初稿：林远笑着寒暄。")).
		Script(chain.WorkflowReviser, fakellm.Text("修订稿：林远沉默地点头。")).
		Script(chain.WorkflowReviewer, fakellm.Text(failReply), fakellm.Text(passReply)).
		Script(chain.WorkflowArchivist, fakellm.Text(archiveReply))
	h := newHarness(t, fake)

	res, err := h.controller.Run(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)

	revisions := fake.CallsFor(chain.WorkflowReviser)
	require.Len(t, revisions, 1)
	prompt := revisions[0].Prompt()
	assert.Contains(t, prompt, "初稿：林远笑着寒暄。")
	assert.Contains(t, prompt, "林远不该主动寒暄")
	assert.Contains(t, prompt, "删掉寒暄")

	ch, err := h.project.LoadChapter(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "修订稿：林远沉默地点头。", ch.Content)
	assert.Equal(t, 2, ch.Attempts)
}

func TestRunRecoversFromTransientFailures(t *testing.T) {
	ctx := context.Background()
	fake := fakellm.New().
		Script(chain.WorkflowDirector, fakellm.Text(planReply)).
		Script(chain.WorkflowWriter,
			fakellm.Fail(errors.New("429 too many requests")),
			fakellm.Fail(errors.New("context deadline exceeded")),
			fakellm.Text("第三次的正文"),
		).
		Script(chain.WorkflowReviewer, fakellm.Text(passReply)).
		Script(chain.WorkflowArchivist, fakellm.Text(archiveReply))
	h := newHarness(t, fake)

	res, err := h.controller.Run(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, fake.CallsFor(chain.WorkflowWriter), 3)

	ch, err := h.project.LoadChapter(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "第三次的正文", ch.Content)
}

func TestRunHeadingOnlyDraftConsumesQualityAttempt(t *testing.T) {
	ctx := context.Background()
	fake := fakellm.New().
		Script(chain.WorkflowDirector, fakellm.Text(planReply)).
		Script(chain.WorkflowWriter, fakellm.Text("# 第1章 开端"), fakellm.Text("第二次的正文")).
		Script(chain.WorkflowReviewer, fakellm.Text(passReply)).
		Script(chain.WorkflowArchivist, fakellm.Text(archiveReply))
	h := newHarness(t, fake)

	res, err := h.controller.Run(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.StateCommitted, res.State)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, fake.CallsFor(chain.WorkflowWriter), 2)
	// 第一稿在审稿阶段短路，不调用模型
	assert.Len(t, fake.CallsFor(chain.WorkflowReviewer), 1)

	ch, err := h.project.LoadChapter(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "第二次的正文", ch.Content)
}

func TestRunAbandonsOnGenerationError(t *testing.T) {
	ctx := context.Background()
	fake := fakellm.New().
		Script(chain.WorkflowDirector, fakellm.Text(planReply)).
		Script(chain.WorkflowWriter, fakellm.Fail(errors.New("401 Unauthorized: invalid api key")))
	h := newHarness(t, fake)

	res, err := h.controller.Run(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGeneration)
	assert.Equal(t, entity.StateAbandoned, res.State)
	assert.Equal(t, OutcomeGeneration, res.Outcome)
	assert.Len(t, fake.CallsFor(chain.WorkflowWriter), 1)
	assert.Empty(t, fake.CallsFor(chain.WorkflowReviewer))
	assert.Empty(t, h.committed(t))
}

func TestRunMissingOutlineEntry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, happyModel())
	for n := 1; n <= 3; n++ {
		_, err := h.controller.Run(ctx, n)
		require.NoError(t, err)
	}

	res, err := h.controller.Run(ctx, 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMissingInput)
	assert.Equal(t, entity.StateAbandoned, res.State)
	assert.Len(t, h.fake.CallsFor(chain.WorkflowDirector), 3)
}

func TestRunCancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := fakellm.New().
		Handle(chain.WorkflowDirector, func([]*schema.Message) (string, error) {
			cancel()
			return planReply, nil
		}).
		Script(chain.WorkflowWriter, fakellm.Text("不应被写出")).
		Script(chain.WorkflowReviewer, fakellm.Text(passReply)).
		Script(chain.WorkflowArchivist, fakellm.Text(archiveReply))
	h := newHarness(t, fake)

	res, err := h.controller.Run(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCancelled)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, entity.StateAbandoned, res.State)
	assert.Empty(t, fake.CallsFor(chain.WorkflowWriter))
	assert.Empty(t, h.committed(t))

	st, err := h.status.Latest(context.Background(), h.project.ProjectID())
	require.NoError(t, err)
	assert.Equal(t, entity.StateAbandoned, st.State)
}

func TestDeleteAndRegenerateKeepsFactsUnique(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, happyModel())

	_, err := h.controller.Run(ctx, 1)
	require.NoError(t, err)
	before := h.facts(t)
	require.Len(t, before, 2)

	require.NoError(t, h.project.DeleteChapter(ctx, 1))
	assert.Empty(t, h.committed(t))
	_, statErr := os.Stat(h.files.ChapterPath(1))
	assert.True(t, os.IsNotExist(statErr))

	res, err := h.controller.Run(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, res.Facts)
	assert.Len(t, h.facts(t), len(before))
	assert.Len(t, h.fake.CallsFor(chain.WorkflowArchivist), 1)
	assert.Equal(t, []int{1}, h.committed(t))
}

func TestDeleteChapterKeepsContiguity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, happyModel())
	for n := 1; n <= 2; n++ {
		_, err := h.controller.Run(ctx, n)
		require.NoError(t, err)
	}

	err := h.project.DeleteChapter(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	err = h.project.DeleteChapter(ctx, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrChapterNotFound)

	require.NoError(t, h.project.DeleteChapter(ctx, 2))
	assert.Equal(t, []int{1}, h.committed(t))
}

func TestRunRefusedWhileLocked(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, happyModel())

	release, err := h.lock.Acquire(ctx, h.project.ProjectID())
	require.NoError(t, err)

	_, err = h.controller.Run(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPipelineBusy)
	assert.Empty(t, h.fake.Calls())

	require.NoError(t, release(ctx))
	_, err = h.controller.Run(ctx, 1)
	require.NoError(t, err)
}

func TestPreviousChapterFlowsIntoNextContext(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, happyModel())
	for n := 1; n <= 2; n++ {
		_, err := h.controller.Run(ctx, n)
		require.NoError(t, err)
	}

	calls := h.fake.CallsFor(chain.WorkflowWriter)
	require.Len(t, calls, 2)
	second := calls[1].Prompt()
	assert.Contains(t, second, "林远推开了家门。")
	assert.Contains(t, second, "回到故乡")
	assert.True(t, strings.Contains(second, "第2章：夜雨"))
}
