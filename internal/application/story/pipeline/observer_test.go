package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-writer/internal/domain/entity"
	"novel-writer/internal/testutil/fakellm"
	"novel-writer/internal/workflow/chain"
	apperrors "novel-writer/pkg/errors"
)

type transitionRecorder struct {
	mu    sync.Mutex
	steps []entity.PipelineState
}

func (r *transitionRecorder) OnTransition(_ context.Context, t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, t.To)
}

func (r *transitionRecorder) OnFinish(context.Context, *RunResult) {}

func TestControllerTransitionsInOrder(t *testing.T) {
	h := newHarness(t, fakellm.New().
		Script(chain.WorkflowDirector, fakellm.Text(planReply)).
		Script(chain.WorkflowWriter, fakellm.Text("初稿")).
		Script(chain.WorkflowReviser, fakellm.Text("修订稿")).
		Script(chain.WorkflowReviewer, fakellm.Text(failReply), fakellm.Text(passReply)).
		Script(chain.WorkflowArchivist, fakellm.Text(archiveReply)))
	rec := &transitionRecorder{}
	h.controller.observers = append(h.controller.observers, rec)

	_, err := h.controller.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []entity.PipelineState{
		entity.StatePlanning,
		entity.StateBuildingContext,
		entity.StateWriting,
		entity.StateReviewing,
		entity.StateRetryWriting,
		entity.StateWriting,
		entity.StateReviewing,
		entity.StateArchiving,
		entity.StateCommitted,
	}, rec.steps)
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	lock := NewLocalLock()

	release, err := lock.Acquire(ctx, "p1")
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "p1")
	assert.ErrorIs(t, err, apperrors.ErrPipelineBusy)

	other, err := lock.Acquire(ctx, "p2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	again, err := lock.Acquire(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestMemoryStatusStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStatusStore()

	st, err := store.Latest(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, st)

	obs := NewStatusObserver(store)
	now := time.Now()
	obs.OnTransition(ctx, Transition{RunID: "r1", ProjectID: "p1", Chapter: 2, To: entity.StateWriting, Attempt: 1, StartedAt: now, At: now})
	obs.OnTransition(ctx, Transition{RunID: "r1", ProjectID: "p1", Chapter: 2, To: entity.StateAbandoned, Attempt: 1, Reason: "boom", StartedAt: now, At: now})

	st, err = store.Latest(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, entity.StateAbandoned, st.State)
	assert.Equal(t, "boom", st.Reason)
	assert.Equal(t, 2, st.Chapter)
}

func TestEventObserverSkipsNonTerminal(t *testing.T) {
	rec := &eventRecorder{}
	obs := NewEventObserver(rec)
	obs.OnFinish(context.Background(), &RunResult{State: entity.StateWriting})
	assert.Nil(t, rec.last())

	obs.OnFinish(context.Background(), &RunResult{State: entity.StateAbandoned, Reason: "x", Number: 3})
	ev := rec.last()
	require.NotNil(t, ev)
	assert.Equal(t, entity.ChapterEventAbandoned, ev.Type)
	assert.Equal(t, 3, ev.Chapter)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeCommitted, outcomeOf(nil))
	assert.Equal(t, OutcomeCancelled, outcomeOf(apperrors.New(apperrors.CodeCancelled, "x")))
	assert.Equal(t, OutcomeQualityGate, outcomeOf(apperrors.New(apperrors.CodeQualityGateExceeded, "x")))
	assert.Equal(t, OutcomeGeneration, outcomeOf(apperrors.New(apperrors.CodeGenerationFailed, "x")))
	assert.Equal(t, OutcomeBusy, outcomeOf(apperrors.New(apperrors.CodePipelineBusy, "x")))
	assert.Equal(t, OutcomeValidation, outcomeOf(apperrors.Validationf("x")))
	assert.Equal(t, OutcomeValidation, outcomeOf(apperrors.New(apperrors.CodeConflict, "x")))
}
