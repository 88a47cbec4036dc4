package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "novel-writer/pkg/errors"
)

func TestRunLockAcrossClients(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "novel.db")
	open := func() *Client {
		c, err := NewClient(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	// 两个连接池模拟两个 CLI 进程
	first := NewRunLock(open(), time.Minute)
	second := NewRunLock(open(), time.Minute)

	release, err := first.Acquire(ctx, "p")
	require.NoError(t, err)

	_, err = second.Acquire(ctx, "p")
	assert.ErrorIs(t, err, apperrors.ErrPipelineBusy)

	other, err := second.Acquire(ctx, "other")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	release, err = second.Acquire(ctx, "p")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRunLockExpiredLeaseIsTakenOver(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	now := time.Now()

	crashed := NewRunLock(client, time.Minute)
	crashed.now = func() time.Time { return now }
	staleRelease, err := crashed.Acquire(ctx, "p")
	require.NoError(t, err)

	next := NewRunLock(client, time.Minute)
	next.now = func() time.Time { return now.Add(30 * time.Second) }
	_, err = next.Acquire(ctx, "p")
	assert.ErrorIs(t, err, apperrors.ErrPipelineBusy)

	next.now = func() time.Time { return now.Add(2 * time.Minute) }
	release, err := next.Acquire(ctx, "p")
	require.NoError(t, err)

	// 过期持有者的释放不影响新持有者
	require.NoError(t, staleRelease(ctx))
	_, err = next.Acquire(ctx, "p")
	assert.ErrorIs(t, err, apperrors.ErrPipelineBusy)

	require.NoError(t, release(ctx))
}
