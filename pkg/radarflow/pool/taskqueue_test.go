package pool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/pool"
)

func noop(context.Context) (any, error) { return nil, nil }

func TestTaskQueue_FIFO(t *testing.T) {
	q := pool.NewTaskQueue(0)
	a, b := pool.NewTask("a", noop), pool.NewTask("b", noop)

	require.NoError(t, q.Put(context.Background(), a))
	require.NoError(t, q.TryPut(b))
	assert.Equal(t, 2, q.Len())

	got, err := q.TryGet()
	require.NoError(t, err)
	assert.Same(t, a, got)

	got, err = q.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, b, got)
	assert.True(t, q.Empty())
}

func TestTaskQueue_RejectsNil(t *testing.T) {
	q := pool.NewTaskQueue(0)

	assert.ErrorIs(t, q.Put(context.Background(), nil), rferrors.ErrInvalidArgument)
	assert.ErrorIs(t, q.TryPut(nil), rferrors.ErrInvalidArgument)
	assert.Equal(t, 0, q.Len())
}

func TestTaskQueue_Bounded(t *testing.T) {
	q := pool.NewTaskQueue(1)
	assert.Equal(t, 1, q.Cap())

	require.NoError(t, q.TryPut(pool.NewTask("a", noop)))
	assert.True(t, q.Full())
	assert.ErrorIs(t, q.TryPut(pool.NewTask("b", noop)), rferrors.ErrQueueFull)
}

func TestTaskQueue_ClearSettlesFutures(t *testing.T) {
	q := pool.NewTaskQueue(0)
	a, b := pool.NewTask("a", noop), pool.NewTask("b", noop)
	require.NoError(t, q.TryPut(a))
	require.NoError(t, q.TryPut(b))

	assert.Equal(t, 2, q.Clear())
	assert.True(t, q.Empty())

	for _, task := range []*pool.Task{a, b} {
		require.True(t, task.Future().IsDone())
		assert.ErrorIs(t, task.Future().Err(), pool.ErrTaskDiscarded)
	}

	// Cleared tasks no longer count against Join.
	assert.NoError(t, q.Join(context.Background()))
}
