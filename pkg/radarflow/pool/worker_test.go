package pool_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/pool"
)

func waitDone(t *testing.T, w *pool.Worker) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("worker %s did not exit", w.ID())
	}
}

func TestWorker_ExecutesTasks(t *testing.T) {
	q := pool.NewTaskQueue(0)
	w := pool.NewWorker("w1", q, pool.WithPollInterval(10*time.Millisecond))
	w.Start()
	defer w.Stop()

	task := pool.NewTask("add", func(context.Context) (any, error) { return 1 + 2, nil })
	require.NoError(t, q.TryPut(task))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := task.Future().Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.NoError(t, q.Join(ctx))
}

func TestWorker_SurvivesFailuresAndPanics(t *testing.T) {
	q := pool.NewTaskQueue(0)
	w := pool.NewWorker("w1", q, pool.WithPollInterval(10*time.Millisecond))
	w.Start()
	defer w.Stop()

	boom := errors.New("boom")
	failing := pool.NewTask("fail", func(context.Context) (any, error) { return nil, boom })
	panicking := pool.NewTask("panic", func(context.Context) (any, error) { panic("kaboom") })
	healthy := pool.NewTask("ok", func(context.Context) (any, error) { return "fine", nil })
	for _, task := range []*pool.Task{failing, panicking, healthy} {
		require.NoError(t, q.TryPut(task))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := failing.Future().Wait(ctx)
	assert.ErrorIs(t, err, boom)

	_, err = panicking.Future().Wait(ctx)
	var pe *rferrors.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)

	v, err := healthy.Future().Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fine", v)
	assert.Equal(t, pool.ExitNone, w.ExitReason())
}

func TestWorker_StopWaitsForRunningTask(t *testing.T) {
	q := pool.NewTaskQueue(0)
	w := pool.NewWorker("w1", q, pool.WithPollInterval(10*time.Millisecond))
	w.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	task := pool.NewTask("slow", func(context.Context) (any, error) {
		close(started)
		<-release
		return "done", nil
	})
	require.NoError(t, q.TryPut(task))
	<-started
	assert.Equal(t, pool.WorkerExecuting, w.State())

	w.Stop()
	select {
	case <-w.Done():
		t.Fatal("worker exited while its task was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	waitDone(t, w)
	assert.Equal(t, "done", task.Future().Value())
	assert.Equal(t, pool.WorkerStopped, w.State())
	assert.Equal(t, pool.ExitStopped, w.ExitReason())
}

func TestWorker_StopBeforeStart(t *testing.T) {
	w := pool.NewWorker("w1", pool.NewTaskQueue(0))
	w.Stop()
	waitDone(t, w)

	w.Start()
	w.Stop()
	assert.Equal(t, pool.ExitStopped, w.ExitReason())
}

func TestWorker_IdleTimeout(t *testing.T) {
	mock := clock.NewMock()
	q := pool.NewTaskQueue(0)
	w := pool.NewWorker("w1", q,
		pool.WithWorkerClock(mock),
		pool.WithPollInterval(time.Second),
		pool.WithIdleTimeout(5*time.Second),
	)
	w.Start()
	defer w.Stop()

	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		select {
		case <-w.Done():
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, pool.ExitIdle, w.ExitReason())
	assert.GreaterOrEqual(t, w.IdleFor(), 5*time.Second)
}

func TestWorker_RetirePolicyVeto(t *testing.T) {
	mock := clock.NewMock()
	asked := make(chan struct{}, 1)
	w := pool.NewWorker("w1", pool.NewTaskQueue(0),
		pool.WithWorkerClock(mock),
		pool.WithPollInterval(time.Second),
		pool.WithIdleTimeout(time.Second),
		pool.WithRetirePolicy(func(*pool.Worker) bool {
			select {
			case asked <- struct{}{}:
			default:
			}
			return false
		}),
	)
	w.Start()

	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		select {
		case <-asked:
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	assert.NotEqual(t, pool.WorkerStopped, w.State())
	w.Stop()
	waitDone(t, w)
	assert.Equal(t, pool.ExitStopped, w.ExitReason())
}

func TestWorkerState_String(t *testing.T) {
	assert.Equal(t, "idle", pool.WorkerIdle.String())
	assert.Equal(t, "executing", pool.WorkerExecuting.String())
	assert.Equal(t, "stopped", pool.WorkerStopped.String())
	assert.Equal(t, "unknown", pool.WorkerState(42).String())
	assert.Equal(t, "idle", pool.ExitIdle.String())
	assert.Equal(t, "none", pool.ExitNone.String())
}
