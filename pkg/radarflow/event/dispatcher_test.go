package event_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/event"
)

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	release chan struct{}
	count   atomic.Int32
}

func (p *blockingPublisher) Publish(context.Context, *event.Event) error {
	<-p.release
	p.count.Add(1)
	return nil
}

func newDispatcher(t *testing.T, pub event.Publisher, cfg event.DispatcherConfig) *event.Dispatcher {
	t.Helper()
	d, err := event.NewDispatcher(pub, cfg)
	require.NoError(t, err)
	t.Cleanup(d.Stop)
	return d
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	bus := event.NewBus()

	var (
		mu  sync.Mutex
		ids []string
	)
	require.NoError(t, bus.Subscribe("t", event.Func(func(_ context.Context, evt *event.Event) error {
		mu.Lock()
		ids = append(ids, evt.ID())
		mu.Unlock()
		return nil
	})))

	d := newDispatcher(t, bus, event.DispatcherConfig{})
	d.Start()

	var want []string
	for i := 0; i < 20; i++ {
		evt := event.MustNew("t", map[string]any{"i": i})
		want = append(want, evt.ID())
		ok, err := d.Dispatch(context.Background(), evt)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, d.WaitEmpty(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, ids)
}

func TestDispatcher_FullQueue(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{})}
	d := newDispatcher(t, pub, event.DispatcherConfig{QueueSize: 1})
	// Not started: nothing drains the queue.

	ok, err := d.TryDispatch(event.MustNew("t", nil))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, d.IsFull())
	assert.Equal(t, 1, d.QueueSize())

	ok, err = d.TryDispatch(event.MustNew("t", nil))
	require.NoError(t, err)
	assert.False(t, ok, "non-blocking dispatch fails on a full queue")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ok, err = d.Dispatch(ctx, event.MustNew("t", nil))
	require.NoError(t, err)
	assert.False(t, ok, "blocking dispatch times out on a full queue")
}

func TestDispatcher_DispatchBlocksUntilRoom(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{})}
	d := newDispatcher(t, pub, event.DispatcherConfig{QueueSize: 1})
	d.Start()

	// First event is taken by the loop and blocks in Publish; second fills the queue.
	_, err := d.Dispatch(context.Background(), event.MustNew("t", nil))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return d.QueueSize() == 0 }, time.Second, time.Millisecond)
	_, err = d.Dispatch(context.Background(), event.MustNew("t", nil))
	require.NoError(t, err)

	result := make(chan bool, 1)
	go func() {
		ok, _ := d.Dispatch(context.Background(), event.MustNew("t", nil))
		result <- ok
	}()

	select {
	case <-result:
		t.Fatal("dispatch should block while the queue is full")
	case <-time.After(20 * time.Millisecond):
	}

	close(pub.release)
	select {
	case ok := <-result:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch never unblocked")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, d.WaitEmpty(ctx))
	assert.Equal(t, int32(3), pub.count.Load())
}

func TestDispatcher_WaitEmptyTimeout(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{})}
	defer close(pub.release)

	d := newDispatcher(t, pub, event.DispatcherConfig{})
	d.Start()
	_, err := d.Dispatch(context.Background(), event.MustNew("t", nil))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, d.WaitEmpty(ctx))
}

func TestDispatcher_HandlerFailureDoesNotStopLoop(t *testing.T) {
	bus := event.NewBus()
	var ok atomic.Int32
	require.NoError(t, bus.Subscribe("t", event.Func(func(_ context.Context, evt *event.Event) error {
		if v, _ := evt.Get("fail"); v == true {
			panic("bad event")
		}
		ok.Add(1)
		return nil
	})))

	d := newDispatcher(t, bus, event.DispatcherConfig{})
	d.Start()

	_, _ = d.Dispatch(context.Background(), event.MustNew("t", map[string]any{"fail": true}))
	_, _ = d.Dispatch(context.Background(), event.MustNew("t", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, d.WaitEmpty(ctx))
	assert.Equal(t, int32(1), ok.Load())
}

// failingPublisher fails or panics on every publish.
type failingPublisher struct{ panics bool }

func (p failingPublisher) Publish(context.Context, *event.Event) error {
	if p.panics {
		panic("publisher panic")
	}
	return errors.New("publisher error")
}

func TestDispatcher_PublisherFailureDoesNotStopLoop(t *testing.T) {
	for _, panics := range []bool{false, true} {
		d := newDispatcher(t, failingPublisher{panics: panics}, event.DispatcherConfig{})
		d.Start()
		for i := 0; i < 3; i++ {
			_, err := d.Dispatch(context.Background(), event.MustNew("t", nil))
			require.NoError(t, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		require.True(t, d.WaitEmpty(ctx))
		cancel()
	}
}

func TestDispatcher_StopLatency(t *testing.T) {
	d := newDispatcher(t, event.NewBus(), event.DispatcherConfig{PollInterval: 50 * time.Millisecond})
	d.Start()

	start := time.Now()
	d.Stop()
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	d.Stop() // idempotent

	_, err := d.Dispatch(context.Background(), event.MustNew("t", nil))
	assert.ErrorIs(t, err, event.ErrDispatcherStopped)
}

func TestDispatcher_StopBeforeStart(t *testing.T) {
	d := newDispatcher(t, event.NewBus(), event.DispatcherConfig{})
	d.Stop()

	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed for a dispatcher that never started")
	}
	d.Start() // no effect
}

func TestDispatcher_Validation(t *testing.T) {
	_, err := event.NewDispatcher(nil, event.DispatcherConfig{})
	assert.ErrorIs(t, err, rferrors.ErrInvalidArgument)

	_, err = event.NewDispatcher(event.NewBus(), event.DispatcherConfig{QueueSize: -1})
	assert.ErrorIs(t, err, rferrors.ErrInvalidArgument)

	d := newDispatcher(t, event.NewBus(), event.DispatcherConfig{})
	_, err = d.Dispatch(context.Background(), nil)
	assert.ErrorIs(t, err, rferrors.ErrInvalidArgument)
	_, err = d.TryDispatch(nil)
	assert.ErrorIs(t, err, rferrors.ErrInvalidArgument)
}
