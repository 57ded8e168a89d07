package event

import (
	"context"
	"sync/atomic"

	"github.com/randalmurphal/radarflow/pkg/radarflow/queue"
)

// Mailbox hands events from any goroutine to one consuming loop, typically
// a UI thread that must touch its widgets itself. Subscribe it on a Bus;
// HandleEvent never blocks the publisher.
type Mailbox struct {
	queue     *queue.Queue[*Event]
	consuming atomic.Bool
}

// NewMailbox creates a mailbox holding at most capacity pending events
// (0 = unbounded).
func NewMailbox(capacity int) *Mailbox {
	return &Mailbox{queue: queue.New[*Event](capacity)}
}

// HandleEvent enqueues evt. When the mailbox is full the event is refused
// and the error is reported by the bus like any handler failure.
func (m *Mailbox) HandleEvent(_ context.Context, evt *Event) error {
	return m.queue.TryPut(evt)
}

// Pending returns the number of events waiting to be consumed.
func (m *Mailbox) Pending() int {
	return m.queue.Len()
}

// Drain passes every pending event to fn, in arrival order, on the calling
// goroutine, and returns how many it delivered. It never waits for new
// events, so it fits a UI idle or timer callback.
func (m *Mailbox) Drain(fn func(*Event)) (int, error) {
	if !m.consuming.CompareAndSwap(false, true) {
		return 0, ErrMailboxBusy
	}
	defer m.consuming.Store(false)

	n := 0
	for {
		evt, err := m.queue.TryGet()
		if err != nil {
			return n, nil
		}
		m.consume(fn, evt)
		n++
	}
}

// Run passes events to fn as they arrive until ctx is done, then returns
// ctx.Err().
func (m *Mailbox) Run(ctx context.Context, fn func(*Event)) error {
	if !m.consuming.CompareAndSwap(false, true) {
		return ErrMailboxBusy
	}
	defer m.consuming.Store(false)

	for {
		evt, err := m.queue.Get(ctx)
		if err != nil {
			return ctx.Err()
		}
		m.consume(fn, evt)
	}
}

func (m *Mailbox) consume(fn func(*Event), evt *Event) {
	defer m.queue.Done()
	fn(evt)
}
