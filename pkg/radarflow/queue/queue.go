// Package queue provides a goroutine-safe FIFO with optional capacity,
// context-bounded blocking and join bookkeeping.
//
// Every item handed out by Get or TryGet must be acknowledged with Done once
// the consumer has finished with it; Join blocks until all accepted items
// have been acknowledged.
package queue

import (
	"context"
	"fmt"
	"sync"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
)

// Queue is a FIFO of T. A capacity of zero means unbounded.
type Queue[T any] struct {
	mu         sync.Mutex
	items      []T
	capacity   int
	unfinished int

	// Broadcast channels: closed and replaced whenever the condition may
	// have changed, waking every waiter.
	itemAdded   chan struct{}
	itemRemoved chan struct{}
	allDone     chan struct{}
}

// New creates a queue holding at most capacity items (0 = unbounded).
// A negative capacity is treated as unbounded.
func New[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{
		capacity:    capacity,
		itemAdded:   make(chan struct{}),
		itemRemoved: make(chan struct{}),
		allDone:     make(chan struct{}),
	}
}

// Put appends item, waiting for a free slot until ctx is done.
// On timeout or cancellation the error matches both ErrQueueFull and ctx.Err().
func (q *Queue[T]) Put(ctx context.Context, item T) error {
	for {
		q.mu.Lock()
		if !q.fullLocked() {
			q.pushLocked(item)
			q.mu.Unlock()
			return nil
		}
		wait := q.itemRemoved
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", rferrors.ErrQueueFull, ctx.Err())
		}
	}
}

// TryPut appends item if there is room, failing with ErrQueueFull otherwise.
func (q *Queue[T]) TryPut(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.fullLocked() {
		return rferrors.ErrQueueFull
	}
	q.pushLocked(item)
	return nil
}

// Get removes and returns the oldest item, waiting until ctx is done.
// On timeout or cancellation the error matches both ErrQueueEmpty and ctx.Err().
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.popLocked()
			q.mu.Unlock()
			return item, nil
		}
		wait := q.itemAdded
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("%w: %w", rferrors.ErrQueueEmpty, ctx.Err())
		}
	}
}

// TryGet removes and returns the oldest item, failing with ErrQueueEmpty
// if there is none.
func (q *Queue[T]) TryGet() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		var zero T
		return zero, rferrors.ErrQueueEmpty
	}
	return q.popLocked(), nil
}

// Done acknowledges one item previously returned by Get or TryGet.
// It panics if called more times than items were accepted, like
// sync.WaitGroup going negative.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		panic("queue: Done called more times than items were queued")
	}
	q.unfinished--
	if q.unfinished == 0 {
		broadcast(&q.allDone)
	}
}

// Join blocks until every accepted item has been acknowledged or ctx is done.
func (q *Queue[T]) Join(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.unfinished == 0 {
			q.mu.Unlock()
			return nil
		}
		wait := q.allDone
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Clear drops every queued item and returns them in queue order.
// Dropped items no longer count toward Join. Items already handed out are
// unaffected. Producers racing with Clear may enqueue right after it.
func (q *Queue[T]) Clear() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := q.items
	if len(dropped) == 0 {
		return nil
	}
	q.items = nil
	q.unfinished -= len(dropped)
	broadcast(&q.itemRemoved)
	if q.unfinished == 0 {
		broadcast(&q.allDone)
	}
	return dropped
}

// Len returns the number of queued items. The value is a snapshot.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Unfinished returns the number of accepted items not yet acknowledged.
func (q *Queue[T]) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// Cap returns the capacity (0 = unbounded).
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// Full reports whether a bounded queue is at capacity. The value is a snapshot.
func (q *Queue[T]) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fullLocked()
}

// Empty reports whether the queue holds no items. The value is a snapshot.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

func (q *Queue[T]) fullLocked() bool {
	return q.capacity > 0 && len(q.items) >= q.capacity
}

func (q *Queue[T]) pushLocked(item T) {
	q.items = append(q.items, item)
	q.unfinished++
	broadcast(&q.itemAdded)
}

func (q *Queue[T]) popLocked() T {
	item := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Reset so the backing array does not creep forward forever.
		q.items = nil
	}
	broadcast(&q.itemRemoved)
	return item
}

func broadcast(ch *chan struct{}) {
	close(*ch)
	*ch = make(chan struct{})
}
