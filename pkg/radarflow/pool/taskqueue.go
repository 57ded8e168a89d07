package pool

import (
	"context"
	"errors"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/queue"
)

// ErrTaskDiscarded is the outcome of tasks removed by TaskQueue.Clear.
var ErrTaskDiscarded = errors.New("task discarded before execution")

// TaskQueue is a FIFO of tasks shared by workers. Capacity 0 is unbounded.
type TaskQueue struct {
	q *queue.Queue[*Task]
}

// NewTaskQueue creates a queue holding at most capacity tasks.
func NewTaskQueue(capacity int) *TaskQueue {
	return &TaskQueue{q: queue.New[*Task](capacity)}
}

// Put enqueues t, waiting for room until ctx is done.
func (tq *TaskQueue) Put(ctx context.Context, t *Task) error {
	if t == nil {
		return rferrors.InvalidArgument("enqueue", "task", "must not be nil")
	}
	return tq.q.Put(ctx, t)
}

// TryPut enqueues t only if there is room right now.
func (tq *TaskQueue) TryPut(t *Task) error {
	if t == nil {
		return rferrors.InvalidArgument("enqueue", "task", "must not be nil")
	}
	return tq.q.TryPut(t)
}

// Get dequeues the oldest task, waiting until ctx is done.
func (tq *TaskQueue) Get(ctx context.Context) (*Task, error) {
	return tq.q.Get(ctx)
}

// TryGet dequeues the oldest task if there is one.
func (tq *TaskQueue) TryGet() (*Task, error) {
	return tq.q.TryGet()
}

// TaskDone acknowledges a dequeued task as finished.
func (tq *TaskQueue) TaskDone() {
	tq.q.Done()
}

// Join blocks until every enqueued task has been acknowledged or ctx is done.
func (tq *TaskQueue) Join(ctx context.Context) error {
	return tq.q.Join(ctx)
}

// Clear discards queued tasks and settles their futures with
// ErrTaskDiscarded. It returns how many were discarded.
func (tq *TaskQueue) Clear() int {
	dropped := tq.q.Clear()
	for _, t := range dropped {
		t.future.settle(rferrors.Result[any]{Err: ErrTaskDiscarded})
	}
	return len(dropped)
}

// Len returns the number of queued tasks.
func (tq *TaskQueue) Len() int { return tq.q.Len() }

// Cap returns the capacity (0 = unbounded).
func (tq *TaskQueue) Cap() int { return tq.q.Cap() }

// Full reports whether a bounded queue is at capacity.
func (tq *TaskQueue) Full() bool { return tq.q.Full() }

// Empty reports whether no task is queued.
func (tq *TaskQueue) Empty() bool { return tq.q.Empty() }
