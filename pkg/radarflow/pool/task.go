// Package pool runs submitted work on a bounded, elastic set of worker
// goroutines fed by a FIFO task queue.
//
// A Pool keeps MinWorkers workers alive, adds workers up to MaxWorkers
// when queued work outnumbers idle workers, and lets surplus workers
// retire after IdleTimeout. Task failures and panics are contained: they
// are logged, recorded on the task's Future, and never stop a worker.
// In-flight tasks are never interrupted; shutdown drains the queue.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
)

// TaskFunc is a unit of work. Arguments are captured by the closure.
// The context carries tracing data; it is not cancelled by pool shutdown.
type TaskFunc func(ctx context.Context) (any, error)

// Task is a deferred unit of work with its own identity.
type Task struct {
	// ID is a unique identifier assigned at creation.
	ID string
	// Name labels the task in logs and spans.
	Name string
	// CreatedAt is when the task was created.
	CreatedAt time.Time

	fn     TaskFunc
	future *Future
}

// NewTask creates a task. An empty name defaults to "task".
func NewTask(name string, fn TaskFunc) *Task {
	if name == "" {
		name = "task"
	}
	id := uuid.New().String()
	return &Task{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
		fn:        fn,
		future:    newFuture(id),
	}
}

// Execute invokes the task function and returns its result. Errors and
// panics propagate to the caller; workers contain them.
func (t *Task) Execute(ctx context.Context) (any, error) {
	return t.fn(ctx)
}

// Future returns the handle that receives the task's outcome.
func (t *Task) Future() *Future {
	return t.future
}

// run executes the task, converting a panic into *PanicError, and settles
// the future.
func (t *Task) run(ctx context.Context) rferrors.Result[any] {
	res := rferrors.Try(func() (any, error) {
		return t.Execute(ctx)
	})
	t.future.settle(res)
	return res
}

// Future is the eventual outcome of a submitted task.
type Future struct {
	taskID string
	done   chan struct{}
	once   sync.Once
	value  any
	err    error
}

func newFuture(taskID string) *Future {
	return &Future{taskID: taskID, done: make(chan struct{})}
}

// TaskID returns the ID of the task this future belongs to.
func (f *Future) TaskID() string {
	return f.taskID
}

// Done is closed once the task has finished or been discarded.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the outcome is available.
func (f *Future) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the task finishes or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Value returns the task result. Only meaningful once Done is closed.
func (f *Future) Value() any {
	if !f.IsDone() {
		return nil
	}
	return f.value
}

// Err returns the task error, a *PanicError if it panicked, or nil.
// Only meaningful once Done is closed.
func (f *Future) Err() error {
	if !f.IsDone() {
		return nil
	}
	return f.err
}

func (f *Future) settle(res rferrors.Result[any]) {
	f.once.Do(func() {
		f.value, f.err = res.Unpack()
		close(f.done)
	})
}
