// Package errors defines the error taxonomy shared by the radarflow packages.
//
// Contract violations (bad arguments, submitting to a closed pool, cache
// failures) are returned to the caller. Failures inside isolated units of
// work (event handlers, tasks) are captured as values, logged by the
// component that ran them, and never propagate to unrelated callers.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match them with errors.Is.
var (
	// ErrInvalidArgument indicates a caller passed a missing or malformed argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPoolClosed indicates work was submitted after the pool shut down.
	ErrPoolClosed = errors.New("pool closed")

	// ErrQueueFull indicates a bounded queue had no free slot.
	ErrQueueFull = errors.New("queue full")

	// ErrQueueEmpty indicates a queue had no item to hand out.
	ErrQueueEmpty = errors.New("queue empty")

	// ErrNotFound indicates a lookup missed.
	ErrNotFound = errors.New("not found")
)

// ArgumentError describes which argument of which operation was rejected.
type ArgumentError struct {
	// Op is the operation that rejected the argument (e.g. "subscribe").
	Op string
	// Arg names the offending argument.
	Arg string
	// Message says what was wrong with it.
	Message string
}

// InvalidArgument returns an *ArgumentError for op/arg.
func InvalidArgument(op, arg, message string) error {
	return &ArgumentError{Op: op, Arg: arg, Message: message}
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid argument %s: %s", e.Op, e.Arg, e.Message)
}

// Unwrap makes every ArgumentError match ErrInvalidArgument.
func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// ProcessingError wraps a failure of a processing step, such as submitting
// or executing a task.
type ProcessingError struct {
	// Step is the processing step that failed ("submit", "execute", ...).
	Step string
	// DataID identifies the task or data item involved, if any.
	DataID string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	if e.DataID != "" {
		return fmt.Sprintf("processing %s (%s): %v", e.Step, e.DataID, e.Err)
	}
	return fmt.Sprintf("processing %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// RepositoryError wraps a failure of a repository operation.
type RepositoryError struct {
	// Op is the repository operation ("save", "find", "delete", ...).
	Op string
	// EntityType names the stored entity kind.
	EntityType string
	// EntityID is the key involved.
	EntityID string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	entity := e.EntityType
	if entity == "" {
		entity = "entity"
	}
	return fmt.Sprintf("repository %s %s %q: %v", e.Op, entity, e.EntityID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// PanicError captures a recovered panic from a handler or task.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
