package errors

import "runtime/debug"

// Result holds the outcome of an isolated unit of work.
type Result[T any] struct {
	// Value is the result if successful.
	Value T

	// Err is the error returned, or a *PanicError if the work panicked.
	Err error
}

// OK reports whether the work completed without error.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Unpack returns the value and error.
func (r Result[T]) Unpack() (T, error) {
	return r.Value, r.Err
}

// Try runs fn and captures its outcome. A panic inside fn is recovered and
// reported as a *PanicError carrying the stack trace.
func Try[T any](fn func() (T, error)) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[T]{Err: &PanicError{Value: r, Stack: string(debug.Stack())}}
		}
	}()
	v, err := fn()
	return Result[T]{Value: v, Err: err}
}

// TryErr is Try for work that produces no value.
func TryErr(fn func() error) error {
	return Try(func() (struct{}, error) {
		return struct{}{}, fn()
	}).Err
}
