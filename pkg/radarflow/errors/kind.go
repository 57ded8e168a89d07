package errors

import "errors"

// Kind classifies an error for logging and metrics.
type Kind int

const (
	// KindUnknown is any error not covered below.
	KindUnknown Kind = iota

	// KindValidation covers rejected arguments.
	KindValidation

	// KindProcessing covers failed tasks and closed pools.
	KindProcessing

	// KindRepository covers cache and store failures.
	KindRepository

	// KindResource covers exhausted queues.
	KindResource

	// KindPanic covers recovered panics.
	KindPanic
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindProcessing:
		return "processing"
	case KindRepository:
		return "repository"
	case KindResource:
		return "resource"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Panics win over the wrapper that carries them.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return KindPanic
	}
	if errors.Is(err, ErrInvalidArgument) {
		return KindValidation
	}
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueEmpty) {
		return KindResource
	}

	var repoErr *RepositoryError
	if errors.As(err, &repoErr) || errors.Is(err, ErrNotFound) {
		return KindRepository
	}

	var procErr *ProcessingError
	if errors.As(err, &procErr) || errors.Is(err, ErrPoolClosed) {
		return KindProcessing
	}
	return KindUnknown
}
