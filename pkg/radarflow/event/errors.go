package event

import "errors"

var (
	// ErrDispatcherStopped indicates Dispatch was called after Stop.
	ErrDispatcherStopped = errors.New("dispatcher stopped")

	// ErrMailboxBusy indicates a second goroutine tried to consume a mailbox.
	ErrMailboxBusy = errors.New("mailbox already has a consumer")
)
