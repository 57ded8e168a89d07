package event

// Event types follow <domain>.<action>.<status>. The names are a
// convention; the bus accepts any non-empty type.
const (
	// Signal data import.
	SignalImportStarted   = "signal.data.import.started"
	SignalImportCompleted = "signal.data.import.completed"
	SignalImportFailed    = "signal.data.import.failed"

	// Signal data loading.
	SignalLoadingStarted   = "signal.data.loading.started"
	SignalLoadingCompleted = "signal.data.loading.completed"
	SignalLoadingFailed    = "signal.data.loading.failed"

	SignalValidationFailed = "signal.data.validation.failed"

	// Slice processing.
	SliceProcessStarted   = "signal.slice.process.started"
	SliceProcessCompleted = "signal.slice.process.completed"
	SliceProcessFailed    = "signal.slice.process.failed"

	// Application lifecycle.
	AppStarted  = "system.app.lifecycle.started"
	AppShutdown = "system.app.lifecycle.shutdown"

	CriticalError = "system.error.critical.occurred"
)

// Types returns every event type declared above.
func Types() []string {
	return []string{
		SignalImportStarted, SignalImportCompleted, SignalImportFailed,
		SignalLoadingStarted, SignalLoadingCompleted, SignalLoadingFailed,
		SignalValidationFailed,
		SliceProcessStarted, SliceProcessCompleted, SliceProcessFailed,
		AppStarted, AppShutdown,
		CriticalError,
	}
}
