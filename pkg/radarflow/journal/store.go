// Package journal keeps an append-only record of published events.
//
// A Recorder subscribes to a bus and appends every event it receives to a
// Store. MemoryStore suits tests and short runs; SQLiteStore persists the
// journal to a file.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/radarflow/pkg/radarflow/event"
)

// Store persists journal entries. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append records evt and returns the stored entry.
	Append(ctx context.Context, evt *event.Event) (Entry, error)

	// List returns entries in append order. An empty eventType matches
	// every type; limit <= 0 means no limit. When limited, the most
	// recent entries are returned.
	List(ctx context.Context, eventType string, limit int) ([]Entry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("journal store closed")

// Entry is one recorded event.
type Entry struct {
	Seq        int64
	EventID    string
	Type       string
	Source     string
	Timestamp  time.Time
	Payload    json.RawMessage
	RecordedAt time.Time
}

// Event rebuilds the recorded event from its payload. JSON numbers in the
// data come back as float64.
func (e Entry) Event() (*event.Event, error) {
	var m map[string]any
	if err := json.Unmarshal(e.Payload, &m); err != nil {
		return nil, fmt.Errorf("decode entry %d: %w", e.Seq, err)
	}
	return event.FromMap(m)
}

func newEntry(evt *event.Event, recordedAt time.Time) (Entry, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Entry{}, fmt.Errorf("encode event %s: %w", evt.ID(), err)
	}
	return Entry{
		EventID:    evt.ID(),
		Type:       evt.Type(),
		Source:     evt.Source(),
		Timestamp:  evt.Timestamp(),
		Payload:    payload,
		RecordedAt: recordedAt,
	}, nil
}
