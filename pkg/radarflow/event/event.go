// Package event provides the in-process notification substrate: immutable
// events, a synchronous publish/subscribe Bus, a Dispatcher that relays
// events through a bounded queue on its own goroutine, and a Mailbox that
// hands events to a single consuming loop such as a UI thread.
//
// Handlers run on the publishing goroutine, in registration order, each
// isolated from the others: an error or panic in one handler is logged and
// never reaches the publisher or later handlers. Handlers should be quick;
// heavy work belongs in a worker pool.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
)

// Event is an immutable notification record.
type Event struct {
	id        string
	eventType string
	data      map[string]any
	timestamp time.Time
	source    string
}

// Option configures event creation.
type Option func(*eventConfig)

type eventConfig struct {
	id        string
	source    string
	timestamp time.Time
}

// WithID sets a specific event ID (default: auto-generated UUID).
func WithID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithSource records which component produced the event.
func WithSource(source string) Option {
	return func(cfg *eventConfig) {
		cfg.source = source
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(cfg *eventConfig) {
		cfg.timestamp = t
	}
}

// New creates an event. The type must be non-empty. The data map is copied
// along with any nested map[string]any and []any values;
// a nil map becomes an empty one.
func New(eventType string, data map[string]any, opts ...Option) (*Event, error) {
	if eventType == "" {
		return nil, rferrors.InvalidArgument("new event", "type", "must not be empty")
	}

	var cfg eventConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.New().String()
	}
	if cfg.timestamp.IsZero() {
		cfg.timestamp = time.Now()
	}

	payload := copyData(data)

	return &Event{
		id:        cfg.id,
		eventType: eventType,
		data:      payload,
		timestamp: cfg.timestamp,
		source:    cfg.source,
	}, nil
}

// MustNew is New that panics on error. Intended for fixed event types.
func MustNew(eventType string, data map[string]any, opts ...Option) *Event {
	evt, err := New(eventType, data, opts...)
	if err != nil {
		panic(err)
	}
	return evt
}

// ID returns the unique event identifier.
func (e *Event) ID() string { return e.id }

// Type returns the event type, e.g. "signal.data.loading.completed".
func (e *Event) Type() string { return e.eventType }

// Source returns the producing component, possibly empty.
func (e *Event) Source() string { return e.source }

// Timestamp returns when the event was created.
func (e *Event) Timestamp() time.Time { return e.timestamp }

// Data returns a copy of the payload map.
func (e *Event) Data() map[string]any {
	return copyData(e.data)
}

// Get returns a single payload value, copied like Data.
func (e *Event) Get(key string) (any, bool) {
	v, ok := e.data[key]
	return copyNested(v), ok
}

// copyData copies a payload. Nested map[string]any and []any values are
// copied recursively; any other value, pointers and typed slices included,
// is shared with the caller.
func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = copyNested(v)
	}
	return out
}

func copyNested(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return copyData(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyNested(item)
		}
		return out
	default:
		return v
	}
}

// String implements fmt.Stringer.
func (e *Event) String() string {
	return fmt.Sprintf("Event(%s id=%s source=%q)", e.eventType, e.id, e.source)
}

// Map keys used by ToMap and FromMap.
const (
	keyID        = "id"
	keyType      = "type"
	keyData      = "data"
	keyTimestamp = "timestamp"
	keySource    = "source"
)

// ToMap returns the event as a plain map. The timestamp is rendered as an
// RFC 3339 string with nanoseconds.
func (e *Event) ToMap() map[string]any {
	return map[string]any{
		keyID:        e.id,
		keyType:      e.eventType,
		keyData:      copyData(e.data),
		keyTimestamp: e.timestamp.Format(time.RFC3339Nano),
		keySource:    e.source,
	}
}

// FromMap rebuilds an event from the ToMap form. The type is required;
// id and timestamp are generated only when absent.
func FromMap(m map[string]any) (*Event, error) {
	eventType, _ := m[keyType].(string)
	if eventType == "" {
		return nil, rferrors.InvalidArgument("event from map", keyType, "missing or not a non-empty string")
	}

	var opts []Option

	switch id := m[keyID].(type) {
	case nil:
	case string:
		opts = append(opts, WithID(id))
	default:
		return nil, rferrors.InvalidArgument("event from map", keyID, fmt.Sprintf("unexpected %T", id))
	}

	switch ts := m[keyTimestamp].(type) {
	case nil:
	case time.Time:
		opts = append(opts, WithTimestamp(ts))
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, rferrors.InvalidArgument("event from map", keyTimestamp, err.Error())
		}
		opts = append(opts, WithTimestamp(parsed))
	default:
		return nil, rferrors.InvalidArgument("event from map", keyTimestamp, fmt.Sprintf("unexpected %T", ts))
	}

	switch src := m[keySource].(type) {
	case nil:
	case string:
		opts = append(opts, WithSource(src))
	default:
		return nil, rferrors.InvalidArgument("event from map", keySource, fmt.Sprintf("unexpected %T", src))
	}

	var data map[string]any
	switch d := m[keyData].(type) {
	case nil:
	case map[string]any:
		data = d
	default:
		return nil, rferrors.InvalidArgument("event from map", keyData, fmt.Sprintf("unexpected %T", d))
	}

	return New(eventType, data, opts...)
}

// MarshalJSON implements json.Marshaler using the ToMap form.
func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToMap())
}

// UnmarshalJSON implements json.Unmarshaler using the FromMap rules.
func (e *Event) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	decoded, err := FromMap(m)
	if err != nil {
		return err
	}
	*e = *decoded
	return nil
}
