package event_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/event"
)

func TestNew(t *testing.T) {
	evt, err := event.New(event.SignalLoadingCompleted, map[string]any{"count": 3}, event.WithSource("loader"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if evt.ID() == "" {
		t.Error("expected generated ID")
	}
	if evt.Type() != event.SignalLoadingCompleted {
		t.Errorf("Type() = %q", evt.Type())
	}
	if evt.Source() != "loader" {
		t.Errorf("Source() = %q", evt.Source())
	}
	if evt.Timestamp().IsZero() {
		t.Error("expected timestamp")
	}
	if v, ok := evt.Get("count"); !ok || v != 3 {
		t.Errorf("Get(count) = %v, %v", v, ok)
	}
}

func TestNew_EmptyTypeRejected(t *testing.T) {
	_, err := event.New("", nil)
	if !errors.Is(err, rferrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNew_NilDataBecomesEmptyMap(t *testing.T) {
	evt := event.MustNew(event.AppStarted, nil)
	data := evt.Data()
	if data == nil {
		t.Fatal("Data() returned nil")
	}
	if len(data) != 0 {
		t.Errorf("expected empty data, got %v", data)
	}
}

func TestMustNew_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for empty type")
		}
	}()
	event.MustNew("", nil)
}

func TestEvent_Immutable(t *testing.T) {
	input := map[string]any{"k": "original"}
	evt := event.MustNew("test.event", input)

	input["k"] = "changed by caller"
	if v, _ := evt.Get("k"); v != "original" {
		t.Errorf("event changed through input map: %v", v)
	}

	out := evt.Data()
	out["k"] = "changed through Data()"
	if v, _ := evt.Get("k"); v != "original" {
		t.Errorf("event changed through Data(): %v", v)
	}
}

func TestEvent_NestedPayloadImmutable(t *testing.T) {
	input := map[string]any{
		"params": map[string]any{"cf": 9400.0},
		"ids":    []any{"sig_001", map[string]any{"slice": 1}},
	}
	evt := event.MustNew("test.event", input)

	input["params"].(map[string]any)["cf"] = 0.0
	input["ids"].([]any)[0] = "changed"
	input["ids"].([]any)[1].(map[string]any)["slice"] = 99

	out := evt.Data()
	out["params"].(map[string]any)["pw"] = 1.2
	out["ids"].([]any)[0] = "changed through Data()"

	got, _ := evt.Get("params")
	got.(map[string]any)["cf"] = -1.0

	params, _ := evt.Get("params")
	if want := map[string]any{"cf": 9400.0}; !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
	ids, _ := evt.Get("ids")
	if want := []any{"sig_001", map[string]any{"slice": 1}}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
	if m := evt.ToMap()["data"].(map[string]any); !reflect.DeepEqual(m["params"], map[string]any{"cf": 9400.0}) {
		t.Errorf("ToMap params = %v", m["params"])
	}
}

func TestEvent_Options(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	evt := event.MustNew("test.event", nil, event.WithID("fixed"), event.WithTimestamp(ts))

	if evt.ID() != "fixed" {
		t.Errorf("ID() = %q", evt.ID())
	}
	if !evt.Timestamp().Equal(ts) {
		t.Errorf("Timestamp() = %v", evt.Timestamp())
	}
}

func TestEvent_MapRoundTrip(t *testing.T) {
	orig := event.MustNew(event.SliceProcessStarted,
		map[string]any{"slice": 2, "total": 10},
		event.WithSource("slicer"),
	)

	got, err := event.FromMap(orig.ToMap())
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}

	if got.ID() != orig.ID() || got.Type() != orig.Type() || got.Source() != orig.Source() {
		t.Errorf("identity mismatch: %v vs %v", got, orig)
	}
	if !got.Timestamp().Equal(orig.Timestamp()) {
		t.Errorf("timestamp %v != %v", got.Timestamp(), orig.Timestamp())
	}
	if v, _ := got.Get("slice"); v != 2 {
		t.Errorf("data slice = %v", v)
	}
}

func TestFromMap_Defaults(t *testing.T) {
	evt, err := event.FromMap(map[string]any{"type": "test.event"})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if evt.ID() == "" || evt.Timestamp().IsZero() {
		t.Error("expected generated id and timestamp")
	}
	if evt.Source() != "" {
		t.Errorf("Source() = %q", evt.Source())
	}
}

func TestFromMap_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
	}{
		{"missing type", map[string]any{"id": "x"}},
		{"empty type", map[string]any{"type": ""}},
		{"non-string type", map[string]any{"type": 5}},
		{"bad timestamp", map[string]any{"type": "t", "timestamp": "yesterday"}},
		{"bad data", map[string]any{"type": "t", "data": []int{1}}},
		{"bad id", map[string]any{"type": "t", "id": 7}},
		{"bad source", map[string]any{"type": "t", "source": 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := event.FromMap(tt.in)
			if !errors.Is(err, rferrors.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestEvent_JSON(t *testing.T) {
	orig := event.MustNew(event.SignalImportFailed, map[string]any{"reason": "bad header"}, event.WithSource("importer"))

	raw, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded event.Event
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.ID() != orig.ID() || decoded.Type() != orig.Type() {
		t.Errorf("decoded %v, want %v", &decoded, orig)
	}
	if v, _ := decoded.Get("reason"); v != "bad header" {
		t.Errorf("reason = %v", v)
	}
	if !decoded.Timestamp().Equal(orig.Timestamp()) {
		t.Errorf("timestamp %v != %v", decoded.Timestamp(), orig.Timestamp())
	}

	if err := json.Unmarshal([]byte(`{"data":{}}`), &decoded); err == nil {
		t.Error("expected error for missing type")
	}
}
