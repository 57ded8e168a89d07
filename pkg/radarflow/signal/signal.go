// Package signal defines the radar signal entities held by the repository
// and passed between pipeline stages.
package signal

import (
	"fmt"
	"maps"
	"slices"
	"unsafe"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
)

// Pulse is one pulse descriptor word.
type Pulse struct {
	CF  float64 `json:"cf"`  // carrier frequency, MHz
	PW  float64 `json:"pw"`  // pulse width, us
	DOA float64 `json:"doa"` // direction of arrival, degrees
	PA  float64 `json:"pa"`  // pulse amplitude
	TOA float64 `json:"toa"` // time of arrival, ms
}

// Signal is an imported pulse stream.
type Signal struct {
	ID             string  `json:"id"`
	Pulses         []Pulse `json:"pulses"`
	BandType       string  `json:"band_type,omitempty"`
	IsValid        bool    `json:"is_valid"`
	ExpectedSlices int     `json:"expected_slices"`
}

// New creates a signal. The pulses are copied.
func New(id string, pulses []Pulse, expectedSlices int) (*Signal, error) {
	if id == "" {
		return nil, rferrors.InvalidArgument("new signal", "id", "must not be empty")
	}
	if expectedSlices < 0 {
		return nil, rferrors.InvalidArgument("new signal", "expected_slices", "must not be negative")
	}
	return &Signal{
		ID:             id,
		Pulses:         slices.Clone(pulses),
		ExpectedSlices: expectedSlices,
	}, nil
}

// DataCount returns the number of pulses.
func (s *Signal) DataCount() int {
	return len(s.Pulses)
}

// MemorySize returns the bytes held by the pulse data.
func (s *Signal) MemorySize() int {
	return len(s.Pulses) * int(unsafe.Sizeof(Pulse{}))
}

// Clone returns a deep copy.
func (s *Signal) Clone() *Signal {
	if s == nil {
		return nil
	}
	c := *s
	c.Pulses = slices.Clone(s.Pulses)
	return &c
}

func (s *Signal) String() string {
	return fmt.Sprintf("Signal(id=%s, pulses=%d, band=%s, valid=%t, expected_slices=%d)",
		s.ID, s.DataCount(), s.BandType, s.IsValid, s.ExpectedSlices)
}

// TimeRange is a closed interval in milliseconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewTimeRange returns [start, end]. Start must not exceed end.
func NewTimeRange(start, end float64) (TimeRange, error) {
	if start > end {
		return TimeRange{}, rferrors.InvalidArgument("new time range", "start", "must not exceed end")
	}
	return TimeRange{Start: start, End: end}, nil
}

// Contains reports whether t lies within the range, bounds included.
func (r TimeRange) Contains(t float64) bool {
	return r.Start <= t && t <= r.End
}

// Duration returns End - Start.
func (r TimeRange) Duration() float64 {
	return r.End - r.Start
}

// Slice is a time window cut from a Signal.
type Slice struct {
	ID       string         `json:"id"`
	ParentID string         `json:"parent_id"`
	Index    int            `json:"index"`
	Range    TimeRange      `json:"time_range"`
	Pulses   []Pulse        `json:"pulses"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Cut returns the slices of s covering consecutive windows of width ms,
// starting at the first pulse's TOA. Pulses must be sorted by TOA. Empty
// windows are kept so indices map to time.
func Cut(s *Signal, width float64) ([]*Slice, error) {
	if width <= 0 {
		return nil, rferrors.InvalidArgument("cut signal", "width", "must be positive")
	}
	if len(s.Pulses) == 0 {
		return nil, nil
	}

	start := s.Pulses[0].TOA
	var out []*Slice
	i := 0
	for idx := 0; i < len(s.Pulses); idx++ {
		lo := start + float64(idx)*width
		hi := lo + width
		j := i
		for j < len(s.Pulses) && s.Pulses[j].TOA < hi {
			j++
		}
		out = append(out, &Slice{
			ID:       fmt.Sprintf("%s_slice_%d", s.ID, idx),
			ParentID: s.ID,
			Index:    idx,
			Range:    TimeRange{Start: lo, End: hi},
			Pulses:   slices.Clone(s.Pulses[i:j]),
		})
		i = j
	}
	return out, nil
}

// IsEmpty reports whether the slice holds no pulses.
func (s *Slice) IsEmpty() bool {
	return len(s.Pulses) == 0
}

// PointCount returns the number of pulses.
func (s *Slice) PointCount() int {
	return len(s.Pulses)
}

// Clone returns a deep copy. Metadata values are copied shallowly.
func (s *Slice) Clone() *Slice {
	if s == nil {
		return nil
	}
	c := *s
	c.Pulses = slices.Clone(s.Pulses)
	c.Metadata = maps.Clone(s.Metadata)
	return &c
}

// SliceStats summarizes a slice.
type SliceStats struct {
	Empty      bool       `json:"is_empty"`
	PointCount int        `json:"point_count"`
	Range      *TimeRange `json:"time_range,omitempty"`
	Duration   float64    `json:"duration"`
	MemorySize int        `json:"memory_size"`
}

// Stats returns summary statistics. Range is nil for an empty slice.
func (s *Slice) Stats() SliceStats {
	if s.IsEmpty() {
		return SliceStats{Empty: true}
	}
	r := s.Range
	return SliceStats{
		PointCount: s.PointCount(),
		Range:      &r,
		Duration:   r.Duration(),
		MemorySize: len(s.Pulses) * int(unsafe.Sizeof(Pulse{})),
	}
}

func (s *Slice) String() string {
	return fmt.Sprintf("Slice(id=%s, parent=%s, index=%d, points=%d, range=[%g, %g])",
		s.ID, s.ParentID, s.Index, s.PointCount(), s.Range.Start, s.Range.End)
}
