package repository

import (
	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/signal"
)

// SignalRepository stores signals by ID in a bounded Cache.
type SignalRepository struct {
	cache *Cache[*signal.Signal]
}

// NewSignalRepository creates a repository holding at most capacity
// signals. Zero selects DefaultCapacity.
func NewSignalRepository(capacity int, opts ...Option) (*SignalRepository, error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	opts = append([]Option{WithName("signals"), WithEntityType("signal")}, opts...)
	cache, err := NewCache[*signal.Signal](capacity, opts...)
	if err != nil {
		return nil, err
	}
	return &SignalRepository{cache: cache}, nil
}

// Save stores a copy of sig.
func (r *SignalRepository) Save(sig *signal.Signal) error {
	if sig == nil {
		return &rferrors.RepositoryError{
			Op:         "save",
			EntityType: "signal",
			Err:        rferrors.InvalidArgument("save", "signal", "must not be nil"),
		}
	}
	return r.cache.Save(sig.ID, sig)
}

// Update is Save.
func (r *SignalRepository) Update(sig *signal.Signal) error {
	return r.Save(sig)
}

// FindByID returns a copy of the stored signal.
func (r *SignalRepository) FindByID(id string) (*signal.Signal, error) {
	return r.cache.FindByID(id)
}

// Delete removes a signal and reports whether it was present.
func (r *SignalRepository) Delete(id string) bool {
	return r.cache.Delete(id)
}

// ClearCache removes every signal.
func (r *SignalRepository) ClearCache() {
	r.cache.ClearCache()
}

// Len returns the number of stored signals.
func (r *SignalRepository) Len() int {
	return r.cache.Len()
}

// IDs returns stored signal IDs from least to most recently accessed.
func (r *SignalRepository) IDs() []string {
	return r.cache.Keys()
}
