// Package repository provides capacity-bounded in-memory stores.
//
// Cache keeps at most a fixed number of entries and, when full, evicts the
// entry accessed least recently before admitting a new key. Values are
// stored and returned as copies, so callers can never mutate what the cache
// holds. A value type must either implement Cloner or hold no references
// (no pointers, slices, maps, interfaces, funcs or channels), in which case
// assignment is the copy.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/observability"
)

// DefaultCapacity is the capacity used when none is configured.
const DefaultCapacity = 100

// ErrEmptyKey is returned for operations given an empty key.
var ErrEmptyKey = errors.New("empty key")

// Cloner is implemented by values that can copy themselves. Clone must
// return a copy sharing no mutable state with the receiver.
type Cloner[V any] interface {
	Clone() V
}

// EvictFunc is told about every entry evicted for capacity.
type EvictFunc func(key string, lastAccess time.Time)

type options struct {
	name       string
	entityType string
	clock      clock.Clock
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	onEvict    EvictFunc
}

// Option configures a Cache.
type Option func(*options)

// WithName labels the cache in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithEntityType names the stored kind in errors.
func WithEntityType(t string) Option {
	return func(o *options) { o.entityType = t }
}

// WithClock sets the time source for access timestamps.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithOnEvict registers fn to run after each capacity eviction, outside
// the cache lock.
func WithOnEvict(fn EvictFunc) Option {
	return func(o *options) { o.onEvict = fn }
}

type entry[V any] struct {
	value      V
	lastAccess time.Time
}

// Cache is a goroutine-safe LRU store of copied values keyed by string.
type Cache[V any] struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, entry[V]]
	capacity int
	copy     func(V) V
	opts     options
}

// NewCache creates a cache holding at most capacity entries.
func NewCache[V any](capacity int, opts ...Option) (*Cache[V], error) {
	if capacity <= 0 {
		return nil, rferrors.InvalidArgument("new cache", "capacity", "must be positive")
	}
	copyFn, err := copierFor[V]()
	if err != nil {
		return nil, err
	}
	o := options{
		name:    "cache",
		clock:   clock.New(),
		logger:  observability.DiscardLogger(),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	// Evictions are done explicitly in Save so the LRU's own callback is
	// never needed.
	lru, err := simplelru.NewLRU[string, entry[V]](capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("new cache: %w", err)
	}
	return &Cache[V]{lru: lru, capacity: capacity, copy: copyFn, opts: o}, nil
}

// Save stores a copy of value under key. When the cache is full and key is
// new, the least recently accessed entry is evicted first. Overwriting an
// existing key never evicts.
func (c *Cache[V]) Save(key string, value V) error {
	if key == "" {
		return c.fail("save", key, ErrEmptyKey)
	}
	stored := c.copy(value)

	c.mu.Lock()
	var (
		evictedKey string
		evicted    entry[V]
		didEvict   bool
	)
	if !c.lru.Contains(key) && c.lru.Len() >= c.capacity {
		evictedKey, evicted, didEvict = c.lru.RemoveOldest()
	}
	c.lru.Add(key, entry[V]{value: stored, lastAccess: c.opts.clock.Now()})
	c.mu.Unlock()

	if didEvict {
		c.evicted(evictedKey, evicted.lastAccess)
	}
	return nil
}

// Update is Save.
func (c *Cache[V]) Update(key string, value V) error {
	return c.Save(key, value)
}

// FindByID returns a copy of the value stored under key and refreshes its
// access time. A miss returns an error matching errors.ErrNotFound.
func (c *Cache[V]) FindByID(key string) (V, error) {
	var zero V

	c.mu.Lock()
	e, ok := c.lru.Get(key)
	if ok {
		e.lastAccess = c.opts.clock.Now()
		// Re-adding an existing key only updates it in place.
		c.lru.Add(key, e)
	}
	c.mu.Unlock()

	c.opts.metrics.RecordCacheAccess(context.Background(), c.opts.name, ok)
	if !ok {
		return zero, c.fail("find", key, rferrors.ErrNotFound)
	}

	return c.copy(e.value), nil
}

// Contains reports whether key is cached without refreshing it.
func (c *Cache[V]) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// ClearCache removes every entry.
func (c *Cache[V]) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Cap returns the capacity.
func (c *Cache[V]) Cap() int {
	return c.capacity
}

// Keys returns the keys from least to most recently accessed.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// LastAccess returns when key was last saved or found, without refreshing it.
func (c *Cache[V]) LastAccess(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return time.Time{}, false
	}
	return e.lastAccess, true
}

func (c *Cache[V]) evicted(key string, lastAccess time.Time) {
	observability.LogEviction(c.opts.logger, c.opts.name, key, lastAccess)
	c.opts.metrics.RecordCacheEviction(context.Background(), c.opts.name)
	if c.opts.onEvict != nil {
		c.opts.onEvict(key, lastAccess)
	}
}

func (c *Cache[V]) fail(op, key string, err error) error {
	return &rferrors.RepositoryError{
		Op:         op,
		EntityType: c.opts.entityType,
		EntityID:   key,
		Err:        err,
	}
}

// copierFor picks how values of V are copied: through Clone when V
// implements Cloner[V], by assignment when V holds no references. Any other
// type is refused, since no generic copy is both deep and lossless.
func copierFor[V any]() (func(V) V, error) {
	t := reflect.TypeFor[V]()
	if t.Implements(reflect.TypeFor[Cloner[V]]()) {
		return func(v V) V { return any(v).(Cloner[V]).Clone() }, nil
	}
	if referenceFree(t) {
		return func(v V) V { return v }, nil
	}
	return nil, rferrors.InvalidArgument("new cache", "value type",
		fmt.Sprintf("%s holds references and does not implement Clone() %s", t, t))
}

func referenceFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return referenceFree(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if !referenceFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
