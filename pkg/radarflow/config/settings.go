package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/observability"
)

// Settings configures a radarflow runtime.
type Settings struct {
	Pool       PoolSettings
	Dispatcher DispatcherSettings
	Repository RepositorySettings
	Logging    LoggingSettings
	Metrics    MetricsSettings
	Journal    JournalSettings
}

// PoolSettings configures the worker pool.
type PoolSettings struct {
	Name         string        `env:"RADARFLOW_POOL_NAME"`
	MaxWorkers   int           `env:"RADARFLOW_POOL_MAX_WORKERS"`
	MinWorkers   int           `env:"RADARFLOW_POOL_MIN_WORKERS"`
	IdleTimeout  time.Duration `env:"RADARFLOW_POOL_IDLE_TIMEOUT"`
	QueueSize    int           `env:"RADARFLOW_POOL_QUEUE_SIZE"`
	PollInterval time.Duration `env:"RADARFLOW_POOL_POLL_INTERVAL"`
}

// DispatcherSettings configures the event dispatcher.
type DispatcherSettings struct {
	QueueSize    int           `env:"RADARFLOW_DISPATCHER_QUEUE_SIZE"`
	PollInterval time.Duration `env:"RADARFLOW_DISPATCHER_POLL_INTERVAL"`
}

// RepositorySettings configures the signal cache.
type RepositorySettings struct {
	MaxCacheSize int `env:"RADARFLOW_REPOSITORY_MAX_CACHE_SIZE"`
}

// LoggingSettings configures the logger.
type LoggingSettings struct {
	Level  string `env:"RADARFLOW_LOG_LEVEL"`
	Format string `env:"RADARFLOW_LOG_FORMAT"`
	// File is a path to append logs to. Empty means stderr.
	File string `env:"RADARFLOW_LOG_FILE"`
}

// MetricsSettings selects the metrics and tracing backends.
type MetricsSettings struct {
	// Backend is "none", "otel" or "prometheus".
	Backend string `env:"RADARFLOW_METRICS_BACKEND"`
	// Addr serves /metrics when the backend is prometheus. Empty disables it.
	Addr    string `env:"RADARFLOW_METRICS_ADDR"`
	Tracing bool   `env:"RADARFLOW_TRACING_ENABLED"`
}

// JournalSettings configures the event journal.
type JournalSettings struct {
	// Driver is "none", "memory" or "sqlite".
	Driver string `env:"RADARFLOW_JOURNAL_DRIVER"`
	Path   string `env:"RADARFLOW_JOURNAL_PATH"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Pool: PoolSettings{
			Name:         "radar_worker",
			MaxWorkers:   4,
			MinWorkers:   2,
			IdleTimeout:  60 * time.Second,
			PollInterval: time.Second,
		},
		Dispatcher: DispatcherSettings{
			PollInterval: time.Second,
		},
		Repository: RepositorySettings{
			MaxCacheSize: 100,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsSettings{
			Backend: "none",
		},
		Journal: JournalSettings{
			Driver: "none",
		},
	}
}

// LoadSettings returns DefaultSettings overlaid with the file at path (if
// path is non-empty) and then with RADARFLOW_* environment variables. The
// result is validated.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path != "" {
		cfg, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		s.Apply(cfg)
	}
	if err := cleanenv.ReadEnv(&s); err != nil {
		return Settings{}, fmt.Errorf("read environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Apply overlays values present in cfg. Absent keys keep their current
// value.
func (s *Settings) Apply(cfg Config) {
	pool := cfg.Section("pool")
	s.Pool.Name = pool.String("name", s.Pool.Name)
	s.Pool.MaxWorkers = pool.Int("max_workers", s.Pool.MaxWorkers)
	s.Pool.MinWorkers = pool.Int("min_workers", s.Pool.MinWorkers)
	s.Pool.IdleTimeout = pool.Duration("idle_timeout", s.Pool.IdleTimeout)
	s.Pool.QueueSize = pool.Int("queue_size", s.Pool.QueueSize)
	s.Pool.PollInterval = pool.Duration("poll_interval", s.Pool.PollInterval)

	disp := cfg.Section("dispatcher")
	s.Dispatcher.QueueSize = disp.Int("queue_size", s.Dispatcher.QueueSize)
	s.Dispatcher.PollInterval = disp.Duration("poll_interval", s.Dispatcher.PollInterval)

	s.Repository.MaxCacheSize = cfg.Int("repository.max_cache_size", s.Repository.MaxCacheSize)

	logging := cfg.Section("logging")
	s.Logging.Level = logging.String("level", s.Logging.Level)
	s.Logging.Format = logging.String("format", s.Logging.Format)
	s.Logging.File = logging.String("file", s.Logging.File)

	metrics := cfg.Section("metrics")
	s.Metrics.Backend = metrics.String("backend", s.Metrics.Backend)
	s.Metrics.Addr = metrics.String("addr", s.Metrics.Addr)
	s.Metrics.Tracing = metrics.Bool("tracing", s.Metrics.Tracing)

	journal := cfg.Section("journal")
	s.Journal.Driver = journal.String("driver", s.Journal.Driver)
	s.Journal.Path = journal.String("path", s.Journal.Path)
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	check := func(ok bool, arg, msg string) {
		if !ok {
			errs = append(errs, rferrors.InvalidArgument("settings", arg, msg))
		}
	}

	check(s.Pool.MaxWorkers > 0, "pool.max_workers", "must be positive")
	check(s.Pool.MinWorkers >= 0 && s.Pool.MinWorkers <= s.Pool.MaxWorkers,
		"pool.min_workers", "must be between 0 and pool.max_workers")
	check(s.Pool.QueueSize >= 0, "pool.queue_size", "must not be negative")
	check(s.Pool.PollInterval > 0, "pool.poll_interval", "must be positive")
	check(s.Dispatcher.QueueSize >= 0, "dispatcher.queue_size", "must not be negative")
	check(s.Dispatcher.PollInterval > 0, "dispatcher.poll_interval", "must be positive")
	check(s.Repository.MaxCacheSize > 0, "repository.max_cache_size", "must be positive")
	_, levelErr := observability.ParseLevel(s.Logging.Level)
	check(levelErr == nil, "logging.level", "must be debug, info, warn or error")
	check(oneOf(s.Logging.Format, "text", "json"), "logging.format", "must be text or json")
	check(oneOf(s.Metrics.Backend, "none", "otel", "prometheus"), "metrics.backend", "must be none, otel or prometheus")
	check(oneOf(s.Journal.Driver, "none", "memory", "sqlite"), "journal.driver", "must be none, memory or sqlite")
	check(s.Journal.Driver != "sqlite" || s.Journal.Path != "", "journal.path", "required for the sqlite driver")

	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	return slices.Contains(allowed, v)
}
