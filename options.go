package permit

import (
	"errors"
	"time"
)

// Option configures a Resolver.
type Option func(*Resolver) error

// WithCacheBackend replaces the in-memory decision cache.
func WithCacheBackend(b CacheBackend) Option {
	return func(r *Resolver) error {
		if b == nil {
			return errors.New("permit: cache backend is nil")
		}
		r.backend = b
		return nil
	}
}

// WithCacheTTL sets the lifetime of cached decisions.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) error {
		if ttl <= 0 {
			return errors.New("permit: cache ttl must be positive")
		}
		r.cacheTTL = ttl
		return nil
	}
}

// WithMetricsSink installs a metrics sink. A nil sink disables metrics.
func WithMetricsSink(s MetricsSink) Option {
	return func(r *Resolver) error {
		r.metrics = recorder{sink: s}
		return nil
	}
}

// WithResolveTimeout bounds every resolution. Zero disables the bound.
func WithResolveTimeout(d time.Duration) Option {
	return func(r *Resolver) error {
		if d < 0 {
			return errors.New("permit: resolve timeout must not be negative")
		}
		r.timeout = d
		return nil
	}
}

// WithBatchWorkers bounds the concurrency of BatchResolve.
func WithBatchWorkers(n int) Option {
	return func(r *Resolver) error {
		if n <= 0 {
			return errors.New("permit: batch workers must be positive")
		}
		r.batchWorkers = n
		return nil
	}
}

// WithSuperusers lists user IDs that bypass membership checks.
func WithSuperusers(ids ...string) Option {
	return func(r *Resolver) error {
		r.superusers = append(r.superusers, ids...)
		return nil
	}
}

// WithActionMap replaces the built-in action map.
func WithActionMap(m *ActionMap) Option {
	return func(r *Resolver) error {
		if m == nil {
			return errors.New("permit: action map is nil")
		}
		r.actions = m
		return nil
	}
}

// WithClock overrides the time source used for grant expiry and timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

// WithStages adds extra stages in front of the default stage, which always
// answers and therefore stays last.
func WithStages(stages ...Stage) Option {
	return func(r *Resolver) error {
		r.extraStages = append(r.extraStages, stages...)
		return nil
	}
}
