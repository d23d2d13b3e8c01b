package permit

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Cache backend names accepted by PERMIT_CACHE_BACKEND.
const (
	CacheBackendMemory    = "memory"
	CacheBackendRistretto = "ristretto"
	CacheBackendRedis     = "redis"
)

// Settings holds environment overrides for a resolver deployment.
type Settings struct {
	CacheTTL       time.Duration `envconfig:"PERMIT_CACHE_TTL" default:"300s"`
	ResolveTimeout time.Duration `envconfig:"PERMIT_RESOLVE_TIMEOUT" default:"0s"`
	CacheBackend   string        `envconfig:"PERMIT_CACHE_BACKEND" default:"memory"`
	RedisAddr      string        `envconfig:"PERMIT_REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPrefix    string        `envconfig:"PERMIT_REDIS_PREFIX" default:"permit"`
	BatchWorkers   int           `envconfig:"PERMIT_BATCH_WORKERS" default:"8"`
	LogFormat      string        `envconfig:"PERMIT_LOG_FORMAT" default:"phuslu"`
	Superusers     []string      `envconfig:"PERMIT_SUPERUSERS"`
}

// LoadSettings reads settings from the environment.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	switch s.CacheBackend {
	case CacheBackendMemory, CacheBackendRistretto, CacheBackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", s.CacheBackend)
	}
	switch s.LogFormat {
	case "phuslu", "slog", "none":
	default:
		return fmt.Errorf("unknown log format %q", s.LogFormat)
	}
	if s.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", s.CacheTTL)
	}
	if s.BatchWorkers <= 0 {
		return fmt.Errorf("batch workers must be positive, got %d", s.BatchWorkers)
	}
	return nil
}

// Options converts settings into resolver options. The cache backend itself
// is built by the caller.
func (s *Settings) Options() []Option {
	opts := []Option{WithCacheTTL(s.CacheTTL), WithBatchWorkers(s.BatchWorkers)}
	if s.ResolveTimeout > 0 {
		opts = append(opts, WithResolveTimeout(s.ResolveTimeout))
	}
	if len(s.Superusers) > 0 {
		opts = append(opts, WithSuperusers(s.Superusers...))
	}
	return opts
}
