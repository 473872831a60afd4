// Package cache implements the entity cache used by the repositories.
//
// Cache is a thin typed facade over a Backend. Values are JSON encoded, so
// every read returns a private copy and the same code path serves the
// in-process MemoryBackend and the shared RedisBackend. The cache is a
// performance optimisation only: lookup failures are logged and reported
// as misses, write and invalidation failures are logged and swallowed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/restful-api/internal/metrics"
)

// ErrMiss is returned by backends when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

const (
	DefaultAbsolute = 2 * time.Minute
	DefaultSliding  = 30 * time.Second
)

// Policy describes how long an entry lives and how much of the size limit
// it consumes. A zero Absolute or Sliding disables that bound.
type Policy struct {
	Absolute time.Duration
	Sliding  time.Duration
	Weight   int64
}

// Backend stores encoded values.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, p Policy) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Option overrides a field of the default policy for one Set call.
type Option func(*Policy)

func WithAbsolute(d time.Duration) Option { return func(p *Policy) { p.Absolute = d } }
func WithSliding(d time.Duration) Option  { return func(p *Policy) { p.Sliding = d } }
func WithWeight(w int64) Option           { return func(p *Policy) { p.Weight = w } }

// Cache is safe for concurrent use when its backend is.
type Cache struct {
	backend  Backend
	defaults Policy
	log      zerolog.Logger
}

// New wraps backend. Zero durations in defaults fall back to two minutes
// absolute and thirty seconds sliding; a zero weight falls back to 1.
func New(backend Backend, defaults Policy, log zerolog.Logger) *Cache {
	if defaults.Absolute <= 0 {
		defaults.Absolute = DefaultAbsolute
	}
	if defaults.Sliding <= 0 {
		defaults.Sliding = DefaultSliding
	}
	if defaults.Weight <= 0 {
		defaults.Weight = 1
	}
	return &Cache{
		backend:  backend,
		defaults: defaults,
		log:      log.With().Str("component", "cache").Logger(),
	}
}

// Get returns the value stored under key decoded as T. The boolean is false
// on a miss and on any backend or decoding failure.
func Get[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	raw, err := c.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
			return zero, false
		}
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable, dropping")
		c.Remove(ctx, key)
		return zero, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	c.log.Debug().Str("key", key).Msg("cache hit")
	return v, true
}

// Set stores value under key using the default policy adjusted by opts.
func (c *Cache) Set(ctx context.Context, key string, value any, opts ...Option) {
	p := c.defaults
	for _, opt := range opts {
		opt(&p)
	}
	if p.Weight <= 0 {
		p.Weight = 1
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.backend.Set(ctx, key, raw, p); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		return
	}
	c.log.Debug().Str("key", key).Int64("weight", p.Weight).Msg("cache set")
}

// Remove invalidates keys. Failures are logged at error level because a
// surviving entry can serve stale data until its TTL elapses.
func (c *Cache) Remove(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		metrics.CacheInvalidationErrorsTotal.Inc()
		c.log.Error().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
		return
	}
	c.log.Debug().Strs("keys", keys).Msg("cache remove")
}

// Ping reports backend health for readiness probes.
func (c *Cache) Ping(ctx context.Context) error { return c.backend.Ping(ctx) }
