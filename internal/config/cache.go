package config

import "time"

// CacheConfig configures the entity cache. Backend selects between the
// in-process weighted LRU ("memory") and Redis ("redis"). AbsoluteTTL caps
// the lifetime of an entry; SlidingTTL expires entries that are not read
// within the window. SizeLimit is the total weight the memory backend keeps
// before it evicts least recently used entries. Prefix namespaces Redis keys.
type CacheConfig struct {
	Backend     string        `env:"CACHE_BACKEND, default=memory"`
	AbsoluteTTL time.Duration `env:"CACHE_ABSOLUTE_TTL, default=120s"`
	SlidingTTL  time.Duration `env:"CACHE_SLIDING_TTL, default=30s"`
	SizeLimit   int64         `env:"CACHE_SIZE_LIMIT, default=1024"`
	Prefix      string        `env:"CACHE_PREFIX, default=cache"`
}
