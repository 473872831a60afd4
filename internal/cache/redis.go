package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores entries in Redis so several API instances share one
// cache. Each value is prefixed with a small header:
//
//	[8 bytes absolute deadline, unix ms, 0 = none][8 bytes sliding window, ms][payload]
//
// Redis expires the key after the sliding window (or the absolute TTL when
// there is no window); every hit re-arms the TTL, capped by the deadline.
// Weights are ignored; eviction is left to the server's maxmemory policy.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

const redisHeaderLen = 16

func NewRedisBackend(rdb *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *RedisBackend) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	k := r.key(key)
	bs, err := r.rdb.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", k, err)
	}
	deadline, sliding, payload, ok := decodeEntry(bs)
	if !ok {
		_ = r.rdb.Del(ctx, k).Err()
		return nil, ErrMiss
	}

	now := r.now()
	if !deadline.IsZero() && !now.Before(deadline) {
		_ = r.rdb.Del(ctx, k).Err()
		return nil, ErrMiss
	}
	if sliding > 0 {
		ttl := sliding
		if !deadline.IsZero() {
			if remain := deadline.Sub(now); remain < ttl {
				ttl = remain
			}
		}
		// A failed re-arm only shortens the entry's life.
		_ = r.rdb.PExpire(ctx, k, ttl).Err()
	}
	return payload, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, val []byte, p Policy) error {
	now := r.now()
	var deadline time.Time
	if p.Absolute > 0 {
		deadline = now.Add(p.Absolute)
	}
	ttl := p.Sliding
	if ttl <= 0 || (p.Absolute > 0 && p.Absolute < ttl) {
		ttl = p.Absolute
	}
	if ttl < 0 {
		ttl = 0
	}
	k := r.key(key)
	if err := r.rdb.Set(ctx, k, encodeEntry(deadline, p.Sliding, val), ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", k, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ks := make([]string, len(keys))
	for i, k := range keys {
		ks[i] = r.key(k)
	}
	if err := r.rdb.Del(ctx, ks...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisBackend) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func encodeEntry(deadline time.Time, sliding time.Duration, payload []byte) []byte {
	out := make([]byte, redisHeaderLen+len(payload))
	if !deadline.IsZero() {
		binary.BigEndian.PutUint64(out[0:8], uint64(deadline.UnixMilli()))
	}
	if sliding > 0 {
		binary.BigEndian.PutUint64(out[8:16], uint64(sliding.Milliseconds()))
	}
	copy(out[redisHeaderLen:], payload)
	return out
}

func decodeEntry(bs []byte) (deadline time.Time, sliding time.Duration, payload []byte, ok bool) {
	if len(bs) < redisHeaderLen {
		return time.Time{}, 0, nil, false
	}
	if ms := binary.BigEndian.Uint64(bs[0:8]); ms > 0 {
		deadline = time.UnixMilli(int64(ms))
	}
	sliding = time.Duration(binary.BigEndian.Uint64(bs[8:16])) * time.Millisecond
	return deadline, sliding, bs[redisHeaderLen:], true
}
