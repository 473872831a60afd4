package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/iliyamo/restful-api/internal/metrics"
)

// MemoryBackend is an in-process LRU bounded by the sum of entry weights.
// Entries expire at their absolute deadline or when they were not read for
// their sliding window, whichever comes first.
type MemoryBackend struct {
	mu    sync.Mutex
	limit int64
	size  int64
	ll    *list.List // front = most recently used
	items map[string]*list.Element
	now   func() time.Time
}

type memEntry struct {
	key        string
	val        []byte
	weight     int64
	deadline   time.Time // zero => no absolute bound
	sliding    time.Duration
	lastAccess time.Time
}

func (e *memEntry) expired(now time.Time) bool {
	if !e.deadline.IsZero() && !now.Before(e.deadline) {
		return true
	}
	return e.sliding > 0 && now.Sub(e.lastAccess) >= e.sliding
}

// NewMemoryBackend returns a backend holding at most limit total weight.
func NewMemoryBackend(limit int64) *MemoryBackend {
	if limit <= 0 {
		limit = 1
	}
	return &MemoryBackend{
		limit: limit,
		ll:    list.New(),
		items: make(map[string]*list.Element),
		now:   time.Now,
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return nil, ErrMiss
	}
	e := el.Value.(*memEntry)
	now := m.now()
	if e.expired(now) {
		m.removeElement(el)
		return nil, ErrMiss
	}
	e.lastAccess = now
	m.ll.MoveToFront(el)
	return e.val, nil
}

// Set stores val. An entry heavier than the whole limit is not stored.
func (m *MemoryBackend) Set(_ context.Context, key string, val []byte, p Policy) error {
	weight := p.Weight
	if weight <= 0 {
		weight = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		m.removeElement(el)
	}
	if weight > m.limit {
		return nil
	}

	now := m.now()
	e := &memEntry{
		key:        key,
		val:        val,
		weight:     weight,
		sliding:    p.Sliding,
		lastAccess: now,
	}
	if p.Absolute > 0 {
		e.deadline = now.Add(p.Absolute)
	}
	m.items[key] = m.ll.PushFront(e)
	m.size += weight

	for m.size > m.limit {
		back := m.ll.Back()
		if back == nil {
			break
		}
		m.removeElement(back)
		metrics.CacheEvictionsTotal.Inc()
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if el, ok := m.items[k]; ok {
			m.removeElement(el)
		}
	}
	return nil
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }

// Len returns the number of stored entries, expired or not.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

// Size returns the current total weight.
func (m *MemoryBackend) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// caller holds m.mu
func (m *MemoryBackend) removeElement(el *list.Element) {
	e := m.ll.Remove(el).(*memEntry)
	delete(m.items, e.key)
	m.size -= e.weight
}
