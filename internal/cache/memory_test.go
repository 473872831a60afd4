package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemory(limit int64) (*MemoryBackend, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemoryBackend(limit)
	m.now = clk.now
	return m, clk
}

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(10)

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "a", []byte("1"), Policy{Weight: 1}))
	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, m.Delete(ctx, "a", "never-set"))
	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, int64(0), m.Size())
}

func TestMemory_SlidingExpiry(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory(10)
	require.NoError(t, m.Set(ctx, "k", []byte("v"), Policy{Absolute: time.Minute, Sliding: 10 * time.Second}))

	// Each read within the window keeps the entry alive.
	for i := 0; i < 3; i++ {
		clk.advance(9 * time.Second)
		_, err := m.Get(ctx, "k")
		require.NoError(t, err)
	}

	clk.advance(10 * time.Second)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_AbsoluteExpiryWinsOverReads(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory(10)
	require.NoError(t, m.Set(ctx, "k", []byte("v"), Policy{Absolute: 20 * time.Second, Sliding: 10 * time.Second}))

	clk.advance(8 * time.Second)
	_, err := m.Get(ctx, "k")
	require.NoError(t, err)
	clk.advance(8 * time.Second)
	_, err = m.Get(ctx, "k")
	require.NoError(t, err)

	clk.advance(4 * time.Second)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_WeightedEviction(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(5)

	require.NoError(t, m.Set(ctx, "a", []byte("a"), Policy{Weight: 2}))
	require.NoError(t, m.Set(ctx, "b", []byte("b"), Policy{Weight: 2}))
	// Touch a so b becomes least recently used.
	_, err := m.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "c", []byte("c"), Policy{Weight: 3}))

	_, err = m.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = m.Get(ctx, "c")
	assert.NoError(t, err)
	assert.Equal(t, int64(5), m.Size())
}

func TestMemory_OversizedEntryNotStored(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(3)
	require.NoError(t, m.Set(ctx, "small", []byte("s"), Policy{Weight: 1}))
	require.NoError(t, m.Set(ctx, "huge", []byte("h"), Policy{Weight: 4}))

	_, err := m.Get(ctx, "huge")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "small")
	assert.NoError(t, err)
}

func TestMemory_ReplaceAdjustsSize(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(10)
	require.NoError(t, m.Set(ctx, "k", []byte("1"), Policy{Weight: 4}))
	require.NoError(t, m.Set(ctx, "k", []byte("2"), Policy{Weight: 1}))

	assert.Equal(t, int64(1), m.Size())
	assert.Equal(t, 1, m.Len())
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}
