package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrLoad(t *testing.T) {
	c := New[string](4, time.Minute)
	key := Key{Manufacturer: "sedus", Series: "ai"}

	loads := 0
	load := func() (string, error) {
		loads++
		return "model", nil
	}

	v, err := c.GetOrLoad(key, load)
	require.NoError(t, err)
	assert.Equal(t, "model", v)
	assert.Equal(t, 1, loads)

	// Second call is served from the cache.
	v, err = c.GetOrLoad(key, load)
	require.NoError(t, err)
	assert.Equal(t, "model", v)
	assert.Equal(t, 1, loads)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestGetOrLoadError(t *testing.T) {
	c := New[string](4, time.Minute)
	key := Key{Manufacturer: "m", Series: "s"}

	wantErr := errors.New("boom")
	_, err := c.GetOrLoad(key, func() (string, error) { return "", wantErr })
	require.ErrorIs(t, err, wantErr)

	// Failed loads are not cached.
	v, err := c.GetOrLoad(key, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestConcurrentLoadsCollapse(t *testing.T) {
	c := New[int](4, time.Minute)
	key := Key{Manufacturer: "m", Series: "s"}

	var loads atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(key, func() (int, error) {
				loads.Add(1)
				time.Sleep(10 * time.Millisecond)
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), loads.Load(), "concurrent loads for one key collapse")
}

func TestTTLExpiry(t *testing.T) {
	c := New[string](4, 30*time.Millisecond)
	key := Key{Manufacturer: "m", Series: "s"}
	c.Add(key, "v")

	_, ok := c.Get(key)
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry expired after TTL")
}

func TestEntryBound(t *testing.T) {
	c := New[int](2, time.Minute)
	c.Add(Key{Series: "a"}, 1)
	c.Add(Key{Series: "b"}, 2)
	c.Add(Key{Series: "c"}, 3)
	assert.LessOrEqual(t, c.Len(), 2, "soft bound evicts the oldest entry")

	_, ok := c.Get(Key{Series: "a"})
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	c := New[int](4, time.Minute)
	c.Add(Key{Series: "a"}, 1)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
