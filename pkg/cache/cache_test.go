package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet(t *testing.T) {
	c := New(Options[string]{MaxEntries: 10})

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	c.Set("k", "v2")
	got, _ = c.Get("k")
	assert.Equal(t, "v2", got)
	assert.Equal(t, 1, c.Len())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(Options[int]{MaxEntries: 3})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch "a" so "b" becomes the coldest entry.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4)

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	_, ok = c.Get("d")
	assert.True(t, ok)
	assert.Equal(t, 3, c.Len())
}

func TestByteBudgetEviction(t *testing.T) {
	c := New(Options[[]float32]{
		MaxBytes: 40, // room for two 4-dim vectors plus change
		SizeOf:   Float32SliceBytes,
	})

	vec := []float32{1, 2, 3, 4} // 16 bytes
	c.Set("a", vec)
	c.Set("b", vec)
	assert.Equal(t, int64(32), c.CurrentBytes())

	c.Set("c", vec) // 48 bytes > 40: "a" goes
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(32), c.CurrentBytes())
	assert.Equal(t, 2, c.Len())
}

func TestDeleteAndClear(t *testing.T) {
	c := New(Options[int]{MaxEntries: 10})
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Delete("never-there") // no-op

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.CurrentBytes())
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestUnboundedWhenNoLimits(t *testing.T) {
	c := New(Options[int]{})
	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	assert.Equal(t, 1000, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(Options[int]{MaxEntries: 64})
	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%32)
				c.Set(key, g*1000+i)
				c.Get(key)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	assert.LessOrEqual(t, c.Len(), 64)
}
