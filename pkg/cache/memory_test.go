package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID     uint64
	Source string
	Score  float64
}

func TestMemoryCache_Basic(t *testing.T) {
	c := NewMemoryCache[uint64, record]()

	r := record{ID: 1, Source: "BBC", Score: 7.5}
	c.Set(1, r)

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, r, got)
	assert.Equal(t, 1, c.Len())

	c.Set(1, record{ID: 1, Source: "Reuters"})
	got, _ = c.Get(1)
	assert.Equal(t, "Reuters", got.Source)
	assert.Equal(t, 1, c.Len())

	c.Del(1)
	_, ok = c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Range(t *testing.T) {
	c := NewMemoryCache[uint64, record]()
	for i := uint64(1); i <= 5; i++ {
		c.Set(i, record{ID: i, Score: float64(i)})
	}

	var sum float64
	c.Range(func(_ uint64, r record) bool {
		sum += r.Score
		return true
	})
	assert.Equal(t, 15.0, sum)

	visited := 0
	c.Range(func(uint64, record) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache[uint64, record]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			c.Set(id, record{ID: id, Source: "src"})
			_, _ = c.Get(id)
			c.Range(func(uint64, record) bool { return true })
		}(uint64(i))
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}
