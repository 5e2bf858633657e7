package grid

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkCacheGetOrFetchCallsFetchOnce(t *testing.T) {
	c := NewChunkCache(1 << 20)
	var calls atomic.Int32
	start := make(chan struct{})

	const n = 8
	results := make(chan Chunk, n)
	for i := 0; i < n; i++ {
		go func() {
			ch, err := c.GetOrFetch(context.Background(), "ds/0/0", func(ctx context.Context) (Chunk, error) {
				calls.Add(1)
				<-start
				return Chunk{Data: []float32{1, 2, 3, 4}, Height: 2, Width: 2}, nil
			})
			require.NoError(t, err)
			results <- ch
		}()
	}
	time.Sleep(30 * time.Millisecond)
	close(start)

	for i := 0; i < n; i++ {
		ch := <-results
		assert.Equal(t, []float32{1, 2, 3, 4}, ch.Data)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestChunkCacheSecondGetIsAHit(t *testing.T) {
	c := NewChunkCache(1 << 20)
	var calls atomic.Int32

	fetch := func(ctx context.Context) (Chunk, error) {
		calls.Add(1)
		return Chunk{Data: []float32{1}, Height: 1, Width: 1}, nil
	}
	_, err := c.GetOrFetch(context.Background(), "ds/0/0", fetch)
	require.NoError(t, err)
	_, err = c.GetOrFetch(context.Background(), "ds/0/0", fetch)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestChunkCacheEvictOldest(t *testing.T) {
	c := NewChunkCache(1 << 20)
	c.insert("ds/0/0", Chunk{Data: []float32{1}, Height: 1, Width: 1})
	assert.True(t, c.EvictOldest())
	assert.False(t, c.EvictOldest())
}
