package grid

import (
	"context"
	"fmt"
	"hash/maphash"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

var chunkCacheSeed = maphash.MakeSeed()

// chunkEntryOverheadBytes mirrors cache.entryOverheadBytes: a small fixed
// cost per resident chunk on top of its decompressed byte length.
const chunkEntryOverheadBytes = 64

// Chunk is a decompressed source-grid slab plus the metadata needed to
// interpret it.
type Chunk struct {
	Data   []float32 // row-major, length == chunk_h*chunk_w
	Height int
	Width  int
}

func (c Chunk) size() int64 {
	return int64(len(c.Data))*4 + chunkEntryOverheadBytes
}

const chunkShardCount = 16

type chunkShard struct {
	mu      sync.RWMutex
	entries *lru.Cache[string, Chunk]
	bytes   int64
}

// ChunkCache is the L3 tier (spec.md §4.1/§4.4): a sharded, byte-budgeted
// LRU of decompressed chunks, single-flighted per (dataset_id, cy, cx) so
// concurrent requests for the same chunk share one fetch.
type ChunkCache struct {
	shards     [chunkShardCount]*chunkShard
	budgetByte int64
	onEvict    func(delta int64)
	group      singleflight.Group
}

// NewChunkCache creates an L3 cache with the given total byte budget.
func NewChunkCache(totalBudgetBytes int64) *ChunkCache {
	c := &ChunkCache{budgetByte: totalBudgetBytes}
	for i := range c.shards {
		l, _ := lru.New[string, Chunk](1 << 20)
		c.shards[i] = &chunkShard{entries: l}
	}
	return c
}

func chunkKey(datasetID string, cy, cx int) string {
	return fmt.Sprintf("%s/%d/%d", datasetID, cy, cx)
}

func (c *ChunkCache) shardFor(key string) *chunkShard {
	var h maphash.Hash
	h.SetSeed(chunkCacheSeed)
	_, _ = h.WriteString(key)
	return c.shards[h.Sum64()%chunkShardCount]
}

// Get returns a cached chunk, or (Chunk{}, false) on miss.
func (c *ChunkCache) Get(key string) (Chunk, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Get(key)
}

// GetOrFetch returns the cached chunk for key, or calls fetch exactly once
// across all concurrent callers sharing that key, caching and returning
// its result.
func (c *ChunkCache) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (Chunk, error)) (Chunk, error) {
	if ch, ok := c.Get(key); ok {
		return ch, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if ch, ok := c.Get(key); ok {
			return ch, nil
		}
		ch, err := fetch(ctx)
		if err != nil {
			return Chunk{}, err
		}
		c.insert(key, ch)
		return ch, nil
	})
	if err != nil {
		return Chunk{}, err
	}
	return v.(Chunk), nil
}

func (c *ChunkCache) insert(key string, ch Chunk) {
	s := c.shardFor(key)
	perShardBudget := c.budgetByte / chunkShardCount

	s.mu.Lock()
	if old, ok := s.entries.Get(key); ok {
		s.bytes -= old.size()
	}
	s.entries.Add(key, ch)
	s.bytes += ch.size()

	var evicted int64
	for s.bytes > perShardBudget {
		_, old, ok := s.entries.RemoveOldest()
		if !ok {
			break
		}
		s.bytes -= old.size()
		evicted += old.size()
	}
	s.mu.Unlock()

	if c.onEvict != nil {
		if evicted > 0 {
			c.onEvict(-evicted)
		}
		c.onEvict(ch.size())
	}
}

// SetOnSizeChange wires a callback for the pressure estimator.
func (c *ChunkCache) SetOnSizeChange(fn func(delta int64)) {
	c.onEvict = fn
}

// EvictOldest implements cache.Evictor: evicts the single oldest chunk
// from the shard with the most resident bytes.
func (c *ChunkCache) EvictOldest() bool {
	var target *chunkShard
	var maxBytes int64 = -1
	for _, s := range c.shards {
		s.mu.RLock()
		b := s.bytes
		s.mu.RUnlock()
		if b > maxBytes {
			maxBytes = b
			target = s
		}
	}
	if target == nil || maxBytes <= 0 {
		return false
	}
	target.mu.Lock()
	_, old, ok := target.entries.RemoveOldest()
	if ok {
		target.bytes -= old.size()
	}
	target.mu.Unlock()
	if ok && c.onEvict != nil {
		c.onEvict(-old.size())
	}
	return ok
}
