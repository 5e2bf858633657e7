// Package cache implements the L1 (in-process) and L2 (shared) tiers of the
// tile cache hierarchy described in spec.md §4.1, plus the memory-pressure
// estimator that drives eviction across L1 and the chunk cache (L3, which
// lives in package grid since it caches chunks rather than tiles).
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const shardCount = 16

// entryOverheadBytes charges a small fixed cost per entry on top of its PNG
// byte length, per spec.md §4.1 ("the sizer charges the byte length of the
// PNG plus a small fixed overhead").
const entryOverheadBytes = 128

// Entry is what L1 stores per fingerprint.
type Entry struct {
	PNG         []byte
	ContentType string
	IngestedAt  time.Time
	// ExpiresAt is non-zero only for the NoData short-TTL override
	// (spec.md §7); a zero value means "no explicit expiry, rely on LRU".
	ExpiresAt time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

func (e *Entry) size() int64 {
	return int64(len(e.PNG)) + entryOverheadBytes
}

type shard struct {
	mu      sync.RWMutex
	entries *lru.Cache[string, *Entry]
	bytes   int64
}

// L1 is a sharded, byte-budgeted, LRU-evicted in-process tile cache. Reads
// never block on a writer to a different shard; within a shard a read takes
// only a brief RLock, matching spec.md §4.1's non-blocking hit path.
type L1 struct {
	shards     [shardCount]*shard
	budgetByte int64
	onEvict    func(size int64) // notifies the pressure estimator
}

// NewL1 creates an L1 cache with the given total byte budget spread evenly
// across shards. A very large per-shard capacity is used for the LRU's own
// entry-count ceiling since eviction is actually driven by the byte budget
// via Insert's post-insert check, not by hashicorp/golang-lru's count limit.
func NewL1(totalBudgetBytes int64) *L1 {
	c := &L1{budgetByte: totalBudgetBytes}
	for i := range c.shards {
		// 1<<20 is a generous count ceiling; byte budget is the real limit.
		l, _ := lru.New[string, *Entry](1 << 20)
		c.shards[i] = &shard{entries: l}
	}
	return c
}

func (c *L1) shardFor(hash uint64) *shard {
	return c.shards[hash%shardCount]
}

// Get returns the cached entry for key, or (nil, false) on miss or expiry.
func (c *L1) Get(hash uint64, key string) (*Entry, bool) {
	s := c.shardFor(hash)
	s.mu.RLock()
	e, ok := s.entries.Get(key)
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		c.Delete(hash, key)
		return nil, false
	}
	return e, true
}

// Insert stores an entry and evicts within the shard until it fits the
// proportional byte budget, then reports the signed size change to the
// pressure estimator (if one is wired via SetOnSizeChange).
func (c *L1) Insert(hash uint64, key string, e *Entry) {
	s := c.shardFor(hash)
	perShardBudget := c.budgetByte / shardCount

	s.mu.Lock()
	var replaced int64
	if old, ok := s.entries.Get(key); ok {
		s.bytes -= old.size()
		replaced = old.size()
	}
	s.entries.Add(key, e)
	s.bytes += e.size()

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

	if c.onEvict != nil && evicted > 0 {
		c.onEvict(-evicted)
	}
	if c.onEvict != nil {
		c.onEvict(e.size() - replaced)
	}
}

// Delete removes an entry if present.
func (c *L1) Delete(hash uint64, key string) {
	s := c.shardFor(hash)
	s.mu.Lock()
	if old, ok := s.entries.Get(key); ok {
		s.entries.Remove(key)
		s.bytes -= old.size()
		if c.onEvict != nil {
			defer c.onEvict(-old.size())
		}
	}
	s.mu.Unlock()
}

// SetOnSizeChange wires a callback invoked with the signed byte delta every
// time L1's resident size changes, used by the pressure estimator.
func (c *L1) SetOnSizeChange(fn func(delta int64)) {
	c.onEvict = fn
}

// TotalBytes returns L1's current resident size across all shards. Intended
// for tests and diagnostics; the pressure estimator uses the incremental
// SetOnSizeChange callback instead of polling this.
func (c *L1) TotalBytes() int64 {
	var total int64
	for _, s := range c.shards {
		s.mu.RLock()
		total += s.bytes
		s.mu.RUnlock()
	}
	return total
}

// EvictOldest evicts the oldest entry of the shard with the largest resident
// size (to keep shards roughly balanced), used by the memory-pressure
// eviction pass. Returns false if L1 is entirely empty.
func (c *L1) EvictOldest() bool {
	var target *shard
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
