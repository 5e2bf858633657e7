package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/weathertiles/core/internal/tile"
)

// queryCacheTTL is the short-TTL memoization window spec.md §4.3 calls for
// (default 30s, to amortize repeated lookups from neighbor tiles).
const queryCacheTTL = 30 * time.Second

// StaticCatalog is the in-repo reference Catalog: an in-memory slice of
// descriptors, typically populated at init time from the ingestion
// collaborator's JSON manifest. Production deployments are expected to
// supply their own Catalog (e.g. Postgres-backed) — that's out of scope
// here, same as spec.md says.
type StaticCatalog struct {
	mu          sync.RWMutex
	descriptors []Descriptor

	queryCache *lru.LRU[string, Descriptor]
}

// NewStaticCatalog constructs a StaticCatalog from an initial descriptor
// set (may be empty and populated later via Load).
func NewStaticCatalog(descriptors []Descriptor) *StaticCatalog {
	return &StaticCatalog{
		descriptors: append([]Descriptor(nil), descriptors...),
		queryCache:  lru.NewLRU[string, Descriptor](4096, nil, queryCacheTTL),
	}
}

// Load replaces the descriptor set wholesale and invalidates the query
// cache, used when the ingestion collaborator publishes a fresh manifest.
func (c *StaticCatalog) Load(descriptors []Descriptor) {
	c.mu.Lock()
	c.descriptors = append([]Descriptor(nil), descriptors...)
	c.mu.Unlock()
	c.queryCache.Purge()
}

func cacheKey(q Query) string {
	return fmt.Sprintf("%s|%s|%s|%s", q.Model, q.Parameter, q.Level, queryTimeKey(q.Time))
}

func queryTimeKey(tq tile.TimeQuery) string {
	switch tq.Selector {
	case tile.TimeExact:
		return fmt.Sprintf("exact:%d:%d", tq.ReferenceTime.UnixNano(), tq.ForecastOffset)
	case tile.TimeLatest:
		return fmt.Sprintf("latest:%d", tq.ValidTime.UnixNano())
	default:
		return "unspecified"
	}
}

// Query resolves q to the matching Descriptor, per spec.md §4.3's
// selection and tie-break rules. Returns ErrNotFound when nothing matches.
func (c *StaticCatalog) Query(ctx context.Context, q Query) (Descriptor, error) {
	key := cacheKey(q)
	if d, ok := c.queryCache.Get(key); ok {
		return d, nil
	}

	c.mu.RLock()
	var candidates []Descriptor
	for _, d := range c.descriptors {
		if matchesQuery(d, q) {
			candidates = append(candidates, d)
		}
	}
	c.mu.RUnlock()

	best, ok := selectBest(candidates, q.Time)
	if !ok {
		return Descriptor{}, ErrNotFound
	}

	c.queryCache.Add(key, best)
	return best, nil
}
