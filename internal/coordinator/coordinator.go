// Package coordinator implements the single-flight render coordinator of
// spec.md §4.2/§5: at most one build runs per tile fingerprint at a time,
// every concurrent waiter is handed the same result, and a waiter abandoning
// its request (context cancellation) never cancels the build itself.
package coordinator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weathertiles/core/internal/cache"
	"github.com/weathertiles/core/internal/engine/errkind"
	"github.com/weathertiles/core/internal/render"
	"github.com/weathertiles/core/internal/tile"
)

// Tier identifies where a response came from.
type Tier int

const (
	TierMiss Tier = iota
	TierL1
	TierL2
)

// Result is what a BuildFunc produces and what GetOrBuild returns.
type Result struct {
	PNG         []byte
	ContentType string
}

func (r Result) size() int64 { return int64(len(r.PNG)) }

// BuildFunc renders a tile from scratch. It is always invoked with a
// context derived from context.Background() bounded by the coordinator's
// build deadline — never the caller's context — so one waiter giving up
// never cancels a build other callers are also waiting on.
type BuildFunc func(ctx context.Context, fp tile.Fingerprint) (Result, error)

// noDataCacheTTL is the short TTL NoData results get in L1, per spec.md §7.
const noDataCacheTTL = 30 * time.Second

// Coordinator sits in front of the cache hierarchy and a BuildFunc,
// collapsing concurrent requests for the same fingerprint into one build.
type Coordinator struct {
	l1       *cache.L1
	l2       cache.Shared
	build    BuildFunc
	deadline time.Duration

	group singleflight.Group

	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

// Config bundles the coordinator's dependencies and tuning knobs.
type Config struct {
	L1            *cache.L1
	L2            cache.Shared
	Build         BuildFunc
	BuildDeadline time.Duration // build_deadline_secs, spec.md §6
}

// New constructs a Coordinator. L2 may be cache.Null{} when no shared cache
// is configured.
func New(cfg Config) *Coordinator {
	deadline := cfg.BuildDeadline
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	l2 := cfg.L2
	if l2 == nil {
		l2 = cache.Null{}
	}
	return &Coordinator{
		l1:       cfg.L1,
		l2:       l2,
		build:    cfg.Build,
		deadline: deadline,
	}
}

// GetOrBuild returns a rendered tile for fp, checking L1 then L2 before
// collapsing concurrent misses into a single build. ctx governs how long
// THIS caller is willing to wait, not the build itself.
func (c *Coordinator) GetOrBuild(ctx context.Context, fp tile.Fingerprint) (Result, Tier, error) {
	key := fp.Key()
	hash := fp.Hash()

	if entry, ok := c.l1.Get(hash, key); ok {
		return Result{PNG: entry.PNG, ContentType: entry.ContentType}, TierL1, nil
	}

	if raw, ok, err := c.l2.Get(ctx, key); err == nil && ok {
		res := Result{PNG: raw, ContentType: "image/png"}
		c.l1.Insert(hash, key, &cache.Entry{PNG: raw, ContentType: "image/png", IngestedAt: time.Now()})
		return res, TierL2, nil
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return Result{}, TierMiss, errkind.New(errkind.Shutdown, nil)
	}
	c.mu.Unlock()

	// inflight is incremented once per actual build (inside the function
	// singleflight runs), not once per caller joining it — DoChan shares one
	// execution across every concurrent caller for the same key.
	ch := c.group.DoChan(key, func() (any, error) {
		c.inflight.Add(1)
		defer c.inflight.Done()
		buildCtx, cancel := context.WithTimeout(context.Background(), c.deadline)
		defer cancel()

		res, err := c.build(buildCtx, fp)
		if err != nil {
			if buildCtx.Err() == context.DeadlineExceeded && errkind.Of(err) != errkind.Timeout {
				err = errkind.New(errkind.Timeout, err)
			}
			if errkind.Of(err).Cacheable() {
				// NoData still needs real tile bytes: spec.md §7 asks for a
				// transparent tile, not an empty response, and this is what
				// every subsequent L1 hit for this fingerprint will hand out.
				if res.PNG == nil {
					res.PNG = render.TransparentTile()
					res.ContentType = "image/png"
				}
				c.l1.Insert(hash, key, &cache.Entry{
					PNG:         res.PNG,
					ContentType: res.ContentType,
					IngestedAt:  time.Now(),
					ExpiresAt:   time.Now().Add(noDataCacheTTL),
				})
			}
			return res, err
		}

		c.l1.Insert(hash, key, &cache.Entry{PNG: res.PNG, ContentType: res.ContentType, IngestedAt: time.Now()})
		c.l2.Set(context.WithoutCancel(ctx), key, res.PNG, 0)
		return res, nil
	})

	select {
	case r := <-ch:
		res, _ := r.Val.(Result)
		if r.Err != nil {
			return res, TierMiss, r.Err
		}
		return res, TierMiss, nil
	case <-ctx.Done():
		// This caller gave up; the build above keeps running for any other
		// waiter (or to populate the cache for the next request) since it
		// was started against buildCtx, not ctx.
		return Result{}, TierMiss, ctx.Err()
	}
}

// Close stops accepting new builds and waits, up to grace, for in-flight
// singleflight calls to finish. Stragglers past grace are abandoned (their
// goroutines still run to completion but Close no longer waits on them);
// any new GetOrBuild call after Close begins returns errkind.Shutdown.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errkind.New(errkind.Shutdown, ctx.Err())
	}
}
