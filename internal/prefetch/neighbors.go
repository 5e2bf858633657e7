// Package prefetch implements the neighbor-tile prefetcher and startup
// cache warmer of spec.md §4.7: background work that keeps the cache warm
// ahead of a panning client, sharing the live coordinator and worker pool
// abstractions rather than a separate code path.
package prefetch

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/weathertiles/core/internal/tile"
	"github.com/weathertiles/core/internal/worker"
)

// Neighbors enqueues the same-zoom ring (8 tiles at the default radius of
// 1) and 4 parent-zoom siblings of a successfully built fingerprint,
// rate-limited and run through a bounded worker pool — every enqueued
// build shares the exact coordinator path the live request handler uses,
// so it benefits from (and contributes to) the same single-flight
// collapsing and cache fill.
type Neighbors struct {
	pool    *worker.Pool
	limiter *rate.Limiter
	minZoom uint32
	maxZoom uint32
	rings   int
	log     *slog.Logger
}

// Config configures the prefetcher.
type Config struct {
	Submitter     worker.Submitter
	Workers       int
	RatePerSecond float64 // prefetch requests/sec, default 20
	Burst         int     // default 2x rate
	MinZoom       uint32  // prefetch_min_zoom
	MaxZoom       uint32  // prefetch_max_zoom
	Rings         int     // prefetch_rings: same-zoom ring radius, default 1 (the 8 immediate neighbors)
	Logger        *slog.Logger
}

// New constructs a Neighbors prefetcher.
func New(cfg Config) *Neighbors {
	ratePerSec := cfg.RatePerSecond
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(ratePerSec * 2)
	}
	rings := cfg.Rings
	if rings <= 0 {
		rings = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Neighbors{
		pool:    worker.New(worker.Config{Workers: cfg.Workers, Submitter: cfg.Submitter}),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		minZoom: cfg.MinZoom,
		maxZoom: cfg.MaxZoom,
		rings:   rings,
		log:     logger,
	}
}

// OnBuildSuccess enqueues fp's same-zoom neighbors and parent-zoom siblings
// for background prefetch. It never blocks the caller on the prefetch
// builds themselves finishing — only on acquiring enough rate-limiter
// tokens to submit the (bounded) batch — and any per-tile failure is
// logged and otherwise silent, per spec.md §4.7.
func (n *Neighbors) OnBuildSuccess(ctx context.Context, fp tile.Fingerprint) {
	candidates := append(fp.NeighborsWithinRadius(n.rings), fp.ParentZoomSiblings()...)

	tasks := make([]worker.Task, 0, len(candidates))
	for _, c := range candidates {
		if c.Zoom < n.minZoom || (n.maxZoom > 0 && c.Zoom > n.maxZoom) {
			continue
		}
		if err := n.limiter.Wait(ctx); err != nil {
			n.log.Debug("prefetch rate limiter wait aborted", "reason", err)
			return
		}
		tasks = append(tasks, worker.Task{Fingerprint: c})
	}
	if len(tasks) == 0 {
		return
	}

	results := n.pool.Run(ctx, tasks)
	for _, r := range results {
		if r.Err != nil {
			n.log.Debug("prefetch neighbor build failed", "key", r.Task.Fingerprint.Key(), "error", r.Err)
		}
	}
}
