package prefetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/weathertiles/core/internal/tile"
	"github.com/weathertiles/core/internal/worker"
)

// LayerStyle names one (layer, style) pair the warmer enumerates tiles for.
type LayerStyle struct {
	LayerID         string
	StyleID         string
	TileMatrixSetID string
}

// PressureChecker reports whether the cache is currently under memory
// pressure; the warmer yields rather than adding more resident bytes while
// it is active.
type PressureChecker interface {
	Active() bool
}

// WarmStats summarizes one warming run, surfaced for observability.
type WarmStats struct {
	Submitted int
	Failed    int
	Yielded   int // number of times the warmer paused for memory pressure
}

// Warmer enumerates every tile fingerprint for a configured set of
// (layer, style) pairs up to a zoom ceiling and submits them through a
// bounded worker pool at startup (spec.md §4.7).
type Warmer struct {
	pool     *worker.Pool
	pressure PressureChecker
	maxZoom  uint32
	layers   []LayerStyle
	log      *slog.Logger
}

// WarmerConfig configures the Warmer.
type WarmerConfig struct {
	Submitter worker.Submitter
	Workers   int
	Pressure  PressureChecker
	MaxZoom   uint32 // cache_warming_max_zoom
	Layers    []LayerStyle
	Logger    *slog.Logger
}

// NewWarmer constructs a Warmer.
func NewWarmer(cfg WarmerConfig) *Warmer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Warmer{
		pool:     worker.New(worker.Config{Workers: cfg.Workers, Submitter: cfg.Submitter}),
		pressure: cfg.Pressure,
		maxZoom:  cfg.MaxZoom,
		layers:   cfg.Layers,
		log:      logger,
	}
}

// Run enumerates and submits every tile in the configured (layer, style)
// list up to maxZoom, zoom level by zoom level. Memory pressure is checked
// before each level starts; while it is active the warmer waits (in
// one-second steps) instead of starting the next, larger level.
func (w *Warmer) Run(ctx context.Context) WarmStats {
	var stats WarmStats

	for _, ls := range w.layers {
		for zoom := uint32(0); zoom <= w.maxZoom; zoom++ {
			if ctx.Err() != nil {
				return stats
			}
			for w.pressure != nil && w.pressure.Active() {
				stats.Yielded++
				select {
				case <-ctx.Done():
					return stats
				case <-time.After(time.Second):
				}
			}

			tasks := tasksForZoom(ls, zoom)
			results := w.pool.Run(ctx, tasks)
			for _, r := range results {
				stats.Submitted++
				if r.Err != nil {
					stats.Failed++
					w.log.Debug("cache warming build failed", "key", r.Task.Fingerprint.Key(), "error", r.Err)
				}
			}
		}
	}
	return stats
}

func tasksForZoom(ls LayerStyle, zoom uint32) []worker.Task {
	n := uint32(1) << zoom
	tasks := make([]worker.Task, 0, n*n)
	for row := uint32(0); row < n; row++ {
		for col := uint32(0); col < n; col++ {
			tasks = append(tasks, worker.Task{Fingerprint: tile.Fingerprint{
				LayerID:         ls.LayerID,
				StyleID:         ls.StyleID,
				TileMatrixSetID: ls.TileMatrixSetID,
				Zoom:            zoom,
				Col:             col,
				Row:             row,
				Time:            tile.Unspecified(),
			}})
		}
	}
	return tasks
}
