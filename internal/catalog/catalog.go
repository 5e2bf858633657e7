// Package catalog resolves (model, parameter, level, time_query) tuples to
// dataset descriptors (spec.md §4.3), with the tie-break rules the render
// path depends on to pick one dataset when several match a query.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/weathertiles/core/internal/geo"
	"github.com/weathertiles/core/internal/projection"
	"github.com/weathertiles/core/internal/tile"
)

// ErrNotFound is returned (wrapped in errkind.NoData by the caller) when no
// descriptor matches a Query.
var ErrNotFound = errors.New("catalog: no matching dataset")

// Descriptor is the immutable dataset descriptor of spec.md §3, published
// by the ingestion collaborator. Never updated in place.
type Descriptor struct {
	ID              string // opaque identifier, unique per (Model, Parameter, Level, ReferenceTime, ValidTime)
	Model           string
	Parameter       string
	Level           string
	ReferenceTime   time.Time
	ValidTime       time.Time
	InsertedAt      time.Time
	BBox            geo.BoundingBox
	GridShape       [2]int // [ny, nx]
	ChunkShape      [2]int // [chunk_h, chunk_w]
	Codec           string // "zstd" or "gzip"
	FillValue       float32
	Projection      projection.Descriptor
	StoragePrefix   string
	// DataType is "float32" or "float64" (spec.md §6). Empty defers to
	// <StoragePrefix>/zarr.json, or "float32" if that's absent too.
	DataType string
}

// Query identifies what the render path is asking for.
type Query struct {
	Model     string
	Parameter string
	Level     string
	Time      tile.TimeQuery
}

// Catalog is the read-only lookup contract the render path consumes.
// Production deployments plug in their own implementation (e.g. backed by
// Postgres); StaticCatalog below is the in-repo reference implementation.
type Catalog interface {
	Query(ctx context.Context, q Query) (Descriptor, error)
}

func matchesQuery(d Descriptor, q Query) bool {
	return d.Model == q.Model && d.Parameter == q.Parameter && d.Level == q.Level
}

// selectBest applies spec.md §4.3's time-query semantics and tie-breaks to
// a slice of candidates already filtered by (model, parameter, level).
func selectBest(candidates []Descriptor, tq tile.TimeQuery) (Descriptor, bool) {
	var filtered []Descriptor
	switch tq.Selector {
	case tile.TimeExact:
		for _, d := range candidates {
			if d.ReferenceTime.Equal(tq.ReferenceTime) {
				// ForecastOffset is encoded by the ingestion collaborator into
				// ValidTime = ReferenceTime + ForecastOffset; match on that.
				if d.ValidTime.Equal(tq.ReferenceTime.Add(tq.ForecastOffset)) {
					filtered = append(filtered, d)
				}
			}
		}
	case tile.TimeLatest:
		for _, d := range candidates {
			if !d.ValidTime.After(tq.ValidTime) {
				filtered = append(filtered, d)
			}
		}
	default: // Unspecified
		filtered = candidates
	}

	if len(filtered) == 0 {
		return Descriptor{}, false
	}

	best := filtered[0]
	for _, d := range filtered[1:] {
		if better(d, best, tq.Selector) {
			best = d
		}
	}
	return best, true
}

// better reports whether candidate should replace current as the winner,
// applying spec.md §4.3's selection + tie-break rules.
func better(candidate, current Descriptor, selector tile.TimeSelector) bool {
	if selector == tile.TimeLatest || selector == tile.TimeUnspecified {
		if !candidate.ValidTime.Equal(current.ValidTime) {
			return candidate.ValidTime.After(current.ValidTime)
		}
	}
	if !candidate.ReferenceTime.Equal(current.ReferenceTime) {
		return candidate.ReferenceTime.After(current.ReferenceTime)
	}
	return candidate.InsertedAt.After(current.InsertedAt)
}
