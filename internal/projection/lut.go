package projection

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/weathertiles/core/internal/projection/lutfile"
)

// lutKey identifies one loaded table.
type lutKey struct {
	satelliteID string
	zoom        uint32
}

// LUT holds zero or more precomputed geostationary reverse-projection
// tables, keyed by (satellite_id, zoom). Each table is read-only once
// loaded; loading happens lazily inside Lookup under mu, and the resampler
// only ever calls Lookup from render-path goroutines.
type LUT struct {
	dir string

	mu     sync.RWMutex
	tables map[lutKey]*lutfile.Table
}

// NewLUT creates an empty LUT rooted at dir (projection_lut_dir, spec.md
// §6). Tables are loaded lazily on first Lookup for a given
// (satelliteID, zoom), then kept for the process lifetime.
func NewLUT(dir string) *LUT {
	return &LUT{dir: dir, tables: make(map[lutKey]*lutfile.Table)}
}

func (l *LUT) path(satelliteID string, zoom uint32) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s_z%d.lut", satelliteID, zoom))
}

func (l *LUT) table(satelliteID string, zoom uint32) *lutfile.Table {
	key := lutKey{satelliteID, zoom}

	l.mu.RLock()
	t, ok := l.tables[key]
	l.mu.RUnlock()
	if ok {
		return t // nil is a valid cached "no table for this key" result
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.tables[key]; ok {
		return t
	}

	loaded, err := lutfile.Load(l.path(satelliteID, zoom))
	if err != nil {
		l.tables[key] = nil // cache the miss too, avoid re-stat'ing every tile
		return nil
	}
	l.tables[key] = loaded
	return loaded
}

// Lookup substitutes steps 1-2 of spec.md §4.5 for a geostationary
// descriptor when a table is present for (satelliteID, zoom); ok is false
// on any miss (no table, pixel out of range, or footprint edge), in which
// case the caller must fall back to on-the-fly Reverse.
func (l *LUT) Lookup(satelliteID string, zoom, tileCol, tileRow, pixelI, pixelJ uint32) (yf, xf float64, ok bool) {
	t := l.table(satelliteID, zoom)
	if t == nil {
		return 0, 0, false
	}
	return t.Lookup(tileRow, tileCol, pixelI, pixelJ)
}
