package tile

import (
	"fmt"
	"hash/maphash"
)

// fingerprintSeed is fixed for the process lifetime so that Hash is stable
// within a single run; fingerprints are never persisted across processes,
// so a process-wide random seed (rather than a hardcoded one) is fine and
// avoids accidental cross-dataset hash collisions becoming load-bearing.
var fingerprintSeed = maphash.MakeSeed()

// Fingerprint is the stable, hashable key identifying the exact pixel
// output of a tile request (spec.md §3). It is a pure function of its
// fields: no wall-clock time, no per-process identifier beyond what's
// baked into its own Key/Hash.
type Fingerprint struct {
	LayerID         string
	StyleID         string
	TileMatrixSetID string
	Zoom            uint32
	Col             uint32
	Row             uint32
	Time            TimeQuery
	Elevation       *float64 // nil means "no elevation axis"
}

// Key returns a canonical, order-invariant string encoding of the
// fingerprint. Two fingerprints with identical components always produce
// the same Key; any single differing component changes it.
func (f Fingerprint) Key() string {
	elev := "none"
	if f.Elevation != nil {
		elev = fmt.Sprintf("%g", *f.Elevation)
	}
	return fmt.Sprintf("%s|%s|%s|%d|%d|%d|%s|%s",
		f.LayerID, f.StyleID, f.TileMatrixSetID, f.Zoom, f.Col, f.Row, f.Time.key(), elev)
}

// Hash returns a process-stable 64-bit hash of Key, suitable for sharding
// caches across shards without taking a lock on a shared hasher.
func (f Fingerprint) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(fingerprintSeed)
	_, _ = h.WriteString(f.Key())
	return h.Sum64()
}

// Coords returns the tile coordinate component of the fingerprint.
func (f Fingerprint) Coords() Coords {
	return Coords{Z: f.Zoom, X: f.Col, Y: f.Row}
}

// NeighborsSameZoom returns the (up to) 8 tiles surrounding this fingerprint's
// tile at the same zoom level, keeping every other field identical. Out-of-range
// tiles (negative column/row) are omitted.
func (f Fingerprint) NeighborsSameZoom() []Fingerprint {
	return f.NeighborsWithinRadius(1)
}

// NeighborsWithinRadius returns every same-zoom tile within radius rings of
// this fingerprint's tile (a (2*radius+1)^2-1 square, radius=1 giving the
// usual 8 immediate neighbors), keeping every other field identical.
// Out-of-range tiles (negative column/row, or beyond the zoom level's
// extent) are omitted. radius <= 0 returns nil.
func (f Fingerprint) NeighborsWithinRadius(radius int) []Fingerprint {
	if radius <= 0 {
		return nil
	}
	var out []Fingerprint
	n := uint32(1) << f.Zoom
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			col := int64(f.Col) + int64(dx)
			row := int64(f.Row) + int64(dy)
			if col < 0 || row < 0 || col >= int64(n) || row >= int64(n) {
				continue
			}
			nf := f
			nf.Col = uint32(col)
			nf.Row = uint32(row)
			out = append(out, nf)
		}
	}
	return out
}

// ParentZoomSiblings returns the 4 tiles at zoom-1 forming the 2x2 quad
// that contains this fingerprint's parent tile (the parent and its three
// siblings), keeping every other field identical. Returns nil at zoom 0.
func (f Fingerprint) ParentZoomSiblings() []Fingerprint {
	if f.Zoom == 0 {
		return nil
	}
	parentZoom := f.Zoom - 1
	parentCol := f.Col / 2
	parentRow := f.Row / 2
	// The four tiles forming the 2x2 quad at the parent zoom level containing
	// the parent tile, per spec.md §4.7.
	quadBaseCol := (parentCol / 2) * 2
	quadBaseRow := (parentRow / 2) * 2
	n := uint32(1) << parentZoom
	var out []Fingerprint
	for dy := uint32(0); dy < 2; dy++ {
		for dx := uint32(0); dx < 2; dx++ {
			col := quadBaseCol + dx
			row := quadBaseRow + dy
			if col >= n || row >= n {
				continue
			}
			nf := f
			nf.Zoom = parentZoom
			nf.Col = col
			nf.Row = row
			out = append(out, nf)
		}
	}
	return out
}
