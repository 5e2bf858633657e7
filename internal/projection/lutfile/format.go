// Package lutfile implements the deterministic binary format for
// precomputed geostationary reverse-projection lookup tables (spec.md
// §4.5, resolved as an open question in DESIGN.md): one file per
// (satellite_id, zoom), holding a (yf, xf) pair for every pixel of every
// tile in a fixed tile matrix set at that zoom level.
package lutfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// magic identifies the format; its trailing version digits let a future
// incompatible layout be rejected cleanly instead of silently misread.
const (
	magic          = "WTLUT001"
	tileSizePixels = 256
)

// Header describes a single LUT file's shape.
type Header struct {
	TilesPerAxis uint32 // 2^zoom
	TileSize     uint32 // pixels per tile edge
}

// Write serializes one (yf, xf) pair per pixel, in row-major order over
// (tile_row, tile_col, pixel_i, pixel_j), to w, after the magic and the
// two header fields. A pixel for which lookup reports defined=false is
// outside the satellite footprint and is written as (NaN, NaN).
func Write(w io.Writer, h Header, lookup func(tileRow, tileCol, pixelI, pixelJ uint32) (yf, xf float64, defined bool)) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(magic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, h.TilesPerAxis); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, h.TileSize); err != nil {
		return err
	}

	for tr := uint32(0); tr < h.TilesPerAxis; tr++ {
		for tc := uint32(0); tc < h.TilesPerAxis; tc++ {
			for pi := uint32(0); pi < h.TileSize; pi++ {
				for pj := uint32(0); pj < h.TileSize; pj++ {
					yf, xf, ok := lookup(tr, tc, pi, pj)
					if !ok {
						yf, xf = math.NaN(), math.NaN()
					}
					if err := binary.Write(bw, binary.LittleEndian, float32(yf)); err != nil {
						return err
					}
					if err := binary.Write(bw, binary.LittleEndian, float32(xf)); err != nil {
						return err
					}
				}
			}
		}
	}
	return bw.Flush()
}

// Table is a loaded, read-only LUT.
type Table struct {
	Header
	// values holds (yf, xf) pairs indexed [((tr*TilesPerAxis+tc)*TileSize+pi)*TileSize+pj].
	values []yfxf
}

type yfxf struct {
	yf, xf float32
}

// Lookup returns the mapped source-grid index for one tile pixel. The
// second return is false if the pixel falls outside the satellite
// footprint (NaN sentinel) or is out of range for the table.
func (t *Table) Lookup(tileRow, tileCol, pixelI, pixelJ uint32) (yf, xf float64, ok bool) {
	if tileRow >= t.TilesPerAxis || tileCol >= t.TilesPerAxis || pixelI >= t.TileSize || pixelJ >= t.TileSize {
		return 0, 0, false
	}
	idx := ((tileRow*t.TilesPerAxis+tileCol)*t.TileSize+pixelI)*t.TileSize + pixelJ
	v := t.values[idx]
	if math.IsNaN(float64(v.yf)) || math.IsNaN(float64(v.xf)) {
		return 0, 0, false
	}
	return float64(v.yf), float64(v.xf), true
}

// Load reads a LUT file produced by Write.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	gotMagic := make([]byte, len(magic))
	if _, err := io.ReadFull(br, gotMagic); err != nil {
		return nil, fmt.Errorf("lutfile: reading magic: %w", err)
	}
	if string(gotMagic) != magic {
		return nil, fmt.Errorf("lutfile: bad magic %q", gotMagic)
	}

	var h Header
	if err := binary.Read(br, binary.LittleEndian, &h.TilesPerAxis); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &h.TileSize); err != nil {
		return nil, err
	}

	count := int(h.TilesPerAxis) * int(h.TilesPerAxis) * int(h.TileSize) * int(h.TileSize)
	values := make([]yfxf, count)
	for i := range values {
		if err := binary.Read(br, binary.LittleEndian, &values[i].yf); err != nil {
			return nil, fmt.Errorf("lutfile: reading entry %d: %w", i, err)
		}
		if err := binary.Read(br, binary.LittleEndian, &values[i].xf); err != nil {
			return nil, fmt.Errorf("lutfile: reading entry %d: %w", i, err)
		}
	}

	return &Table{Header: h, values: values}, nil
}

// DefaultTileSize is the pixel edge length LUTs are generated at (matches
// the tile matrix set's fixed tile size).
func DefaultTileSize() uint32 { return tileSizePixels }
