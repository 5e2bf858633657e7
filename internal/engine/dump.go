package engine

import (
	"context"
	"fmt"

	"github.com/weathertiles/core/internal/mbtiles"
	"github.com/weathertiles/core/internal/tile"
)

// DumpWriter snapshots a run of RenderTile outputs to a single MBTiles file
// for offline inspection, adapting the teacher's SQLite-backed tile writer
// (internal/mbtiles) from basemap-tile storage to rendered-weather-tile
// storage. It is a debug/export tool, not the production cache path — the
// production shared cache is cache.Shared (Redis), per spec.md §4.1.
type DumpWriter struct {
	w *mbtiles.Writer
}

// NewDumpWriter creates (or overwrites) an MBTiles file at path, tagging it
// with the layer/style pair being dumped.
func NewDumpWriter(path, layerID, styleID string, minZoom, maxZoom int) (*DumpWriter, error) {
	w, err := mbtiles.New(path, mbtiles.Metadata{
		Name:        fmt.Sprintf("%s/%s", layerID, styleID),
		Format:      "png",
		Type:        "overlay",
		Description: "weathertiles render-path core offline dump",
		MinZoom:     minZoom,
		MaxZoom:     maxZoom,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: open dump writer: %w", err)
	}
	return &DumpWriter{w: w}, nil
}

// Dump renders every fingerprint through e and writes its PNG bytes into
// the dump file, keyed by (zoom, col, row). A per-tile render error aborts
// the whole dump — an offline export is meant to represent a clean,
// complete run, unlike the live serving path, which tolerates per-request
// failures.
func (d *DumpWriter) Dump(ctx context.Context, e *Engine, fps []tile.Fingerprint) (int, error) {
	n := 0
	for _, fp := range fps {
		resp, err := e.RenderTile(ctx, RenderRequest{
			LayerID:         fp.LayerID,
			StyleID:         fp.StyleID,
			TileMatrixSetID: fp.TileMatrixSetID,
			Zoom:            fp.Zoom,
			Col:             fp.Col,
			Row:             fp.Row,
			Time:            fp.Time,
			Elevation:       fp.Elevation,
		})
		if err != nil {
			return n, fmt.Errorf("engine: dump tile %s: %w", fp.Key(), err)
		}
		if err := d.w.WriteTile(int(fp.Zoom), int(fp.Col), int(fp.Row), resp.Bytes); err != nil {
			return n, fmt.Errorf("engine: write tile %s: %w", fp.Key(), err)
		}
		n++
	}
	return n, nil
}

// Close flushes and closes the underlying MBTiles file.
func (d *DumpWriter) Close() error {
	return d.w.Close()
}

// VerifyExport reopens the MBTiles file at path read-only once the writer
// has closed it, and confirms every dumped fingerprint is present and
// decodes back to PNG bytes. It's the read-back counterpart to Dump's
// write path, using mbtiles.Reader rather than re-deriving tiles.
func VerifyExport(path string, fps []tile.Fingerprint) error {
	r, err := mbtiles.OpenReader(path)
	if err != nil {
		return fmt.Errorf("engine: open dump for verification: %w", err)
	}
	defer r.Close()

	meta, err := r.Metadata()
	if err != nil {
		return fmt.Errorf("engine: read dump metadata: %w", err)
	}
	if meta.Format != "png" {
		return fmt.Errorf("engine: dump metadata format = %q, want png", meta.Format)
	}

	for _, fp := range fps {
		data, err := r.ReadTile(int(fp.Zoom), int(fp.Col), int(fp.Row))
		if err != nil {
			return fmt.Errorf("engine: verify tile %s: %w", fp.Key(), err)
		}
		if len(data) == 0 {
			return fmt.Errorf("engine: verify tile %s: empty PNG", fp.Key())
		}
	}
	return nil
}
