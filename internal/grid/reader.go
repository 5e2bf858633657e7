package grid

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/weathertiles/core/internal/engine/errkind"
	"github.com/weathertiles/core/internal/geo"
	"github.com/weathertiles/core/internal/projection"
)

// SourceRegion is a dense subarray of the source grid plus a validity
// mask, covering the bounding rectangle [Y0..Y0+Height), [X0..X0+Width)
// in full-grid index space (spec.md §4.4).
type SourceRegion struct {
	Data   []float32 // row-major, length == Height*Width
	Valid  []bool    // same shape, false where the sample equals the fill value or the chunk was absent
	Y0, X0 int        // offset of this region's origin in full-grid index space
	Height, Width int
}

func (r *SourceRegion) at(y, x int) (float32, bool) {
	ly, lx := y-r.Y0, x-r.X0
	if ly < 0 || lx < 0 || ly >= r.Height || lx >= r.Width {
		return 0, false
	}
	idx := ly*r.Width + lx
	return r.Data[idx], r.Valid[idx]
}

// Sample returns the raw value and validity at full-grid index (y, x),
// used by the resampler's bilinear neighbor lookups.
func (r *SourceRegion) Sample(y, x int) (float32, bool) {
	return r.at(y, x)
}

// DatasetMeta bundles what the reader needs from a catalog descriptor,
// kept separate from catalog.Descriptor to avoid grid depending on
// catalog (catalog already depends on projection and geo).
type DatasetMeta struct {
	ID            string
	StoragePrefix string
	BBox          geo.BoundingBox
	GridShape     [2]int
	ChunkShape    [2]int
	Codec         string
	FillValue     float32
	Projection    projection.Descriptor
	// DataType is "float32" or "float64" (spec.md §6). Empty defers to
	// whatever <StoragePrefix>/zarr.json declares, or "float32" if that
	// object is also absent (older datasets published before data_type
	// was tracked).
	DataType string
}

// Reader turns a dataset + geographic region of interest into a
// SourceRegion, implementing spec.md §4.4's algorithm.
type Reader struct {
	store  ObjectStore
	chunks *ChunkCache

	dataTypeMu    sync.Mutex
	dataTypeCache map[string]string // StoragePrefix -> resolved data_type
}

// NewReader constructs a Reader over the given object store and L3 cache.
func NewReader(store ObjectStore, chunks *ChunkCache) *Reader {
	return &Reader{store: store, chunks: chunks, dataTypeCache: map[string]string{}}
}

// resolveDataType returns ds's sample encoding, consulting (in order)
// ds.DataType, a process-lifetime cache keyed by StoragePrefix, and
// finally <StoragePrefix>/zarr.json itself (spec.md §4.4's zarr-like
// metadata object). A dataset with neither is assumed "float32".
func (r *Reader) resolveDataType(ctx context.Context, ds DatasetMeta) (string, error) {
	if ds.DataType != "" {
		return ds.DataType, nil
	}

	r.dataTypeMu.Lock()
	if dt, ok := r.dataTypeCache[ds.StoragePrefix]; ok {
		r.dataTypeMu.Unlock()
		return dt, nil
	}
	r.dataTypeMu.Unlock()

	dt := "float32"
	raw, ok, err := r.store.Get(ctx, ds.StoragePrefix+"/zarr.json")
	if err != nil {
		return "", errkind.New(errkind.Transient, err)
	}
	if ok {
		meta, err := ParseMetadata(raw)
		if err != nil {
			return "", errkind.New(errkind.Decode, fmt.Errorf("grid: parsing %s/zarr.json: %w", ds.StoragePrefix, err))
		}
		if meta.DataType != "" {
			dt = meta.DataType
		}
	}

	r.dataTypeMu.Lock()
	r.dataTypeCache[ds.StoragePrefix] = dt
	r.dataTypeMu.Unlock()
	return dt, nil
}

// ReadRegion returns the dense subarray covering bboxGeo (already padded
// by the caller per spec.md §4.4), projected into the dataset's source
// grid index space.
func (r *Reader) ReadRegion(ctx context.Context, ds DatasetMeta, bboxGeo geo.BoundingBox) (*SourceRegion, error) {
	proj := ds.Projection.Resolve()
	if proj == nil {
		return nil, errkind.New(errkind.Internal, fmt.Errorf("grid: dataset %s has no projection descriptor", ds.ID))
	}
	dataType, err := r.resolveDataType(ctx, ds)
	if err != nil {
		return nil, err
	}

	// Step 1: project the four corners (sufficient for the linear/regular
	// cases; non-linear projections would sample edge points too, omitted
	// here since every projection.Projector this repo ships is monotonic
	// enough over one tile's extent for the corners to bound it).
	corners := bboxGeo.Corners()
	y0f, x0f := math.Inf(1), math.Inf(1)
	y1f, x1f := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		yf, xf := proj.Reverse(c[0], c[1])
		y0f, y1f = math.Min(y0f, yf), math.Max(y1f, yf)
		x0f, x1f = math.Min(x0f, xf), math.Max(x1f, xf)
	}

	y0, y1 := int(math.Floor(y0f)), int(math.Ceil(y1f))
	x0, x1 := int(math.Floor(x0f)), int(math.Ceil(x1f))

	// Step 2: expand to chunk-aligned bounds.
	chH, chW := ds.ChunkShape[0], ds.ChunkShape[1]
	cy0, cy1 := floorDiv(y0, chH), ceilDiv(y1+1, chH)
	cx0, cx1 := floorDiv(x0, chW), ceilDiv(x1+1, chW)

	height := (cy1 - cy0) * chH
	width := (cx1 - cx0) * chW
	region := &SourceRegion{
		Data:   make([]float32, height*width),
		Valid:  make([]bool, height*width),
		Y0:     cy0 * chH,
		X0:     cx0 * chW,
		Height: height,
		Width:  width,
	}

	// Step 3: fetch each chunk and copy its overlap into the output buffer.
	for cy := cy0; cy < cy1; cy++ {
		for cx := cx0; cx < cx1; cx++ {
			if err := r.copyChunk(ctx, ds, dataType, region, cy, cx); err != nil {
				return nil, err
			}
		}
	}

	return region, nil
}

func (r *Reader) copyChunk(ctx context.Context, ds DatasetMeta, dataType string, region *SourceRegion, cy, cx int) error {
	key := chunkKey(ds.ID, cy, cx)
	chH, chW := ds.ChunkShape[0], ds.ChunkShape[1]

	chunk, err := r.chunks.GetOrFetch(ctx, key, func(ctx context.Context) (Chunk, error) {
		return r.fetchChunk(ctx, ds, dataType, cy, cx)
	})
	if err != nil {
		return err
	}

	baseY, baseX := cy*chH, cx*chW
	for ly := 0; ly < chunk.Height; ly++ {
		for lx := 0; lx < chunk.Width; lx++ {
			y, x := baseY+ly, baseX+lx
			ry, rx := y-region.Y0, x-region.X0
			if ry < 0 || rx < 0 || ry >= region.Height || rx >= region.Width {
				continue
			}
			v := chunk.Data[ly*chunk.Width+lx]
			idx := ry*region.Width + rx
			region.Data[idx] = v
			// Step 4: fill-value masking.
			region.Valid[idx] = v != ds.FillValue
		}
	}
	return nil
}

// fetchChunk reads, decompresses, and fill-pads one chunk. A 404/absent
// object is "all fill value", not an error (spec.md §4.4).
func (r *Reader) fetchChunk(ctx context.Context, ds DatasetMeta, dataType string, cy, cx int) (Chunk, error) {
	chH, chW := ds.ChunkShape[0], ds.ChunkShape[1]
	objKey := fmt.Sprintf("%s/c/%d/%d", ds.StoragePrefix, cy, cx)

	raw, ok, err := r.store.Get(ctx, objKey)
	if err != nil {
		return Chunk{}, errkind.New(errkind.Transient, err)
	}
	if !ok {
		data := make([]float32, chH*chW)
		for i := range data {
			data[i] = ds.FillValue
		}
		return Chunk{Data: data, Height: chH, Width: chW}, nil
	}

	decoded, err := decompress(ds.Codec, raw)
	if err != nil {
		return Chunk{}, errkind.New(errkind.Decode, err)
	}

	sampleWidth := 4
	if dataType == "float64" {
		sampleWidth = 8
	}

	want := chH * chW
	samples := make([]float32, want)
	got := len(decoded) / sampleWidth
	n := got
	if n > want {
		n = want
	}
	for i := 0; i < n; i++ {
		if dataType == "float64" {
			bits := binary.LittleEndian.Uint64(decoded[i*8 : i*8+8])
			samples[i] = float32(math.Float64frombits(bits))
		} else {
			bits := binary.LittleEndian.Uint32(decoded[i*4 : i*4+4])
			samples[i] = math.Float32frombits(bits)
		}
	}
	// Truncated final chunk: pad the missing tail with fill value rather
	// than erroring (DESIGN.md Open Question decision #3).
	for i := n; i < want; i++ {
		samples[i] = ds.FillValue
	}

	return Chunk{Data: samples, Height: chH, Width: chW}, nil
}

func decompress(codec string, raw []byte) ([]byte, error) {
	switch codec {
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case "zstd", "":
		zr, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("grid: unknown codec %q", codec)
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}
