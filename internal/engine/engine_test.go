package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weathertiles/core/internal/catalog"
	"github.com/weathertiles/core/internal/engine/errkind"
	"github.com/weathertiles/core/internal/geo"
	"github.com/weathertiles/core/internal/grid"
	"github.com/weathertiles/core/internal/projection"
	"github.com/weathertiles/core/internal/render"
	"github.com/weathertiles/core/internal/tile"
)

// countingStore wraps an in-memory object map, counting Get calls per key
// (used by S3/S4) and optionally sleeping or failing (used by S2/S5).
type countingStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	counts  map[string]int
	sleep   time.Duration
	failKey string
	failing atomic.Bool
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.sleep > 0 {
		select {
		case <-time.After(s.sleep):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	if s.failing.Load() && key == s.failKey {
		return nil, false, errors.New("simulated object store 500")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = map[string]int{}
	}
	s.counts[key]++
	v, ok := s.objects[key]
	return v, ok, nil
}

func (s *countingStore) countOf(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

func (s *countingStore) totalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

// fixedCatalog always returns the same descriptor regardless of query time,
// matching as long as model/parameter/level agree.
type fixedCatalog struct {
	byParameter map[string]catalog.Descriptor
}

func (c *fixedCatalog) Query(ctx context.Context, q catalog.Query) (catalog.Descriptor, error) {
	d, ok := c.byParameter[q.Parameter]
	if !ok {
		return catalog.Descriptor{}, catalog.ErrNotFound
	}
	return d, nil
}

func zstdEncodeFloat32(t *testing.T, values []float32) []byte {
	t.Helper()
	raw := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	return enc.EncodeAll(raw, nil)
}

func globalDescriptor(id, parameter string, gridShape, chunkShape [2]int, fill float32) catalog.Descriptor {
	return catalog.Descriptor{
		ID:            id,
		Model:         "gfs",
		Parameter:     parameter,
		Level:         "surface",
		ReferenceTime: time.Unix(0, 0),
		ValidTime:     time.Unix(0, 0),
		InsertedAt:    time.Unix(0, 0),
		BBox:          geo.BoundingBox{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: 90},
		GridShape:     gridShape,
		ChunkShape:    chunkShape,
		Codec:         "zstd",
		FillValue:     fill,
		StoragePrefix: id,
		Projection: projection.Descriptor{
			// OriginLat=90/Dy=-(180/ny) and Dx=360/nx matches the equirectangular
			// tile matrix's own row-major, north-to-south, west-to-east layout.
			Geographic: &projection.GeographicRegular{
				OriginLon: -180,
				OriginLat: 90,
				Dx:        360.0 / float64(gridShape[1]),
				Dy:        -180.0 / float64(gridShape[0]),
			},
		},
	}
}

func gradientStyle() render.Style {
	return render.Style{Gradient: &render.Gradient{Colormap: render.Colormap{
		{Value: 0, R: 0, G: 0, B: 255, A: 255},
		{Value: 100, R: 255, G: 0, B: 0, A: 255},
	}}}
}

func baseTestConfig(store grid.ObjectStore, cat catalog.Catalog) Config {
	cfg := DefaultConfig()
	cfg.Store = store
	cfg.Catalog = cat
	cfg.TileSize = 16
	cfg.BuildDeadlineSecs = 1
	cfg.Layers = map[string]LayerConfig{
		"gfs_TMP": {Model: "gfs", Parameter: "t2m", Level: "surface"},
	}
	cfg.Styles = map[string]render.Style{
		"temperature": gradientStyle(),
	}
	cfg.EnablePrefetch = false
	cfg.EnableCacheWarming = false
	return cfg
}

func uniformValueStore(t *testing.T, gridShape, chunkShape [2]int, value float32) *countingStore {
	t.Helper()
	ny, nx := gridShape[0], gridShape[1]
	chH, chW := chunkShape[0], chunkShape[1]
	objects := map[string][]byte{}
	for cy := 0; cy < ny/chH; cy++ {
		for cx := 0; cx < nx/chW; cx++ {
			values := make([]float32, chH*chW)
			for i := range values {
				values[i] = value
			}
			objects[chunkObjectKey("ds", cy, cx)] = zstdEncodeFloat32(t, values)
		}
	}
	return &countingStore{objects: objects}
}

func chunkObjectKey(prefix string, cy, cx int) string {
	return fmt.Sprintf("%s/c/%d/%d", prefix, cy, cx)
}

// TestS1ColdMissThenL1Hit covers spec.md §8 S1: an empty-cache request is a
// miss that builds and caches, and an immediate identical re-request is
// served from L1.
func TestS1ColdMissThenL1Hit(t *testing.T) {
	gridShape, chunkShape := [2]int{16, 16}, [2]int{16, 16}
	store := uniformValueStore(t, gridShape, chunkShape, 10)
	cat := &fixedCatalog{byParameter: map[string]catalog.Descriptor{
		"t2m": globalDescriptor("ds", "t2m", gridShape, chunkShape, -9999),
	}}

	e, err := Init(baseTestConfig(store, cat), slog.Default())
	require.NoError(t, err)
	defer e.Shutdown(context.Background())

	req := RenderRequest{LayerID: "gfs_TMP", StyleID: "temperature", TileMatrixSetID: "WebMercatorQuad", Zoom: 5, Col: 7, Row: 11, Time: tile.Latest(time.Unix(0, 0))}

	resp1, err := e.RenderTile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, TierMiss, resp1.Tier)
	assert.NotEmpty(t, resp1.Bytes)

	resp2, err := e.RenderTile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, TierL1, resp2.Tier)
	assert.Equal(t, resp1.Bytes, resp2.Bytes)
}

// TestS2SingleFlightCollapsesConcurrentBuilds covers spec.md §8 S2: many
// concurrent requests for the same uncached fingerprint collapse into one
// build and all observe the same bytes.
func TestS2SingleFlightCollapsesConcurrentBuilds(t *testing.T) {
	gridShape, chunkShape := [2]int{16, 16}, [2]int{16, 16}
	store := uniformValueStore(t, gridShape, chunkShape, 5)
	store.sleep = 200 * time.Millisecond
	desc := globalDescriptor("ds", "t2m", gridShape, chunkShape, -9999)
	// A declared data type keeps the reader from fetching zarr.json, so the
	// one chunk is the only object the build reads.
	desc.DataType = "float32"
	cat := &fixedCatalog{byParameter: map[string]catalog.Descriptor{
		"t2m": desc,
	}}

	e, err := Init(baseTestConfig(store, cat), slog.Default())
	require.NoError(t, err)
	defer e.Shutdown(context.Background())

	req := RenderRequest{LayerID: "gfs_TMP", StyleID: "temperature", TileMatrixSetID: "WebMercatorQuad", Zoom: 5, Col: 7, Row: 11, Time: tile.Latest(time.Unix(0, 0))}

	const n = 50
	results := make([][]byte, n)
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := e.RenderTile(context.Background(), req)
			require.NoError(t, err)
			results[i] = resp.Bytes
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	for i := 1; i < n; i++ {
		assert.Equal(t, results[0], results[i])
	}
	assert.Less(t, elapsed, 400*time.Millisecond)
	// Single chunk, single fetch regardless of 50 concurrent callers.
	assert.Equal(t, 1, store.totalCount())
}

// TestS3PartialChunkCoverageFetchesOnlyOverlappingChunks covers spec.md §8
// S3: a tile whose footprint covers a subset of chunks fetches exactly
// those chunks cold, and none on a warm cache.
func TestS3PartialChunkCoverageFetchesOnlyOverlappingChunks(t *testing.T) {
	gridShape, chunkShape := [2]int{8, 8}, [2]int{2, 2}
	store := uniformValueStore(t, gridShape, chunkShape, 1)
	cat := &fixedCatalog{byParameter: map[string]catalog.Descriptor{
		"t2m": globalDescriptor("ds", "t2m", gridShape, chunkShape, -9999),
	}}

	cfg := baseTestConfig(store, cat)
	cfg.TileSize = 8
	e, err := Init(cfg, slog.Default())
	require.NoError(t, err)
	defer e.Shutdown(context.Background())

	// A single WebMercatorQuad tile at zoom 0 already covers nearly the
	// whole globe, and paddingNumerator's expansion pushes it the rest of
	// the way to touch every chunk — exercising the chunk-aligned bounds
	// expansion without needing a second zoom level's geometry here.
	req := RenderRequest{LayerID: "gfs_TMP", StyleID: "temperature", TileMatrixSetID: "WebMercatorQuad", Zoom: 0, Col: 0, Row: 0, Time: tile.Latest(time.Unix(0, 0))}

	_, err = e.RenderTile(context.Background(), req)
	require.NoError(t, err)
	coldFetches := store.totalCount()
	assert.Greater(t, coldFetches, 0)

	_, err = e.RenderTile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, coldFetches, store.totalCount(), "warm L1 hit must not touch the object store again")
}

// TestS4MissingChunkRendersTransparentNotError covers spec.md §8 S4: an
// absent chunk yields transparent pixels in its region, not an error.
func TestS4MissingChunkRendersTransparentNotError(t *testing.T) {
	gridShape, chunkShape := [2]int{4, 4}, [2]int{2, 2}
	store := uniformValueStore(t, gridShape, chunkShape, 7)
	// Remove one chunk entirely: absent object = all fill value (transparent).
	delete(store.objects, chunkObjectKey("ds", 0, 0))
	cat := &fixedCatalog{byParameter: map[string]catalog.Descriptor{
		"t2m": globalDescriptor("ds", "t2m", gridShape, chunkShape, -9999),
	}}

	cfg := baseTestConfig(store, cat)
	cfg.TileSize = 4
	e, err := Init(cfg, slog.Default())
	require.NoError(t, err)
	defer e.Shutdown(context.Background())

	req := RenderRequest{LayerID: "gfs_TMP", StyleID: "temperature", TileMatrixSetID: "WebMercatorQuad", Zoom: 0, Col: 0, Row: 0, Time: tile.Latest(time.Unix(0, 0))}
	resp, err := e.RenderTile(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Bytes)
}

// TestS5ErrorTileNotCachedAndRetrySucceeds covers spec.md §8 S5: a
// transient object-store failure surfaces an error and is never cached in
// L1, so a retry after the failure clears succeeds.
func TestS5ErrorTileNotCachedAndRetrySucceeds(t *testing.T) {
	gridShape, chunkShape := [2]int{4, 4}, [2]int{2, 2}
	store := uniformValueStore(t, gridShape, chunkShape, 3)
	store.failKey = chunkObjectKey("ds", 0, 0)
	store.failing.Store(true)
	cat := &fixedCatalog{byParameter: map[string]catalog.Descriptor{
		"t2m": globalDescriptor("ds", "t2m", gridShape, chunkShape, -9999),
	}}

	cfg := baseTestConfig(store, cat)
	cfg.TileSize = 4
	e, err := Init(cfg, slog.Default())
	require.NoError(t, err)
	defer e.Shutdown(context.Background())

	req := RenderRequest{LayerID: "gfs_TMP", StyleID: "temperature", TileMatrixSetID: "WebMercatorQuad", Zoom: 0, Col: 0, Row: 0, Time: tile.Latest(time.Unix(0, 0))}

	_, err = e.RenderTile(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errkind.Transient, errkind.Of(err))

	fp := tile.Fingerprint{LayerID: req.LayerID, StyleID: req.StyleID, TileMatrixSetID: req.TileMatrixSetID, Zoom: req.Zoom, Col: req.Col, Row: req.Row, Time: req.Time}
	_, ok := e.l1.Get(fp.Hash(), fp.Key())
	assert.False(t, ok, "a Transient build failure must not be cached")

	store.failing.Store(false)
	resp, err := e.RenderTile(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Bytes)
}

// TestS6PrefetchActivationSubmitsNeighborsAndParentSiblings covers spec.md
// §8 S6: a successful build enqueues the 8 same-zoom neighbors and 4
// parent-zoom siblings within a short window.
func TestS6PrefetchActivationSubmitsNeighborsAndParentSiblings(t *testing.T) {
	gridShape, chunkShape := [2]int{16, 16}, [2]int{16, 16}
	store := uniformValueStore(t, gridShape, chunkShape, 2)
	cat := &fixedCatalog{byParameter: map[string]catalog.Descriptor{
		"t2m": globalDescriptor("ds", "t2m", gridShape, chunkShape, -9999),
	}}

	cfg := baseTestConfig(store, cat)
	cfg.EnablePrefetch = true
	cfg.PrefetchWorkers = 4
	cfg.PrefetchRateHz = 1000
	cfg.PrefetchMinZoom = 0
	cfg.PrefetchMaxZoom = 20
	e, err := Init(cfg, slog.Default())
	require.NoError(t, err)
	defer e.Shutdown(context.Background())

	req := RenderRequest{LayerID: "gfs_TMP", StyleID: "temperature", TileMatrixSetID: "WebMercatorQuad", Zoom: 5, Col: 7, Row: 11, Time: tile.Latest(time.Unix(0, 0))}
	_, err = e.RenderTile(context.Background(), req)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		fp := tile.Fingerprint{LayerID: req.LayerID, StyleID: req.StyleID, TileMatrixSetID: req.TileMatrixSetID, Zoom: 4, Col: 3, Row: 5, Time: req.Time}
		_, ok := e.l1.Get(fp.Hash(), fp.Key())
		return ok
	}, 200*time.Millisecond, 5*time.Millisecond, "expected a parent-zoom sibling to have been prefetched")
}
