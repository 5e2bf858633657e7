package prefetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weathertiles/core/internal/tile"
	"github.com/weathertiles/core/internal/worker"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	seen []tile.Fingerprint
}

func (s *recordingSubmitter) Submit(ctx context.Context, fp tile.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, fp)
	return nil
}

func baseFingerprint() tile.Fingerprint {
	return tile.Fingerprint{
		LayerID: "temp_2m", StyleID: "gradient", TileMatrixSetID: "WebMercatorQuad",
		Zoom: 5, Col: 10, Row: 10, Time: tile.Unspecified(),
	}
}

func TestNeighborsOnBuildSuccessSubmitsNeighborsAndSiblings(t *testing.T) {
	sub := &recordingSubmitter{}
	n := New(Config{Submitter: sub, Workers: 4, RatePerSecond: 1000, Burst: 100})

	n.OnBuildSuccess(context.Background(), baseFingerprint())

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Len(t, sub.seen, 12) // 8 same-zoom neighbors + 4 parent siblings
}

func TestNeighborsRingsExpandsSameZoomRadius(t *testing.T) {
	sub := &recordingSubmitter{}
	n := New(Config{Submitter: sub, Workers: 4, RatePerSecond: 1000, Burst: 100, Rings: 2})

	n.OnBuildSuccess(context.Background(), baseFingerprint())

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Len(t, sub.seen, 28) // 24 same-zoom ring-2 neighbors + 4 parent siblings
}

func TestNeighborsRespectsZoomBounds(t *testing.T) {
	sub := &recordingSubmitter{}
	n := New(Config{Submitter: sub, Workers: 4, RatePerSecond: 1000, Burst: 100, MinZoom: 5, MaxZoom: 5})

	n.OnBuildSuccess(context.Background(), baseFingerprint())

	sub.mu.Lock()
	defer sub.mu.Unlock()
	// Parent siblings (zoom 4) are excluded by MinZoom=5.
	assert.Len(t, sub.seen, 8)
	for _, fp := range sub.seen {
		assert.Equal(t, uint32(5), fp.Zoom)
	}
}

func TestWarmerEnumeratesAllTilesUpToMaxZoom(t *testing.T) {
	var count atomic.Int32
	sub := worker.SubmitterFunc(func(ctx context.Context, fp tile.Fingerprint) error {
		count.Add(1)
		return nil
	})
	w := NewWarmer(WarmerConfig{
		Submitter: sub,
		Workers:   4,
		MaxZoom:   2,
		Layers:    []LayerStyle{{LayerID: "temp_2m", StyleID: "gradient", TileMatrixSetID: "WebMercatorQuad"}},
	})

	stats := w.Run(context.Background())

	// zoom 0: 1 tile, zoom 1: 4 tiles, zoom 2: 16 tiles = 21 total.
	assert.EqualValues(t, 21, stats.Submitted)
	assert.EqualValues(t, 21, count.Load())
	assert.Equal(t, 0, stats.Failed)
}

type stubPressure struct {
	active atomic.Bool
}

func (s *stubPressure) Active() bool { return s.active.Load() }

func TestWarmerYieldsWhilePressureActive(t *testing.T) {
	pressure := &stubPressure{}
	pressure.active.Store(true)

	var submitted atomic.Int32
	sub := worker.SubmitterFunc(func(ctx context.Context, fp tile.Fingerprint) error {
		submitted.Add(1)
		return nil
	})
	w := NewWarmer(WarmerConfig{
		Submitter: sub,
		Workers:   2,
		Pressure:  pressure,
		MaxZoom:   1,
		Layers:    []LayerStyle{{LayerID: "l", StyleID: "s", TileMatrixSetID: "m"}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan WarmStats)
	go func() { done <- w.Run(ctx) }()

	// Give it a moment to observe pressure and start yielding, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()
	stats := <-done

	require.GreaterOrEqual(t, stats.Yielded, 1)
	assert.EqualValues(t, 0, submitted.Load())
}
