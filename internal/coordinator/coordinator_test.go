package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weathertiles/core/internal/cache"
	"github.com/weathertiles/core/internal/engine/errkind"
	"github.com/weathertiles/core/internal/tile"
)

func testFingerprint() tile.Fingerprint {
	return tile.Fingerprint{
		LayerID:         "temperature_2m",
		StyleID:         "gradient",
		TileMatrixSetID: "WebMercatorQuad",
		Zoom:            4, Col: 3, Row: 2,
		Time: tile.Unspecified(),
	}
}

func newTestCoordinator(t *testing.T, build BuildFunc) *Coordinator {
	t.Helper()
	l1 := cache.NewL1(1 << 20)
	return New(Config{L1: l1, L2: cache.Null{}, Build: build, BuildDeadline: 2 * time.Second})
}

func TestGetOrBuildCallsBuildExactlyOnceConcurrently(t *testing.T) {
	var calls atomic.Int32
	start := make(chan struct{})
	c := newTestCoordinator(t, func(ctx context.Context, fp tile.Fingerprint) (Result, error) {
		calls.Add(1)
		<-start
		return Result{PNG: []byte("tile-bytes"), ContentType: "image/png"}, nil
	})

	fp := testFingerprint()
	const n = 10
	results := make(chan Result, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			res, _, err := c.GetOrBuild(context.Background(), fp)
			results <- res
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(start)

	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
		assert.Equal(t, []byte("tile-bytes"), (<-results).PNG)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrBuildServesFromL1OnSecondCall(t *testing.T) {
	var calls atomic.Int32
	c := newTestCoordinator(t, func(ctx context.Context, fp tile.Fingerprint) (Result, error) {
		calls.Add(1)
		return Result{PNG: []byte("x"), ContentType: "image/png"}, nil
	})
	fp := testFingerprint()

	_, tier1, err := c.GetOrBuild(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, TierMiss, tier1)

	_, tier2, err := c.GetOrBuild(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, TierL1, tier2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrBuildDoesNotCacheTransientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestCoordinator(t, func(ctx context.Context, fp tile.Fingerprint) (Result, error) {
		calls.Add(1)
		return Result{}, errkind.New(errkind.Transient, errors.New("object store down"))
	})
	fp := testFingerprint()

	_, _, err1 := c.GetOrBuild(context.Background(), fp)
	require.Error(t, err1)
	assert.Equal(t, errkind.Transient, errkind.Of(err1))

	_, _, err2 := c.GetOrBuild(context.Background(), fp)
	require.Error(t, err2)
	assert.Equal(t, int32(2), calls.Load()) // not cached, rebuilt
}

func TestGetOrBuildCachesNoDataShortTTL(t *testing.T) {
	var calls atomic.Int32
	c := newTestCoordinator(t, func(ctx context.Context, fp tile.Fingerprint) (Result, error) {
		calls.Add(1)
		return Result{PNG: []byte("no-data-tile")}, errkind.New(errkind.NoData, nil)
	})
	fp := testFingerprint()

	_, _, err1 := c.GetOrBuild(context.Background(), fp)
	require.Error(t, err1)
	assert.Equal(t, errkind.NoData, errkind.Of(err1))

	res2, tier2, err2 := c.GetOrBuild(context.Background(), fp)
	require.NoError(t, err2) // cached hit returns no error, just the cached bytes
	assert.Equal(t, TierL1, tier2)
	assert.Equal(t, []byte("no-data-tile"), res2.PNG)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrBuildNoDataWithNilPNGCachesATransparentTile(t *testing.T) {
	var calls atomic.Int32
	c := newTestCoordinator(t, func(ctx context.Context, fp tile.Fingerprint) (Result, error) {
		calls.Add(1)
		return Result{}, errkind.New(errkind.NoData, nil) // no PNG built at all
	})
	fp := testFingerprint()

	_, _, err1 := c.GetOrBuild(context.Background(), fp)
	require.Error(t, err1)

	res2, tier2, err2 := c.GetOrBuild(context.Background(), fp)
	require.NoError(t, err2)
	assert.Equal(t, TierL1, tier2)
	assert.NotEmpty(t, res2.PNG, "cached NoData hit must serve real tile bytes, not nil")
	assert.Equal(t, "image/png", res2.ContentType)
}

func TestGetOrBuildAbandonedWaiterDoesNotCancelBuild(t *testing.T) {
	buildDone := make(chan struct{})
	c := newTestCoordinator(t, func(ctx context.Context, fp tile.Fingerprint) (Result, error) {
		time.Sleep(100 * time.Millisecond)
		close(buildDone)
		return Result{PNG: []byte("ok")}, nil
	})
	fp := testFingerprint()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := c.GetOrBuild(ctx, fp)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-buildDone:
	case <-time.After(time.Second):
		t.Fatal("build was cancelled when the only waiter abandoned it")
	}
}

func TestGetOrBuildTimesOutOnBuildDeadline(t *testing.T) {
	c := newTestCoordinator(t, func(ctx context.Context, fp tile.Fingerprint) (Result, error) {
		<-ctx.Done()
		return Result{}, errors.New("boom")
	})
	c.deadline = 20 * time.Millisecond
	fp := testFingerprint()

	_, _, err := c.GetOrBuild(context.Background(), fp)
	require.Error(t, err)
	assert.Equal(t, errkind.Timeout, errkind.Of(err))
}

func TestCloseRejectsNewBuilds(t *testing.T) {
	c := newTestCoordinator(t, func(ctx context.Context, fp tile.Fingerprint) (Result, error) {
		return Result{PNG: []byte("ok")}, nil
	})
	require.NoError(t, c.Close(context.Background()))

	_, _, err := c.GetOrBuild(context.Background(), testFingerprint())
	require.Error(t, err)
	assert.Equal(t, errkind.Shutdown, errkind.Of(err))
}

func TestCloseWaitsForInFlightBuilds(t *testing.T) {
	release := make(chan struct{})
	c := newTestCoordinator(t, func(ctx context.Context, fp tile.Fingerprint) (Result, error) {
		<-release
		return Result{PNG: []byte("ok")}, nil
	})
	fp := testFingerprint()

	go func() {
		_, _, _ = c.GetOrBuild(context.Background(), fp)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, c.Close(context.Background()))
}
