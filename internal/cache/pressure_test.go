package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeEvictor struct {
	remaining int
	evicted   int
	// freed, when set, is called on each eviction to model the real caches'
	// size-change feedback into the estimator.
	freed func()
}

func (f *fakeEvictor) EvictOldest() bool {
	if f.remaining <= 0 {
		return false
	}
	f.remaining--
	f.evicted++
	if f.freed != nil {
		f.freed()
	}
	return true
}

func TestPressureInactiveBelowThreshold(t *testing.T) {
	l1 := &fakeEvictor{remaining: 100}
	p := NewPressure(1000, 0, 0, l1, nil)

	p.OnSizeChange(700) // 70% < 80% threshold
	assert.False(t, p.Active())
	assert.Equal(t, 0, l1.evicted)
}

func TestPressureEvictsL1BeforeL3(t *testing.T) {
	l1 := &fakeEvictor{remaining: 100}
	l3 := &fakeEvictor{remaining: 100}
	p := NewPressure(1000, 0, 0, l1, l3)
	l1.freed = func() { p.resident.Add(-50) }

	p.OnSizeChange(900) // 90% > 80% threshold
	assert.True(t, l1.evicted > 0)
	assert.Equal(t, 0, l3.evicted)
}

func TestPressureFallsBackToL3WhenL1Exhausted(t *testing.T) {
	l1 := &fakeEvictor{remaining: 0}
	l3 := &fakeEvictor{remaining: 100}
	p := NewPressure(1000, 0, 0, l1, l3)

	p.resident.Store(900)
	p.checkAndEvict()
	assert.True(t, l3.evicted > 0)
}

func TestPressureBecomesInactiveAfterEvictingBelowThreshold(t *testing.T) {
	l1 := &fakeEvictor{remaining: 100}
	p := NewPressure(1000, 0, 0, l1, nil)

	// Each eviction below doesn't actually reduce p.resident since fakeEvictor
	// doesn't call OnSizeChange; simulate a real reduction directly.
	p.resident.Store(900)
	p.checkAndEvict()
	p.resident.Store(600)
	p.checkAndEvict()
	assert.False(t, p.Active())
}

func TestPressureRunStopsOnContextCancel(t *testing.T) {
	p := NewPressure(1000, 0, 0, &fakeEvictor{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}
