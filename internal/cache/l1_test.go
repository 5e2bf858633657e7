package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL1GetMiss(t *testing.T) {
	l1 := NewL1(1 << 20)
	_, ok := l1.Get(1, "missing")
	assert.False(t, ok)
}

func TestL1InsertAndGet(t *testing.T) {
	l1 := NewL1(1 << 20)
	e := &Entry{PNG: []byte("hello"), ContentType: "image/png", IngestedAt: time.Now()}
	l1.Insert(42, "k", e)

	got, ok := l1.Get(42, "k")
	require.True(t, ok)
	assert.Equal(t, e.PNG, got.PNG)
}

func TestL1ExpiredEntryIsMiss(t *testing.T) {
	l1 := NewL1(1 << 20)
	e := &Entry{PNG: []byte("x"), ExpiresAt: time.Now().Add(-time.Second)}
	l1.Insert(1, "k", e)

	_, ok := l1.Get(1, "k")
	assert.False(t, ok)
}

func TestL1EvictsUnderByteBudget(t *testing.T) {
	// Tiny budget forces eviction almost immediately.
	l1 := NewL1(shardCount * 200)

	for i := 0; i < 100; i++ {
		key := string(rune('a' + i%26))
		e := &Entry{PNG: make([]byte, 100)}
		l1.Insert(uint64(i), key, e)
	}

	assert.LessOrEqual(t, l1.TotalBytes(), int64(shardCount*200+entryOverheadBytes+100))
}

func TestL1EvictOldest(t *testing.T) {
	l1 := NewL1(1 << 20)
	l1.Insert(0, "a", &Entry{PNG: []byte("a")})
	ok := l1.EvictOldest()
	assert.True(t, ok)

	ok = l1.EvictOldest()
	assert.False(t, ok)
}

func TestL1SizeChangeCallback(t *testing.T) {
	l1 := NewL1(1 << 20)
	var total int64
	l1.SetOnSizeChange(func(delta int64) { total += delta })

	l1.Insert(0, "a", &Entry{PNG: make([]byte, 10)})
	assert.Equal(t, int64(10+entryOverheadBytes), total)

	l1.Delete(0, "a")
	assert.Equal(t, int64(0), total)
}
