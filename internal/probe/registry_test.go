package probe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Defaults(t *testing.T) {
	r := NewRegistry(0, nil)
	assert.Equal(t, DefaultStaleAfter, r.staleAfter)
	assert.NotNil(t, r.clock)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RegisterMarkResolved(t *testing.T) {
	r := NewRegistry(DefaultStaleAfter, newFakeClock())

	probeID := r.Register(42)
	assert.NotEmpty(t, probeID)
	assert.False(t, r.IsResolved(42))

	r.MarkResolved(42)
	assert.True(t, r.IsResolved(42))
}

func TestRegistry_UnresolvedProbeEvictedAfterStaleness(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(DefaultStaleAfter, clock)

	r.Register(7)
	clock.Advance(61 * time.Second)

	assert.False(t, r.IsResolved(7))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ResolvedProbeEvictedAfterStaleness(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(DefaultStaleAfter, clock)

	r.Register(7)
	r.MarkResolved(7)
	clock.Advance(61 * time.Second)

	assert.False(t, r.IsResolved(7))
}

func TestRegistry_EvictStaleBoundary(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(DefaultStaleAfter, clock)

	r.Register(1)
	r.MarkResolved(1)
	clock.Advance(DefaultStaleAfter)

	// Exactly at the threshold the record survives, on every call.
	for i := 0; i < 3; i++ {
		r.EvictStale()
		assert.Equal(t, 1, r.Len())
		assert.True(t, r.IsResolved(1))
	}

	clock.Advance(time.Nanosecond)
	r.EvictStale()
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_EvictStaleRemovesOnlyStale(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(DefaultStaleAfter, clock)

	r.Register(1)
	clock.Advance(30 * time.Second)
	r.Register(2)
	clock.Advance(20 * time.Second)
	r.Register(3)
	clock.Advance(15 * time.Second) // 1 is 65s old, 2 is 35s, 3 is 15s

	r.EvictStale()

	records := r.Snapshot()
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].AgentID)
	assert.Equal(t, int64(3), records[1].AgentID)
}

func TestRegistry_EvictStaleNoop(t *testing.T) {
	r := NewRegistry(DefaultStaleAfter, newFakeClock())
	r.EvictStale()
	assert.Equal(t, 0, r.Len())

	r.Register(5)
	r.EvictStale()
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_MarkResolvedWithoutProbe(t *testing.T) {
	r := NewRegistry(DefaultStaleAfter, newFakeClock())
	r.Register(1)

	r.MarkResolved(99)

	assert.False(t, r.IsResolved(99))
	assert.False(t, r.IsResolved(1))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DuplicateRecordsCoexist(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(DefaultStaleAfter, clock)

	first := r.Register(8)
	clock.Advance(time.Second)
	second := r.Register(8)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, r.Len())

	r.MarkResolved(8)
	for _, rec := range r.Snapshot() {
		assert.True(t, rec.Resolved)
	}
}

func TestRegistry_ResolvedIsMonotonic(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(DefaultStaleAfter, clock)

	r.Register(3)
	r.MarkResolved(3)
	firstResolvedAt := r.Snapshot()[0].ResolvedAt

	clock.Advance(5 * time.Second)
	r.MarkResolved(3)
	r.Register(3)

	records := r.Snapshot()
	require.Len(t, records, 2)
	assert.True(t, records[0].Resolved)
	assert.Equal(t, firstResolvedAt, records[0].ResolvedAt)
	assert.False(t, records[1].Resolved)
	assert.True(t, r.IsResolved(3))
}

func TestRegistry_ResolvedBy(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(DefaultStaleAfter, clock)

	r.Register(11)
	deadline := clock.Now().Add(2 * time.Second)

	clock.Advance(2*time.Second + time.Millisecond)
	r.MarkResolved(11)

	assert.False(t, r.ResolvedBy(11, deadline))
	assert.True(t, r.ResolvedBy(11, clock.Now()))
	assert.True(t, r.IsResolved(11))
}

func TestRegistry_ResolvedByAtDeadline(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(DefaultStaleAfter, clock)

	r.Register(12)
	clock.Advance(2 * time.Second)
	r.MarkResolved(12)

	assert.True(t, r.ResolvedBy(12, clock.Now()))
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := NewRegistry(DefaultStaleAfter, newFakeClock())
	r.Register(4)

	records := r.Snapshot()
	records[0].Resolved = true

	assert.False(t, r.IsResolved(4))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(DefaultStaleAfter, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(id int64) {
			defer wg.Done()
			r.Register(id)
		}(int64(i))
		go func(id int64) {
			defer wg.Done()
			r.MarkResolved(id)
		}(int64(i))
		go func(id int64) {
			defer wg.Done()
			r.IsResolved(id)
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
}

func TestEvict(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{AgentID: 1, SentAt: now.Add(-61 * time.Second)},
		{AgentID: 2, SentAt: now.Add(-60 * time.Second)},
		{AgentID: 3, SentAt: now.Add(-10 * time.Second), Resolved: true},
		{AgentID: 4, SentAt: now.Add(-2 * time.Minute), Resolved: true},
	}

	kept, removed := evict(records, now, DefaultStaleAfter)

	assert.Equal(t, 2, removed)
	require.Len(t, kept, 2)
	assert.Equal(t, int64(2), kept[0].AgentID)
	assert.Equal(t, int64(3), kept[1].AgentID)
}

func BenchmarkRegistry_RegisterIsResolved(b *testing.B) {
	clock := newFakeClock()
	r := NewRegistry(DefaultStaleAfter, clock)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := int64(i % 64)
		clock.Advance(time.Second)
		r.Register(id)
		r.MarkResolved(id)
		r.IsResolved(id)
	}
}
