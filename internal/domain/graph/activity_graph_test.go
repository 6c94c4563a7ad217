package graph

import (
	"fmt"
	"testing"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph(t *testing.T, cfg Config) *ActivityGraph {
	t.Helper()
	if cfg.WindowSize == 0 {
		cfg.WindowSize = 5 * time.Minute
	}
	if cfg.MaxWindows == 0 {
		cfg.MaxWindows = 12
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = time.Hour
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 3
	}
	return New(cfg, logger.NewNop())
}

func addr(b byte) entity.Address {
	return entity.Address{b}
}

func tx(id string, from, to entity.Address, ts time.Time) *entity.Transaction {
	return &entity.Transaction{
		ID:        id,
		Timestamp: ts,
		From:      from,
		To:        to,
		Value:     1,
		Kind:      entity.KindTransfer,
	}
}

func TestActivityGraph_InsertAndWindowing(t *testing.T) {
	g := testGraph(t, Config{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, g.Insert(tx("a", addr(1), addr(2), base)))
	require.NoError(t, g.Insert(tx("b", addr(2), addr(3), base.Add(time.Minute))))
	require.NoError(t, g.Insert(tx("c", addr(1), addr(3), base.Add(6*time.Minute))))

	windows := g.RetainedWindows()
	require.Len(t, windows, 2)

	first := g.TransactionsIn(windows[0])
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].ID)
	assert.Equal(t, "b", first[1].ID)

	second := g.TransactionsIn(windows[1])
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].ID)
}

func TestActivityGraph_DuplicateInsertIsIdempotent(t *testing.T) {
	g := testGraph(t, Config{})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, g.Insert(tx("dup", addr(1), addr(2), ts)))
	require.NoError(t, g.Insert(tx("dup", addr(1), addr(2), ts)))

	assert.Len(t, g.TransactionsIn(g.WindowOf(ts)), 1)
}

func TestActivityGraph_RetentionEvictsOldestWindows(t *testing.T) {
	g := testGraph(t, Config{MaxWindows: 3})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		ts := base.Add(time.Duration(i) * 5 * time.Minute)
		require.NoError(t, g.Insert(tx(fmt.Sprintf("tx-%d", i), addr(1), addr(2), ts)))
	}

	windows := g.RetainedWindows()
	require.Len(t, windows, 3)
	assert.Equal(t, base.Add(15*time.Minute), windows[0].Start)
	assert.EqualValues(t, 3, g.Evictions())
}

func TestActivityGraph_LateRecordRejectedBelowFloor(t *testing.T) {
	g := testGraph(t, Config{MaxWindows: 2})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		ts := base.Add(time.Duration(i) * 5 * time.Minute)
		require.NoError(t, g.Insert(tx(fmt.Sprintf("tx-%d", i), addr(1), addr(2), ts)))
	}

	err := g.Insert(tx("late", addr(1), addr(2), base))
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrOutOfOrder)
	assert.EqualValues(t, 1, g.LateRecords())

	// Rejection does not disturb the retained state.
	assert.Len(t, g.RetainedWindows(), 2)
}

func TestActivityGraph_PinBlocksEviction(t *testing.T) {
	g := testGraph(t, Config{MaxWindows: 2})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	oldest := g.WindowOf(base)
	g.Pin(oldest, "sub-1")

	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * 5 * time.Minute)
		require.NoError(t, g.Insert(tx(fmt.Sprintf("tx-%d", i), addr(1), addr(2), ts)))
	}

	// The pinned window survives past the retention bound and stays
	// queryable.
	assert.Len(t, g.TransactionsIn(oldest), 1)

	g.Unpin(oldest, "sub-1")
	g.Evict(oldest.End)
	assert.Empty(t, g.TransactionsIn(oldest))
}

func TestActivityGraph_UnpinAllReleasesEverything(t *testing.T) {
	g := testGraph(t, Config{})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	w1 := g.WindowOf(base)
	w2 := g.WindowOf(base.Add(5 * time.Minute))
	g.Pin(w1, "sub-1")
	g.Pin(w2, "sub-1")

	require.NoError(t, g.Insert(tx("a", addr(1), addr(2), base)))
	require.NoError(t, g.Insert(tx("b", addr(1), addr(2), base.Add(5*time.Minute))))

	g.UnpinAll("sub-1")
	g.Evict(w2.End)
	assert.Empty(t, g.RetainedWindows())
}

func TestNeighborhood_DepthBound(t *testing.T) {
	g := testGraph(t, Config{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := g.WindowOf(base)

	// Chain: 1 -> 2 -> 3 -> 4
	require.NoError(t, g.Insert(tx("e1", addr(1), addr(2), base)))
	require.NoError(t, g.Insert(tx("e2", addr(2), addr(3), base.Add(time.Second))))
	require.NoError(t, g.Insert(tx("e3", addr(3), addr(4), base.Add(2*time.Second))))

	snap := g.Neighborhood(addr(1), w, 2)
	assert.True(t, snap.Contains(addr(3)))
	assert.False(t, snap.Contains(addr(4)))
	assert.True(t, snap.Truncated)

	// Only transactions with both endpoints inside the set survive.
	require.Len(t, snap.Transactions, 2)
	assert.Equal(t, "e1", snap.Transactions[0].ID)
	assert.Equal(t, "e2", snap.Transactions[1].ID)
}

func TestNeighborhood_DepthCappedAtConfiguredMax(t *testing.T) {
	g := testGraph(t, Config{MaxDepth: 2})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := g.WindowOf(base)

	require.NoError(t, g.Insert(tx("e1", addr(1), addr(2), base)))

	snap := g.Neighborhood(addr(1), w, 10)
	assert.Equal(t, 2, snap.Depth)
	assert.True(t, snap.Truncated)
}

func TestNeighborhood_NotTruncatedWhenFullyExplored(t *testing.T) {
	g := testGraph(t, Config{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := g.WindowOf(base)

	require.NoError(t, g.Insert(tx("e1", addr(1), addr(2), base)))

	snap := g.Neighborhood(addr(1), w, 3)
	assert.False(t, snap.Truncated)
	assert.Len(t, snap.Addresses, 2)
}

func TestNeighborhood_MissingWindowIsEmpty(t *testing.T) {
	g := testGraph(t, Config{})
	w := g.WindowOf(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	snap := g.Neighborhood(addr(1), w, 2)
	assert.True(t, snap.Empty())
	assert.Empty(t, snap.Addresses)
}

func TestNeighborhood_TraversesBothDirections(t *testing.T) {
	g := testGraph(t, Config{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := g.WindowOf(base)

	// 2 -> 1 and 1 -> 3: both neighbors reachable from 1.
	require.NoError(t, g.Insert(tx("in", addr(2), addr(1), base)))
	require.NoError(t, g.Insert(tx("out", addr(1), addr(3), base.Add(time.Second))))

	snap := g.Neighborhood(addr(1), w, 1)
	assert.True(t, snap.Contains(addr(2)))
	assert.True(t, snap.Contains(addr(3)))
}

func TestActivityGraph_OnEvictReportsRemovalAndFloor(t *testing.T) {
	g := testGraph(t, Config{})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var gotRemoved int
	var gotFloor time.Time
	g.OnEvict(func(removed int, floor time.Time) {
		gotRemoved += removed
		gotFloor = floor
	})

	require.NoError(t, g.Insert(tx("a", addr(1), addr(2), base)))
	require.NoError(t, g.Insert(tx("b", addr(1), addr(2), base.Add(5*time.Minute))))
	require.NoError(t, g.Insert(tx("c", addr(1), addr(2), base.Add(10*time.Minute))))

	cutoff := base.Add(10 * time.Minute)
	require.Equal(t, 2, g.Evict(cutoff))

	assert.Equal(t, 2, gotRemoved)
	assert.Equal(t, cutoff, gotFloor)

	// Nothing left to evict, so the callback stays quiet.
	require.Zero(t, g.Evict(cutoff))
	assert.Equal(t, 2, gotRemoved)
}

func TestActivityGraph_ConcurrentInsertAndEvictLosesNothing(t *testing.T) {
	g := testGraph(t, Config{WindowSize: time.Minute, MaxWindows: 1000, MaxAge: 24 * time.Hour})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cutoff := base.Add(4 * time.Minute)

	const total = 400
	accepted := make([]bool, total)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			g.Evict(cutoff)
		}
	}()

	for i := 0; i < total; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		err := g.Insert(tx(fmt.Sprintf("tx-%03d", i), addr(1), addr(2), ts))
		if err != nil {
			require.ErrorIs(t, err, entity.ErrOutOfOrder)
			continue
		}
		accepted[i] = true
	}
	<-done
	g.Evict(cutoff)

	// Every accepted transaction in a window the cutoff never touched
	// must still be present; none may vanish into an orphaned shard.
	for i := 0; i < total; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		if !accepted[i] || ts.Before(cutoff) {
			continue
		}
		txs := g.TransactionsIn(g.WindowOf(ts))
		found := false
		for _, got := range txs {
			if got.ID == fmt.Sprintf("tx-%03d", i) {
				found = true
				break
			}
		}
		require.True(t, found, "transaction tx-%03d missing from its window", i)
	}
}
