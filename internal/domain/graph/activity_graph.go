package graph

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// Config bounds graph retention and traversal.
type Config struct {
	WindowSize time.Duration
	MaxWindows int
	MaxAge     time.Duration
	MaxDepth   int
}

// windowShard holds one window's slice of the graph. Each shard has its
// own lock so unrelated windows stay concurrently accessible.
type windowShard struct {
	mu     sync.RWMutex
	window entity.TimeWindow
	txs    map[string]*entity.Transaction
	out    map[entity.Address][]*entity.Transaction
	in     map[entity.Address][]*entity.Transaction
}

func newWindowShard(w entity.TimeWindow) *windowShard {
	return &windowShard{
		window: w,
		txs:    make(map[string]*entity.Transaction),
		out:    make(map[entity.Address][]*entity.Transaction),
		in:     make(map[entity.Address][]*entity.Transaction),
	}
}

func (s *windowShard) insert(tx *entity.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.txs[tx.ID]; exists {
		return
	}
	s.txs[tx.ID] = tx
	s.out[tx.From] = append(s.out[tx.From], tx)
	s.in[tx.To] = append(s.in[tx.To], tx)
	if tx.Contract != nil {
		s.in[*tx.Contract] = append(s.in[*tx.Contract], tx)
	}
}

// ActivityGraph is the in-memory, time-bounded graph of addresses and the
// transactions between them. Nodes are addresses, edges are transactions,
// partitioned into fixed-width window shards.
type ActivityGraph struct {
	cfg    Config
	logger *logger.Logger

	mu      sync.RWMutex
	windows map[int64]*windowShard
	floor   time.Time
	pins    map[int64]map[string]struct{}
	onEvict func(removed int, floor time.Time)

	lateRecords atomic.Int64
	evictions   atomic.Int64
}

// New creates an empty activity graph.
func New(cfg Config, log *logger.Logger) *ActivityGraph {
	return &ActivityGraph{
		cfg:     cfg,
		logger:  log.WithComponent("activity-graph"),
		windows: make(map[int64]*windowShard),
		pins:    make(map[int64]map[string]struct{}),
	}
}

// OnEvict registers a callback invoked after each eviction, outside the
// graph lock, with the number of windows removed and the new floor. Set
// once at wiring time, before any inserts.
func (g *ActivityGraph) OnEvict(fn func(removed int, floor time.Time)) {
	g.mu.Lock()
	g.onEvict = fn
	g.mu.Unlock()
}

// WindowSize returns the configured window width.
func (g *ActivityGraph) WindowSize() time.Duration { return g.cfg.WindowSize }

// WindowOf maps a timestamp to its owning window.
func (g *ActivityGraph) WindowOf(ts time.Time) entity.TimeWindow {
	return entity.WindowOf(ts, g.cfg.WindowSize)
}

// Insert adds a transaction to its owning window, creating nodes and the
// window shard as needed. Transactions older than the retention floor are
// counted and rejected with ErrOutOfOrder; ingestion continues.
func (g *ActivityGraph) Insert(tx *entity.Transaction) error {
	g.mu.Lock()
	if !g.floor.IsZero() && tx.Timestamp.Before(g.floor) {
		g.mu.Unlock()
		g.lateRecords.Add(1)
		return fmt.Errorf("%w: tx %s at %s, floor %s",
			entity.ErrOutOfOrder, tx.ID, tx.Timestamp.Format(time.RFC3339), g.floor.Format(time.RFC3339))
	}
	w := g.WindowOf(tx.Timestamp)
	shard, ok := g.windows[w.Key()]
	if !ok {
		shard = newWindowShard(w)
		g.windows[w.Key()] = shard
	}
	g.mu.Unlock()

	shard.insert(tx)

	// Eviction may run between the map lookup and the shard insert. A
	// transaction landed in an orphaned shard would vanish silently, so
	// re-check the shard is still mapped and account it as late if not.
	g.mu.RLock()
	current := g.windows[w.Key()]
	g.mu.RUnlock()
	if current != shard {
		g.lateRecords.Add(1)
		return fmt.Errorf("%w: tx %s, window evicted during insert", entity.ErrOutOfOrder, tx.ID)
	}

	if !ok {
		g.enforceRetention()
	}
	return nil
}

// enforceRetention applies the maxWindows/maxAge policy, whichever bound
// bites first, by evicting everything before the resulting cutoff.
func (g *ActivityGraph) enforceRetention() {
	g.mu.RLock()
	if len(g.windows) == 0 {
		g.mu.RUnlock()
		return
	}
	newest := time.Time{}
	for _, shard := range g.windows {
		if shard.window.Start.After(newest) {
			newest = shard.window.Start
		}
	}
	g.mu.RUnlock()

	cutoff := newest.Add(-time.Duration(g.cfg.MaxWindows-1) * g.cfg.WindowSize)
	if ageCutoff := newest.Add(g.cfg.WindowSize).Add(-g.cfg.MaxAge); ageCutoff.After(cutoff) {
		cutoff = ageCutoff
	}
	g.Evict(cutoff)
}

// Evict prunes windows ending at or before the given point that no active
// subscription has pinned. Idempotent. Returns the number of windows
// removed.
func (g *ActivityGraph) Evict(before time.Time) int {
	g.mu.Lock()

	removed := 0
	for key, shard := range g.windows {
		if !shard.window.End.After(before) && len(g.pins[key]) == 0 {
			delete(g.windows, key)
			delete(g.pins, key)
			removed++
		}
	}

	// The floor never advances past a retained (pinned) window, so pinned
	// data stays insertable and queryable.
	floor := before
	for _, shard := range g.windows {
		if shard.window.Start.Before(floor) {
			floor = shard.window.Start
		}
	}
	if floor.After(g.floor) {
		g.floor = floor
	}

	newFloor := g.floor
	onEvict := g.onEvict
	g.mu.Unlock()

	if removed > 0 {
		g.evictions.Add(int64(removed))
		g.logger.Debug("Evicted windows",
			zap.Int("removed", removed),
			zap.Time("before", before),
			zap.Time("floor", newFloor))
		if onEvict != nil {
			onEvict(removed, newFloor)
		}
	}
	return removed
}

// Pin marks a window as referenced by a subscription, blocking eviction.
func (g *ActivityGraph) Pin(w entity.TimeWindow, subscriptionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := w.Key()
	if g.pins[key] == nil {
		g.pins[key] = make(map[string]struct{})
	}
	g.pins[key][subscriptionID] = struct{}{}
}

// Unpin releases a subscription's hold on a window.
func (g *ActivityGraph) Unpin(w entity.TimeWindow, subscriptionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := w.Key()
	delete(g.pins[key], subscriptionID)
	if len(g.pins[key]) == 0 {
		delete(g.pins, key)
	}
}

// UnpinAll releases every pin held by a subscription.
func (g *ActivityGraph) UnpinAll(subscriptionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, holders := range g.pins {
		delete(holders, subscriptionID)
		if len(holders) == 0 {
			delete(g.pins, key)
		}
	}
}

// LateRecords returns the count of insertions rejected below the floor.
func (g *ActivityGraph) LateRecords() int64 { return g.lateRecords.Load() }

// Evictions returns the count of evicted windows.
func (g *ActivityGraph) Evictions() int64 { return g.evictions.Load() }

// RetainedWindows returns the currently retained windows, oldest first.
func (g *ActivityGraph) RetainedWindows() []entity.TimeWindow {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]entity.TimeWindow, 0, len(g.windows))
	for _, shard := range g.windows {
		out = append(out, shard.window)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// TransactionsIn returns every transaction in the window, sorted by id.
func (g *ActivityGraph) TransactionsIn(w entity.TimeWindow) []*entity.Transaction {
	g.mu.RLock()
	shard := g.windows[w.Key()]
	g.mu.RUnlock()
	if shard == nil {
		return nil
	}

	shard.mu.RLock()
	defer shard.mu.RUnlock()
	out := make([]*entity.Transaction, 0, len(shard.txs))
	for _, tx := range shard.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
