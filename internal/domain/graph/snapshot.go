package graph

import (
	"sort"

	"memescan-engine/internal/domain/entity"
)

// Snapshot is an immutable induced subgraph: the addresses reachable from
// a root within a hop bound, plus every window transaction whose endpoints
// both lie in that set. Transactions are sorted by id so downstream
// analysis is reproducible.
type Snapshot struct {
	Root         entity.Address
	Window       entity.TimeWindow
	Depth        int
	Addresses    []entity.Address
	Transactions []*entity.Transaction
	Truncated    bool
}

// Contains reports whether the address is part of the snapshot.
func (s *Snapshot) Contains(addr entity.Address) bool {
	for _, a := range s.Addresses {
		if a.Equals(addr) {
			return true
		}
	}
	return false
}

// Empty reports whether the snapshot holds no transactions.
func (s *Snapshot) Empty() bool { return len(s.Transactions) == 0 }

// Neighborhood returns the induced subgraph within depth hops of addr,
// bounded by the window. Depth beyond the configured cap truncates rather
// than fails; a missing window yields an empty snapshot.
func (g *ActivityGraph) Neighborhood(addr entity.Address, w entity.TimeWindow, depth int) *Snapshot {
	snap := &Snapshot{Root: addr, Window: w, Depth: depth}
	if depth > g.cfg.MaxDepth {
		depth = g.cfg.MaxDepth
		snap.Depth = depth
		snap.Truncated = true
	}

	g.mu.RLock()
	shard := g.windows[w.Key()]
	g.mu.RUnlock()
	if shard == nil {
		return snap
	}

	shard.mu.RLock()
	defer shard.mu.RUnlock()

	// BFS over both edge directions up to the hop bound.
	visited := map[entity.Address]int{addr: 0}
	queue := []entity.Address{addr}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		hop := visited[current]
		if hop >= depth {
			snap.Truncated = snap.Truncated || hasUnvisitedNeighbor(shard, current, visited)
			continue
		}
		for _, tx := range shard.out[current] {
			if _, seen := visited[tx.To]; !seen {
				visited[tx.To] = hop + 1
				queue = append(queue, tx.To)
			}
		}
		for _, tx := range shard.in[current] {
			if _, seen := visited[tx.From]; !seen {
				visited[tx.From] = hop + 1
				queue = append(queue, tx.From)
			}
		}
	}

	for a := range visited {
		snap.Addresses = append(snap.Addresses, a)
	}
	sort.Slice(snap.Addresses, func(i, j int) bool {
		return snap.Addresses[i].String() < snap.Addresses[j].String()
	})

	seen := make(map[string]struct{})
	for _, tx := range shard.txs {
		if _, dup := seen[tx.ID]; dup {
			continue
		}
		if _, okFrom := visited[tx.From]; !okFrom {
			continue
		}
		if _, okTo := visited[tx.To]; !okTo {
			continue
		}
		seen[tx.ID] = struct{}{}
		snap.Transactions = append(snap.Transactions, tx)
	}
	sort.Slice(snap.Transactions, func(i, j int) bool {
		return snap.Transactions[i].ID < snap.Transactions[j].ID
	})
	return snap
}

func hasUnvisitedNeighbor(shard *windowShard, addr entity.Address, visited map[entity.Address]int) bool {
	for _, tx := range shard.out[addr] {
		if _, seen := visited[tx.To]; !seen {
			return true
		}
	}
	for _, tx := range shard.in[addr] {
		if _, seen := visited[tx.From]; !seen {
			return true
		}
	}
	return false
}
