package service

import (
	"sort"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// BundleDetectorConfig tunes clustering. All thresholds are configuration,
// not contracts.
type BundleDetectorConfig struct {
	// SubInterval bounds how far apart two transactions may be and still
	// count as coordinated.
	SubInterval time.Duration

	// NearSimultaneous bounds the tighter cross-wallet swap pattern.
	NearSimultaneous time.Duration

	// CohesionThreshold is the minimum cohesion for a reported cluster.
	CohesionThreshold float64

	// MinMembers is the minimum distinct wallet count per cluster.
	MinMembers int

	// FundingDepth caps the common-funding-ancestor search.
	FundingDepth int
}

// BundleDetector clusters window activity into coordinated-trading
// bundles. Connectivity-based (union-find over qualifying pairs) rather
// than fixed-k, because bundle sizes vary. Deterministic for a given
// snapshot: pairs are enumerated in sorted transaction-id order and ties
// resolve to the lowest id.
type BundleDetector struct {
	cfg    BundleDetectorConfig
	logger *logger.Logger
}

// NewBundleDetector creates a detector.
func NewBundleDetector(cfg BundleDetectorConfig, log *logger.Logger) *BundleDetector {
	return &BundleDetector{cfg: cfg, logger: log.WithComponent("bundle-detector")}
}

// pairKind records which qualification linked a pair, for pattern labels.
type pairKind int

const (
	pairFunding pairKind = iota
	pairOppositeSides
	pairSameSide
)

// Detect clusters the window's transactions. Input order does not matter;
// transactions outside the window are ignored.
func (d *BundleDetector) Detect(txs []*entity.Transaction, w entity.TimeWindow) []*entity.Cluster {
	// Candidates are contract trades inside the window, sorted by id.
	candidates := make([]*entity.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Contract != nil && w.Contains(tx.Timestamp) {
			candidates = append(candidates, tx)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	if len(candidates) < 2 {
		return nil
	}

	funding := buildFundingIndex(txs, w, d.cfg.FundingDepth)

	uf := newUnionFind(len(candidates))
	type edge struct {
		i, j int
		kind pairKind
	}
	var edges []edge

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			kind, ok := d.qualify(a, b, funding)
			if !ok {
				continue
			}
			uf.union(i, j)
			edges = append(edges, edge{i: i, j: j, kind: kind})
		}
	}

	// Group members and edges by root.
	members := make(map[int][]int)
	for i := range candidates {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}
	edgeCount := make(map[int]int)
	kindCount := make(map[int]map[pairKind]int)
	for _, e := range edges {
		root := uf.find(e.i)
		edgeCount[root]++
		if kindCount[root] == nil {
			kindCount[root] = make(map[pairKind]int)
		}
		kindCount[root][e.kind]++
	}

	roots := make([]int, 0, len(members))
	for root, idxs := range members {
		if len(idxs) >= 2 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	var clusters []*entity.Cluster
	for _, root := range roots {
		idxs := members[root]
		n := len(idxs)
		possible := n * (n - 1) / 2
		cohesion := float64(edgeCount[root]) / float64(possible)
		if cohesion <= d.cfg.CohesionThreshold {
			continue
		}

		cluster := &entity.Cluster{
			Cohesion: cohesion,
			Pattern:  d.labelPattern(kindCount[root], candidates, idxs),
			Window:   w,
		}
		walletSet := make(map[entity.Address]struct{})
		for _, idx := range idxs {
			tx := candidates[idx]
			cluster.TransactionIDs = append(cluster.TransactionIDs, tx.ID)
			walletSet[tx.From] = struct{}{}
		}
		if len(walletSet) < d.cfg.MinMembers {
			continue
		}
		for addr := range walletSet {
			cluster.Addresses = append(cluster.Addresses, addr)
		}
		sort.Strings(cluster.TransactionIDs)
		sort.Slice(cluster.Addresses, func(i, j int) bool {
			return cluster.Addresses[i].String() < cluster.Addresses[j].String()
		})
		clusters = append(clusters, cluster)
	}

	if len(clusters) > 0 {
		d.logger.Debug("Detected bundles",
			zap.Int("clusters", len(clusters)),
			zap.Int("candidates", len(candidates)),
			zap.String("window", w.String()))
	}
	return clusters
}

// qualify decides whether two trades are coordinated: same contract,
// overlapping timestamps within the sub-interval, and either a shared
// funding lineage or a near-simultaneous cross-wallet swap pattern.
func (d *BundleDetector) qualify(a, b *entity.Transaction, funding *fundingIndex) (pairKind, bool) {
	if !a.Contract.Equals(*b.Contract) {
		return 0, false
	}
	gap := a.Timestamp.Sub(b.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	if gap > d.cfg.SubInterval {
		return 0, false
	}
	if a.From.Equals(b.From) {
		// Same wallet trading against itself both ways is the strongest
		// wash signal; same-side repeats are not coordination evidence.
		if a.IsSwap() && b.IsSwap() && a.Kind != b.Kind {
			return pairOppositeSides, true
		}
		return 0, false
	}
	if funding.linked(a.From, b.From) {
		return pairFunding, true
	}
	if a.IsSwap() && b.IsSwap() && gap <= d.cfg.NearSimultaneous {
		if a.Kind != b.Kind {
			return pairOppositeSides, true
		}
		return pairSameSide, true
	}
	return 0, false
}

func (d *BundleDetector) labelPattern(kinds map[pairKind]int, candidates []*entity.Transaction, idxs []int) entity.ClusterPattern {
	if kinds[pairOppositeSides] > 0 && kinds[pairOppositeSides] >= kinds[pairFunding] {
		return entity.PatternWashTrading
	}
	if kinds[pairFunding] > 0 {
		allBuys := true
		for _, idx := range idxs {
			if candidates[idx].Kind != entity.KindSwapBuy {
				allBuys = false
				break
			}
		}
		if allBuys {
			return entity.PatternSniperRing
		}
		return entity.PatternCommonFunding
	}
	return entity.PatternPumpGroup
}

// fundingIndex answers whether two wallets share a funding lineage: a
// path through in-window transfer edges within the hop bound. A common
// funding ancestor within depth hops is such a path, as is one wallet
// funding the other directly.
type fundingIndex struct {
	adj     map[entity.Address][]entity.Address
	maxHops int
	reach   map[entity.Address]map[entity.Address]struct{}
}

func buildFundingIndex(txs []*entity.Transaction, w entity.TimeWindow, depth int) *fundingIndex {
	adj := make(map[entity.Address][]entity.Address)
	seen := make(map[[2]entity.Address]struct{})
	for _, tx := range txs {
		if tx.Kind != entity.KindTransfer || !w.Contains(tx.Timestamp) {
			continue
		}
		key := [2]entity.Address{tx.From, tx.To}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		adj[tx.From] = append(adj[tx.From], tx.To)
		adj[tx.To] = append(adj[tx.To], tx.From)
	}
	return &fundingIndex{
		adj:     adj,
		maxHops: 2 * depth,
		reach:   make(map[entity.Address]map[entity.Address]struct{}),
	}
}

func (f *fundingIndex) linked(a, b entity.Address) bool {
	_, ok := f.reachable(a)[b]
	return ok
}

// reachable memoizes the bounded BFS per wallet.
func (f *fundingIndex) reachable(a entity.Address) map[entity.Address]struct{} {
	if set, ok := f.reach[a]; ok {
		return set
	}
	set := make(map[entity.Address]struct{})
	frontier := []entity.Address{a}
	for hop := 0; hop < f.maxHops && len(frontier) > 0; hop++ {
		var next []entity.Address
		for _, cur := range frontier {
			for _, n := range f.adj[cur] {
				if n.Equals(a) {
					continue
				}
				if _, dup := set[n]; dup {
					continue
				}
				set[n] = struct{}{}
				next = append(next, n)
			}
		}
		frontier = next
	}
	f.reach[a] = set
	return set
}

// unionFind is a plain disjoint-set with path compression. Roots collapse
// toward the lowest index so cluster identity is order-independent.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(i, j int) {
	ri, rj := u.find(i), u.find(j)
	if ri == rj {
		return
	}
	if rj < ri {
		ri, rj = rj, ri
	}
	u.parent[rj] = ri
}
