package service

import (
	"sort"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/domain/graph"
)

// summarizeInteractions reduces a neighborhood snapshot to per-contract
// interaction rows: transaction counts, shared wallets, moved value.
func summarizeInteractions(root entity.Address, snap *graph.Snapshot, window entity.TimeWindow, confidence entity.Confidence, now time.Time) *entity.InteractionSummary {
	type agg struct {
		txCount int64
		value   uint64
		wallets map[entity.Address]struct{}
	}
	perContract := make(map[entity.Address]*agg)
	rootWallets := make(map[entity.Address]struct{})
	allWallets := make(map[entity.Address]struct{})

	for _, tx := range snap.Transactions {
		allWallets[tx.From] = struct{}{}
		allWallets[tx.To] = struct{}{}
		if tx.Contract == nil {
			continue
		}
		if tx.Contract.Equals(root) {
			rootWallets[tx.From] = struct{}{}
			continue
		}
		a := perContract[*tx.Contract]
		if a == nil {
			a = &agg{wallets: make(map[entity.Address]struct{})}
			perContract[*tx.Contract] = a
		}
		a.txCount++
		a.value += tx.Value
		a.wallets[tx.From] = struct{}{}
	}

	summary := &entity.InteractionSummary{
		Contract:    root,
		Window:      window,
		WalletCount: int64(len(allWallets)),
		Confidence:  confidence,
		EvaluatedAt: now,
	}
	for contract, a := range perContract {
		shared := int64(0)
		for w := range a.wallets {
			if _, ok := rootWallets[w]; ok {
				shared++
			}
		}
		summary.Interactions = append(summary.Interactions, entity.ContractInteraction{
			Contract:      contract,
			TxCount:       a.txCount,
			SharedWallets: shared,
			TotalValue:    a.value,
		})
	}
	sort.Slice(summary.Interactions, func(i, j int) bool {
		a, b := summary.Interactions[i], summary.Interactions[j]
		if a.TxCount != b.TxCount {
			return a.TxCount > b.TxCount
		}
		return a.Contract.String() < b.Contract.String()
	})
	return summary
}
