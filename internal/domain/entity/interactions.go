package entity

import "time"

// ContractInteraction summarizes traffic between the queried contract and
// one neighboring contract: how many transactions link them and how many
// wallets they share.
type ContractInteraction struct {
	Contract      Address `json:"contract"`
	TxCount       int64   `json:"tx_count"`
	SharedWallets int64   `json:"shared_wallets"`
	TotalValue    uint64  `json:"total_value"`
}

// InteractionSummary is the cross-contract interaction graph summary for
// one contract.
type InteractionSummary struct {
	Contract     Address               `json:"contract"`
	Window       TimeWindow            `json:"window"`
	WalletCount  int64                 `json:"wallet_count"`
	Interactions []ContractInteraction `json:"interactions"`
	Confidence   Confidence            `json:"confidence"`
	EvaluatedAt  time.Time             `json:"evaluated_at"`
}
