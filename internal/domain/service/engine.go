package service

import (
	"context"

	"memescan-engine/internal/domain/entity"
)

// AnalysisService defines the consumer-facing analytical operations.
type AnalysisService interface {
	// AnalyzeContract scores a contract for exploit risk within the current
	// window.
	AnalyzeContract(ctx context.Context, address string) (*entity.RiskProfile, error)

	// DetectBundles clusters a supplied transaction batch for coordinated
	// trading. Malformed records are dropped and counted, not fatal.
	DetectBundles(ctx context.Context, records []entity.RawRecord) ([]*entity.Cluster, error)

	// AnalyzeTrend produces a directional signal from window-level market
	// features.
	AnalyzeTrend(ctx context.Context, features *entity.MarketFeatures) (*entity.TrendSignal, error)

	// IntegrateContractInteractions summarizes cross-contract interaction
	// structure around a contract.
	IntegrateContractInteractions(ctx context.Context, address string) (*entity.InteractionSummary, error)
}

// MonitorService manages live wallet subscriptions.
type MonitorService interface {
	// MonitorWallet registers a wallet for continuous evaluation. Alerts
	// are delivered on the returned channel until the subscription closes.
	MonitorWallet(ctx context.Context, address string) (*entity.Subscription, <-chan *entity.Alert, error)

	// Unsubscribe transitions a subscription to Closed. In-flight
	// evaluations complete but their results are discarded.
	Unsubscribe(subscriptionID string) error

	// SubscriptionState reports the current lifecycle state.
	SubscriptionState(subscriptionID string) (entity.SubscriptionState, error)
}

// TransactionFeed is the live upstream transaction stream consumed by the
// monitor. Records arrives in non-decreasing timestamp order per wallet.
type TransactionFeed interface {
	// Subscribe returns a channel of raw records touching the wallet. The
	// channel closes when the feed shuts down. The same wallet may carry
	// several independent subscriptions.
	Subscribe(ctx context.Context, wallet entity.Address) (<-chan entity.RawRecord, error)

	// Unsubscribe closes and releases one subscription's channel; other
	// subscriptions on the same wallet are unaffected.
	Unsubscribe(wallet entity.Address, records <-chan entity.RawRecord) error
}
