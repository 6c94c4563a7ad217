package repository

import (
	"context"

	"memescan-engine/internal/domain/entity"
)

// ChainDataProvider is the upstream collaborator supplying raw chain data.
// Implementations may fail with entity.ErrProviderUnavailable; the engine
// degrades (lower confidence) rather than crashing.
type ChainDataProvider interface {
	// FetchTransactions returns the raw transactions touching the address
	// within the window.
	FetchTransactions(ctx context.Context, address entity.Address, window entity.TimeWindow) ([]entity.RawRecord, error)

	// FetchContractMetadata returns raw metadata for a deployed contract.
	FetchContractMetadata(ctx context.Context, address entity.Address) (*entity.RawContractInfo, error)
}
