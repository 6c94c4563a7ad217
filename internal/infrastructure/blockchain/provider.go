package blockchain

import (
	"context"
	"errors"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/domain/repository"
	"memescan-engine/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// CompositeProvider routes chain-data reads: transaction history comes
// from the graph provider, contract metadata from chain RPC with the
// graph as fallback when the RPC has nothing for the address.
type CompositeProvider struct {
	graph  repository.ChainDataProvider
	chain  *SolanaClient
	logger *logger.Logger
}

// NewCompositeProvider combines the graph and RPC providers.
func NewCompositeProvider(graph repository.ChainDataProvider, chain *SolanaClient, logger *logger.Logger) repository.ChainDataProvider {
	return &CompositeProvider{
		graph:  graph,
		chain:  chain,
		logger: logger.WithComponent("composite-provider"),
	}
}

func (p *CompositeProvider) FetchTransactions(ctx context.Context, address entity.Address, window entity.TimeWindow) ([]entity.RawRecord, error) {
	return p.graph.FetchTransactions(ctx, address, window)
}

func (p *CompositeProvider) FetchContractMetadata(ctx context.Context, address entity.Address) (*entity.RawContractInfo, error) {
	info, err := p.chain.FetchContractMetadata(ctx, address)
	if err == nil {
		return info, nil
	}
	if errors.Is(err, entity.ErrInsufficientData) || errors.Is(err, entity.ErrProviderUnavailable) {
		p.logger.Debug("Falling back to graph provider for metadata",
			zap.String("address", address.String()), zap.Error(err))
		return p.graph.FetchContractMetadata(ctx, address)
	}
	return nil, err
}
