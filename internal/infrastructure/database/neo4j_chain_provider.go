package database

import (
	"context"
	"errors"
	"fmt"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/infrastructure/config"
	"memescan-engine/internal/infrastructure/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Neo4JChainProvider implements repository.ChainDataProvider against the
// address-graph database. A circuit breaker trips to ProviderUnavailable
// fast during outages instead of hammering a dead database; monitoring
// loops retry with backoff, batch callers see the error verbatim.
type Neo4JChainProvider struct {
	client  *Neo4JClient
	config  *config.Neo4JConfig
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

// NewNeo4JChainProvider creates the provider adapter.
func NewNeo4JChainProvider(client *Neo4JClient, cfg *config.Neo4JConfig, logger *logger.Logger) *Neo4JChainProvider {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "neo4j-chain-provider",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Neo4JChainProvider{
		client:  client,
		config:  cfg,
		breaker: breaker,
		logger:  logger.WithComponent("neo4j-chain-provider"),
	}
}

// FetchTransactions returns raw transactions touching the address within
// the window, ordered by signature.
func (p *Neo4JChainProvider) FetchTransactions(ctx context.Context, address entity.Address, window entity.TimeWindow) ([]entity.RawRecord, error) {
	query := `
		MATCH (from:Wallet)-[r:SENT_TO]->(to:Wallet)
		WHERE (from.address = $address OR to.address = $address)
			AND r.timestamp >= $start AND r.timestamp < $end
		RETURN r.tx_hash AS signature, from.address AS from, to.address AS to,
			r.value AS value, r.instruction AS instruction,
			r.contract AS contract, r.timestamp AS timestamp
		ORDER BY signature
	`
	params := map[string]interface{}{
		"address": address.String(),
		"start":   window.Start.Unix(),
		"end":     window.End.Unix(),
	}

	result, err := p.execute(ctx, func(session neo4j.SessionWithContext) (any, error) {
		return session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			var records []entity.RawRecord
			for res.Next(ctx) {
				rec := res.Record()
				records = append(records, entity.RawRecord{
					Signature:   stringValue(rec, "signature"),
					From:        stringValue(rec, "from"),
					To:          stringValue(rec, "to"),
					Value:       stringValue(rec, "value"),
					Instruction: stringValue(rec, "instruction"),
					Contract:    stringValue(rec, "contract"),
					Timestamp:   intValue(rec, "timestamp"),
					Network:     "solana",
				})
			}
			return records, res.Err()
		})
	})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]entity.RawRecord)

	p.logger.Debug("Fetched transactions",
		zap.String("address", address.String()),
		zap.String("window", window.String()),
		zap.Int("count", len(records)))
	return records, nil
}

// FetchContractMetadata returns raw metadata for a deployed contract.
// A contract unknown to the graph is insufficient data, not an outage.
func (p *Neo4JChainProvider) FetchContractMetadata(ctx context.Context, address entity.Address) (*entity.RawContractInfo, error) {
	query := `
		MATCH (c:Contract {address: $address})
		RETURN c.address AS address, c.bytecode_hash AS bytecode_hash,
			c.owner AS owner, c.deployed_at AS deployed_at,
			c.verified AS verified,
			c.mint_authority_revoked AS mint_authority_revoked,
			c.owner_holding_pct AS owner_holding_pct,
			c.liquidity_owner AS liquidity_owner,
			c.total_supply AS total_supply
	`
	params := map[string]interface{}{"address": address.String()}

	result, err := p.execute(ctx, func(session neo4j.SessionWithContext) (any, error) {
		return session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			if !res.Next(ctx) {
				return nil, res.Err()
			}
			rec := res.Record()
			return &entity.RawContractInfo{
				Address:              stringValue(rec, "address"),
				BytecodeHash:         stringValue(rec, "bytecode_hash"),
				Owner:                stringValue(rec, "owner"),
				DeployedAt:           intValue(rec, "deployed_at"),
				Verified:             boolValue(rec, "verified"),
				MintAuthorityRevoked: boolValue(rec, "mint_authority_revoked"),
				OwnerHoldingPct:      floatValue(rec, "owner_holding_pct"),
				LiquidityOwner:       stringValue(rec, "liquidity_owner"),
				TotalSupply:          stringValue(rec, "total_supply"),
				Network:              "solana",
			}, nil
		})
	})
	if err != nil {
		return nil, err
	}

	info, _ := result.(*entity.RawContractInfo)
	if info == nil {
		return nil, fmt.Errorf("%w: contract %s not indexed", entity.ErrInsufficientData, address)
	}
	return info, nil
}

// execute runs a session operation through the circuit breaker, mapping
// failures onto ProviderUnavailable.
func (p *Neo4JChainProvider) execute(ctx context.Context, op func(neo4j.SessionWithContext) (any, error)) (any, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		session := p.client.GetDriver().NewSession(ctx, neo4j.SessionConfig{
			DatabaseName: p.config.Database,
			AccessMode:   neo4j.AccessModeRead,
		})
		defer session.Close(ctx)
		return op(session)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open: %v", entity.ErrProviderUnavailable, err)
		}
		p.logger.Error("Provider query failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", entity.ErrProviderUnavailable, err)
	}
	return result, nil
}

func stringValue(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intValue(rec *neo4j.Record, key string) int64 {
	if v, ok := rec.Get(key); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}

func boolValue(rec *neo4j.Record, key string) bool {
	if v, ok := rec.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func floatValue(rec *neo4j.Record, key string) float64 {
	if v, ok := rec.Get(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	}
	return 0
}
