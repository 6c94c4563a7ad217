package blockchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/infrastructure/config"
	"memescan-engine/internal/infrastructure/logger"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// SolanaClient reads contract metadata straight from chain over RPC.
// It covers what the on-chain account state can answer: mint authority,
// supply, top-holder concentration, deployment time. Per-transaction
// history stays with the graph provider.
type SolanaClient struct {
	client  *rpc.Client
	config  *config.SolanaConfig
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

// NewSolanaClient creates the RPC client.
func NewSolanaClient(cfg *config.SolanaConfig, logger *logger.Logger) *SolanaClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "solana-rpc",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &SolanaClient{
		client:  rpc.New(cfg.RPCURL),
		config:  cfg,
		breaker: breaker,
		logger:  logger.WithComponent("solana-client"),
	}
}

// FetchContractMetadata resolves a token mint account into raw contract
// info. An address with no account on chain is insufficient data.
func (c *SolanaClient) FetchContractMetadata(ctx context.Context, address entity.Address) (*entity.RawContractInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	account, err := c.accountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: account %s not found on chain", entity.ErrInsufficientData, address)
	}

	data := account.Data.GetBinary()
	info := &entity.RawContractInfo{
		Address:      address.String(),
		BytecodeHash: hashAccountData(data),
		Network:      "solana",
	}

	if account.Owner.Equals(solana.TokenProgramID) {
		var mint token.Mint
		if err := bin.NewBinDecoder(data).Decode(&mint); err != nil {
			return nil, fmt.Errorf("%w: undecodable mint account %s: %v", entity.ErrMalformedRecord, address, err)
		}
		info.MintAuthorityRevoked = mint.MintAuthority == nil
		info.TotalSupply = strconv.FormatUint(mint.Supply, 10)
		if mint.MintAuthority != nil {
			info.Owner = mint.MintAuthority.String()
		}
		if pct, err := c.topHolderPct(ctx, address, mint.Supply); err == nil {
			info.OwnerHoldingPct = pct
		}
	}

	if deployedAt, err := c.earliestSignatureTime(ctx, address); err == nil {
		info.DeployedAt = deployedAt
	}

	c.logger.Debug("Fetched on-chain metadata",
		zap.String("address", address.String()),
		zap.Bool("mint_authority_revoked", info.MintAuthorityRevoked))
	return info, nil
}

func (c *SolanaClient) accountInfo(ctx context.Context, address entity.Address) (*rpc.Account, error) {
	result, err := c.execute(func() (any, error) {
		out, err := c.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
			Commitment: rpc.CommitmentFinalized,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			return (*rpc.Account)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		return out.Value, nil
	})
	if err != nil {
		return nil, err
	}
	account, _ := result.(*rpc.Account)
	return account, nil
}

// topHolderPct reports the largest token account balance as a share of
// total supply.
func (c *SolanaClient) topHolderPct(ctx context.Context, mint entity.Address, supply uint64) (float64, error) {
	if supply == 0 {
		return 0, nil
	}
	result, err := c.execute(func() (any, error) {
		return c.client.GetTokenLargestAccounts(ctx, mint, rpc.CommitmentFinalized)
	})
	if err != nil {
		return 0, err
	}
	out, _ := result.(*rpc.GetTokenLargestAccountsResult)
	if out == nil || len(out.Value) == 0 {
		return 0, nil
	}
	largest, err := strconv.ParseUint(out.Value[0].Amount, 10, 64)
	if err != nil {
		return 0, err
	}
	return float64(largest) / float64(supply) * 100, nil
}

// earliestSignatureTime approximates the deployment timestamp from the
// oldest fetched signature. Bounded by MaxSignatureFetch, so very old
// accounts get the oldest time in range rather than true deployment.
func (c *SolanaClient) earliestSignatureTime(ctx context.Context, address entity.Address) (int64, error) {
	limit := c.config.MaxSignatureFetch
	result, err := c.execute(func() (any, error) {
		return c.client.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentFinalized,
		})
	})
	if err != nil {
		return 0, err
	}
	sigs, _ := result.([]*rpc.TransactionSignature)
	var earliest int64
	for _, sig := range sigs {
		if sig.BlockTime == nil {
			continue
		}
		ts := sig.BlockTime.Time().Unix()
		if earliest == 0 || ts < earliest {
			earliest = ts
		}
	}
	if earliest == 0 {
		return 0, fmt.Errorf("%w: no timestamped signatures for %s", entity.ErrInsufficientData, address)
	}
	return earliest, nil
}

func (c *SolanaClient) execute(op func() (any, error)) (any, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return op()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open: %v", entity.ErrProviderUnavailable, err)
		}
		c.logger.Error("RPC call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", entity.ErrProviderUnavailable, err)
	}
	return result, nil
}

func hashAccountData(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
