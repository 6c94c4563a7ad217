package service

import (
	"fmt"
	"strconv"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// Normalizer converts raw chain records into canonical entities. Stateless;
// malformed records fail with entity.ErrMalformedRecord and are dropped by
// callers, never aborting a batch.
type Normalizer struct {
	logger *logger.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(log *logger.Logger) *Normalizer {
	return &Normalizer{logger: log.WithComponent("normalizer")}
}

// NormalizeTransaction validates and converts one raw transaction record.
func (n *Normalizer) NormalizeTransaction(raw *entity.RawRecord) (*entity.Transaction, error) {
	if raw.Signature == "" {
		return nil, fmt.Errorf("%w: missing signature", entity.ErrMalformedRecord)
	}
	if raw.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: tx %s: missing timestamp", entity.ErrMalformedRecord, raw.Signature)
	}

	from, err := entity.ParseAddress(raw.From)
	if err != nil {
		return nil, fmt.Errorf("%w: tx %s: bad from address %q", entity.ErrMalformedRecord, raw.Signature, raw.From)
	}
	to, err := entity.ParseAddress(raw.To)
	if err != nil {
		return nil, fmt.Errorf("%w: tx %s: bad to address %q", entity.ErrMalformedRecord, raw.Signature, raw.To)
	}

	value, err := parseValue(raw.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: tx %s: %v", entity.ErrMalformedRecord, raw.Signature, err)
	}

	kind, err := entity.ParseInstructionKind(raw.Instruction)
	if err != nil {
		return nil, fmt.Errorf("tx %s: %w", raw.Signature, err)
	}

	tx := &entity.Transaction{
		ID:        raw.Signature,
		Timestamp: time.Unix(raw.Timestamp, 0).UTC(),
		From:      from,
		To:        to,
		Value:     value,
		Kind:      kind,
	}

	if raw.Contract != "" {
		contract, err := entity.ParseAddress(raw.Contract)
		if err != nil {
			return nil, fmt.Errorf("%w: tx %s: bad contract address %q", entity.ErrMalformedRecord, raw.Signature, raw.Contract)
		}
		tx.Contract = &contract
	}

	return tx, nil
}

// NormalizeBatch converts a batch, dropping and logging malformed records.
// Returns the surviving transactions and the drop count.
func (n *Normalizer) NormalizeBatch(records []entity.RawRecord) ([]*entity.Transaction, int) {
	txs := make([]*entity.Transaction, 0, len(records))
	dropped := 0
	for i := range records {
		tx, err := n.NormalizeTransaction(&records[i])
		if err != nil {
			dropped++
			n.logger.Warn("Dropping malformed record",
				zap.String("signature", records[i].Signature),
				zap.Error(err))
			continue
		}
		txs = append(txs, tx)
	}
	return txs, dropped
}

// NormalizeContract validates and converts raw contract metadata.
func (n *Normalizer) NormalizeContract(raw *entity.RawContractInfo) (*entity.Contract, error) {
	addr, err := entity.ParseAddress(raw.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: bad contract address %q", entity.ErrMalformedRecord, raw.Address)
	}
	if raw.OwnerHoldingPct < 0 || raw.OwnerHoldingPct > 100 {
		return nil, fmt.Errorf("%w: contract %s: owner holding %.2f%% out of range",
			entity.ErrMalformedRecord, raw.Address, raw.OwnerHoldingPct)
	}

	c := &entity.Contract{
		Address:              addr,
		BytecodeHash:         raw.BytecodeHash,
		Verified:             raw.Verified,
		MintAuthorityRevoked: raw.MintAuthorityRevoked,
		OwnerHoldingPct:      raw.OwnerHoldingPct,
	}
	if raw.DeployedAt > 0 {
		c.DeployedAt = time.Unix(raw.DeployedAt, 0).UTC()
	}
	if raw.Owner != "" {
		owner, err := entity.ParseAddress(raw.Owner)
		if err != nil {
			return nil, fmt.Errorf("%w: contract %s: bad owner address %q",
				entity.ErrMalformedRecord, raw.Address, raw.Owner)
		}
		c.Owner = &owner
	}
	if raw.LiquidityOwner != "" {
		lp, err := entity.ParseAddress(raw.LiquidityOwner)
		if err != nil {
			return nil, fmt.Errorf("%w: contract %s: bad liquidity owner address %q",
				entity.ErrMalformedRecord, raw.Address, raw.LiquidityOwner)
		}
		c.LiquidityOwner = &lp
	}
	if raw.TotalSupply != "" {
		supply, err := parseValue(raw.TotalSupply)
		if err != nil {
			return nil, fmt.Errorf("%w: contract %s: %v", entity.ErrMalformedRecord, raw.Address, err)
		}
		c.TotalSupply = supply
	}
	return c, nil
}

// parseValue parses a wire value string. Negative and overflowing values
// are malformed.
func parseValue(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad value %q: %v", s, err)
	}
	return v, nil
}
