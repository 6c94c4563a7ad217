package entity

import "time"

// RawContractInfo is contract metadata as delivered by the chain-data
// provider, before normalization. Missing fields stay empty.
type RawContractInfo struct {
	Address              string  `json:"address"`
	BytecodeHash         string  `json:"bytecode_hash"`
	Owner                string  `json:"owner"`
	DeployedAt           int64   `json:"deployed_at"`
	Verified             bool    `json:"verified"`
	MintAuthorityRevoked bool    `json:"mint_authority_revoked"`
	OwnerHoldingPct      float64 `json:"owner_holding_pct"`
	LiquidityOwner       string  `json:"liquidity_owner"`
	TotalSupply          string  `json:"total_supply"`
	Network              string  `json:"network"`
}

// Contract is a deployed token contract. Mutated only by re-deploy or
// upgrade events; otherwise immutable.
type Contract struct {
	Address              Address   `json:"address"`
	BytecodeHash         string    `json:"bytecode_hash"`
	DeployedAt           time.Time `json:"deployed_at"`
	Owner                *Address  `json:"owner,omitempty"`
	Verified             bool      `json:"verified"`
	MintAuthorityRevoked bool      `json:"mint_authority_revoked"`
	OwnerHoldingPct      float64   `json:"owner_holding_pct"`
	LiquidityOwner       *Address  `json:"liquidity_owner,omitempty"`
	TotalSupply          uint64    `json:"total_supply"`
}

// HasBytecode reports whether bytecode metadata was available.
func (c *Contract) HasBytecode() bool { return c.BytecodeHash != "" }

// HasOwner reports whether owner metadata was available.
func (c *Contract) HasOwner() bool { return c.Owner != nil }
