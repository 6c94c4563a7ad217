package entity

import (
	"fmt"
	"time"
)

// InstructionKind classifies a transaction by its primary instruction.
type InstructionKind string

const (
	KindTransfer        InstructionKind = "transfer"
	KindSwapBuy         InstructionKind = "swap_buy"
	KindSwapSell        InstructionKind = "swap_sell"
	KindMint            InstructionKind = "mint"
	KindBurn            InstructionKind = "burn"
	KindDeploy          InstructionKind = "deploy"
	KindLiquidityAdd    InstructionKind = "liquidity_add"
	KindLiquidityRemove InstructionKind = "liquidity_remove"
)

// ParseInstructionKind maps a raw instruction label to a known kind.
func ParseInstructionKind(s string) (InstructionKind, error) {
	switch k := InstructionKind(s); k {
	case KindTransfer, KindSwapBuy, KindSwapSell, KindMint, KindBurn,
		KindDeploy, KindLiquidityAdd, KindLiquidityRemove:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown instruction kind %q", ErrMalformedRecord, s)
}

// RawRecord is a transaction event as delivered by the chain-data provider
// or the feed, before normalization. All fields are wire strings.
type RawRecord struct {
	Signature   string `json:"signature"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Instruction string `json:"instruction"`
	Contract    string `json:"contract,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	Network     string `json:"network"`
}

// Transaction is a canonical chain transaction. Immutable after
// normalization; referenced by the graph and clusters, never mutated.
type Transaction struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	From      Address         `json:"from"`
	To        Address         `json:"to"`
	Value     uint64          `json:"value"`
	Kind      InstructionKind `json:"kind"`
	Contract  *Address        `json:"contract,omitempty"`
}

// Touches reports whether the transaction involves the address as sender,
// receiver, or contract.
func (t *Transaction) Touches(addr Address) bool {
	if t.From.Equals(addr) || t.To.Equals(addr) {
		return true
	}
	return t.Contract != nil && t.Contract.Equals(addr)
}

// IsSwap reports whether the transaction is a DEX trade on either side.
func (t *Transaction) IsSwap() bool {
	return t.Kind == KindSwapBuy || t.Kind == KindSwapSell
}
