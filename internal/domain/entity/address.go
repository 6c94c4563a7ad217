package entity

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Address is a Solana account identifier (32 bytes, base58 text form).
// Immutable once observed.
type Address = solana.PublicKey

// ParseAddress validates a base58 account identifier.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	addr, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return addr, nil
}
