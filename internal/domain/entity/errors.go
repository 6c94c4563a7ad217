package entity

import "errors"

// Engine error taxonomy. Components wrap these sentinels with context via
// fmt.Errorf("...: %w", err); callers discriminate with errors.Is.
var (
	// ErrMalformedRecord marks a raw chain record that cannot be normalized.
	// The record is dropped and counted; ingestion continues.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidAddress marks a caller-supplied address that fails base58
	// validation. Surfaced immediately, no lookup is attempted.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInsufficientData marks an analysis with too little input to produce
	// a fully supported result. Callers usually still receive a partial
	// result with low confidence; the bare error means zero data existed.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrProviderUnavailable marks an upstream chain-data outage.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrOutOfOrder marks a transaction older than the graph retention
	// floor. Counted as a metric, never fatal.
	ErrOutOfOrder = errors.New("transaction below retention floor")

	// ErrSubscriptionClosed marks operations against a closed subscription.
	ErrSubscriptionClosed = errors.New("subscription closed")
)
