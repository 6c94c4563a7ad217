package entity

import "time"

// SubscriptionState is the lifecycle state of a live monitoring
// registration. Active -> Suspended (feed outage) -> Active; Closed is
// terminal and reached only by explicit unsubscribe.
type SubscriptionState string

const (
	SubscriptionActive    SubscriptionState = "ACTIVE"
	SubscriptionSuspended SubscriptionState = "SUSPENDED"
	SubscriptionClosed    SubscriptionState = "CLOSED"
)

// Cursor marks the last acknowledged position in the transaction stream.
// It never moves backward.
type Cursor struct {
	Timestamp time.Time `json:"timestamp"`
	TxID      string    `json:"tx_id"`
}

// Advance moves the cursor forward. Positions at or behind the current
// one are ignored.
func (c *Cursor) Advance(ts time.Time, txID string) bool {
	if ts.Before(c.Timestamp) {
		return false
	}
	if ts.Equal(c.Timestamp) && txID <= c.TxID {
		return false
	}
	c.Timestamp = ts
	c.TxID = txID
	return true
}

// Subscription is a live monitoring registration for one wallet.
type Subscription struct {
	ID        string            `json:"id"`
	Wallet    Address           `json:"wallet"`
	State     SubscriptionState `json:"state"`
	Cursor    Cursor            `json:"cursor"`
	CreatedAt time.Time         `json:"created_at"`
}
