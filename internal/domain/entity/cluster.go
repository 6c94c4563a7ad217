package entity

// ClusterPattern labels the coordinated-trading pattern a cluster matched.
type ClusterPattern string

const (
	PatternWashTrading   ClusterPattern = "WASH_TRADING"   // same wallets cycling buys and sells
	PatternSniperRing    ClusterPattern = "SNIPER_RING"    // commonly funded wallets buying a fresh contract
	PatternPumpGroup     ClusterPattern = "PUMP_GROUP"     // near-simultaneous buys across unrelated wallets
	PatternCommonFunding ClusterPattern = "COMMON_FUNDING" // shared funding ancestor, mixed activity
)

// Cluster is a bundle candidate: a group of transactions exhibiting
// coordinated trading within one window. Read-only after creation;
// superseded, never mutated, when the window re-runs.
type Cluster struct {
	Addresses      []Address      `json:"addresses"`
	TransactionIDs []string       `json:"transaction_ids"`
	Cohesion       float64        `json:"cohesion"`
	Pattern        ClusterPattern `json:"pattern"`
	Window         TimeWindow     `json:"window"`
}

// Size returns the number of member transactions.
func (c *Cluster) Size() int { return len(c.TransactionIDs) }
