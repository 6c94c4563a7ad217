package entity

import "time"

// AlertSeverity grades an alert for downstream routing.
type AlertSeverity string

const (
	AlertInfo     AlertSeverity = "INFO"
	AlertWarn     AlertSeverity = "WARN"
	AlertCritical AlertSeverity = "CRITICAL"
)

// AlertReason names the condition that fired. Debounce is keyed by reason.
type AlertReason string

const (
	ReasonRiskThreshold  AlertReason = "RISK_THRESHOLD"
	ReasonBundleDetected AlertReason = "BUNDLE_DETECTED"
	ReasonFeedRecovered  AlertReason = "FEED_RECOVERED"
)

// Alert is a monitoring event emitted once per qualifying condition.
// Never retracted; corrections are new alerts referencing the original.
type Alert struct {
	ID             string        `json:"id"`
	SubscriptionID string        `json:"subscription_id"`
	Wallet         Address       `json:"wallet"`
	Severity       AlertSeverity `json:"severity"`
	Reason         AlertReason   `json:"reason"`
	Detail         string        `json:"detail"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	Cluster        *Cluster      `json:"cluster,omitempty"`
	Profile        *RiskProfile  `json:"profile,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}
