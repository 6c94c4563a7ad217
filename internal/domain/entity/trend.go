package entity

import "time"

// TrendDirection is the predicted short-term direction of a market.
type TrendDirection string

const (
	TrendUp   TrendDirection = "UP"
	TrendDown TrendDirection = "DOWN"
	TrendFlat TrendDirection = "FLAT"
)

// FeatureSample is one observed market feature with its observation time,
// so staleness can degrade confidence.
type FeatureSample struct {
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// MarketFeatures aggregates the window-level inputs to trend prediction.
// Nil samples mean the feature was unavailable.
type MarketFeatures struct {
	Token               Address        `json:"token"`
	Window              TimeWindow     `json:"window"`
	Volume              *FeatureSample `json:"volume,omitempty"`
	UniqueBuyers        *FeatureSample `json:"unique_buyers,omitempty"`
	HolderConcentration *FeatureSample `json:"holder_concentration,omitempty"`
	AlertDensity        *FeatureSample `json:"alert_density,omitempty"`
}

// TrendBaseline carries trailing means the current features are compared
// against.
type TrendBaseline struct {
	Volume              float64 `json:"volume"`
	UniqueBuyers        float64 `json:"unique_buyers"`
	HolderConcentration float64 `json:"holder_concentration"`
	AlertDensity        float64 `json:"alert_density"`
}

// TrendDriver records one feature's contribution to a signal, so every
// signal can cite its inputs.
type TrendDriver struct {
	Feature string  `json:"feature"`
	Delta   float64 `json:"delta"`
	Weight  float64 `json:"weight"`
	Stale   bool    `json:"stale"`
}

// TrendSignal is the directional verdict for one window.
type TrendSignal struct {
	Direction  TrendDirection `json:"direction"`
	Confidence float64        `json:"confidence"`
	Drivers    []TrendDriver  `json:"drivers"`
	Window     TimeWindow     `json:"window"`
}
