package service

import (
	"fmt"
	"math"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// TrendPredictorConfig tunes the feature weights and decision band. The
// signal is a transparent heuristic, not a model: every output cites its
// contributing features.
type TrendPredictorConfig struct {
	VolumeWeight        float64
	UniqueBuyersWeight  float64
	ConcentrationWeight float64
	AlertDensityWeight  float64

	// FlatBand is the composite magnitude below which the direction is
	// reported as flat.
	FlatBand float64

	// StaleAfter marks a feature observation as stale; staleness decays
	// confidence exponentially with this as the half-life.
	StaleAfter time.Duration
}

// TrendPredictor aggregates window-level features into a directional
// signal with a confidence value.
type TrendPredictor struct {
	cfg    TrendPredictorConfig
	logger *logger.Logger
}

// NewTrendPredictor creates a predictor.
func NewTrendPredictor(cfg TrendPredictorConfig, log *logger.Logger) *TrendPredictor {
	return &TrendPredictor{cfg: cfg, logger: log.WithComponent("trend-predictor")}
}

// Predict combines normalized feature deltas against the trailing
// baseline. Missing or stale inputs lower confidence; with every feature
// missing there is nothing to predict and the call fails with
// entity.ErrInsufficientData.
func (p *TrendPredictor) Predict(features *entity.MarketFeatures, baseline *entity.TrendBaseline, now time.Time) (*entity.TrendSignal, error) {
	if features == nil || baseline == nil {
		return nil, fmt.Errorf("trend predictor: %w: no market data", entity.ErrInsufficientData)
	}

	type input struct {
		name     string
		sample   *entity.FeatureSample
		baseline float64
		weight   float64
		// bearish features push the composite down when they rise
		bearish bool
	}
	inputs := []input{
		{"volume", features.Volume, baseline.Volume, p.cfg.VolumeWeight, false},
		{"unique_buyers", features.UniqueBuyers, baseline.UniqueBuyers, p.cfg.UniqueBuyersWeight, false},
		{"holder_concentration", features.HolderConcentration, baseline.HolderConcentration, p.cfg.ConcentrationWeight, true},
		{"alert_density", features.AlertDensity, baseline.AlertDensity, p.cfg.AlertDensityWeight, true},
	}

	signal := &entity.TrendSignal{Window: features.Window}
	var composite, usedWeight, totalWeight, freshness float64
	present := 0

	for _, in := range inputs {
		totalWeight += in.weight
		if in.sample == nil {
			continue
		}
		present++
		delta := normalizedDelta(in.sample.Value, in.baseline)
		if in.bearish {
			delta = -delta
		}
		stale := now.Sub(in.sample.ObservedAt) > p.cfg.StaleAfter
		composite += in.weight * delta
		usedWeight += in.weight
		freshness += decay(now.Sub(in.sample.ObservedAt), p.cfg.StaleAfter)
		signal.Drivers = append(signal.Drivers, entity.TrendDriver{
			Feature: in.name,
			Delta:   delta,
			Weight:  in.weight,
			Stale:   stale,
		})
	}

	if present == 0 {
		return nil, fmt.Errorf("trend predictor: %w: all features missing", entity.ErrInsufficientData)
	}
	if usedWeight > 0 {
		composite /= usedWeight
	}

	switch {
	case composite > p.cfg.FlatBand:
		signal.Direction = entity.TrendUp
	case composite < -p.cfg.FlatBand:
		signal.Direction = entity.TrendDown
	default:
		signal.Direction = entity.TrendFlat
	}

	// Confidence = signal strength, discounted by input coverage and by
	// the average freshness of what was observed.
	coverage := usedWeight / totalWeight
	strength := math.Min(math.Abs(composite)/math.Max(p.cfg.FlatBand*2, 1e-9), 1)
	if signal.Direction == entity.TrendFlat {
		strength = 1 - math.Abs(composite)/math.Max(p.cfg.FlatBand, 1e-9)
	}
	signal.Confidence = clamp01(strength * coverage * (freshness / float64(present)))

	p.logger.Debug("Predicted trend",
		zap.String("direction", string(signal.Direction)),
		zap.Float64("composite", composite),
		zap.Float64("confidence", signal.Confidence),
		zap.Int("features", present))
	return signal, nil
}

// normalizedDelta scales the change against the baseline into [-1, 1].
func normalizedDelta(value, baseline float64) float64 {
	denom := math.Max(math.Abs(baseline), 1e-9)
	d := (value - baseline) / denom
	if d > 1 {
		return 1
	}
	if d < -1 {
		return -1
	}
	return d
}

func decay(age, halfLife time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	if halfLife <= 0 {
		return 0
	}
	return math.Exp2(-float64(age) / float64(halfLife))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
