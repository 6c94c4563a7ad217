package service

import (
	"sync"

	"memescan-engine/internal/domain/entity"
)

// ewmaAlpha weights the newest observation in the trailing baseline.
const ewmaAlpha = 0.3

// baselineTracker keeps a trailing baseline per token so trend deltas
// compare against recent history rather than absolutes.
type baselineTracker struct {
	mu        sync.Mutex
	baselines map[entity.Address]*entity.TrendBaseline
}

func newBaselineTracker() *baselineTracker {
	return &baselineTracker{baselines: make(map[entity.Address]*entity.TrendBaseline)}
}

// baselineFor returns the token's trailing baseline. The first call seeds
// it from the current features, yielding a flat first signal.
func (t *baselineTracker) baselineFor(features *entity.MarketFeatures) *entity.TrendBaseline {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.baselines[features.Token]; ok {
		copied := *b
		return &copied
	}
	seed := &entity.TrendBaseline{
		Volume:              sampleValue(features.Volume),
		UniqueBuyers:        sampleValue(features.UniqueBuyers),
		HolderConcentration: sampleValue(features.HolderConcentration),
		AlertDensity:        sampleValue(features.AlertDensity),
	}
	t.baselines[features.Token] = seed
	copied := *seed
	return &copied
}

// update folds the observation into the trailing baseline.
func (t *baselineTracker) update(features *entity.MarketFeatures) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.baselines[features.Token]
	if !ok {
		return
	}
	b.Volume = ewma(b.Volume, features.Volume)
	b.UniqueBuyers = ewma(b.UniqueBuyers, features.UniqueBuyers)
	b.HolderConcentration = ewma(b.HolderConcentration, features.HolderConcentration)
	b.AlertDensity = ewma(b.AlertDensity, features.AlertDensity)
}

func ewma(current float64, sample *entity.FeatureSample) float64 {
	if sample == nil {
		return current
	}
	return ewmaAlpha*sample.Value + (1-ewmaAlpha)*current
}

func sampleValue(sample *entity.FeatureSample) float64 {
	if sample == nil {
		return 0
	}
	return sample.Value
}
