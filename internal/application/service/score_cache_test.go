package service

import (
	"errors"
	"testing"
	"time"

	"memescan-engine/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheWindow(start time.Time) entity.TimeWindow {
	return entity.TimeWindow{Start: start, End: start.Add(5 * time.Minute)}
}

func cacheProfile(contract entity.Address, window entity.TimeWindow) *entity.RiskProfile {
	return &entity.RiskProfile{Contract: contract, Window: window, Score: 0.5}
}

func TestScoreCache_ComputesOncePerWindow(t *testing.T) {
	cache := NewScoreCache()
	contract := entity.Address{1}
	window := cacheWindow(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	calls := 0
	compute := func() (*entity.RiskProfile, error) {
		calls++
		return cacheProfile(contract, window), nil
	}

	first, err := cache.GetOrCompute(contract, window, compute)
	require.NoError(t, err)
	second, err := cache.GetOrCompute(contract, window, compute)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.Len())
}

func TestScoreCache_ErrorsAreNotCached(t *testing.T) {
	cache := NewScoreCache()
	contract := entity.Address{1}
	window := cacheWindow(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	boom := errors.New("provider down")
	_, err := cache.GetOrCompute(contract, window, func() (*entity.RiskProfile, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, cache.Len())

	profile, err := cache.GetOrCompute(contract, window, func() (*entity.RiskProfile, error) {
		return cacheProfile(contract, window), nil
	})
	require.NoError(t, err)
	assert.NotNil(t, profile)
}

func TestScoreCache_WindowsAreIndependent(t *testing.T) {
	cache := NewScoreCache()
	contract := entity.Address{1}
	w1 := cacheWindow(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	w2 := cacheWindow(w1.End)

	calls := 0
	compute := func(w entity.TimeWindow) func() (*entity.RiskProfile, error) {
		return func() (*entity.RiskProfile, error) {
			calls++
			return cacheProfile(contract, w), nil
		}
	}

	_, err := cache.GetOrCompute(contract, w1, compute(w1))
	require.NoError(t, err)
	_, err = cache.GetOrCompute(contract, w2, compute(w2))
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, cache.Len())
}

func TestScoreCache_InvalidateForcesRecompute(t *testing.T) {
	cache := NewScoreCache()
	contract := entity.Address{1}
	window := cacheWindow(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	calls := 0
	compute := func() (*entity.RiskProfile, error) {
		calls++
		return cacheProfile(contract, window), nil
	}

	_, err := cache.GetOrCompute(contract, window, compute)
	require.NoError(t, err)

	cache.Invalidate(contract, window)
	_, err = cache.GetOrCompute(contract, window, compute)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestScoreCache_PruneBeforeDropsClosedWindows(t *testing.T) {
	cache := NewScoreCache()
	contract := entity.Address{1}
	old := cacheWindow(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	current := cacheWindow(old.End)

	for _, w := range []entity.TimeWindow{old, current} {
		w := w
		_, err := cache.GetOrCompute(contract, w, func() (*entity.RiskProfile, error) {
			return cacheProfile(contract, w), nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 2, cache.Len())

	cache.PruneBefore(current.Start)
	assert.Equal(t, 1, cache.Len())

	calls := 0
	_, err := cache.GetOrCompute(contract, current, func() (*entity.RiskProfile, error) {
		calls++
		return cacheProfile(contract, current), nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
}
