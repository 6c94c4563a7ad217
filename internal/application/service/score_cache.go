package service

import (
	"fmt"
	"sync"
	"time"

	"memescan-engine/internal/domain/entity"

	"golang.org/x/sync/singleflight"
)

// ScoreCache memoizes risk profiles per (contract, window). Profiles are
// recomputed whole per window, never incrementally updated, so the cache
// simply drops entries once their window closes. Concurrent identical
// evaluations collapse into one via singleflight.
type ScoreCache struct {
	mu      sync.RWMutex
	entries map[string]*entity.RiskProfile
	group   singleflight.Group
}

// NewScoreCache creates an empty cache.
func NewScoreCache() *ScoreCache {
	return &ScoreCache{entries: make(map[string]*entity.RiskProfile)}
}

func cacheKey(contract entity.Address, window entity.TimeWindow) string {
	return fmt.Sprintf("%s|%d", contract, window.Key())
}

// GetOrCompute returns the cached profile or computes and stores it.
func (c *ScoreCache) GetOrCompute(contract entity.Address, window entity.TimeWindow, compute func() (*entity.RiskProfile, error)) (*entity.RiskProfile, error) {
	key := cacheKey(contract, window)

	c.mu.RLock()
	profile, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return profile, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
		profile, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = profile
		c.mu.Unlock()
		return profile, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*entity.RiskProfile), nil
}

// Invalidate removes one entry, forcing the next lookup to recompute.
func (c *ScoreCache) Invalidate(contract entity.Address, window entity.TimeWindow) {
	c.mu.Lock()
	delete(c.entries, cacheKey(contract, window))
	c.mu.Unlock()
}

// PruneBefore drops every entry whose window closed at or before the
// cutoff. Wired to graph eviction so the cache tracks retention.
func (c *ScoreCache) PruneBefore(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, profile := range c.entries {
		if !profile.Window.End.After(cutoff) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of cached profiles.
func (c *ScoreCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
