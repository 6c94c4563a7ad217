package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/domain/graph"
	"memescan-engine/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// Rule is one independent risk heuristic. Rules are order-insensitive:
// the composite score is a commutative weighted sum, so new rules can be
// added without disturbing existing relative rankings.
type Rule interface {
	Kind() entity.RuleKind
	Severity() entity.RuleSeverity
	Weight() float64

	// Evaluate returns the bounded sub-score in [0,1], a human-readable
	// detail, and whether the rule triggered at all.
	Evaluate(c *entity.Contract, snap *graph.Snapshot) (score float64, detail string, triggered bool)
}

// RiskScorerConfig tunes the rule set.
type RiskScorerConfig struct {
	OwnerConcentrationPct float64
	RugTemplateHashes     []string
	FlaggedDeployers      []string
	SellBurstThreshold    int
}

// RiskScorer evaluates a contract plus its graph neighborhood against the
// rule set, producing a RiskProfile.
type RiskScorer struct {
	rules  []Rule
	logger *logger.Logger

	mu       sync.Mutex
	lastEval map[entity.Address]time.Time
}

// NewRiskScorer creates a scorer with the built-in rule set.
func NewRiskScorer(cfg RiskScorerConfig, log *logger.Logger) *RiskScorer {
	templates := make(map[string]struct{}, len(cfg.RugTemplateHashes))
	for _, h := range cfg.RugTemplateHashes {
		templates[h] = struct{}{}
	}
	flagged := make(map[string]struct{}, len(cfg.FlaggedDeployers))
	for _, a := range cfg.FlaggedDeployers {
		flagged[a] = struct{}{}
	}

	return &RiskScorer{
		rules: []Rule{
			ownerConcentrationRule{thresholdPct: cfg.OwnerConcentrationPct},
			mintAuthorityRule{},
			rugTemplateRule{templates: templates},
			liquidityOwnerRule{},
			deployerHistoryRule{flagged: flagged},
			ownerFundedSellsRule{burstThreshold: cfg.SellBurstThreshold},
		},
		logger:   log.WithComponent("risk-scorer"),
		lastEval: make(map[entity.Address]time.Time),
	}
}

// Score produces the RiskProfile for a (contract, window) pair. With no
// bytecode, no owner, and an empty neighborhood there is zero signal and
// the call fails with entity.ErrInsufficientData; partial data yields a
// profile with reduced confidence instead.
func (s *RiskScorer) Score(c *entity.Contract, snap *graph.Snapshot, now time.Time) (*entity.RiskProfile, error) {
	if c == nil {
		return nil, fmt.Errorf("risk scorer: %w: no contract metadata", entity.ErrInsufficientData)
	}
	if !c.HasBytecode() && !c.HasOwner() && snap.Empty() {
		return nil, fmt.Errorf("risk scorer: %w: contract %s has no bytecode, owner, or activity",
			entity.ErrInsufficientData, c.Address)
	}

	profile := &entity.RiskProfile{
		Contract:    c.Address,
		Window:      snap.Window,
		Confidence:  s.confidence(c, snap),
		EvaluatedAt: s.monotonicEvalTime(c.Address, now),
	}

	var weighted, totalWeight float64
	for _, rule := range s.rules {
		totalWeight += rule.Weight()
		score, detail, triggered := rule.Evaluate(c, snap)
		if !triggered {
			continue
		}
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		weighted += rule.Weight() * score
		profile.Factors = append(profile.Factors, entity.RiskFactor{
			Rule:     rule.Kind(),
			Severity: rule.Severity(),
			Weight:   rule.Weight(),
			Score:    score,
			Detail:   detail,
		})
	}

	if totalWeight > 0 {
		profile.Score = weighted / totalWeight
	}
	if profile.Score > 1 {
		profile.Score = 1
	}

	// Largest contribution first; rule kind breaks ties so the ordering is
	// stable across runs.
	sort.Slice(profile.Factors, func(i, j int) bool {
		fi, fj := profile.Factors[i], profile.Factors[j]
		ci, cj := fi.Weight*fi.Score, fj.Weight*fj.Score
		if ci != cj {
			return ci > cj
		}
		return fi.Rule < fj.Rule
	})

	s.logger.Debug("Scored contract",
		zap.String("contract", c.Address.String()),
		zap.Float64("score", profile.Score),
		zap.Int("factors", len(profile.Factors)),
		zap.String("confidence", string(profile.Confidence)))
	return profile, nil
}

func (s *RiskScorer) confidence(c *entity.Contract, snap *graph.Snapshot) entity.Confidence {
	switch {
	case !c.HasBytecode() || !c.HasOwner():
		return entity.ConfidenceLow
	case snap.Empty():
		return entity.ConfidenceMedium
	default:
		return entity.ConfidenceHigh
	}
}

// Forget drops per-contract evaluation clocks last touched before the
// cutoff. Called when graph retention rolls windows off so the map stays
// bounded by the retention horizon.
func (s *RiskScorer) Forget(before time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, last := range s.lastEval {
		if last.Before(before) {
			delete(s.lastEval, addr)
		}
	}
}

// monotonicEvalTime keeps EvaluatedAt non-decreasing per contract even if
// the wall clock steps backward between evaluations.
func (s *RiskScorer) monotonicEvalTime(addr entity.Address, now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastEval[addr]; ok && now.Before(last) {
		now = last
	}
	s.lastEval[addr] = now
	return now
}
