package entity

import "time"

// RuleKind identifies a risk rule.
type RuleKind string

const (
	RuleOwnerConcentration RuleKind = "OWNER_CONCENTRATION"
	RuleMintAuthority      RuleKind = "MINT_AUTHORITY_UNREVOKED"
	RuleRugTemplate        RuleKind = "RUG_PULL_TEMPLATE"
	RuleLiquidityOwner     RuleKind = "LIQUIDITY_OWNER_MATCH"
	RuleDeployerHistory    RuleKind = "DEPLOYER_HISTORY"
	RuleOwnerFundedSells   RuleKind = "OWNER_FUNDED_SELLS"
)

// RuleSeverity ranks how damaging a triggered rule is on its own.
type RuleSeverity string

const (
	SeverityLow    RuleSeverity = "LOW"
	SeverityMedium RuleSeverity = "MEDIUM"
	SeverityHigh   RuleSeverity = "HIGH"
)

// Confidence qualifies how well-supported an analytical result is, so a
// degraded answer is distinguishable from a fully supported one.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// RiskFactor is one triggered rule's contribution to a risk score.
type RiskFactor struct {
	Rule     RuleKind     `json:"rule"`
	Severity RuleSeverity `json:"severity"`
	Weight   float64      `json:"weight"`
	Score    float64      `json:"score"`
	Detail   string       `json:"detail"`
}

// RiskBucket buckets a composite score for downstream dashboards.
type RiskBucket string

const (
	BucketMinimal  RiskBucket = "MINIMAL"
	BucketLow      RiskBucket = "LOW"
	BucketModerate RiskBucket = "MODERATE"
	BucketHigh     RiskBucket = "HIGH"
	BucketCritical RiskBucket = "CRITICAL"
)

// RiskProfile is the exploit-risk verdict for one (contract, window) pair.
// Recomputed whole, never incrementally updated.
type RiskProfile struct {
	Contract    Address      `json:"contract"`
	Score       float64      `json:"score"`
	Factors     []RiskFactor `json:"factors"`
	Confidence  Confidence   `json:"confidence"`
	Window      TimeWindow   `json:"window"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
}

// Bucket maps the composite score onto a named risk bucket.
func (p *RiskProfile) Bucket() RiskBucket {
	switch {
	case p.Score >= 0.8:
		return BucketCritical
	case p.Score >= 0.6:
		return BucketHigh
	case p.Score >= 0.4:
		return BucketModerate
	case p.Score >= 0.2:
		return BucketLow
	default:
		return BucketMinimal
	}
}

// HighSeverityHits counts triggered high-severity factors. Used as the
// tie-break when two contracts share a composite score.
func (p *RiskProfile) HighSeverityHits() int {
	n := 0
	for _, f := range p.Factors {
		if f.Severity == SeverityHigh {
			n++
		}
	}
	return n
}

// RiskierThan orders two profiles: higher score first, high-severity hit
// count breaking ties.
func (p *RiskProfile) RiskierThan(other *RiskProfile) bool {
	if p.Score != other.Score {
		return p.Score > other.Score
	}
	return p.HighSeverityHits() > other.HighSeverityHits()
}
