package service

import (
	"fmt"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/domain/graph"
)

// ownerConcentrationRule fires when the owner holds more of the supply
// than the configured threshold.
type ownerConcentrationRule struct {
	thresholdPct float64
}

func (ownerConcentrationRule) Kind() entity.RuleKind         { return entity.RuleOwnerConcentration }
func (ownerConcentrationRule) Severity() entity.RuleSeverity { return entity.SeverityHigh }
func (ownerConcentrationRule) Weight() float64               { return 0.25 }

func (r ownerConcentrationRule) Evaluate(c *entity.Contract, _ *graph.Snapshot) (float64, string, bool) {
	if !c.HasOwner() || c.OwnerHoldingPct <= r.thresholdPct {
		return 0, "", false
	}
	// Scale linearly from the threshold up to full ownership.
	score := (c.OwnerHoldingPct - r.thresholdPct) / (100 - r.thresholdPct)
	return score, fmt.Sprintf("owner holds %.1f%% of supply (threshold %.1f%%)",
		c.OwnerHoldingPct, r.thresholdPct), true
}

// mintAuthorityRule fires when the mint authority was never revoked, so
// the owner can still inflate supply at will.
type mintAuthorityRule struct{}

func (mintAuthorityRule) Kind() entity.RuleKind         { return entity.RuleMintAuthority }
func (mintAuthorityRule) Severity() entity.RuleSeverity { return entity.SeverityHigh }
func (mintAuthorityRule) Weight() float64               { return 0.25 }

func (mintAuthorityRule) Evaluate(c *entity.Contract, _ *graph.Snapshot) (float64, string, bool) {
	if c.MintAuthorityRevoked {
		return 0, "", false
	}
	return 1, "mint authority not revoked", true
}

// rugTemplateRule fires when unverified bytecode matches a known rug-pull
// template hash.
type rugTemplateRule struct {
	templates map[string]struct{}
}

func (rugTemplateRule) Kind() entity.RuleKind         { return entity.RuleRugTemplate }
func (rugTemplateRule) Severity() entity.RuleSeverity { return entity.SeverityHigh }
func (rugTemplateRule) Weight() float64               { return 0.2 }

func (r rugTemplateRule) Evaluate(c *entity.Contract, _ *graph.Snapshot) (float64, string, bool) {
	if c.Verified || !c.HasBytecode() {
		return 0, "", false
	}
	if _, match := r.templates[c.BytecodeHash]; !match {
		return 0, "", false
	}
	return 1, fmt.Sprintf("unverified bytecode matches rug-pull template %s", c.BytecodeHash), true
}

// liquidityOwnerRule fires when the liquidity pool owner is the contract
// owner, letting one party drain the pool.
type liquidityOwnerRule struct{}

func (liquidityOwnerRule) Kind() entity.RuleKind         { return entity.RuleLiquidityOwner }
func (liquidityOwnerRule) Severity() entity.RuleSeverity { return entity.SeverityMedium }
func (liquidityOwnerRule) Weight() float64               { return 0.15 }

func (liquidityOwnerRule) Evaluate(c *entity.Contract, _ *graph.Snapshot) (float64, string, bool) {
	if !c.HasOwner() || c.LiquidityOwner == nil || !c.LiquidityOwner.Equals(*c.Owner) {
		return 0, "", false
	}
	return 1, "liquidity pool owner is the contract owner", true
}

// deployerHistoryRule fires when the owner is a flagged deployer, or the
// neighborhood shows the owner deploying other contracts in-window.
type deployerHistoryRule struct {
	flagged map[string]struct{}
}

func (deployerHistoryRule) Kind() entity.RuleKind         { return entity.RuleDeployerHistory }
func (deployerHistoryRule) Severity() entity.RuleSeverity { return entity.SeverityMedium }
func (deployerHistoryRule) Weight() float64               { return 0.1 }

func (r deployerHistoryRule) Evaluate(c *entity.Contract, snap *graph.Snapshot) (float64, string, bool) {
	if !c.HasOwner() {
		return 0, "", false
	}
	if _, bad := r.flagged[c.Owner.String()]; bad {
		return 1, fmt.Sprintf("deployer %s is on the flagged list", c.Owner), true
	}
	deploys := 0
	for _, tx := range snap.Transactions {
		if tx.Kind == entity.KindDeploy && tx.From.Equals(*c.Owner) {
			if tx.Contract == nil || !tx.Contract.Equals(c.Address) {
				deploys++
			}
		}
	}
	if deploys == 0 {
		return 0, "", false
	}
	score := float64(deploys) / 5
	return score, fmt.Sprintf("deployer launched %d other contracts in-window", deploys), true
}

// ownerFundedSellsRule fires on a burst of sells from wallets the owner
// funded within the same window, the classic exit pattern.
type ownerFundedSellsRule struct {
	burstThreshold int
}

func (ownerFundedSellsRule) Kind() entity.RuleKind         { return entity.RuleOwnerFundedSells }
func (ownerFundedSellsRule) Severity() entity.RuleSeverity { return entity.SeverityMedium }
func (ownerFundedSellsRule) Weight() float64               { return 0.05 }

func (r ownerFundedSellsRule) Evaluate(c *entity.Contract, snap *graph.Snapshot) (float64, string, bool) {
	if !c.HasOwner() {
		return 0, "", false
	}
	funded := make(map[entity.Address]struct{})
	for _, tx := range snap.Transactions {
		if tx.Kind == entity.KindTransfer && tx.From.Equals(*c.Owner) {
			funded[tx.To] = struct{}{}
		}
	}
	sells := 0
	for _, tx := range snap.Transactions {
		if tx.Kind != entity.KindSwapSell || tx.Contract == nil || !tx.Contract.Equals(c.Address) {
			continue
		}
		if _, ok := funded[tx.From]; ok {
			sells++
		}
	}
	if sells < r.burstThreshold {
		return 0, "", false
	}
	score := float64(sells) / float64(r.burstThreshold*3)
	return score, fmt.Sprintf("%d sells from owner-funded wallets", sells), true
}
