package service

import (
	"testing"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDetector(t *testing.T) *BundleDetector {
	t.Helper()
	return NewBundleDetector(BundleDetectorConfig{
		SubInterval:       30 * time.Second,
		NearSimultaneous:  5 * time.Second,
		CohesionThreshold: 0.3,
		MinMembers:        2,
		FundingDepth:      2,
	}, logger.NewNop())
}

func addr(b byte) entity.Address {
	return entity.Address{b}
}

func trade(id string, from entity.Address, contract entity.Address, kind entity.InstructionKind, ts time.Time) *entity.Transaction {
	return &entity.Transaction{
		ID:        id,
		Timestamp: ts,
		From:      from,
		To:        addr(200),
		Value:     100,
		Kind:      kind,
		Contract:  &contract,
	}
}

func transfer(id string, from, to entity.Address, ts time.Time) *entity.Transaction {
	return &entity.Transaction{
		ID:        id,
		Timestamp: ts,
		From:      from,
		To:        to,
		Value:     1000,
		Kind:      entity.KindTransfer,
	}
}

func TestBundleDetector_CommonFundingLineage(t *testing.T) {
	d := testDetector(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := entity.WindowOf(base, 5*time.Minute)

	funder := addr(10)
	w1, w2 := addr(11), addr(12)
	token := addr(99)

	txs := []*entity.Transaction{
		transfer("f1", funder, w1, base),
		transfer("f2", funder, w2, base.Add(time.Second)),
		trade("t1", w1, token, entity.KindSwapBuy, base.Add(10*time.Second)),
		trade("t2", w2, token, entity.KindSwapBuy, base.Add(20*time.Second)),
	}

	clusters := d.Detect(txs, w)
	require.Len(t, clusters, 1)

	c := clusters[0]
	assert.GreaterOrEqual(t, c.Size(), 2)
	assert.Greater(t, c.Cohesion, 0.0)
	assert.Equal(t, entity.PatternSniperRing, c.Pattern)
	assert.Contains(t, c.Addresses, w1)
	assert.Contains(t, c.Addresses, w2)
}

func TestBundleDetector_SharedDescendantLinksFunders(t *testing.T) {
	d := testDetector(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := entity.WindowOf(base, 5*time.Minute)

	// Two wallets both fund a common third wallet, then buy the same
	// token. The lineage runs through the shared descendant.
	w1, w2, shared := addr(21), addr(22), addr(23)
	token := addr(99)

	txs := []*entity.Transaction{
		transfer("f1", w1, shared, base),
		transfer("f2", w2, shared, base.Add(time.Second)),
		trade("t1", w1, token, entity.KindSwapBuy, base.Add(10*time.Second)),
		trade("t2", w2, token, entity.KindSwapBuy, base.Add(20*time.Second)),
	}

	clusters := d.Detect(txs, w)
	require.Len(t, clusters, 1)
	assert.Contains(t, clusters[0].Addresses, w1)
	assert.Contains(t, clusters[0].Addresses, w2)
}

func TestBundleDetector_WashTradingSameWallet(t *testing.T) {
	d := testDetector(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := entity.WindowOf(base, 5*time.Minute)

	trader := addr(31)
	token := addr(99)

	txs := []*entity.Transaction{
		trade("t1", trader, token, entity.KindSwapBuy, base),
		trade("t2", trader, token, entity.KindSwapSell, base.Add(10*time.Second)),
	}

	// MinMembers counts distinct wallets; one wallet washing needs the
	// floor lowered to be reportable.
	d.cfg.MinMembers = 1
	clusters := d.Detect(txs, w)
	require.Len(t, clusters, 1)
	assert.Equal(t, entity.PatternWashTrading, clusters[0].Pattern)
}

func TestBundleDetector_NearSimultaneousBuysArePumpGroup(t *testing.T) {
	d := testDetector(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := entity.WindowOf(base, 5*time.Minute)

	token := addr(99)
	txs := []*entity.Transaction{
		trade("t1", addr(41), token, entity.KindSwapBuy, base),
		trade("t2", addr(42), token, entity.KindSwapBuy, base.Add(2*time.Second)),
		trade("t3", addr(43), token, entity.KindSwapBuy, base.Add(4*time.Second)),
	}

	clusters := d.Detect(txs, w)
	require.Len(t, clusters, 1)
	assert.Equal(t, entity.PatternPumpGroup, clusters[0].Pattern)
	assert.Len(t, clusters[0].Addresses, 3)
}

func TestBundleDetector_UnrelatedTradesDoNotCluster(t *testing.T) {
	d := testDetector(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := entity.WindowOf(base, 5*time.Minute)

	tokenA, tokenB := addr(98), addr(99)
	txs := []*entity.Transaction{
		// Different contracts, and too far apart in time on the same one.
		trade("t1", addr(51), tokenA, entity.KindSwapBuy, base),
		trade("t2", addr(52), tokenB, entity.KindSwapBuy, base.Add(time.Second)),
		trade("t3", addr(53), tokenA, entity.KindSwapBuy, base.Add(2*time.Minute)),
	}

	assert.Empty(t, d.Detect(txs, w))
}

func TestBundleDetector_DeterministicAcrossInputOrder(t *testing.T) {
	d := testDetector(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := entity.WindowOf(base, 5*time.Minute)

	funder := addr(10)
	token := addr(99)
	txs := []*entity.Transaction{
		transfer("f1", funder, addr(11), base),
		transfer("f2", funder, addr(12), base.Add(time.Second)),
		trade("t1", addr(11), token, entity.KindSwapBuy, base.Add(10*time.Second)),
		trade("t2", addr(12), token, entity.KindSwapBuy, base.Add(20*time.Second)),
		trade("t3", addr(13), token, entity.KindSwapSell, base.Add(22*time.Second)),
	}

	first := d.Detect(txs, w)
	require.NotEmpty(t, first)

	reversed := make([]*entity.Transaction, len(txs))
	for i, tx := range txs {
		reversed[len(txs)-1-i] = tx
	}
	second := d.Detect(reversed, w)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].TransactionIDs, second[i].TransactionIDs)
		assert.Equal(t, first[i].Addresses, second[i].Addresses)
		assert.Equal(t, first[i].Cohesion, second[i].Cohesion)
		assert.Equal(t, first[i].Pattern, second[i].Pattern)
	}
}

func TestBundleDetector_IgnoresOutOfWindowTransactions(t *testing.T) {
	d := testDetector(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := entity.WindowOf(base, 5*time.Minute)

	token := addr(99)
	txs := []*entity.Transaction{
		trade("t1", addr(61), token, entity.KindSwapBuy, base),
		trade("t2", addr(62), token, entity.KindSwapBuy, base.Add(6*time.Minute)),
	}

	assert.Empty(t, d.Detect(txs, w))
}
