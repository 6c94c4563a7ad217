package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/domain/graph"
	domain_service "memescan-engine/internal/domain/service"
	"memescan-engine/internal/infrastructure/config"
	"memescan-engine/internal/infrastructure/logger"
	"memescan-engine/internal/infrastructure/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(b byte) entity.Address {
	return entity.Address{b}
}

func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			Graph: config.GraphConfig{
				WindowSize: 5 * time.Minute,
				MaxWindows: 12,
				MaxAge:     time.Hour,
				MaxDepth:   3,
			},
			Risk: config.RiskConfig{
				OwnerConcentrationPct: 50,
				SellBurstThreshold:    3,
				AlertThreshold:        0.4,
			},
			Bundle: config.BundleConfig{
				SubInterval:       30 * time.Second,
				NearSimultaneous:  5 * time.Second,
				CohesionThreshold: 0.3,
				MinMembers:        2,
				FundingDepth:      2,
			},
			Trend: config.TrendConfig{
				VolumeWeight:        0.35,
				UniqueBuyersWeight:  0.3,
				ConcentrationWeight: 0.2,
				AlertDensityWeight:  0.15,
				FlatBand:            0.1,
				StaleAfter:          10 * time.Minute,
			},
			Monitor: config.MonitorConfig{
				DebounceInterval:  0,
				FeedTimeout:       time.Second,
				AlertBuffer:       16,
				NeighborhoodDepth: 2,
			},
			AnalysisConcurrency: 4,
		},
	}
}

// fakeProvider is an in-memory ChainDataProvider.
type fakeProvider struct {
	mu            sync.Mutex
	records       []entity.RawRecord
	txErr         error
	metadata      *entity.RawContractInfo
	metadataErr   error
	metadataCalls int
	txCalls       int
}

func (p *fakeProvider) FetchTransactions(_ context.Context, _ entity.Address, w entity.TimeWindow) ([]entity.RawRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txCalls++
	if p.txErr != nil {
		return nil, p.txErr
	}
	var out []entity.RawRecord
	for _, r := range p.records {
		if w.Contains(time.Unix(r.Timestamp, 0)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *fakeProvider) FetchContractMetadata(_ context.Context, _ entity.Address) (*entity.RawContractInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadataCalls++
	if p.metadataErr != nil {
		return nil, p.metadataErr
	}
	if p.metadata == nil {
		return nil, fmt.Errorf("%w: unknown contract", entity.ErrInsufficientData)
	}
	return p.metadata, nil
}

func (p *fakeProvider) calls() (metadata, tx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metadataCalls, p.txCalls
}

func newAnalysisService(t *testing.T, cfg *config.Config, provider *fakeProvider, now time.Time) *AnalysisApplicationService {
	t.Helper()
	log := logger.NewNop()
	activity := graph.New(graph.Config{
		WindowSize: cfg.Engine.Graph.WindowSize,
		MaxWindows: cfg.Engine.Graph.MaxWindows,
		MaxAge:     cfg.Engine.Graph.MaxAge,
		MaxDepth:   cfg.Engine.Graph.MaxDepth,
	}, log)
	scorer := domain_service.NewRiskScorer(domain_service.RiskScorerConfig{
		OwnerConcentrationPct: cfg.Engine.Risk.OwnerConcentrationPct,
		SellBurstThreshold:    cfg.Engine.Risk.SellBurstThreshold,
	}, log)
	detector := domain_service.NewBundleDetector(domain_service.BundleDetectorConfig{
		SubInterval:       cfg.Engine.Bundle.SubInterval,
		NearSimultaneous:  cfg.Engine.Bundle.NearSimultaneous,
		CohesionThreshold: cfg.Engine.Bundle.CohesionThreshold,
		MinMembers:        cfg.Engine.Bundle.MinMembers,
		FundingDepth:      cfg.Engine.Bundle.FundingDepth,
	}, log)
	predictor := domain_service.NewTrendPredictor(domain_service.TrendPredictorConfig{
		VolumeWeight:        cfg.Engine.Trend.VolumeWeight,
		UniqueBuyersWeight:  cfg.Engine.Trend.UniqueBuyersWeight,
		ConcentrationWeight: cfg.Engine.Trend.ConcentrationWeight,
		AlertDensityWeight:  cfg.Engine.Trend.AlertDensityWeight,
		FlatBand:            cfg.Engine.Trend.FlatBand,
		StaleAfter:          cfg.Engine.Trend.StaleAfter,
	}, log)

	svc := NewAnalysisApplicationService(
		provider,
		domain_service.NewNormalizer(log),
		activity,
		scorer,
		detector,
		predictor,
		NewScoreCache(),
		metrics.NewForTest(),
		cfg,
		log,
	).(*AnalysisApplicationService)
	svc.now = func() time.Time { return now }
	return svc
}

func rawTrade(sig string, from, contract entity.Address, kind string, ts time.Time) entity.RawRecord {
	return entity.RawRecord{
		Signature:   sig,
		From:        from.String(),
		To:          addr(200).String(),
		Value:       "1000",
		Instruction: kind,
		Contract:    contract.String(),
		Timestamp:   ts.Unix(),
		Network:     "solana",
	}
}

func TestAnalyzeContract_InvalidAddressSkipsProvider(t *testing.T) {
	provider := &fakeProvider{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newAnalysisService(t, testConfig(), provider, now)

	_, err := svc.AnalyzeContract(context.Background(), "definitely-not-base58")
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrInvalidAddress)

	metadataCalls, txCalls := provider.calls()
	assert.Zero(t, metadataCalls)
	assert.Zero(t, txCalls)
}

func TestAnalyzeContract_ScoresFromMetadataAndActivity(t *testing.T) {
	contract := addr(99)
	owner := addr(1)
	now := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	provider := &fakeProvider{
		metadata: &entity.RawContractInfo{
			Address:              contract.String(),
			BytecodeHash:         "abc123",
			Owner:                owner.String(),
			OwnerHoldingPct:      90,
			MintAuthorityRevoked: false,
			Verified:             true,
		},
		records: []entity.RawRecord{
			rawTrade("t1", addr(10), contract, "swap_buy", now),
		},
	}
	svc := newAnalysisService(t, testConfig(), provider, now)

	profile, err := svc.AnalyzeContract(context.Background(), contract.String())
	require.NoError(t, err)

	assert.Greater(t, profile.Score, 0.0)
	assert.Equal(t, contract, profile.Contract)
	assert.Equal(t, entity.ConfidenceHigh, profile.Confidence)

	rules := make([]entity.RuleKind, 0, len(profile.Factors))
	for _, f := range profile.Factors {
		rules = append(rules, f.Rule)
	}
	assert.Contains(t, rules, entity.RuleOwnerConcentration)
	assert.Contains(t, rules, entity.RuleMintAuthority)
}

func TestAnalyzeContract_ProviderOutageSurfacesVerbatim(t *testing.T) {
	provider := &fakeProvider{
		metadataErr: fmt.Errorf("%w: connection refused", entity.ErrProviderUnavailable),
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newAnalysisService(t, testConfig(), provider, now)

	_, err := svc.AnalyzeContract(context.Background(), addr(99).String())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrProviderUnavailable)
}

func TestAnalyzeContract_MissingMetadataDegradesToActivityOnly(t *testing.T) {
	contract := addr(99)
	now := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	provider := &fakeProvider{
		records: []entity.RawRecord{
			rawTrade("t1", addr(10), contract, "swap_buy", now),
		},
	}
	svc := newAnalysisService(t, testConfig(), provider, now)

	profile, err := svc.AnalyzeContract(context.Background(), contract.String())
	require.NoError(t, err)
	assert.Equal(t, entity.ConfidenceLow, profile.Confidence)
}

func TestAnalyzeContract_CachesPerWindow(t *testing.T) {
	contract := addr(99)
	now := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	provider := &fakeProvider{
		metadata: &entity.RawContractInfo{
			Address:      contract.String(),
			BytecodeHash: "abc123",
			Owner:        addr(1).String(),
		},
	}
	svc := newAnalysisService(t, testConfig(), provider, now)

	first, err := svc.AnalyzeContract(context.Background(), contract.String())
	require.NoError(t, err)
	second, err := svc.AnalyzeContract(context.Background(), contract.String())
	require.NoError(t, err)

	assert.Same(t, first, second)
	metadataCalls, _ := provider.calls()
	assert.Equal(t, 1, metadataCalls)
}

func TestDetectBundles_AllMalformedFails(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newAnalysisService(t, testConfig(), &fakeProvider{}, now)

	_, err := svc.DetectBundles(context.Background(), []entity.RawRecord{
		{Signature: "", From: addr(1).String(), To: addr(2).String()},
		{Signature: "x", From: "junk", To: addr(2).String(), Instruction: "transfer", Timestamp: now.Unix()},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrMalformedRecord)
}

func TestDetectBundles_ClustersFundedBuyers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	svc := newAnalysisService(t, testConfig(), &fakeProvider{}, now)

	funder, w1, w2, token := addr(10), addr(11), addr(12), addr(99)
	records := []entity.RawRecord{
		{Signature: "f1", From: funder.String(), To: w1.String(), Value: "5000", Instruction: "transfer", Timestamp: now.Unix(), Network: "solana"},
		{Signature: "f2", From: funder.String(), To: w2.String(), Value: "5000", Instruction: "transfer", Timestamp: now.Add(time.Second).Unix(), Network: "solana"},
		rawTrade("t1", w1, token, "swap_buy", now.Add(10*time.Second)),
		rawTrade("t2", w2, token, "swap_buy", now.Add(20*time.Second)),
		// Malformed straggler is dropped, not fatal.
		{Signature: "bad", From: "junk", To: w1.String(), Instruction: "transfer", Timestamp: now.Unix()},
	}

	clusters, err := svc.DetectBundles(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, entity.PatternSniperRing, clusters[0].Pattern)
	assert.Greater(t, clusters[0].Cohesion, 0.0)

	// Batch analysis never mutates live graph state.
	assert.Empty(t, svc.activity.RetainedWindows())
}

func TestAnalyzeTrend_SeedsBaselineThenTracksMovement(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newAnalysisService(t, testConfig(), &fakeProvider{}, now)
	w := entity.WindowOf(now, 5*time.Minute)

	first := &entity.MarketFeatures{
		Token:        addr(99),
		Window:       w,
		Volume:       &entity.FeatureSample{Value: 1000, ObservedAt: now},
		UniqueBuyers: &entity.FeatureSample{Value: 40, ObservedAt: now},
	}
	signal, err := svc.AnalyzeTrend(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, entity.TrendFlat, signal.Direction, "first observation seeds the baseline")

	surge := &entity.MarketFeatures{
		Token:        addr(99),
		Window:       w,
		Volume:       &entity.FeatureSample{Value: 5000, ObservedAt: now},
		UniqueBuyers: &entity.FeatureSample{Value: 200, ObservedAt: now},
	}
	signal, err = svc.AnalyzeTrend(context.Background(), surge)
	require.NoError(t, err)
	assert.Equal(t, entity.TrendUp, signal.Direction)
	assert.Greater(t, signal.Confidence, 0.0)
}

func TestAnalyzeTrend_NilFeaturesFails(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newAnalysisService(t, testConfig(), &fakeProvider{}, now)

	_, err := svc.AnalyzeTrend(context.Background(), nil)
	assert.ErrorIs(t, err, entity.ErrInsufficientData)
}

func TestIntegrateContractInteractions_SummarizesNeighbors(t *testing.T) {
	root := addr(99)
	other := addr(98)
	shared := addr(10)
	now := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	provider := &fakeProvider{
		metadata: &entity.RawContractInfo{Address: root.String(), BytecodeHash: "abc"},
		records: []entity.RawRecord{
			rawTrade("t1", shared, root, "swap_buy", now),
			rawTrade("t2", shared, other, "swap_buy", now.Add(time.Second)),
			rawTrade("t3", addr(11), other, "swap_buy", now.Add(2*time.Second)),
		},
	}
	svc := newAnalysisService(t, testConfig(), provider, now)

	summary, err := svc.IntegrateContractInteractions(context.Background(), root.String())
	require.NoError(t, err)

	assert.Equal(t, root, summary.Contract)
	assert.Equal(t, entity.ConfidenceHigh, summary.Confidence)
	require.NotEmpty(t, summary.Interactions)
	assert.Equal(t, other, summary.Interactions[0].Contract)
	assert.GreaterOrEqual(t, summary.Interactions[0].SharedWallets, int64(1))
}

func TestIntegrateContractInteractions_ConfidenceDropsWithoutMetadata(t *testing.T) {
	root := addr(99)
	now := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	provider := &fakeProvider{
		records: []entity.RawRecord{rawTrade("t1", addr(10), root, "swap_buy", now)},
	}
	svc := newAnalysisService(t, testConfig(), provider, now)

	summary, err := svc.IntegrateContractInteractions(context.Background(), root.String())
	require.NoError(t, err)
	assert.Equal(t, entity.ConfidenceMedium, summary.Confidence)

	provider.metadataErr = fmt.Errorf("%w: dead", entity.ErrProviderUnavailable)
	summary, err = svc.IntegrateContractInteractions(context.Background(), root.String())
	require.NoError(t, err)
	assert.Equal(t, entity.ConfidenceLow, summary.Confidence)
}
