package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/domain/graph"
	"memescan-engine/internal/domain/repository"
	domain_service "memescan-engine/internal/domain/service"
	"memescan-engine/internal/infrastructure/config"
	"memescan-engine/internal/infrastructure/logger"
	"memescan-engine/internal/infrastructure/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// AnalysisApplicationService implements the consumer-facing analytical
// operations. Batch requests are stateless relative to live subscriptions
// and run under a bounded concurrency limit so they never starve the
// monitoring loops.
type AnalysisApplicationService struct {
	provider   repository.ChainDataProvider
	normalizer *domain_service.Normalizer
	activity   *graph.ActivityGraph
	scorer     *domain_service.RiskScorer
	detector   *domain_service.BundleDetector
	predictor  *domain_service.TrendPredictor
	cache      *ScoreCache
	baselines  *baselineTracker
	metrics    *metrics.Metrics
	logger     *logger.Logger
	cfg        *config.Config
	sem        *semaphore.Weighted
	now        func() time.Time
}

// NewAnalysisApplicationService creates the analysis service.
func NewAnalysisApplicationService(
	provider repository.ChainDataProvider,
	normalizer *domain_service.Normalizer,
	activity *graph.ActivityGraph,
	scorer *domain_service.RiskScorer,
	detector *domain_service.BundleDetector,
	predictor *domain_service.TrendPredictor,
	cache *ScoreCache,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *logger.Logger,
) domain_service.AnalysisService {
	limit := cfg.Engine.AnalysisConcurrency
	if limit <= 0 {
		limit = 1
	}
	return &AnalysisApplicationService{
		provider:   provider,
		normalizer: normalizer,
		activity:   activity,
		scorer:     scorer,
		detector:   detector,
		predictor:  predictor,
		cache:      cache,
		baselines:  newBaselineTracker(),
		metrics:    m,
		logger:     logger.WithComponent("analysis-service"),
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(limit)),
		now:        time.Now,
	}
}

// AnalyzeContract scores a contract for exploit risk in the current
// window. An unparseable address fails immediately with InvalidAddress
// and no graph lookup is performed.
func (s *AnalysisApplicationService) AnalyzeContract(ctx context.Context, address string) (*entity.RiskProfile, error) {
	addr, err := entity.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	defer s.observe("contract_analysis")()

	window := s.activity.WindowOf(s.now())
	return s.cache.GetOrCompute(addr, window, func() (*entity.RiskProfile, error) {
		return s.scoreContract(ctx, addr, window)
	})
}

// scoreContract pulls provider data for the window, folds it into the
// activity graph, and runs the rule set over the neighborhood.
func (s *AnalysisApplicationService) scoreContract(ctx context.Context, addr entity.Address, window entity.TimeWindow) (*entity.RiskProfile, error) {
	contract := &entity.Contract{Address: addr}

	raw, err := s.provider.FetchContractMetadata(ctx, addr)
	switch {
	case err == nil:
		normalized, nerr := s.normalizer.NormalizeContract(raw)
		if nerr != nil {
			s.metrics.MalformedRecords.Inc()
			s.logger.Warn("Dropping malformed contract metadata",
				zap.String("contract", addr.String()), zap.Error(nerr))
		} else {
			contract = normalized
		}
	case errors.Is(err, entity.ErrProviderUnavailable):
		// One-shot batch calls surface outages verbatim.
		s.metrics.ProviderFailures.Inc()
		return nil, err
	case errors.Is(err, entity.ErrInsufficientData):
		// Partial risk signal from the graph alone is still actionable.
		s.logger.Debug("No contract metadata, scoring from activity alone",
			zap.String("contract", addr.String()))
	default:
		return nil, fmt.Errorf("fetch contract metadata: %w", err)
	}

	s.ingestWindow(ctx, addr, window)
	snap := s.activity.Neighborhood(addr, window, s.cfg.Engine.Graph.MaxDepth)
	return s.scorer.Score(contract, snap, s.now())
}

// ingestWindow feeds provider history for the address into the graph.
// Provider outages degrade the result rather than failing it; late and
// malformed records are counted and skipped.
func (s *AnalysisApplicationService) ingestWindow(ctx context.Context, addr entity.Address, window entity.TimeWindow) {
	records, err := s.provider.FetchTransactions(ctx, addr, window)
	if err != nil {
		s.metrics.ProviderFailures.Inc()
		s.logger.Warn("Provider fetch failed, continuing with retained graph",
			zap.String("address", addr.String()), zap.Error(err))
		return
	}
	txs, dropped := s.normalizer.NormalizeBatch(records)
	if dropped > 0 {
		s.metrics.MalformedRecords.Add(float64(dropped))
	}
	for _, tx := range txs {
		if err := s.activity.Insert(tx); err != nil {
			if errors.Is(err, entity.ErrOutOfOrder) {
				s.metrics.LateRecords.Inc()
				continue
			}
			s.logger.Warn("Graph insert failed", zap.String("tx", tx.ID), zap.Error(err))
		}
	}
	s.metrics.WindowsRetained.Set(float64(len(s.activity.RetainedWindows())))
}

// DetectBundles clusters a supplied transaction batch. Malformed records
// are dropped and counted; the call only fails when nothing survives.
func (s *AnalysisApplicationService) DetectBundles(ctx context.Context, records []entity.RawRecord) ([]*entity.Cluster, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	defer s.observe("bundle_detection")()

	txs, dropped := s.normalizer.NormalizeBatch(records)
	if dropped > 0 {
		s.metrics.MalformedRecords.Add(float64(dropped))
	}
	if len(txs) == 0 {
		if dropped > 0 {
			return nil, fmt.Errorf("%w: all %d records dropped", entity.ErrMalformedRecord, dropped)
		}
		return nil, nil
	}

	// Batch mode clusters the supplied data per window without touching
	// live graph state.
	byWindow := make(map[int64][]*entity.Transaction)
	windows := make(map[int64]entity.TimeWindow)
	for _, tx := range txs {
		w := s.activity.WindowOf(tx.Timestamp)
		byWindow[w.Key()] = append(byWindow[w.Key()], tx)
		windows[w.Key()] = w
	}

	var clusters []*entity.Cluster
	for key, group := range byWindow {
		clusters = append(clusters, s.detector.Detect(group, windows[key])...)
	}
	return clusters, nil
}

// AnalyzeTrend produces a directional signal for the supplied features
// against the token's trailing baseline.
func (s *AnalysisApplicationService) AnalyzeTrend(ctx context.Context, features *entity.MarketFeatures) (*entity.TrendSignal, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	defer s.observe("trend_analysis")()

	if features == nil {
		return nil, fmt.Errorf("%w: no market data", entity.ErrInsufficientData)
	}

	baseline := s.baselines.baselineFor(features)
	signal, err := s.predictor.Predict(features, baseline, s.now())
	if err != nil {
		return nil, err
	}
	s.baselines.update(features)
	return signal, nil
}

// IntegrateContractInteractions summarizes the cross-contract interaction
// structure around a contract in the current window.
func (s *AnalysisApplicationService) IntegrateContractInteractions(ctx context.Context, address string) (*entity.InteractionSummary, error) {
	addr, err := entity.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	defer s.observe("chain_integration")()

	window := s.activity.WindowOf(s.now())
	confidence := entity.ConfidenceHigh
	if _, perr := s.provider.FetchContractMetadata(ctx, addr); perr != nil {
		if errors.Is(perr, entity.ErrProviderUnavailable) {
			s.metrics.ProviderFailures.Inc()
			confidence = entity.ConfidenceLow
		} else {
			confidence = entity.ConfidenceMedium
		}
	}
	s.ingestWindow(ctx, addr, window)

	snap := s.activity.Neighborhood(addr, window, s.cfg.Engine.Graph.MaxDepth)
	summary := summarizeInteractions(addr, snap, window, confidence, s.now())
	return summary, nil
}

// observe times an operation into the analysis duration histogram.
func (s *AnalysisApplicationService) observe(operation string) func() {
	start := s.now()
	return func() {
		s.metrics.AnalysisDuration.WithLabelValues(operation).Observe(s.now().Sub(start).Seconds())
	}
}
