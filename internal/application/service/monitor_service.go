package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/domain/graph"
	"memescan-engine/internal/domain/repository"
	domain_service "memescan-engine/internal/domain/service"
	"memescan-engine/internal/infrastructure/config"
	"memescan-engine/internal/infrastructure/logger"
	"memescan-engine/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// monitoredWallet is the runtime state behind one subscription.
type monitoredWallet struct {
	mu        sync.Mutex
	sub       *entity.Subscription
	records   <-chan entity.RawRecord
	alerts    chan *entity.Alert
	cancel    context.CancelFunc
	lastAlert map[entity.AlertReason]time.Time
	pinned    *entity.TimeWindow
	done      chan struct{}
}

func (m *monitoredWallet) state() entity.SubscriptionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub.State
}

func (m *monitoredWallet) setState(s entity.SubscriptionState) {
	m.mu.Lock()
	m.sub.State = s
	m.mu.Unlock()
}

// MonitorApplicationService runs one evaluation loop per subscription:
// a blocking wait on the feed, graph update, re-scoring, and debounced
// alert emission.
type MonitorApplicationService struct {
	feed       domain_service.TransactionFeed
	provider   repository.ChainDataProvider
	normalizer *domain_service.Normalizer
	activity   *graph.ActivityGraph
	scorer     *domain_service.RiskScorer
	detector   *domain_service.BundleDetector
	cache      *ScoreCache
	metrics    *metrics.Metrics
	logger     *logger.Logger
	cfg        *config.Config
	now        func() time.Time

	mu   sync.Mutex
	subs map[string]*monitoredWallet
}

// NewMonitorApplicationService creates the monitor service.
func NewMonitorApplicationService(
	feed domain_service.TransactionFeed,
	provider repository.ChainDataProvider,
	normalizer *domain_service.Normalizer,
	activity *graph.ActivityGraph,
	scorer *domain_service.RiskScorer,
	detector *domain_service.BundleDetector,
	cache *ScoreCache,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *logger.Logger,
) *MonitorApplicationService {
	return &MonitorApplicationService{
		feed:       feed,
		provider:   provider,
		normalizer: normalizer,
		activity:   activity,
		scorer:     scorer,
		detector:   detector,
		cache:      cache,
		metrics:    m,
		logger:     logger.WithComponent("monitor-service"),
		cfg:        cfg,
		now:        time.Now,
		subs:       make(map[string]*monitoredWallet),
	}
}

// MonitorWallet registers a wallet for continuous evaluation and starts
// its loop. Alerts arrive on the returned channel until the subscription
// closes.
func (s *MonitorApplicationService) MonitorWallet(ctx context.Context, address string) (*entity.Subscription, <-chan *entity.Alert, error) {
	wallet, err := entity.ParseAddress(address)
	if err != nil {
		return nil, nil, err
	}

	records, err := s.feed.Subscribe(ctx, wallet)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe feed: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	mw := &monitoredWallet{
		sub: &entity.Subscription{
			ID:        uuid.NewString(),
			Wallet:    wallet,
			State:     entity.SubscriptionActive,
			CreatedAt: s.now(),
		},
		records:   records,
		alerts:    make(chan *entity.Alert, s.cfg.Engine.Monitor.AlertBuffer),
		cancel:    cancel,
		lastAlert: make(map[entity.AlertReason]time.Time),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.subs[mw.sub.ID] = mw
	s.mu.Unlock()
	s.metrics.ActiveMonitors.Inc()

	go s.run(loopCtx, mw, records)

	s.logger.Info("Started wallet monitor",
		zap.String("subscription", mw.sub.ID),
		zap.String("wallet", wallet.String()))

	snapshot := *mw.sub
	return &snapshot, mw.alerts, nil
}

// Unsubscribe transitions the subscription to Closed immediately. The
// loop tears down asynchronously; any in-flight evaluation is discarded
// rather than emitted.
func (s *MonitorApplicationService) Unsubscribe(subscriptionID string) error {
	s.mu.Lock()
	mw, ok := s.subs[subscriptionID]
	if ok {
		delete(s.subs, subscriptionID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", entity.ErrSubscriptionClosed, subscriptionID)
	}

	mw.setState(entity.SubscriptionClosed)
	mw.cancel()
	s.metrics.ActiveMonitors.Dec()
	s.logger.Info("Closed subscription", zap.String("subscription", subscriptionID))
	return nil
}

// SubscriptionState reports the lifecycle state, including recently
// closed subscriptions still tearing down.
func (s *MonitorApplicationService) SubscriptionState(subscriptionID string) (entity.SubscriptionState, error) {
	s.mu.Lock()
	mw, ok := s.subs[subscriptionID]
	s.mu.Unlock()
	if !ok {
		return entity.SubscriptionClosed, nil
	}
	return mw.state(), nil
}

// Stop closes every subscription. Used during shutdown.
func (s *MonitorApplicationService) Stop() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		_ = s.Unsubscribe(id)
	}
}

// run is the per-subscription evaluation loop: a blocking wait on the
// feed, suspending on outage and resuming from the cursor on recovery.
// The outage gap is not re-analyzed after recovery.
func (s *MonitorApplicationService) run(ctx context.Context, mw *monitoredWallet, records <-chan entity.RawRecord) {
	defer s.teardown(mw)

	timeout := s.cfg.Engine.Monitor.FeedTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(timeout)

		select {
		case <-ctx.Done():
			return

		case <-timer.C:
			if mw.state() == entity.SubscriptionActive {
				mw.setState(entity.SubscriptionSuspended)
				s.logger.Warn("Feed silent beyond timeout, suspending subscription",
					zap.String("subscription", mw.sub.ID),
					zap.Duration("timeout", timeout))
			}

		case record, ok := <-records:
			if !ok {
				// Feed shut down underneath us.
				if mw.state() != entity.SubscriptionClosed {
					mw.setState(entity.SubscriptionSuspended)
				}
				<-ctx.Done()
				return
			}
			if mw.state() == entity.SubscriptionSuspended {
				mw.setState(entity.SubscriptionActive)
				s.logger.Info("Feed recovered, resuming subscription",
					zap.String("subscription", mw.sub.ID))
				s.emit(mw, &entity.Alert{
					SubscriptionID: mw.sub.ID,
					Wallet:         mw.sub.Wallet,
					Severity:       entity.AlertInfo,
					Reason:         entity.ReasonFeedRecovered,
					Detail:         "feed recovered, monitoring resumed without replaying the gap",
					Timestamp:      s.now(),
				})
			}
			s.evaluate(ctx, mw, &record)
		}
	}
}

func (s *MonitorApplicationService) teardown(mw *monitoredWallet) {
	_ = s.feed.Unsubscribe(mw.sub.Wallet, mw.records)
	s.activity.UnpinAll(mw.sub.ID)
	close(mw.alerts)
	close(mw.done)
}

// evaluate processes one feed record: normalize, advance the cursor,
// update the graph, re-run the analyses, emit qualifying alerts.
func (s *MonitorApplicationService) evaluate(ctx context.Context, mw *monitoredWallet, record *entity.RawRecord) {
	tx, err := s.normalizer.NormalizeTransaction(record)
	if err != nil {
		s.metrics.MalformedRecords.Inc()
		s.logger.Warn("Dropping malformed feed record",
			zap.String("subscription", mw.sub.ID), zap.Error(err))
		return
	}
	if !tx.Touches(mw.sub.Wallet) {
		return
	}

	// The cursor never moves backward; records at or behind it were
	// already evaluated and would break alert ordering.
	mw.mu.Lock()
	advanced := mw.sub.Cursor.Advance(tx.Timestamp, tx.ID)
	mw.mu.Unlock()
	if !advanced {
		return
	}

	window := s.activity.WindowOf(tx.Timestamp)
	s.repin(mw, window)

	if err := s.activity.Insert(tx); err != nil {
		if errors.Is(err, entity.ErrOutOfOrder) {
			s.metrics.LateRecords.Inc()
			return
		}
		s.logger.Warn("Graph insert failed",
			zap.String("subscription", mw.sub.ID), zap.Error(err))
		return
	}

	if tx.Contract != nil {
		// The cached profile predates this transaction; drop it so the
		// scorer re-runs against the updated window.
		s.cache.Invalidate(*tx.Contract, window)
		s.evaluateRisk(ctx, mw, tx, window)
	}
	s.evaluateBundles(mw, tx, window)
}

// repin moves the subscription's window pin forward so eviction never
// removes the window its cursor still references.
func (s *MonitorApplicationService) repin(mw *monitoredWallet, window entity.TimeWindow) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.pinned != nil && mw.pinned.Key() == window.Key() {
		return
	}
	s.activity.Pin(window, mw.sub.ID)
	if mw.pinned != nil {
		s.activity.Unpin(*mw.pinned, mw.sub.ID)
	}
	mw.pinned = &window
}

func (s *MonitorApplicationService) evaluateRisk(ctx context.Context, mw *monitoredWallet, tx *entity.Transaction, window entity.TimeWindow) {
	contractAddr := *tx.Contract
	profile, err := s.cache.GetOrCompute(contractAddr, window, func() (*entity.RiskProfile, error) {
		contract := &entity.Contract{Address: contractAddr}
		raw, ferr := s.provider.FetchContractMetadata(ctx, contractAddr)
		if ferr == nil {
			if normalized, nerr := s.normalizer.NormalizeContract(raw); nerr == nil {
				contract = normalized
			}
		} else if errors.Is(ferr, entity.ErrProviderUnavailable) {
			// Loop errors are absorbed, never terminate the subscription.
			s.metrics.ProviderFailures.Inc()
			s.logger.Warn("Provider unavailable during monitoring, degrading",
				zap.String("subscription", mw.sub.ID), zap.Error(ferr))
		}
		snap := s.activity.Neighborhood(contractAddr, window, s.cfg.Engine.Monitor.NeighborhoodDepth)
		return s.scorer.Score(contract, snap, s.now())
	})
	if err != nil {
		if !errors.Is(err, entity.ErrInsufficientData) {
			s.logger.Warn("Risk evaluation failed",
				zap.String("subscription", mw.sub.ID), zap.Error(err))
		}
		return
	}

	if profile.Score < s.cfg.Engine.Risk.AlertThreshold {
		return
	}
	severity := entity.AlertWarn
	if profile.Bucket() == entity.BucketCritical {
		severity = entity.AlertCritical
	}
	s.emit(mw, &entity.Alert{
		SubscriptionID: mw.sub.ID,
		Wallet:         mw.sub.Wallet,
		Severity:       severity,
		Reason:         entity.ReasonRiskThreshold,
		Detail: fmt.Sprintf("contract %s scored %.2f (%s)",
			contractAddr, profile.Score, profile.Bucket()),
		TransactionID: tx.ID,
		Profile:       profile,
		Timestamp:     tx.Timestamp,
	})
}

func (s *MonitorApplicationService) evaluateBundles(mw *monitoredWallet, tx *entity.Transaction, window entity.TimeWindow) {
	snap := s.activity.Neighborhood(mw.sub.Wallet, window, s.cfg.Engine.Monitor.NeighborhoodDepth)
	clusters := s.detector.Detect(snap.Transactions, window)
	for _, cluster := range clusters {
		if !clusterContains(cluster, mw.sub.Wallet) {
			continue
		}
		s.emit(mw, &entity.Alert{
			SubscriptionID: mw.sub.ID,
			Wallet:         mw.sub.Wallet,
			Severity:       entity.AlertWarn,
			Reason:         entity.ReasonBundleDetected,
			Detail: fmt.Sprintf("wallet in %s cluster of %d transactions, cohesion %.2f",
				cluster.Pattern, cluster.Size(), cluster.Cohesion),
			TransactionID: tx.ID,
			Cluster:       cluster,
			Timestamp:     tx.Timestamp,
		})
		return
	}
}

// emit applies the closed check and per-reason debounce, then delivers.
// Called only from the subscription's own loop, so alerts leave in
// non-decreasing triggering-transaction order.
func (s *MonitorApplicationService) emit(mw *monitoredWallet, alert *entity.Alert) {
	mw.mu.Lock()
	if mw.sub.State == entity.SubscriptionClosed {
		// In-flight result for a closed subscription: discard.
		mw.mu.Unlock()
		return
	}
	if last, ok := mw.lastAlert[alert.Reason]; ok {
		if s.now().Sub(last) < s.cfg.Engine.Monitor.DebounceInterval {
			mw.mu.Unlock()
			return
		}
	}
	mw.lastAlert[alert.Reason] = s.now()
	mw.mu.Unlock()

	alert.ID = uuid.NewString()
	select {
	case mw.alerts <- alert:
		s.metrics.AlertsEmitted.WithLabelValues(string(alert.Reason)).Inc()
	default:
		s.logger.Warn("Alert channel full, dropping alert",
			zap.String("subscription", mw.sub.ID),
			zap.String("reason", string(alert.Reason)))
	}
}

func clusterContains(cluster *entity.Cluster, wallet entity.Address) bool {
	for _, addr := range cluster.Addresses {
		if addr.Equals(wallet) {
			return true
		}
	}
	return false
}
