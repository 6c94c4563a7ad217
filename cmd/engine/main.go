package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app_service "memescan-engine/internal/application/service"
	"memescan-engine/internal/domain/graph"
	"memescan-engine/internal/domain/repository"
	domain_service "memescan-engine/internal/domain/service"
	"memescan-engine/internal/infrastructure/blockchain"
	"memescan-engine/internal/infrastructure/config"
	"memescan-engine/internal/infrastructure/database"
	"memescan-engine/internal/infrastructure/logger"
	"memescan-engine/internal/infrastructure/messaging"
	"memescan-engine/internal/infrastructure/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.NewLogger(cfg.App.LogLevel)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	// Create FX application
	app := fx.New(
		// Provide dependencies
		fx.Supply(cfg),
		fx.Supply(log),
		fx.Supply(&cfg.NATS),
		fx.Supply(&cfg.Neo4J),
		fx.Supply(&cfg.Solana),
		fx.Provide(func() *zap.Logger { return log.Logger }),

		// Infrastructure providers
		fx.Provide(
			database.NewNeo4JClient,
			database.NewNeo4JChainProvider,
			blockchain.NewSolanaClient,
			newChainDataProvider,
			messaging.NewNATSFeed,
			func(feed *messaging.NATSFeed) domain_service.TransactionFeed { return feed },
			newRegistry,
			func(reg *prometheus.Registry) *metrics.Metrics { return metrics.New(reg) },
		),

		// Domain services
		fx.Provide(
			newActivityGraph,
			newRiskScorer,
			newBundleDetector,
			newTrendPredictor,
			domain_service.NewNormalizer,
		),

		// Application providers
		fx.Provide(
			app_service.NewScoreCache,
			app_service.NewAnalysisApplicationService,
			app_service.NewMonitorApplicationService,
		),

		// Lifecycle hooks
		fx.Invoke(startEngine),
		fx.Invoke(startHealthServer),
		fx.Invoke(startMetricsServer),

		// Configure logging
		fx.WithLogger(func() fxevent.Logger {
			return fxevent.NopLogger
		}),
	)

	// Start the application
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start application", zap.Error(err))
		os.Exit(1)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down application...")

	// Stop the application
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Error("Failed to stop application gracefully", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Application stopped successfully")
}

func newChainDataProvider(
	cfg *config.Config,
	graphProvider *database.Neo4JChainProvider,
	solanaClient *blockchain.SolanaClient,
	log *logger.Logger,
) repository.ChainDataProvider {
	if cfg.Solana.Enabled {
		return blockchain.NewCompositeProvider(graphProvider, solanaClient, log)
	}
	return graphProvider
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newActivityGraph(cfg *config.Config, log *logger.Logger) *graph.ActivityGraph {
	return graph.New(graph.Config{
		WindowSize: cfg.Engine.Graph.WindowSize,
		MaxWindows: cfg.Engine.Graph.MaxWindows,
		MaxAge:     cfg.Engine.Graph.MaxAge,
		MaxDepth:   cfg.Engine.Graph.MaxDepth,
	}, log)
}

func newRiskScorer(cfg *config.Config, log *logger.Logger) *domain_service.RiskScorer {
	return domain_service.NewRiskScorer(domain_service.RiskScorerConfig{
		OwnerConcentrationPct: cfg.Engine.Risk.OwnerConcentrationPct,
		RugTemplateHashes:     cfg.Engine.Risk.RugTemplateHashes,
		FlaggedDeployers:      cfg.Engine.Risk.FlaggedDeployers,
		SellBurstThreshold:    cfg.Engine.Risk.SellBurstThreshold,
	}, log)
}

func newBundleDetector(cfg *config.Config, log *logger.Logger) *domain_service.BundleDetector {
	return domain_service.NewBundleDetector(domain_service.BundleDetectorConfig{
		SubInterval:       cfg.Engine.Bundle.SubInterval,
		NearSimultaneous:  cfg.Engine.Bundle.NearSimultaneous,
		CohesionThreshold: cfg.Engine.Bundle.CohesionThreshold,
		MinMembers:        cfg.Engine.Bundle.MinMembers,
		FundingDepth:      cfg.Engine.Bundle.FundingDepth,
	}, log)
}

func newTrendPredictor(cfg *config.Config, log *logger.Logger) *domain_service.TrendPredictor {
	return domain_service.NewTrendPredictor(domain_service.TrendPredictorConfig{
		VolumeWeight:        cfg.Engine.Trend.VolumeWeight,
		UniqueBuyersWeight:  cfg.Engine.Trend.UniqueBuyersWeight,
		ConcentrationWeight: cfg.Engine.Trend.ConcentrationWeight,
		AlertDensityWeight:  cfg.Engine.Trend.AlertDensityWeight,
		FlatBand:            cfg.Engine.Trend.FlatBand,
		StaleAfter:          cfg.Engine.Trend.StaleAfter,
	}, log)
}

// startEngine connects the backing services and wires the monitor
// shutdown into the application lifecycle.
func startEngine(
	lifecycle fx.Lifecycle,
	neo4jClient *database.Neo4JClient,
	feed *messaging.NATSFeed,
	monitor *app_service.MonitorApplicationService,
	activity *graph.ActivityGraph,
	scorer *domain_service.RiskScorer,
	cache *app_service.ScoreCache,
	m *metrics.Metrics,
	log *zap.Logger,
	cfg *config.Config,
) {
	// Retention rollover drives the eviction counter and releases cached
	// profiles and scorer clocks for the windows that left the graph.
	activity.OnEvict(func(removed int, floor time.Time) {
		m.Evictions.Add(float64(removed))
		m.WindowsRetained.Set(float64(len(activity.RetainedWindows())))
		cache.PruneBefore(floor)
		scorer.Forget(floor)
	})

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting detection engine...")

			log.Info("Connecting to Neo4J database")
			if err := neo4jClient.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to Neo4J: %w", err)
			}
			log.Info("Successfully connected to Neo4J database")

			log.Info("NATS Configuration",
				zap.String("url", cfg.NATS.URL),
				zap.String("stream_name", cfg.NATS.StreamName),
				zap.String("subject_prefix", cfg.NATS.SubjectPrefix),
				zap.Bool("enabled", cfg.NATS.Enabled),
			)
			if err := feed.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}

			log.Info("Detection engine started successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping detection engine...")
			monitor.Stop()
			if err := neo4jClient.Close(ctx); err != nil {
				log.Error("Failed to close Neo4J connection", zap.Error(err))
			}
			return feed.Disconnect()
		},
	})
}

// startHealthServer starts the health check server
func startHealthServer(
	lifecycle fx.Lifecycle,
	cfg *config.Config,
	logger *logger.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting health server...", zap.Int("port", cfg.App.HTTPPort))

			mux := http.NewServeMux()
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"status":"ok"}`))
			})

			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.App.HTTPPort),
				Handler: mux,
			}

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Health server error", zap.Error(err))
				}
			}()

			logger.Info("Health server started successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping health server...")
			return nil
		},
	})
}

// startMetricsServer exposes the Prometheus registry when enabled.
func startMetricsServer(
	lifecycle fx.Lifecycle,
	cfg *config.Config,
	reg *prometheus.Registry,
	logger *logger.Logger,
) {
	if !cfg.Metrics.Enabled {
		return
	}
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting metrics server...", zap.Int("port", cfg.Metrics.Port))

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
				Handler: mux,
			}

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Metrics server error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping metrics server...")
			return nil
		},
	})
}
