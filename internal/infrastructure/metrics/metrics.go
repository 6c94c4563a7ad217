package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	MalformedRecords prometheus.Counter
	LateRecords      prometheus.Counter
	AlertsEmitted    *prometheus.CounterVec
	Evictions        prometheus.Counter
	WindowsRetained  prometheus.Gauge
	AnalysisDuration *prometheus.HistogramVec
	ActiveMonitors   prometheus.Gauge
	ProviderFailures prometheus.Counter
}

// New registers the engine collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MalformedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "memescan_malformed_records_total",
			Help: "Raw records dropped during normalization.",
		}),
		LateRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "memescan_late_records_total",
			Help: "Transactions rejected below the graph retention floor.",
		}),
		AlertsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memescan_alerts_emitted_total",
			Help: "Alerts emitted to subscription channels, by reason.",
		}, []string{"reason"}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "memescan_window_evictions_total",
			Help: "Graph windows evicted by the retention policy.",
		}),
		WindowsRetained: factory.NewGauge(prometheus.GaugeOpts{
			Name: "memescan_windows_retained",
			Help: "Graph windows currently retained.",
		}),
		AnalysisDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memescan_analysis_duration_seconds",
			Help:    "Latency of batch analysis operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		ActiveMonitors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "memescan_active_monitors",
			Help: "Wallet subscriptions currently active or suspended.",
		}),
		ProviderFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "memescan_provider_failures_total",
			Help: "Chain-data provider calls that failed.",
		}),
	}
}

// NewForTest returns metrics on a throwaway registry.
func NewForTest() *Metrics {
	return New(prometheus.NewRegistry())
}
