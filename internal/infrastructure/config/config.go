package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Neo4J   Neo4JConfig   `mapstructure:"neo4j"`
	Solana  SolanaConfig  `mapstructure:"solana"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// AppConfig represents application-specific configuration
type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPPort int    `mapstructure:"http_port"`
}

// NATSConfig represents the transaction feed configuration
type NATSConfig struct {
	URL                string        `mapstructure:"url"`
	StreamName         string        `mapstructure:"stream_name"`
	SubjectPrefix      string        `mapstructure:"subject_prefix"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	ReconnectAttempts  int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect_delay"`
	MaxPendingMessages int           `mapstructure:"max_pending_messages"`
	Enabled            bool          `mapstructure:"enabled"`
}

// Neo4JConfig represents the chain-data provider database configuration
type Neo4JConfig struct {
	URI                          string        `mapstructure:"uri"`
	Username                     string        `mapstructure:"username"`
	Password                     string        `mapstructure:"password"`
	Database                     string        `mapstructure:"database"`
	ConnectTimeout               time.Duration `mapstructure:"connect_timeout"`
	MaxConnectionPoolSize        int           `mapstructure:"max_connection_pool_size"`
	ConnectionAcquisitionTimeout time.Duration `mapstructure:"connection_acquisition_timeout"`
}

// SolanaConfig represents the direct RPC chain-data provider. When
// enabled it is preferred over the Neo4J provider for contract metadata.
type SolanaConfig struct {
	RPCURL            string        `mapstructure:"rpc_url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxSignatureFetch int           `mapstructure:"max_signature_fetch"`
	Enabled           bool          `mapstructure:"enabled"`
}

// EngineConfig groups analytical engine tuning. Every numeric threshold
// here is configuration, not a code constant.
type EngineConfig struct {
	Graph   GraphConfig   `mapstructure:"graph"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Bundle  BundleConfig  `mapstructure:"bundle"`
	Trend   TrendConfig   `mapstructure:"trend"`
	Monitor MonitorConfig `mapstructure:"monitor"`

	// AnalysisConcurrency bounds the batch analysis worker pool.
	AnalysisConcurrency int `mapstructure:"analysis_concurrency"`
}

// GraphConfig bounds activity graph retention and traversal.
type GraphConfig struct {
	WindowSize time.Duration `mapstructure:"window_size"`
	MaxWindows int           `mapstructure:"max_windows"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	MaxDepth   int           `mapstructure:"max_depth"`
}

// RiskConfig tunes contract risk scoring.
type RiskConfig struct {
	OwnerConcentrationPct float64  `mapstructure:"owner_concentration_pct"`
	RugTemplateHashes     []string `mapstructure:"rug_template_hashes"`
	FlaggedDeployers      []string `mapstructure:"flagged_deployers"`
	SellBurstThreshold    int      `mapstructure:"sell_burst_threshold"`
	AlertThreshold        float64  `mapstructure:"alert_threshold"`
}

// BundleConfig tunes coordinated-trading detection.
type BundleConfig struct {
	SubInterval       time.Duration `mapstructure:"sub_interval"`
	NearSimultaneous  time.Duration `mapstructure:"near_simultaneous"`
	CohesionThreshold float64       `mapstructure:"cohesion_threshold"`
	MinMembers        int           `mapstructure:"min_members"`
	FundingDepth      int           `mapstructure:"funding_depth"`
}

// TrendConfig tunes trend prediction weights.
type TrendConfig struct {
	VolumeWeight        float64       `mapstructure:"volume_weight"`
	UniqueBuyersWeight  float64       `mapstructure:"unique_buyers_weight"`
	ConcentrationWeight float64       `mapstructure:"concentration_weight"`
	AlertDensityWeight  float64       `mapstructure:"alert_density_weight"`
	FlatBand            float64       `mapstructure:"flat_band"`
	StaleAfter          time.Duration `mapstructure:"stale_after"`
}

// MonitorConfig tunes the real-time wallet monitor.
type MonitorConfig struct {
	DebounceInterval  time.Duration `mapstructure:"debounce_interval"`
	FeedTimeout       time.Duration `mapstructure:"feed_timeout"`
	AlertBuffer       int           `mapstructure:"alert_buffer"`
	NeighborhoodDepth int           `mapstructure:"neighborhood_depth"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from environment variables and files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/memescan-engine")

	// Environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	// Map environment variables to nested config keys
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Default values
	setDefaults()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.http_port", 8080)

	// NATS defaults
	viper.SetDefault("nats.url", "nats://solana-nats:4222")
	viper.SetDefault("nats.stream_name", "TRANSACTIONS")
	viper.SetDefault("nats.subject_prefix", "transactions")
	viper.SetDefault("nats.consumer_group", "memescan-engine")
	viper.SetDefault("nats.connect_timeout", "10s")
	viper.SetDefault("nats.reconnect_attempts", 5)
	viper.SetDefault("nats.reconnect_delay", "2s")
	viper.SetDefault("nats.max_pending_messages", 10000)
	viper.SetDefault("nats.enabled", true)

	// Neo4J defaults
	viper.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")
	viper.SetDefault("neo4j.connect_timeout", "10s")
	viper.SetDefault("neo4j.max_connection_pool_size", 50)
	viper.SetDefault("neo4j.connection_acquisition_timeout", "60s")

	// Solana defaults
	viper.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("solana.request_timeout", "15s")
	viper.SetDefault("solana.max_signature_fetch", 1000)
	viper.SetDefault("solana.enabled", false)

	// Graph defaults
	viper.SetDefault("engine.graph.window_size", "5m")
	viper.SetDefault("engine.graph.max_windows", 12)
	viper.SetDefault("engine.graph.max_age", "1h")
	viper.SetDefault("engine.graph.max_depth", 3)

	// Risk defaults
	viper.SetDefault("engine.risk.owner_concentration_pct", 50.0)
	viper.SetDefault("engine.risk.rug_template_hashes", []string{})
	viper.SetDefault("engine.risk.flagged_deployers", []string{})
	viper.SetDefault("engine.risk.sell_burst_threshold", 3)
	viper.SetDefault("engine.risk.alert_threshold", 0.6)

	// Bundle defaults
	viper.SetDefault("engine.bundle.sub_interval", "30s")
	viper.SetDefault("engine.bundle.near_simultaneous", "5s")
	viper.SetDefault("engine.bundle.cohesion_threshold", 0.3)
	viper.SetDefault("engine.bundle.min_members", 2)
	viper.SetDefault("engine.bundle.funding_depth", 2)

	// Trend defaults
	viper.SetDefault("engine.trend.volume_weight", 0.35)
	viper.SetDefault("engine.trend.unique_buyers_weight", 0.3)
	viper.SetDefault("engine.trend.concentration_weight", 0.2)
	viper.SetDefault("engine.trend.alert_density_weight", 0.15)
	viper.SetDefault("engine.trend.flat_band", 0.1)
	viper.SetDefault("engine.trend.stale_after", "10m")

	// Monitor defaults
	viper.SetDefault("engine.monitor.debounce_interval", "2m")
	viper.SetDefault("engine.monitor.feed_timeout", "1m")
	viper.SetDefault("engine.monitor.alert_buffer", 256)
	viper.SetDefault("engine.monitor.neighborhood_depth", 2)

	viper.SetDefault("engine.analysis_concurrency", 8)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Bind env for NATS URL
	viper.BindEnv("nats.url", "NATS_URL")
}
