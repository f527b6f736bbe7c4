// Package config loads trama configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Configuration errors are synchronous and explicit; nothing is clamped or
// renormalized on the caller's behalf.
var (
	ErrWeightSum       = errors.New("fusion weights must sum to 1.0")
	ErrInvalidK        = errors.New("rrf k must be positive")
	ErrUnknownMode     = errors.New("unknown fusion mode")
	ErrUnknownStrategy = errors.New("unknown link strategy")
	ErrUnknownTarget   = errors.New("unknown recall target")
)

// Config holds all configuration for the application.
type Config struct {
	Log            LogConfig            `mapstructure:"log"`
	Server         ServerConfig         `mapstructure:"server"`
	Store          StoreConfig          `mapstructure:"store"`
	Embedding      EmbeddingConfig      `mapstructure:"embedding"`
	Fusion         FusionConfig         `mapstructure:"fusion"`
	Topology       TopologyConfig       `mapstructure:"topology"`
	Community      CommunityConfig      `mapstructure:"community"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
	Alert          AlertConfig          `mapstructure:"alert"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// StoreConfig holds document/link store configuration.
type StoreConfig struct {
	Backend  string `mapstructure:"backend"` // memory, neo4j, ladybug
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// EmbeddingConfig holds embedding client configuration.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, embedeverything
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

// FusionConfig holds search fusion configuration.
type FusionConfig struct {
	Mode                  string  `mapstructure:"mode"` // rrf, rsf
	RRFK                  float64 `mapstructure:"rrf_k"`
	AdaptiveK             bool    `mapstructure:"adaptive_k"`
	LexicalWeight         float64 `mapstructure:"lexical_weight"`
	SemanticWeight        float64 `mapstructure:"semantic_weight"`
	AdaptiveWeights       bool    `mapstructure:"adaptive_weights"`
	MinSemanticSimilarity float64 `mapstructure:"min_semantic_similarity"`
	RecallTarget          string  `mapstructure:"recall_target"` // fast, balanced, thorough
}

// TopologyConfig holds similarity graph maintenance configuration.
type TopologyConfig struct {
	Strategy         string  `mapstructure:"strategy"` // mutual_knn, threshold
	KMin             int     `mapstructure:"k_min"`
	KMax             int     `mapstructure:"k_max"`
	MinSimilarity    float64 `mapstructure:"min_similarity"` // threshold strategy floor
	DensityThreshold int     `mapstructure:"density_threshold"`
	PruneRedundant   bool    `mapstructure:"prune_redundant"`
	MaxConcurrency   int     `mapstructure:"max_concurrency"`
}

// CommunityConfig holds bridge job configuration.
type CommunityConfig struct {
	MinCorpusSize   int     `mapstructure:"min_corpus_size"`
	BridgeThreshold float64 `mapstructure:"bridge_threshold"`
	SampleSize      int     `mapstructure:"sample_size"`
	MaxPasses       int     `mapstructure:"max_passes"`
	CheckpointPath  string  `mapstructure:"checkpoint_path"`
}

// TelemetryConfig holds telemetry configuration.
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// AlertConfig holds configuration for alerting.
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking around the
// embedding client.
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // seconds
	Timeout          int     `mapstructure:"timeout"`  // seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Default returns the default configuration without consulting files or
// the environment. Useful for embedding the library directly.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Host: "localhost", Port: 8080, Mode: "release"},
		Store:  StoreConfig{Backend: "memory"},
		Embedding: EmbeddingConfig{
			Provider:   "embedeverything",
			Model:      "all-MiniLM-L6-v2",
			Dimensions: 384,
		},
		Fusion: FusionConfig{
			Mode:                  "rrf",
			RRFK:                  20.0,
			AdaptiveK:             true,
			LexicalWeight:         0.5,
			SemanticWeight:        0.5,
			AdaptiveWeights:       true,
			MinSemanticSimilarity: 0.3,
			RecallTarget:          "balanced",
		},
		Topology: TopologyConfig{
			Strategy:         "mutual_knn",
			KMin:             5,
			KMax:             15,
			MinSimilarity:    0.7,
			DensityThreshold: 15,
			PruneRedundant:   true,
			MaxConcurrency:   8,
		},
		Community: CommunityConfig{
			MinCorpusSize:   1000,
			BridgeThreshold: 0.6,
			SampleSize:      8,
			MaxPasses:       10,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      3,
			Interval:         60,
			Timeout:          30,
			ReadyToTripRatio: 0.6,
		},
	}
}

// Load loads configuration from file and environment variables and
// validates it.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate fails fast on configuration errors.
func (c *Config) Validate() error {
	switch c.Fusion.Mode {
	case "rrf", "rsf":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.Fusion.Mode)
	}

	if c.Fusion.RRFK <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidK, c.Fusion.RRFK)
	}

	sum := c.Fusion.LexicalWeight + c.Fusion.SemanticWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("%w: got %v", ErrWeightSum, sum)
	}

	switch c.Fusion.RecallTarget {
	case "fast", "balanced", "thorough":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTarget, c.Fusion.RecallTarget)
	}

	switch c.Topology.Strategy {
	case "mutual_knn", "threshold":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, c.Topology.Strategy)
	}

	return nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.uri", "")

	viper.SetDefault("embedding.provider", "embedeverything")
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	viper.SetDefault("embedding.dimensions", 384)

	viper.SetDefault("fusion.mode", "rrf")
	viper.SetDefault("fusion.rrf_k", 20.0)
	viper.SetDefault("fusion.adaptive_k", true)
	viper.SetDefault("fusion.lexical_weight", 0.5)
	viper.SetDefault("fusion.semantic_weight", 0.5)
	viper.SetDefault("fusion.adaptive_weights", true)
	viper.SetDefault("fusion.min_semantic_similarity", 0.3)
	viper.SetDefault("fusion.recall_target", "balanced")

	viper.SetDefault("topology.strategy", "mutual_knn")
	viper.SetDefault("topology.k_min", 5)
	viper.SetDefault("topology.k_max", 15)
	viper.SetDefault("topology.min_similarity", 0.7)
	viper.SetDefault("topology.density_threshold", 15)
	viper.SetDefault("topology.prune_redundant", true)
	viper.SetDefault("topology.max_concurrency", 8)

	viper.SetDefault("community.min_corpus_size", 1000)
	viper.SetDefault("community.bridge_threshold", 0.6)
	viper.SetDefault("community.sample_size", 8)
	viper.SetDefault("community.max_passes", 10)

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", filepath.Join(home, ".trama", "telemetry"))
		viper.SetDefault("community.checkpoint_path", filepath.Join(home, ".trama", "bridge-checkpoints"))
	}
}

// overrideWithEnv overrides config with environment variables.
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Store.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Store.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Store.Password = pass
	}

	if backend := os.Getenv("TRAMA_STORE_BACKEND"); backend != "" {
		config.Store.Backend = backend
	}
	if uri := os.Getenv("TRAMA_STORE_URI"); uri != "" {
		config.Store.URI = uri
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
