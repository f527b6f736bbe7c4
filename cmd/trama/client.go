package trama

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/soundprediction/trama"
	"github.com/soundprediction/trama/pkg/alert"
	"github.com/soundprediction/trama/pkg/config"
	"github.com/soundprediction/trama/pkg/embedder"
	tramaLogger "github.com/soundprediction/trama/pkg/logger"
	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/telemetry"
)

// newLogger builds the process logger. With a telemetry path configured,
// warnings and errors are additionally persisted as parquet rows.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	colorHandler := tramaLogger.NewColorHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	})

	if cfg.Telemetry.ParquetPath == "" {
		return slog.New(colorHandler), nil
	}

	if err := os.MkdirAll(cfg.Telemetry.ParquetPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	parquetHandler, err := telemetry.NewParquetHandler(colorHandler, cfg.Telemetry.ParquetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry handler: %w", err)
	}
	return slog.New(parquetHandler), nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newStore opens the configured store backend.
func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "neo4j":
		return store.NewNeo4jStore(cfg.Store.URI, cfg.Store.Username, cfg.Store.Password, cfg.Store.Database)
	case "ladybug":
		return store.NewLadybugStore(cfg.Store.URI)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

// newEmbedder builds the embedding client stack: provider, retries, then
// an optional circuit breaker. A missing API key for the openai provider
// yields no embedder; search then degrades to lexical-only.
func newEmbedder(cfg *config.Config) (embedder.Client, error) {
	embedderConfig := &embedder.Config{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	}

	var base embedder.Client
	var err error
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.APIKey == "" {
			return nil, nil
		}
		base, err = embedder.NewOpenAIClient(embedderConfig)
	case "embedeverything":
		base, err = embedder.NewEmbedEverythingClient(embedderConfig)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	client := embedder.Client(embedder.NewRetryClient(base, nil))

	if cfg.CircuitBreaker.Enabled {
		var alerter alert.Alerter = &alert.NoOpAlerter{}
		if cfg.Alert.Enabled {
			alerter = alert.NewEmailAlerter(cfg.Alert)
		}
		client = embedder.NewCircuitBreakerClient(client, cfg.CircuitBreaker, alerter, "embedding")
	}
	return client, nil
}

// initializeClient wires store, embedder, and logger into a ready client.
func initializeClient(cfg *config.Config) (*trama.Client, *slog.Logger, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	docStore, err := newStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	embedderClient, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	if embedderClient == nil {
		log.Warn("no embedding client configured, search degrades to lexical-only")
	}

	client, err := trama.NewClient(docStore, embedderClient, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}

	log.Info("client initialized",
		"store", cfg.Store.Backend,
		"embedding_provider", cfg.Embedding.Provider,
		"fusion_mode", cfg.Fusion.Mode)
	return client, log, nil
}
