// Package embedder provides embedding clients used by the semantic oracle.
// Embedding generation itself is external; this package only adapts
// providers behind one interface and adds retry/circuit-breaker decorators.
package embedder

import (
	"context"
	"errors"
)

// ErrNoEmbeddings is returned when a provider responds without vectors.
var ErrNoEmbeddings = errors.New("no embeddings returned")

// Client generates embeddings for text.
type Client interface {
	// Embed generates embeddings for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int
	// Close cleans up any resources.
	Close() error
}

// Config holds common embedding client settings.
type Config struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}
