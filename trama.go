package trama

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/soundprediction/trama/pkg/community"
	"github.com/soundprediction/trama/pkg/config"
	"github.com/soundprediction/trama/pkg/corpus"
	"github.com/soundprediction/trama/pkg/embedder"
	"github.com/soundprediction/trama/pkg/fusion"
	"github.com/soundprediction/trama/pkg/oracle"
	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/topology"
	"github.com/soundprediction/trama/pkg/types"
	"github.com/soundprediction/trama/pkg/utils"
)

// Trama is the main interface for hybrid retrieval over a self-maintaining
// similarity graph.
type Trama interface {
	// AddDocument upserts a document, refreshes the lexical index, and
	// triggers an asynchronous relink of its similarity links.
	AddDocument(ctx context.Context, doc *types.Document) error

	// DeleteDocument removes a document, its index entries, and its links.
	DeleteDocument(ctx context.Context, docID string) error

	// GetDocument retrieves a document by id.
	GetDocument(ctx context.Context, docID string) (*types.Document, error)

	// Search runs hybrid lexical/semantic retrieval and returns fused,
	// deduplicated results best-first.
	Search(ctx context.Context, query string, limit int) ([]types.FusedResult, error)

	// Relink synchronously recomputes one document's semantic link set.
	Relink(ctx context.Context, docID string) error

	// RelinkAll recomputes every document's link set with bounded
	// parallelism, returning per-document failures.
	RelinkAll(ctx context.Context) []error

	// RunCommunityBridgePass partitions the link graph into communities
	// and adds sparse bridge links between them.
	RunCommunityBridgePass(ctx context.Context, force bool) (*community.RunReport, error)

	// TopologyStats reports read-only metrics over the link graph.
	TopologyStats(ctx context.Context) (*types.TopologyStats, error)

	// Close waits for in-flight relinks and releases all resources.
	Close(ctx context.Context) error
}

// Client is the main implementation of the Trama interface.
type Client struct {
	store      store.Store
	embedder   embedder.Client
	lexical    *oracle.IndexLexicalRanker
	vector     *oracle.VectorOracle
	searcher   *fusion.HybridSearcher
	topo       *topology.Engine
	analyzer   *topology.Analyzer
	bridges    *community.Job
	checkpoint *community.Checkpoint
	cfg        *config.Config
	logger     *slog.Logger

	relinks sync.WaitGroup
}

var _ Trama = (*Client)(nil)

// NewClient wires a client from a store, an embedding client, and validated
// configuration.
func NewClient(docStore store.Store, embedderClient embedder.Client, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lexical := oracle.NewIndexLexicalRanker()
	vector := oracle.NewVectorOracle(docStore, embedderClient)

	searcher, err := fusion.NewHybridSearcher(cfg.Fusion, lexical, vector, docStore, logger)
	if err != nil {
		return nil, err
	}

	topo, err := topology.NewEngine(docStore, vector, cfg.Topology, logger)
	if err != nil {
		return nil, err
	}

	var checkpoint *community.Checkpoint
	if cfg.Community.CheckpointPath != "" {
		checkpoint, err = community.OpenCheckpoint(cfg.Community.CheckpointPath)
		if err != nil {
			return nil, err
		}
	}
	bridges := community.NewJob(docStore, docStore, docStore, vector, checkpoint, cfg.Community, logger)

	return &Client{
		store:      docStore,
		embedder:   embedderClient,
		lexical:    lexical,
		vector:     vector,
		searcher:   searcher,
		topo:       topo,
		analyzer:   topology.NewAnalyzer(docStore, docStore, cfg.Topology),
		bridges:    bridges,
		checkpoint: checkpoint,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Bootstrap rebuilds the in-memory lexical index from the store. Call once
// after construction when the store already holds documents.
func (c *Client) Bootstrap(ctx context.Context) error {
	docs, err := c.store.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: listing documents failed: %w", err)
	}
	for _, doc := range docs {
		if err := c.lexical.Index(doc); err != nil {
			return fmt.Errorf("bootstrap: indexing %s failed: %w", doc.ID, err)
		}
	}
	c.logger.Info("lexical index rebuilt", "documents", len(docs))
	return nil
}

// ImportCorpus loads documents from a parquet file into the store and
// rebuilds the lexical index. Link maintenance is left to a subsequent
// RelinkAll so bulk loads stay cheap.
func (c *Client) ImportCorpus(ctx context.Context, path string) (int, error) {
	n, err := corpus.Import(ctx, path, c.store, c.logger)
	if err != nil {
		return n, err
	}
	if err := c.Bootstrap(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// ExportCorpus writes every stored document to a parquet file.
func (c *Client) ExportCorpus(ctx context.Context, path string) (int, error) {
	return corpus.Export(ctx, path, c.store, c.logger)
}

// AddDocument upserts the document into the store and lexical index. When
// the document has no embedding one is generated. The relink runs in the
// background; Close waits for it.
func (c *Client) AddDocument(ctx context.Context, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	if len(doc.Embedding) == 0 && c.embedder != nil {
		embedding, err := c.embedder.EmbedSingle(ctx, doc.Title+" "+doc.Content)
		if err != nil {
			return fmt.Errorf("embedding document %s failed: %w", doc.ID, err)
		}
		doc.Embedding = embedding
	}

	if err := c.store.UpsertDocument(ctx, doc); err != nil {
		return err
	}
	if err := c.lexical.Index(doc); err != nil {
		return err
	}

	docID := doc.ID
	c.relinks.Add(1)
	go func() {
		defer c.relinks.Done()
		defer utils.RecoverWithCallback(func(err error) {
			c.logger.Error("background relink panicked", "doc_id", docID, "error", err)
		})
		if err := c.Relink(context.WithoutCancel(ctx), docID); err != nil {
			c.logger.Error("background relink failed, will retry on next write",
				"doc_id", docID, "error", err)
		}
	}()
	return nil
}

// DeleteDocument removes the document everywhere. Link cascade is the
// store's responsibility.
func (c *Client) DeleteDocument(ctx context.Context, docID string) error {
	if err := c.store.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	c.lexical.Remove(docID)
	return nil
}

// GetDocument retrieves a document by id.
func (c *Client) GetDocument(ctx context.Context, docID string) (*types.Document, error) {
	return c.store.GetDocument(ctx, docID)
}

// Search runs the hybrid retrieval path.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]types.FusedResult, error) {
	return c.searcher.Search(ctx, query, limit)
}

// Relink recomputes the document's semantic link set against the current
// corpus.
func (c *Client) Relink(ctx context.Context, docID string) error {
	corpusSize, err := c.store.CountDocuments(ctx)
	if err != nil {
		return fmt.Errorf("relink %s: corpus count failed: %w", docID, err)
	}
	return c.topo.Relink(ctx, docID, corpusSize)
}

// RelinkAll recomputes every document's link set.
func (c *Client) RelinkAll(ctx context.Context) []error {
	docs, err := c.store.ListDocuments(ctx)
	if err != nil {
		return []error{err}
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return c.topo.RelinkAll(ctx, ids, len(ids))
}

// RunCommunityBridgePass executes one bridge pass over the link graph.
func (c *Client) RunCommunityBridgePass(ctx context.Context, force bool) (*community.RunReport, error) {
	return c.bridges.Run(ctx, force)
}

// TopologyStats reports metrics over the link graph.
func (c *Client) TopologyStats(ctx context.Context) (*types.TopologyStats, error) {
	return c.analyzer.Stats(ctx)
}

// Close waits for background relinks, then releases the checkpoint,
// embedder, and store.
func (c *Client) Close(ctx context.Context) error {
	c.relinks.Wait()

	var firstErr error
	if c.checkpoint != nil {
		if err := c.checkpoint.Close(); err != nil {
			firstErr = err
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.store.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
