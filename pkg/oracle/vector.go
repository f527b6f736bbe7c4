package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundprediction/trama/pkg/embedder"
	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/types"
	"github.com/soundprediction/trama/pkg/utils"
)

// ErrNoEmbedder is returned when semantic ranking is requested without an
// embedding client configured.
var ErrNoEmbedder = errors.New("no embedding client configured")

// VectorOracle ranks documents by cosine similarity between embeddings. It
// scans the corpus exactly, so breadth only bounds the candidate pool it
// keeps before truncation.
type VectorOracle struct {
	store    store.DocumentStore
	embedder embedder.Client
}

// NewVectorOracle creates a vector ranker and similarity oracle backed by
// the given document store and embedding client.
func NewVectorOracle(docStore store.DocumentStore, client embedder.Client) *VectorOracle {
	return &VectorOracle{store: docStore, embedder: client}
}

// ListID implements Ranker.
func (o *VectorOracle) ListID() string { return "semantic" }

// Rank embeds the query and returns the closest documents best-first.
func (o *VectorOracle) Rank(ctx context.Context, query string, limit, breadth int) (types.RankedList, error) {
	list := types.RankedList{ListID: o.ListID()}
	if query == "" {
		return list, types.ErrEmptyQuery
	}
	if limit <= 0 {
		return list, types.ErrInvalidLimit
	}
	if o.embedder == nil {
		return list, ErrNoEmbedder
	}

	queryVec, err := o.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return list, fmt.Errorf("failed to embed query: %w", err)
	}

	docs, err := o.store.ListDocuments(ctx)
	if err != nil {
		return list, fmt.Errorf("failed to list documents: %w", err)
	}

	pool := limit
	if breadth > pool {
		pool = breadth
	}

	scored := make([]utils.ScoredItem[string], 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			continue
		}
		scored = append(scored, utils.ScoredItem[string]{
			Item:  doc.ID,
			Score: utils.CosineSimilarity(queryVec, doc.Embedding),
		})
	}

	top := utils.TopKByScore(scored, pool)
	if len(top) > limit {
		top = top[:limit]
	}
	for i, item := range top {
		list.Hits = append(list.Hits, types.RankedHit{
			DocID:    item.Item,
			Rank:     i + 1,
			RawScore: item.Score,
		})
	}
	return list, nil
}

// Nearest returns up to k neighbors of docID by embedding similarity,
// excluding docID itself. Equal similarities order by doc id, so repeated
// calls over an unchanged corpus return the same neighbors.
func (o *VectorOracle) Nearest(ctx context.Context, docID string, k int) ([]Neighbor, error) {
	probe, err := o.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if len(probe.Embedding) == 0 {
		return nil, fmt.Errorf("document %s has no embedding", docID)
	}

	docs, err := o.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	scored := make([]utils.ScoredItem[string], 0, len(docs))
	for _, doc := range docs {
		if doc.ID == docID || len(doc.Embedding) == 0 {
			continue
		}
		scored = append(scored, utils.ScoredItem[string]{
			Item:  doc.ID,
			Score: utils.CosineSimilarity(probe.Embedding, doc.Embedding),
		})
	}

	top := utils.TopKByScore(scored, k)
	neighbors := make([]Neighbor, 0, len(top))
	for _, item := range top {
		neighbors = append(neighbors, Neighbor{DocID: item.Item, Similarity: item.Score})
	}
	return neighbors, nil
}

// Similarity returns the cosine similarity of two stored documents.
func (o *VectorOracle) Similarity(ctx context.Context, aID, bID string) (float64, error) {
	a, err := o.store.GetDocument(ctx, aID)
	if err != nil {
		return 0, err
	}
	b, err := o.store.GetDocument(ctx, bID)
	if err != nil {
		return 0, err
	}
	return utils.CosineSimilarity(a.Embedding, b.Embedding), nil
}
