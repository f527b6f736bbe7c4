// Package oracle provides the ranked retrieval sources consumed by fusion
// and the similarity oracle consumed by the topology engine. A ranker turns
// a query into an ordered candidate list; the similarity oracle answers
// nearest-neighbor and pairwise similarity questions over the corpus.
package oracle

import (
	"context"

	"github.com/soundprediction/trama/pkg/types"
)

// Neighbor is one nearest-neighbor candidate with its similarity to the
// probe document.
type Neighbor struct {
	DocID      string
	Similarity float64
}

// Ranker produces a ranked candidate list for a query. The breadth hint
// controls how wide the underlying search casts before truncating to limit;
// exact backends may ignore it.
type Ranker interface {
	// ListID identifies this ranker's output in fusion provenance.
	ListID() string
	// Rank returns up to limit hits ordered best-first.
	Rank(ctx context.Context, query string, limit, breadth int) (types.RankedList, error)
}

// SimilarityOracle answers neighborhood questions for the topology engine.
// Errors MUST propagate: a failed oracle call aborts the relink that issued
// it rather than linking on partial data.
type SimilarityOracle interface {
	// Nearest returns up to k neighbors of the document, best-first,
	// excluding the document itself.
	Nearest(ctx context.Context, docID string, k int) ([]Neighbor, error)
	// Similarity returns the pairwise similarity of two documents.
	Similarity(ctx context.Context, aID, bID string) (float64, error)
}
