package fusion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/trama/pkg/types"
)

type stubRanker struct {
	id   string
	list types.RankedList
	err  error
}

func (r *stubRanker) ListID() string { return r.id }

func (r *stubRanker) Rank(ctx context.Context, query string, limit, breadth int) (types.RankedList, error) {
	if r.err != nil {
		return types.RankedList{ListID: r.id}, r.err
	}
	return r.list, nil
}

type stubCounter struct{ n int }

func (c *stubCounter) CountDocuments(ctx context.Context) (int, error) { return c.n, nil }

func TestHybridSearchFusesBothSources(t *testing.T) {
	ctx := context.Background()
	cfg := rrfConfig()
	cfg.MinSemanticSimilarity = 0.3

	lexical := &stubRanker{id: "lexical", list: list("lexical", hit("A", 1, 9.0), hit("B", 2, 4.0))}
	semantic := &stubRanker{id: "semantic", list: list("semantic", hit("B", 1, 0.9), hit("C", 2, 0.8))}

	searcher, err := NewHybridSearcher(cfg, lexical, semantic, &stubCounter{n: 100}, nil)
	require.NoError(t, err)

	results, err := searcher.Search(ctx, "database indexing", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "B", results[0].DocID, "present in both lists")
	assert.Contains(t, results[0].Provenance, "lexical")
	assert.Contains(t, results[0].Provenance, "semantic")
}

func TestHybridSearchDegradesOnSingleFailure(t *testing.T) {
	ctx := context.Background()
	cfg := rrfConfig()

	lexical := &stubRanker{id: "lexical", err: errors.New("index offline")}
	semantic := &stubRanker{id: "semantic", list: list("semantic", hit("A", 1, 0.9))}

	searcher, err := NewHybridSearcher(cfg, lexical, semantic, &stubCounter{n: 100}, nil)
	require.NoError(t, err)

	results, err := searcher.Search(ctx, "resilience", 10)
	require.NoError(t, err, "one surviving source is enough")
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].DocID)
}

func TestHybridSearchFailsWhenAllSourcesFail(t *testing.T) {
	ctx := context.Background()
	cfg := rrfConfig()

	lexical := &stubRanker{id: "lexical", err: errors.New("index offline")}
	semantic := &stubRanker{id: "semantic", err: errors.New("oracle offline")}

	searcher, err := NewHybridSearcher(cfg, lexical, semantic, &stubCounter{n: 100}, nil)
	require.NoError(t, err)

	_, err = searcher.Search(ctx, "nothing works", 10)
	assert.Error(t, err)
}

func TestHybridSearchFiltersWeakSemanticHits(t *testing.T) {
	ctx := context.Background()
	cfg := rrfConfig()
	cfg.MinSemanticSimilarity = 0.5

	lexical := &stubRanker{id: "lexical"}
	semantic := &stubRanker{id: "semantic", list: list("semantic",
		hit("strong", 1, 0.9), hit("weak", 2, 0.2), hit("ok", 3, 0.6))}

	searcher, err := NewHybridSearcher(cfg, lexical, semantic, &stubCounter{n: 100}, nil)
	require.NoError(t, err)

	results, err := searcher.Search(ctx, "filtering", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "strong", results[0].DocID)
	assert.Equal(t, "ok", results[1].DocID)
	// Ranks renumber after the filter so the survivor is rank 2, not 3.
	assert.Equal(t, 2, results[1].Provenance["semantic"].Rank)
}

func TestHybridSearchValidation(t *testing.T) {
	ctx := context.Background()
	searcher, err := NewHybridSearcher(rrfConfig(), &stubRanker{id: "lexical"}, &stubRanker{id: "semantic"}, nil, nil)
	require.NoError(t, err)

	_, err = searcher.Search(ctx, "", 10)
	assert.ErrorIs(t, err, types.ErrEmptyQuery)

	_, err = searcher.Search(ctx, "q", 0)
	assert.ErrorIs(t, err, types.ErrInvalidLimit)
}
