package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/types"
)

// stubEmbedder maps known texts to fixed vectors.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectors[t]
	}
	return out, nil
}

func (e *stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return e.vectors[text], nil
}

func (e *stubEmbedder) Dimensions() int { return 3 }
func (e *stubEmbedder) Close() error    { return nil }

func seedVectorStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	docs := []*types.Document{
		{ID: "close", Title: "close", Content: "x", Embedding: []float32{1, 0.1, 0}},
		{ID: "closer", Title: "closer", Content: "x", Embedding: []float32{1, 0, 0}},
		{ID: "far", Title: "far", Content: "x", Embedding: []float32{0, 1, 0}},
		{ID: "unembedded", Title: "none", Content: "x"},
	}
	for _, doc := range docs {
		require.NoError(t, s.UpsertDocument(ctx, doc))
	}
	return s
}

func TestVectorOracleRank(t *testing.T) {
	ctx := context.Background()
	s := seedVectorStore(t)
	emb := &stubEmbedder{vectors: map[string][]float32{"probe": {1, 0, 0}}}
	o := NewVectorOracle(s, emb)

	list, err := o.Rank(ctx, "probe", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, "semantic", list.ListID)
	require.Len(t, list.Hits, 2)
	assert.Equal(t, "closer", list.Hits[0].DocID)
	assert.Equal(t, 1, list.Hits[0].Rank)
	assert.Equal(t, "close", list.Hits[1].DocID)
	assert.Greater(t, list.Hits[0].RawScore, list.Hits[1].RawScore)
}

func TestVectorOracleRankValidation(t *testing.T) {
	ctx := context.Background()
	o := NewVectorOracle(store.NewMemoryStore(), &stubEmbedder{})

	_, err := o.Rank(ctx, "", 5, 10)
	assert.ErrorIs(t, err, types.ErrEmptyQuery)

	_, err = o.Rank(ctx, "q", 0, 10)
	assert.ErrorIs(t, err, types.ErrInvalidLimit)
}

func TestVectorOracleNearestExcludesSelf(t *testing.T) {
	ctx := context.Background()
	s := seedVectorStore(t)
	o := NewVectorOracle(s, &stubEmbedder{})

	neighbors, err := o.Nearest(ctx, "closer", 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 2, "self and unembedded documents are excluded")
	assert.Equal(t, "close", neighbors[0].DocID)
	assert.Equal(t, "far", neighbors[1].DocID)
	assert.Greater(t, neighbors[0].Similarity, neighbors[1].Similarity)
}

func TestVectorOracleNearestMissingDocument(t *testing.T) {
	ctx := context.Background()
	o := NewVectorOracle(store.NewMemoryStore(), &stubEmbedder{})

	_, err := o.Nearest(ctx, "ghost", 5)
	assert.ErrorIs(t, err, types.ErrDocumentNotFound)
}

func TestVectorOracleSimilarity(t *testing.T) {
	ctx := context.Background()
	s := seedVectorStore(t)
	o := NewVectorOracle(s, &stubEmbedder{})

	sim, err := o.Similarity(ctx, "closer", "far")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = o.Similarity(ctx, "closer", "closer")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestLexicalRankerBM25Ordering(t *testing.T) {
	ctx := context.Background()
	r := NewIndexLexicalRanker()

	require.NoError(t, r.Index(&types.Document{ID: "a", Title: "go concurrency", Content: "goroutines and channels make concurrency simple"}))
	require.NoError(t, r.Index(&types.Document{ID: "b", Title: "databases", Content: "graph databases store nodes and edges"}))
	require.NoError(t, r.Index(&types.Document{ID: "c", Title: "concurrency patterns", Content: "concurrency concurrency concurrency everywhere"}))

	list, err := r.Rank(ctx, "concurrency", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "lexical", list.ListID)
	require.Len(t, list.Hits, 2)
	assert.Equal(t, "c", list.Hits[0].DocID, "higher term frequency ranks first")
	assert.Equal(t, "a", list.Hits[1].DocID)
	for i, hit := range list.Hits {
		assert.Equal(t, i+1, hit.Rank)
	}
}

func TestLexicalRankerNoMatches(t *testing.T) {
	ctx := context.Background()
	r := NewIndexLexicalRanker()
	require.NoError(t, r.Index(&types.Document{ID: "a", Title: "t", Content: "alpha beta"}))

	list, err := r.Rank(ctx, "gamma", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, list.Hits)
}

func TestLexicalRankerReindexAndRemove(t *testing.T) {
	ctx := context.Background()
	r := NewIndexLexicalRanker()

	require.NoError(t, r.Index(&types.Document{ID: "a", Title: "t", Content: "alpha"}))
	require.NoError(t, r.Index(&types.Document{ID: "a", Title: "t", Content: "beta"}))

	list, err := r.Rank(ctx, "alpha", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, list.Hits, "reindexing replaces the previous terms")

	list, err = r.Rank(ctx, "beta", 5, 0)
	require.NoError(t, err)
	require.Len(t, list.Hits, 1)

	r.Remove("a")
	list, err = r.Rank(ctx, "beta", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, list.Hits)
}

func TestTokenizeStripsQuotesAndCase(t *testing.T) {
	tokens := Tokenize(`"Exact Phrase" lookup, v2`)
	assert.Equal(t, []string{"exact", "phrase", "lookup", "v2"}, tokens)
}
