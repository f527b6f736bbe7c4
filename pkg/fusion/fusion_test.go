package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/trama/pkg/config"
	"github.com/soundprediction/trama/pkg/types"
)

func rrfConfig() config.FusionConfig {
	return config.FusionConfig{
		Mode:           "rrf",
		RRFK:           20,
		LexicalWeight:  0.5,
		SemanticWeight: 0.5,
		RecallTarget:   "balanced",
	}
}

func list(id string, hits ...types.RankedHit) types.RankedList {
	return types.RankedList{ListID: id, Hits: hits}
}

func hit(docID string, rank int, raw float64) types.RankedHit {
	return types.RankedHit{DocID: docID, Rank: rank, RawScore: raw}
}

func TestFuseRRFKnownScores(t *testing.T) {
	lists := []types.RankedList{
		list("lexical", hit("A", 1, 12.0), hit("B", 2, 9.0), hit("C", 3, 4.0)),
		list("semantic", hit("B", 1, 0.97), hit("A", 2, 0.91), hit("D", 3, 0.55)),
	}

	results, err := FuseRRF(lists, 20, 10)
	require.NoError(t, err)
	require.Len(t, results, 4)

	// A and B each appear at ranks 1 and 2, so their fused scores are
	// equal. Raw scores cannot arbitrate (a BM25 magnitude means nothing
	// next to a cosine), so the semantic ranking decides: B sits at
	// semantic rank 1, A at rank 2, and B wins the tie.
	expected := 1.0/21 + 1.0/22
	assert.InDelta(t, expected, results[0].FusedScore, 1e-12)
	assert.InDelta(t, expected, results[1].FusedScore, 1e-12)
	assert.Equal(t, "B", results[0].DocID)
	assert.Equal(t, "A", results[1].DocID)

	// C and D both sit at rank 3 in their lists and tie on fused score;
	// D has a semantic rank and C does not, so D places first.
	assert.Equal(t, "D", results[2].DocID)
	assert.Equal(t, "C", results[3].DocID)

	// Provenance carries per-list rank and raw score.
	prov := results[0].Provenance
	assert.Equal(t, 2, prov["lexical"].Rank)
	assert.Equal(t, 1, prov["semantic"].Rank)
	assert.Equal(t, 0.97, prov["semantic"].RawScore)
}

func TestFuseRRFTieBreakSemanticRank(t *testing.T) {
	// A document present in the semantic list outranks a tied one that
	// is not, regardless of doc id order.
	lists := []types.RankedList{
		list("lexical", hit("alpha", 1, 1.0)),
		list("semantic", hit("zeta", 1, 1.0)),
	}
	results, err := FuseRRF(lists, 20, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "zeta", results[0].DocID)
	assert.Equal(t, "alpha", results[1].DocID)
}

func TestFuseRRFTieBreakDocID(t *testing.T) {
	// Neither document has a semantic rank, so ascending doc id is the
	// final tie-break.
	lists := []types.RankedList{
		list("lexical", hit("zeta", 1, 1.0)),
		list("title", hit("alpha", 1, 1.0)),
	}
	results, err := FuseRRF(lists, 20, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].DocID)
	assert.Equal(t, "zeta", results[1].DocID)
}

func TestFuseRRFValidation(t *testing.T) {
	lists := []types.RankedList{list("lexical", hit("A", 1, 1.0))}

	_, err := FuseRRF(lists, 0, 10)
	assert.ErrorIs(t, err, ErrNonPositiveK)

	_, err = FuseRRF(lists, 20, 0)
	assert.ErrorIs(t, err, types.ErrInvalidLimit)
}

func TestFuseRRFTruncatesToLimit(t *testing.T) {
	lists := []types.RankedList{
		list("lexical", hit("A", 1, 3), hit("B", 2, 2), hit("C", 3, 1)),
	}
	results, err := FuseRRF(lists, 20, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFuseRSFSingleListScore(t *testing.T) {
	weights := map[string]float64{"lexical": 0.7, "semantic": 0.3}
	lists := []types.RankedList{
		list("lexical", hit("A", 1, 10.0), hit("B", 2, 5.0), hit("C", 3, 0.0)),
	}

	results, err := FuseRSF(lists, weights, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// A document in exactly one list scores weight * normalized score.
	assert.InDelta(t, 0.7*1.0, results[0].FusedScore, 1e-12)
	assert.InDelta(t, 0.7*0.5, results[1].FusedScore, 1e-12)
	assert.InDelta(t, 0.0, results[2].FusedScore, 1e-12)
}

func TestFuseRSFConstantListNormalizesToOne(t *testing.T) {
	weights := map[string]float64{"lexical": 0.5, "semantic": 0.5}
	lists := []types.RankedList{
		list("semantic", hit("A", 1, 0.8), hit("B", 2, 0.8)),
	}
	results, err := FuseRSF(lists, weights, 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.InDelta(t, 0.5, r.FusedScore, 1e-12)
	}
}

func TestFuseRSFWeightValidation(t *testing.T) {
	lists := []types.RankedList{list("lexical", hit("A", 1, 1.0))}

	_, err := FuseRSF(lists, map[string]float64{"lexical": 0.6, "semantic": 0.6}, 10)
	assert.ErrorIs(t, err, ErrWeightSum)

	_, err = FuseRSF(lists, map[string]float64{"semantic": 1.0}, 10)
	assert.ErrorIs(t, err, ErrMissingWeight)
}

func TestFusionDeterminism(t *testing.T) {
	lists := []types.RankedList{
		list("lexical", hit("A", 1, 2.0), hit("B", 2, 2.0), hit("C", 3, 2.0)),
		list("semantic", hit("C", 1, 0.9), hit("B", 2, 0.9), hit("A", 3, 0.9)),
	}

	first, err := FuseRRF(lists, 20, 10)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := FuseRRF(lists, 20, 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNewEngineValidation(t *testing.T) {
	cfg := rrfConfig()
	cfg.Mode = "borda"
	_, err := NewEngine(cfg, nil)
	assert.ErrorIs(t, err, ErrUnknownMode)

	cfg = rrfConfig()
	cfg.RRFK = 0
	_, err = NewEngine(cfg, nil)
	assert.ErrorIs(t, err, ErrNonPositiveK)

	cfg = rrfConfig()
	cfg.LexicalWeight = 0.9
	_, err = NewEngine(cfg, nil)
	assert.ErrorIs(t, err, ErrWeightSum)

	engine, err := NewEngine(rrfConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, ModeRRF, engine.Mode())
}

func TestClassifyWeightTable(t *testing.T) {
	cases := []struct {
		query    string
		lexical  float64
		semantic float64
	}{
		{`"exact phrase" search`, 0.8, 0.2},
		{"kubernetes", 0.7, 0.3},
		{"kubernetes operators", 0.7, 0.3},
		{"how do operators work", 0.5, 0.5},
		{"what is the best way to deploy operators", 0.3, 0.7},
	}
	for _, tc := range cases {
		_, weights, _ := Classify(tc.query)
		assert.Equal(t, tc.lexical, weights.Lexical, tc.query)
		assert.Equal(t, tc.semantic, weights.Semantic, tc.query)
		assert.InDelta(t, 1.0, weights.Sum(), 1e-12)
	}
}

func TestClassifyFeatures(t *testing.T) {
	features, _, k := Classify(`"exact phrase" lookup`)
	assert.True(t, features.HasQuotedPhrase)
	assert.Equal(t, 3, features.TokenCount)
	assert.Less(t, k, DefaultRRFK, "quoted queries bias k low")

	features, _, k = Classify("db cfg")
	assert.True(t, features.IsKeywordStyle)
	assert.False(t, features.HasQuotedPhrase)
	assert.Equal(t, DefaultRRFK, k)

	// Empty quotes are not a phrase.
	features, _, _ = Classify(`"" hello`)
	assert.False(t, features.HasQuotedPhrase)
}

func TestAdaptK(t *testing.T) {
	same := list("lexical", hit("A", 1, 1), hit("B", 2, 1), hit("C", 3, 1))
	sameAgain := list("semantic", hit("A", 1, 1), hit("B", 2, 1), hit("C", 3, 1))
	disjoint := list("semantic", hit("X", 1, 1), hit("Y", 2, 1), hit("Z", 3, 1))

	raised := AdaptK(DefaultRRFK, []types.RankedList{same, sameAgain})
	assert.Greater(t, raised, DefaultRRFK)

	lowered := AdaptK(DefaultRRFK, []types.RankedList{same, disjoint})
	assert.Less(t, lowered, DefaultRRFK)

	// A single non-empty list leaves k unchanged.
	unchanged := AdaptK(DefaultRRFK, []types.RankedList{same, {ListID: "semantic"}})
	assert.Equal(t, DefaultRRFK, unchanged)

	// The adjustment never escapes the configured bounds.
	assert.Equal(t, MaxRRFK, AdaptK(39, []types.RankedList{same, sameAgain}))
	assert.Equal(t, MinRRFK, AdaptK(9, []types.RankedList{same, disjoint}))
}

func TestSearchBreadth(t *testing.T) {
	breadth, err := SearchBreadth(TargetFast, 1000)
	require.NoError(t, err)
	assert.Equal(t, 20, breadth)

	breadth, err = SearchBreadth(TargetBalanced, 1000)
	require.NoError(t, err)
	assert.Equal(t, 40, breadth)

	breadth, err = SearchBreadth(TargetThorough, 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, breadth)

	// Large corpora widen logarithmically and clamp at the ceiling.
	breadth, err = SearchBreadth(TargetThorough, 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, MaxSearchBreadth, breadth)

	wide, err := SearchBreadth(TargetFast, 80_000)
	require.NoError(t, err)
	assert.Greater(t, wide, 20)
	assert.LessOrEqual(t, wide, MaxSearchBreadth)

	_, err = SearchBreadth(RecallTarget("exhaustive"), 1000)
	assert.Error(t, err)
}

func TestEstimatedRecall(t *testing.T) {
	assert.InDelta(t, 0.5, EstimatedRecall(20), 1e-12)
	assert.Greater(t, EstimatedRecall(100), EstimatedRecall(20))
	assert.Less(t, EstimatedRecall(500), 1.0)
	assert.Equal(t, 0.0, EstimatedRecall(0))
}
