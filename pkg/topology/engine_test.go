package topology

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/trama/pkg/config"
	"github.com/soundprediction/trama/pkg/oracle"
	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/types"
)

// matrixOracle serves similarities from a fixed table. Asymmetric entries
// are allowed so tests can stage one-sided neighborhoods.
type matrixOracle struct {
	sims   map[string]map[string]float64
	failOn map[string]bool
}

func (o *matrixOracle) Nearest(ctx context.Context, docID string, k int) ([]oracle.Neighbor, error) {
	if o.failOn[docID] {
		return nil, errors.New("oracle unreachable")
	}
	row, ok := o.sims[docID]
	if !ok {
		return nil, types.ErrDocumentNotFound
	}

	neighbors := make([]oracle.Neighbor, 0, len(row))
	for id, sim := range row {
		neighbors = append(neighbors, oracle.Neighbor{DocID: id, Similarity: sim})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].DocID < neighbors[j].DocID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func (o *matrixOracle) Similarity(ctx context.Context, aID, bID string) (float64, error) {
	if o.failOn[aID] || o.failOn[bID] {
		return 0, errors.New("oracle unreachable")
	}
	if sim, ok := o.sims[aID][bID]; ok {
		return sim, nil
	}
	return o.sims[bID][aID], nil
}

// symmetric builds a similarity table from undirected entries.
func symmetric(entries map[[2]string]float64) map[string]map[string]float64 {
	sims := make(map[string]map[string]float64)
	add := func(a, b string, sim float64) {
		if sims[a] == nil {
			sims[a] = make(map[string]float64)
		}
		sims[a][b] = sim
	}
	for pair, sim := range entries {
		add(pair[0], pair[1], sim)
		add(pair[1], pair[0], sim)
	}
	return sims
}

func topologyConfig() config.TopologyConfig {
	return config.TopologyConfig{
		Strategy:         string(StrategyMutualKNN),
		KMin:             5,
		KMax:             15,
		MinSimilarity:    0.7,
		DensityThreshold: 15,
		MaxConcurrency:   4,
	}
}

func linkSet(t *testing.T, s store.GraphReader) map[types.LinkKey]float64 {
	t.Helper()
	links, err := s.AllLinks(context.Background())
	require.NoError(t, err)
	set := make(map[types.LinkKey]float64, len(links))
	for _, link := range links {
		set[link.Key()] = link.Weight
	}
	return set
}

func TestEffectiveK(t *testing.T) {
	assert.Equal(t, 5, EffectiveK(10, 5, 15), "small corpora clamp to the floor")
	assert.Equal(t, 10, EffectiveK(1000, 5, 15))
	assert.Equal(t, 15, EffectiveK(1_000_000, 5, 15), "large corpora clamp to the ceiling")
	assert.Equal(t, 5, EffectiveK(0, 5, 15))
}

func TestRelinkCreatesMutualPairs(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	o := &matrixOracle{sims: symmetric(map[[2]string]float64{
		{"a", "b"}: 0.92,
		{"a", "c"}: 0.85,
		{"b", "c"}: 0.88,
	})}

	engine, err := NewEngine(s, o, topologyConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, engine.Relink(ctx, "a", 32))

	out, err := s.ListOutgoing(ctx, "a", types.LinkKindSemantic)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, link := range out {
		assert.True(t, link.Mutual)

		reverse, err := s.ListOutgoing(ctx, link.ToID, types.LinkKindSemantic)
		require.NoError(t, err)
		found := false
		for _, r := range reverse {
			if r.ToID == "a" {
				found = true
				assert.Equal(t, link.Weight, r.Weight)
			}
		}
		assert.True(t, found, "mutual links carry a reverse edge")
	}
}

func TestRelinkIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	o := &matrixOracle{sims: symmetric(map[[2]string]float64{
		{"a", "b"}: 0.92,
		{"a", "c"}: 0.85,
		{"b", "c"}: 0.88,
	})}

	engine, err := NewEngine(s, o, topologyConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, engine.Relink(ctx, "a", 32))
	first := linkSet(t, s)

	require.NoError(t, engine.Relink(ctx, "a", 32))
	second := linkSet(t, s)

	assert.Equal(t, first, second)
}

func TestRelinkReplacesStaleLinksButNotExplicit(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	// A stale automatic link and a curated one predate the relink.
	require.NoError(t, s.UpsertPair(ctx, &types.Link{
		FromID: "a", ToID: "stale", Kind: types.LinkKindSemantic, Weight: 0.75, Mutual: true,
	}))
	require.NoError(t, s.UpsertLink(ctx, &types.Link{
		FromID: "a", ToID: "curated", Kind: types.LinkKindExplicit, Weight: 1.0,
	}))

	o := &matrixOracle{sims: symmetric(map[[2]string]float64{
		{"a", "b"}: 0.9,
	})}
	engine, err := NewEngine(s, o, topologyConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, engine.Relink(ctx, "a", 32))

	semantic, err := s.ListOutgoing(ctx, "a", types.LinkKindSemantic)
	require.NoError(t, err)
	require.Len(t, semantic, 1)
	assert.Equal(t, "b", semantic[0].ToID)

	explicit, err := s.ListOutgoing(ctx, "a", types.LinkKindExplicit)
	require.NoError(t, err)
	require.Len(t, explicit, 1, "explicit links survive the diff")
}

func TestRelinkFallbackForOutlier(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	// "lone" sees "hub", but hub's own neighborhood never lists lone.
	o := &matrixOracle{sims: map[string]map[string]float64{
		"lone": {"hub": 0.4},
		"hub":  {"b": 0.9, "c": 0.88},
		"b":    {"hub": 0.9},
		"c":    {"hub": 0.88},
	}}

	engine, err := NewEngine(s, o, topologyConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, engine.Relink(ctx, "lone", 32))

	out, err := s.ListOutgoing(ctx, "lone", types.LinkKindSemantic)
	require.NoError(t, err)
	require.Len(t, out, 1, "a document with candidates never strands")
	assert.Equal(t, "hub", out[0].ToID)
	assert.False(t, out[0].Mutual)

	reverse, err := s.ListOutgoing(ctx, "hub", types.LinkKindSemantic)
	require.NoError(t, err)
	assert.Empty(t, reverse, "fallback edges are one-directional")
}

func TestRelinkDegreeBound(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	// Seven mutual candidates against k=5 (corpus 32).
	entries := map[[2]string]float64{}
	ids := []string{"n1", "n2", "n3", "n4", "n5", "n6", "n7"}
	for i, id := range ids {
		entries[[2]string{"doc", id}] = 0.9 - float64(i)*0.01
	}
	o := &matrixOracle{sims: symmetric(entries)}

	engine, err := NewEngine(s, o, topologyConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, engine.Relink(ctx, "doc", 32))

	out, err := s.ListOutgoing(ctx, "doc", types.LinkKindSemantic)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), 5, "semantic out-degree stays within k")

	// The strongest candidates win the cap.
	kept := make(map[string]bool)
	for _, link := range out {
		kept[link.ToID] = true
	}
	assert.True(t, kept["n1"])
	assert.False(t, kept["n7"])
}

func TestRelinkHoldsPartnerDegreeBound(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	// "hub" already carries k=5 mutual links before "doc" relinks into it.
	for i, weight := range []float64{0.80, 0.81, 0.82, 0.83, 0.84} {
		require.NoError(t, s.UpsertPair(ctx, &types.Link{
			FromID: "hub", ToID: fmt.Sprintf("m%d", i+1),
			Kind: types.LinkKindSemantic, Weight: weight, Mutual: true,
		}))
	}

	o := &matrixOracle{sims: symmetric(map[[2]string]float64{
		{"doc", "hub"}: 0.9,
	})}
	engine, err := NewEngine(s, o, topologyConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, engine.Relink(ctx, "doc", 32))

	out, err := s.ListOutgoing(ctx, "hub", types.LinkKindSemantic)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), 5, "reverse edges never push the partner past k")

	kept := make(map[string]bool)
	for _, link := range out {
		kept[link.ToID] = true
	}
	assert.True(t, kept["doc"], "the new pair survives")
	assert.False(t, kept["m1"], "the weakest prior pair is evicted")

	reverse, err := s.ListOutgoing(ctx, "m1", types.LinkKindSemantic)
	require.NoError(t, err)
	assert.Empty(t, reverse, "eviction removes both directions")
}

func TestRelinkAbortsWithoutMutationOnOracleFailure(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.UpsertPair(ctx, &types.Link{
		FromID: "a", ToID: "old", Kind: types.LinkKindSemantic, Weight: 0.8, Mutual: true,
	}))
	before := linkSet(t, s)

	// The candidate lookup succeeds but its mutual check fails.
	o := &matrixOracle{
		sims:   symmetric(map[[2]string]float64{{"a", "b"}: 0.9}),
		failOn: map[string]bool{"b": true},
	}
	engine, err := NewEngine(s, o, topologyConfig(), nil)
	require.NoError(t, err)

	err = engine.Relink(ctx, "a", 32)
	require.Error(t, err)
	assert.Equal(t, before, linkSet(t, s), "failed relinks leave the graph untouched")
}

func TestRelinkThresholdStrategy(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	cfg := topologyConfig()
	cfg.Strategy = string(StrategyThreshold)

	o := &matrixOracle{sims: symmetric(map[[2]string]float64{
		{"a", "strong"}: 0.9,
		{"a", "border"}: 0.7,
		{"a", "weak"}:   0.5,
	})}
	engine, err := NewEngine(s, o, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, engine.Relink(ctx, "a", 32))

	out, err := s.ListOutgoing(ctx, "a", types.LinkKindSemantic)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, link := range out {
		assert.False(t, link.Mutual)
		assert.GreaterOrEqual(t, link.Weight, 0.7)
	}
}

func TestRelinkValidation(t *testing.T) {
	engine, err := NewEngine(store.NewMemoryStore(), &matrixOracle{}, topologyConfig(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, engine.Relink(context.Background(), "", 10), types.ErrEmptyID)

	cfg := topologyConfig()
	cfg.Strategy = "random"
	_, err = NewEngine(store.NewMemoryStore(), &matrixOracle{}, cfg, nil)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRelinkAllCollectsFailures(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	o := &matrixOracle{
		sims:   symmetric(map[[2]string]float64{{"a", "b"}: 0.9}),
		failOn: map[string]bool{"broken": true},
	}
	engine, err := NewEngine(s, o, topologyConfig(), nil)
	require.NoError(t, err)

	failures := engine.RelinkAll(ctx, []string{"a", "broken", "b"}, 32)
	assert.Len(t, failures, 1)

	out, err := s.ListOutgoing(ctx, "a", types.LinkKindSemantic)
	require.NoError(t, err)
	assert.NotEmpty(t, out, "healthy documents still relink")
}
