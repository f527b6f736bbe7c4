package topology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/types"
)

func TestStatsOnTriangleWithIsolatedNode(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.UpsertDocument(ctx, &types.Document{
			ID: id, Title: id, Content: id, Embedding: []float32{1},
		}))
	}
	pairs := [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}}
	for _, p := range pairs {
		require.NoError(t, s.UpsertPair(ctx, &types.Link{
			FromID: p[0], ToID: p[1], Kind: types.LinkKindSemantic, Weight: 0.9, Mutual: true,
		}))
	}

	analyzer := NewAnalyzer(s, s, topologyConfig())
	stats, err := analyzer.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalDocuments)
	assert.Equal(t, 6, stats.TotalLinks, "three pairs, both directions")
	assert.Equal(t, 1, stats.IsolatedDocuments)
	assert.Equal(t, 2, stats.ConnectedComponents)
	assert.Equal(t, 2, stats.MaxDegree)
	assert.Equal(t, 2.0, stats.MedianDegree)
	assert.InDelta(t, 1.5, stats.AvgDegree, 1e-12)

	// Each triangle member has a fully connected neighborhood; the
	// isolated node contributes zero.
	assert.InDelta(t, 0.75, stats.ClusteringCoefficient, 1e-12)

	assert.Equal(t, 3, stats.DegreeDistribution[2])
	assert.Equal(t, 1, stats.DegreeDistribution[0])
	assert.Equal(t, string(StrategyMutualKNN), stats.LinkStrategy)
	assert.Equal(t, 5, stats.EffectiveK)
}

func TestStatsEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	analyzer := NewAnalyzer(s, s, topologyConfig())
	stats, err := analyzer.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalDocuments)
	assert.Equal(t, 0, stats.ConnectedComponents)
	assert.Equal(t, 0.0, stats.AvgDegree)
	assert.Equal(t, 0.0, stats.ClusteringCoefficient)
}
