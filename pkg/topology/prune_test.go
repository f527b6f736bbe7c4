package topology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/types"
)

func TestPruneRemovesRedundantEdge(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	// b and c are closer to each other (0.95) than either is to a, so the
	// weaker edge a->c is redundant.
	o := &matrixOracle{sims: symmetric(map[[2]string]float64{
		{"a", "b"}: 0.9,
		{"a", "c"}: 0.8,
		{"b", "c"}: 0.95,
	})}

	cfg := topologyConfig()
	cfg.PruneRedundant = true
	cfg.DensityThreshold = 1

	engine, err := NewEngine(s, o, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Relink(ctx, "a", 32))

	out, err := s.ListOutgoing(ctx, "a", types.LinkKindSemantic)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ToID, "the stronger neighbor survives")

	// The pruned mutual edge is gone in both directions.
	cOut, err := s.ListOutgoing(ctx, "c", types.LinkKindSemantic)
	require.NoError(t, err)
	assert.Empty(t, cOut)
}

func TestPruneNeverRemovesOnlyEdge(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	o := &matrixOracle{sims: symmetric(map[[2]string]float64{
		{"a", "b"}: 0.9,
	})}

	cfg := topologyConfig()
	cfg.PruneRedundant = true
	cfg.DensityThreshold = 0

	engine, err := NewEngine(s, o, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Relink(ctx, "a", 32))

	out, err := s.ListOutgoing(ctx, "a", types.LinkKindSemantic)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestPruneIdempotentOnStableNeighborSet(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	o := &matrixOracle{sims: symmetric(map[[2]string]float64{
		{"a", "b"}: 0.9,
		{"a", "c"}: 0.8,
		{"a", "d"}: 0.7,
		{"b", "c"}: 0.95,
		{"b", "d"}: 0.3,
		{"c", "d"}: 0.3,
	})}

	cfg := topologyConfig()
	cfg.PruneRedundant = true
	cfg.DensityThreshold = 1

	engine, err := NewEngine(s, o, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, engine.Relink(ctx, "a", 32))
	first := linkSet(t, s)
	assert.NotEmpty(t, first)

	// Direct second pass over the unchanged neighbor set removes nothing.
	require.NoError(t, engine.pruneRedundant(ctx, "a"))
	assert.Equal(t, first, linkSet(t, s))

	// A full relink converges to the same graph as well.
	require.NoError(t, engine.Relink(ctx, "a", 32))
	assert.Equal(t, first, linkSet(t, s))
}
