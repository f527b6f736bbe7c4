package community

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/trama/pkg/config"
	"github.com/soundprediction/trama/pkg/oracle"
	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/types"
)

type stubOracle struct {
	sims   map[[2]string]float64
	failed bool
}

func (o *stubOracle) Nearest(ctx context.Context, docID string, k int) ([]oracle.Neighbor, error) {
	return nil, errors.New("not used")
}

func (o *stubOracle) Similarity(ctx context.Context, aID, bID string) (float64, error) {
	if o.failed {
		return 0, errors.New("oracle unreachable")
	}
	if sim, ok := o.sims[[2]string{aID, bID}]; ok {
		return sim, nil
	}
	return o.sims[[2]string{bID, aID}], nil
}

func communityConfig() config.CommunityConfig {
	return config.CommunityConfig{
		MinCorpusSize:   1000,
		BridgeThreshold: 0.6,
		SampleSize:      8,
		MaxPasses:       10,
	}
}

func pair(from, to string, weight float64) *types.Link {
	return &types.Link{FromID: from, ToID: to, Kind: types.LinkKindSemantic, Weight: weight, Mutual: true}
}

// seedTwoClusters writes two internally dense clusters with no edges
// between them and returns the store.
func seedTwoClusters(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	clusters := [][]string{
		{"a1", "a2", "a3", "a4"},
		{"b1", "b2", "b3", "b4"},
	}
	for _, cluster := range clusters {
		for _, id := range cluster {
			require.NoError(t, s.UpsertDocument(ctx, &types.Document{
				ID: id, Title: id, Content: id, Embedding: []float32{1},
			}))
		}
		for i := 0; i < len(cluster); i++ {
			for j := i + 1; j < len(cluster); j++ {
				require.NoError(t, s.UpsertPair(ctx, pair(cluster[i], cluster[j], 0.9)))
			}
		}
	}
	return s
}

func TestDetectCommunitiesTwoClusters(t *testing.T) {
	ctx := context.Background()
	s := seedTwoClusters(t)

	links, err := s.AllLinks(ctx, types.LinkKindSemantic)
	require.NoError(t, err)

	communities := DetectCommunities(links, 10)
	require.Len(t, communities, 2)
	assert.ElementsMatch(t, []string{"a1", "a2", "a3", "a4"}, communities[0].Members)
	assert.ElementsMatch(t, []string{"b1", "b2", "b3", "b4"}, communities[1].Members)
}

func TestDetectCommunitiesDeterministic(t *testing.T) {
	ctx := context.Background()
	s := seedTwoClusters(t)
	links, err := s.AllLinks(ctx, types.LinkKindSemantic)
	require.NoError(t, err)

	first := DetectCommunities(links, 10)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, DetectCommunities(links, 10))
	}
}

func TestDetectCommunitiesEmptyGraph(t *testing.T) {
	assert.Nil(t, DetectCommunities(nil, 10))
}

func TestBridgePassSkipsSmallCorpus(t *testing.T) {
	ctx := context.Background()
	s := seedTwoClusters(t)

	job := NewJob(s, s, s, &stubOracle{}, nil, communityConfig(), nil)
	report, err := job.Run(ctx, false)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Zero(t, report.BridgesCreated)
}

func TestBridgePassCreatesSingleBridge(t *testing.T) {
	ctx := context.Background()
	s := seedTwoClusters(t)

	o := &stubOracle{sims: map[[2]string]float64{
		{"a1", "b1"}: 0.72,
		{"a2", "b3"}: 0.61,
	}}

	job := NewJob(s, s, s, o, nil, communityConfig(), nil)
	report, err := job.Run(ctx, true)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 2, report.Communities)
	assert.Equal(t, 1, report.BridgesCreated)

	bridges, err := s.AllLinks(ctx, types.LinkKindBridge)
	require.NoError(t, err)
	require.Len(t, bridges, 2, "one bridge, both directions")
	for _, b := range bridges {
		assert.InDelta(t, 0.72, b.Weight, 1e-12, "the highest cross similarity wins")
	}
}

func TestBridgeThresholdFloor(t *testing.T) {
	ctx := context.Background()
	s := seedTwoClusters(t)

	// Best cross-community similarity sits just under the threshold.
	o := &stubOracle{sims: map[[2]string]float64{
		{"a1", "b1"}: 0.59,
	}}

	job := NewJob(s, s, s, o, nil, communityConfig(), nil)
	report, err := job.Run(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, report.BridgesCreated)

	bridges, err := s.AllLinks(ctx, types.LinkKindBridge)
	require.NoError(t, err)
	assert.Empty(t, bridges, "no bridge below the similarity floor")
}

func TestBridgePassIdempotent(t *testing.T) {
	ctx := context.Background()
	s := seedTwoClusters(t)
	o := &stubOracle{sims: map[[2]string]float64{{"a1", "b1"}: 0.8}}

	job := NewJob(s, s, s, o, nil, communityConfig(), nil)

	_, err := job.Run(ctx, true)
	require.NoError(t, err)
	first, err := s.AllLinks(ctx, types.LinkKindBridge)
	require.NoError(t, err)

	_, err = job.Run(ctx, true)
	require.NoError(t, err)
	second, err := s.AllLinks(ctx, types.LinkKindBridge)
	require.NoError(t, err)

	assert.Equal(t, len(first), len(second), "re-running never duplicates bridges")
}

func TestBridgePassResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	s := seedTwoClusters(t)
	o := &stubOracle{sims: map[[2]string]float64{{"a1", "b1"}: 0.8}}

	checkpoint, err := OpenCheckpoint("")
	require.NoError(t, err)
	defer checkpoint.Close()

	job := NewJob(s, s, s, o, checkpoint, communityConfig(), nil)

	report, err := job.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PairsEvaluated)
	assert.Equal(t, 1, report.BridgesCreated)

	// Same graph, same epoch: the pair is skipped outright.
	report, err = job.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, report.PairsEvaluated)
	assert.Equal(t, 1, report.PairsResumed)

	// A graph change rolls the epoch and re-evaluates.
	require.NoError(t, s.DeletePair(ctx, "a3", "a4", types.LinkKindSemantic))
	report, err = job.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PairsEvaluated)
}

func TestBridgePassExitsEarlyOnOracleFailure(t *testing.T) {
	ctx := context.Background()
	s := seedTwoClusters(t)
	o := &stubOracle{failed: true}

	job := NewJob(s, s, s, o, nil, communityConfig(), nil)
	_, err := job.Run(ctx, true)
	assert.Error(t, err)

	bridges, err := s.AllLinks(ctx, types.LinkKindBridge)
	require.NoError(t, err)
	assert.Empty(t, bridges)
}
