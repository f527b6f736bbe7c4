package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"empty", nil, nil, 0.0},
		{"zero magnitude", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	require.NotNil(t, v)
	assert.InDelta(t, 1.0, Magnitude(v), 1e-6)

	assert.Nil(t, Normalize(nil))
	assert.Nil(t, Normalize([]float32{0, 0}))
}

func TestTopKByScore(t *testing.T) {
	items := []ScoredItem[string]{
		{Item: "a", Score: 0.4},
		{Item: "b", Score: 0.9},
		{Item: "c", Score: 0.1},
		{Item: "d", Score: 0.7},
	}

	top := TopKByScore(items, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Item)
	assert.Equal(t, "d", top[1].Item)

	// k larger than input returns everything, sorted.
	all := TopKByScore(items, 10)
	require.Len(t, all, 4)
	assert.Equal(t, "b", all[0].Item)
	assert.Equal(t, "c", all[3].Item)

	assert.Nil(t, TopKByScore(items, 0))
}

func TestTopKByScoreTiesAreOrderIndependent(t *testing.T) {
	// Four candidates tie at the k-th boundary; the ones kept must not
	// depend on input order, or downstream selections drift run to run.
	tied := []ScoredItem[string]{
		{Item: "w", Score: 0.5},
		{Item: "x", Score: 0.5},
		{Item: "y", Score: 0.5},
		{Item: "z", Score: 0.5},
	}
	permutations := [][]int{
		{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}, {1, 3, 0, 2},
	}

	for _, perm := range permutations {
		items := []ScoredItem[string]{{Item: "top", Score: 0.9}}
		for _, i := range perm {
			items = append(items, tied[i])
		}

		top := TopKByScore(items, 3)
		require.Len(t, top, 3)
		assert.Equal(t, "top", top[0].Item)
		assert.Equal(t, "w", top[1].Item)
		assert.Equal(t, "x", top[2].Item)
	}
}
