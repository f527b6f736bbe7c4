package fusion

import (
	"fmt"

	"github.com/soundprediction/trama/pkg/types"
)

// FuseRSF combines ranked lists by relative score: each list's raw scores
// are min-max normalized to [0,1] independently, then summed under the
// per-list weights. A list whose scores are all equal normalizes to 1.0.
// Weights must sum to 1.0 and are never silently renormalized; every
// non-empty list must have a configured weight.
func FuseRSF(lists []types.RankedList, weights map[string]float64, limit int) ([]types.FusedResult, error) {
	if err := validateWeights(weights); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, types.ErrInvalidLimit
	}

	acc := newAccumulator()
	for _, list := range lists {
		if len(list.Hits) == 0 {
			continue
		}
		weight, ok := weights[list.ListID]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingWeight, list.ListID)
		}

		lo, hi := list.Hits[0].RawScore, list.Hits[0].RawScore
		for _, hit := range list.Hits {
			if hit.RawScore < lo {
				lo = hit.RawScore
			}
			if hit.RawScore > hi {
				hi = hit.RawScore
			}
		}

		for _, hit := range list.Hits {
			norm := 1.0
			if hi > lo {
				norm = (hit.RawScore - lo) / (hi - lo)
			}
			acc.add(list.ListID, hit, weight*norm)
		}
	}
	return acc.sorted(limit), nil
}
