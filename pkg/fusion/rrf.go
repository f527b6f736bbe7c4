package fusion

import (
	"fmt"

	"github.com/soundprediction/trama/pkg/types"
)

// FuseRRF combines ranked lists by reciprocal rank: each list contributes
// 1/(k + rank) for every document it contains, absence contributes zero.
// Ranks are 1-based. Input lists must be descending-ordered with unique doc
// ids per list.
func FuseRRF(lists []types.RankedList, k float64, limit int) ([]types.FusedResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrNonPositiveK, k)
	}
	if limit <= 0 {
		return nil, types.ErrInvalidLimit
	}

	acc := newAccumulator()
	for _, list := range lists {
		for _, hit := range list.Hits {
			acc.add(list.ListID, hit, 1/(k+float64(hit.Rank)))
		}
	}
	return acc.sorted(limit), nil
}
