package fusion

import (
	"fmt"
	"math"
	"time"
)

// RecallTarget names a recall/latency tradeoff for the semantic oracle's
// search breadth.
type RecallTarget string

const (
	TargetFast     RecallTarget = "fast"
	TargetBalanced RecallTarget = "balanced"
	TargetThorough RecallTarget = "thorough"
)

const (
	// MinSearchBreadth and MaxSearchBreadth clamp the tuned value to what
	// ANN backends tolerate.
	MinSearchBreadth = 10
	MaxSearchBreadth = 500

	// breadthScaleCorpus is the corpus size above which breadth grows
	// logarithmically.
	breadthScaleCorpus = 10000
)

// baseBreadth maps each target to its breadth at or below the scale corpus.
var baseBreadth = map[RecallTarget]float64{
	TargetFast:     20,
	TargetBalanced: 40,
	TargetThorough: 100,
}

// SearchBreadth returns the ANN search-breadth for the target and corpus
// size. Stateless policy: larger corpora get logarithmically wider searches
// so recall does not decay as the index grows.
func SearchBreadth(target RecallTarget, corpusSize int) (int, error) {
	base, ok := baseBreadth[target]
	if !ok {
		return 0, fmt.Errorf("unknown recall target %q", target)
	}

	breadth := base
	if corpusSize > breadthScaleCorpus {
		breadth = base * (1 + math.Log2(float64(corpusSize)/float64(breadthScaleCorpus)))
	}

	rounded := int(math.Round(breadth))
	if rounded < MinSearchBreadth {
		return MinSearchBreadth, nil
	}
	if rounded > MaxSearchBreadth {
		return MaxSearchBreadth, nil
	}
	return rounded, nil
}

// EstimatedRecall approximates the recall an HNSW-style index achieves at
// the given breadth. Saturating curve: doubling breadth halves the miss
// rate's denominator growth.
func EstimatedRecall(breadth int) float64 {
	if breadth <= 0 {
		return 0
	}
	return 1 - 1/(1+float64(breadth)/20)
}

// EstimatedLatency gives a rough per-query latency for observability. It
// assumes a fixed per-candidate cost and is not a promise.
func EstimatedLatency(breadth int) time.Duration {
	const perCandidate = 50 * time.Microsecond
	return time.Duration(breadth) * perCandidate
}
