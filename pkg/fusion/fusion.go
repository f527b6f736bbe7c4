// Package fusion combines ranked lists from lexical and semantic retrieval
// into a single deduplicated ranking. Two algorithms are selectable by
// configuration: reciprocal rank fusion, which uses only list positions, and
// relative score fusion, which preserves score-magnitude distinctions via
// per-list min-max normalization and explicit weights.
package fusion

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/soundprediction/trama/pkg/config"
	"github.com/soundprediction/trama/pkg/types"
)

// Mode selects the fusion algorithm.
type Mode string

const (
	ModeRRF Mode = "rrf"
	ModeRSF Mode = "rsf"
)

var (
	ErrUnknownMode   = errors.New("unknown fusion mode")
	ErrNonPositiveK  = errors.New("fusion k must be positive")
	ErrWeightSum     = errors.New("fusion weights must sum to 1.0")
	ErrMissingWeight = errors.New("ranked list has no configured weight")
)

const weightSumTolerance = 1e-9

// Engine fuses ranked lists under a fixed, validated configuration. It is
// stateless after construction and safe for concurrent use.
type Engine struct {
	mode    Mode
	k       float64
	weights map[string]float64
	logger  *slog.Logger
}

// NewEngine validates the fusion configuration and returns an engine.
// Configuration errors fail here, synchronously, never at query time.
func NewEngine(cfg config.FusionConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mode := Mode(cfg.Mode)
	switch mode {
	case ModeRRF, ModeRSF:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
	if cfg.RRFK <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrNonPositiveK, cfg.RRFK)
	}

	weights := map[string]float64{
		"lexical":  cfg.LexicalWeight,
		"semantic": cfg.SemanticWeight,
	}
	if err := validateWeights(weights); err != nil {
		return nil, err
	}

	return &Engine{mode: mode, k: cfg.RRFK, weights: weights, logger: logger}, nil
}

// Mode returns the active fusion algorithm.
func (e *Engine) Mode() Mode { return e.mode }

// Fuse combines the ranked lists under the engine's configuration. Empty
// lists are legal and contribute nothing; the weights and k may be
// overridden per call by the adaptive classifier path.
func (e *Engine) Fuse(lists []types.RankedList, k float64, weights types.FusionWeights, limit int) ([]types.FusedResult, error) {
	if limit <= 0 {
		return nil, types.ErrInvalidLimit
	}

	switch e.mode {
	case ModeRRF:
		return FuseRRF(lists, k, limit)
	case ModeRSF:
		w := map[string]float64{"lexical": weights.Lexical, "semantic": weights.Semantic}
		return FuseRSF(lists, w, limit)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, e.mode)
}

func validateWeights(weights map[string]float64) error {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: got %v", ErrWeightSum, sum)
	}
	return nil
}

// semanticListID names the list whose rank order breaks fused-score ties.
// Raw scores are not comparable across oracles (BM25 is unbounded and corpus
// dependent, cosine is not), so a tied pair defers to the semantic ranking
// rather than to raw magnitudes.
const semanticListID = "semantic"

// fusedAccumulator collects per-document scores and provenance during a
// fusion pass.
type fusedAccumulator struct {
	results map[string]*types.FusedResult
	// semRank is the tie-break secondary: the document's 1-based rank in
	// the semantic list, or 0 when absent from it.
	semRank map[string]int
}

func newAccumulator() *fusedAccumulator {
	return &fusedAccumulator{
		results: make(map[string]*types.FusedResult),
		semRank: make(map[string]int),
	}
}

func (a *fusedAccumulator) add(listID string, hit types.RankedHit, contribution float64) {
	result, ok := a.results[hit.DocID]
	if !ok {
		result = &types.FusedResult{
			DocID:      hit.DocID,
			Provenance: make(map[string]types.ListProvenance),
		}
		a.results[hit.DocID] = result
	}
	if listID == semanticListID {
		a.semRank[hit.DocID] = hit.Rank
	}
	result.FusedScore += contribution
	result.Provenance[listID] = types.ListProvenance{Rank: hit.Rank, RawScore: hit.RawScore}
}

// sorted returns the accumulated results in deterministic order: descending
// fused score, then ascending semantic rank with absent documents last, then
// ascending doc id.
func (a *fusedAccumulator) sorted(limit int) []types.FusedResult {
	out := make([]types.FusedResult, 0, len(a.results))
	for _, result := range a.results {
		out = append(out, *result)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		ri, rj := a.semRank[out[i].DocID], a.semRank[out[j].DocID]
		if ri != rj {
			if ri == 0 || rj == 0 {
				return rj == 0
			}
			return ri < rj
		}
		return out[i].DocID < out[j].DocID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
