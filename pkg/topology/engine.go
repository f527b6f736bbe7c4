// Package topology maintains the bounded-degree similarity graph between
// documents. A document write triggers a relink that recomputes the
// document's outgoing semantic links through mutual k-nearest-neighbor
// filtering, with optional relative-neighborhood pruning when the local
// graph grows too dense.
package topology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/soundprediction/trama/pkg/config"
	"github.com/soundprediction/trama/pkg/oracle"
	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/types"
	"github.com/soundprediction/trama/pkg/utils"
)

// Strategy selects how automatic semantic links are chosen.
type Strategy string

const (
	// StrategyMutualKNN links only pairs where each endpoint ranks in the
	// other's top k+1 neighbors. Active default.
	StrategyMutualKNN Strategy = "mutual_knn"
	// StrategyThreshold links to every candidate at or above a fixed
	// similarity floor. Legacy behavior; a relink under the active
	// strategy replaces the document's automatic out-set wholesale, so
	// documents migrate strategy-by-relink and never mix both.
	StrategyThreshold Strategy = "threshold"
)

var ErrUnknownStrategy = errors.New("unknown topology strategy")

// Engine recomputes per-document link sets. Relinks for the same document
// are serialized by a keyed mutex; different documents proceed in parallel.
type Engine struct {
	links  store.LinkStore
	oracle oracle.SimilarityOracle
	cfg    config.TopologyConfig
	locks  *utils.KeyedMutex
	logger *slog.Logger
}

// NewEngine validates the strategy and returns a topology engine.
func NewEngine(links store.LinkStore, sim oracle.SimilarityOracle, cfg config.TopologyConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch Strategy(cfg.Strategy) {
	case StrategyMutualKNN, StrategyThreshold:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
	return &Engine{
		links:  links,
		oracle: sim,
		cfg:    cfg,
		locks:  utils.NewKeyedMutex(),
		logger: logger,
	}, nil
}

// EffectiveK returns the neighbor count for the corpus size:
// round(log2(n)) clamped to [kMin, kMax].
func EffectiveK(corpusSize, kMin, kMax int) int {
	if corpusSize < 2 {
		return kMin
	}
	k := int(math.Round(math.Log2(float64(corpusSize))))
	if k < kMin {
		return kMin
	}
	if k > kMax {
		return kMax
	}
	return k
}

// Relink recomputes docID's automatic semantic out-set. Corpus size is
// passed explicitly so the adaptive k never reads shared state. Oracle
// failures abort before any mutation; the caller retries later.
func (e *Engine) Relink(ctx context.Context, docID string, corpusSize int) error {
	if docID == "" {
		return types.ErrEmptyID
	}

	e.locks.Lock(docID)
	defer e.locks.Unlock(docID)

	k := EffectiveK(corpusSize, e.cfg.KMin, e.cfg.KMax)

	candidates, err := e.oracle.Nearest(ctx, docID, k+1)
	if err != nil {
		return fmt.Errorf("relink %s: neighbor query failed: %w", docID, err)
	}

	var desired []oracle.Neighbor
	switch Strategy(e.cfg.Strategy) {
	case StrategyThreshold:
		for _, c := range candidates {
			if c.Similarity >= e.cfg.MinSimilarity {
				desired = append(desired, c)
			}
		}
	default:
		desired, err = e.mutualCandidates(ctx, docID, candidates, k)
		if err != nil {
			return fmt.Errorf("relink %s: mutual filter failed: %w", docID, err)
		}
	}

	prior, err := e.links.ListOutgoing(ctx, docID, types.LinkKindSemantic)
	if err != nil {
		return fmt.Errorf("relink %s: listing prior links failed: %w", docID, err)
	}
	e.reportOneSided(ctx, docID, prior)

	mutual := Strategy(e.cfg.Strategy) == StrategyMutualKNN

	// Fallback keeps a document with any candidate at all reachable.
	if len(desired) == 0 && len(candidates) > 0 && mutual {
		nearest := candidates[0]
		if err := e.replaceOutSet(ctx, docID, prior, nil); err != nil {
			return err
		}
		link := &types.Link{
			FromID: docID,
			ToID:   nearest.DocID,
			Kind:   types.LinkKindSemantic,
			Weight: nearest.Similarity,
			Mutual: false,
		}
		if err := e.links.UpsertLink(ctx, link); err != nil {
			return fmt.Errorf("relink %s: fallback link failed: %w", docID, err)
		}
		e.logger.Info("relink fallback linked isolated document",
			"doc_id", docID, "to", nearest.DocID, "similarity", nearest.Similarity)
		return nil
	}

	if err := e.replaceOutSet(ctx, docID, prior, desired); err != nil {
		return err
	}

	for _, n := range desired {
		link := &types.Link{
			FromID: docID,
			ToID:   n.DocID,
			Kind:   types.LinkKindSemantic,
			Weight: n.Similarity,
			Mutual: mutual,
		}
		if mutual {
			err = e.upsertMutualPair(ctx, link, k)
		} else {
			err = e.links.UpsertLink(ctx, link)
		}
		if err != nil {
			return fmt.Errorf("relink %s: upsert to %s failed: %w", docID, n.DocID, err)
		}
	}

	e.logger.Info("relinked document",
		"doc_id", docID, "k", k, "candidates", len(candidates), "linked", len(desired))

	if e.cfg.PruneRedundant && len(desired) > e.cfg.DensityThreshold {
		if err := e.pruneRedundant(ctx, docID); err != nil {
			return fmt.Errorf("relink %s: pruning failed: %w", docID, err)
		}
	}
	return nil
}

// RelinkAll recomputes every document's out-set through a bounded worker
// pool. Per-document failures are collected, not fatal.
func (e *Engine) RelinkAll(ctx context.Context, docIDs []string, corpusSize int) []error {
	worker := func(ctx context.Context, docID string) (struct{}, error) {
		return struct{}{}, e.Relink(ctx, docID, corpusSize)
	}
	pool := utils.NewWorkerPool(e.cfg.MaxConcurrency, worker)
	_, errs := pool.ProcessItems(ctx, docIDs)

	var failures []error
	for i, err := range errs {
		if err != nil {
			failures = append(failures, fmt.Errorf("relink %s: %w", docIDs[i], err))
		}
	}
	return failures
}

// mutualCandidates keeps the candidates that list docID among their own
// top-(k+1) neighbors, capped at k strongest so the semantic out-degree
// bound holds. All candidate lookups must succeed: linking on partial
// neighborhood data would bake oracle outages into the graph.
func (e *Engine) mutualCandidates(ctx context.Context, docID string, candidates []oracle.Neighbor, k int) ([]oracle.Neighbor, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	checks := make([]func() (bool, error), len(candidates))
	for i, c := range candidates {
		candidateID := c.DocID
		checks[i] = func() (bool, error) {
			reverse, err := e.oracle.Nearest(ctx, candidateID, k+1)
			if err != nil {
				return false, err
			}
			for _, r := range reverse {
				if r.DocID == docID {
					return true, nil
				}
			}
			return false, nil
		}
	}

	isMutual, errs := utils.ExecuteWithResults(ctx, e.cfg.MaxConcurrency, checks...)
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var mutual []oracle.Neighbor
	for i, c := range candidates {
		if isMutual[i] {
			mutual = append(mutual, c)
		}
	}

	sort.Slice(mutual, func(i, j int) bool {
		if mutual[i].Similarity != mutual[j].Similarity {
			return mutual[i].Similarity > mutual[j].Similarity
		}
		return mutual[i].DocID < mutual[j].DocID
	})
	if len(mutual) > k {
		mutual = mutual[:k]
	}
	return mutual, nil
}

// upsertMutualPair writes both directions of a mutual semantic link and
// holds the far endpoint's mutual out-degree at k. mutualCandidates caps
// the relinked side, but the partner gains the reverse edge passively, so
// its weakest mutual pairs are evicted when the write pushes it past k.
// Eviction removes both directions, never below k edges, so it cannot
// strand the partner.
func (e *Engine) upsertMutualPair(ctx context.Context, link *types.Link, k int) error {
	if err := e.links.UpsertPair(ctx, link); err != nil {
		return err
	}

	partnerOut, err := e.links.ListOutgoing(ctx, link.ToID, types.LinkKindSemantic)
	if err != nil {
		return err
	}
	mutualOut := partnerOut[:0]
	for _, l := range partnerOut {
		if l.Mutual {
			mutualOut = append(mutualOut, l)
		}
	}
	if len(mutualOut) <= k {
		return nil
	}

	sort.Slice(mutualOut, func(i, j int) bool {
		if mutualOut[i].Weight != mutualOut[j].Weight {
			return mutualOut[i].Weight < mutualOut[j].Weight
		}
		return mutualOut[i].ToID < mutualOut[j].ToID
	})
	for _, victim := range mutualOut[:len(mutualOut)-k] {
		err := e.links.DeletePair(ctx, link.ToID, victim.ToID, types.LinkKindSemantic)
		if err != nil && !errors.Is(err, types.ErrLinkNotFound) {
			return err
		}
		e.logger.Info("evicted weakest mutual link to hold degree bound",
			"doc_id", link.ToID, "evicted", victim.ToID, "weight", victim.Weight)
	}
	return nil
}

// replaceOutSet deletes prior automatic semantic links that the new set no
// longer justifies. Explicit and bridge links are never part of the diff.
func (e *Engine) replaceOutSet(ctx context.Context, docID string, prior []*types.Link, desired []oracle.Neighbor) error {
	keep := make(map[string]bool, len(desired))
	for _, n := range desired {
		keep[n.DocID] = true
	}

	for _, link := range prior {
		if keep[link.ToID] {
			continue
		}
		var err error
		if link.Mutual {
			err = e.links.DeletePair(ctx, docID, link.ToID, types.LinkKindSemantic)
		} else {
			err = e.links.DeleteLink(ctx, docID, link.ToID, types.LinkKindSemantic)
		}
		if err != nil && !errors.Is(err, types.ErrLinkNotFound) {
			return fmt.Errorf("relink %s: removing stale link to %s failed: %w", docID, link.ToID, err)
		}
	}
	return nil
}

// reportOneSided logs mutual-flagged links whose reverse direction is
// missing. The condition self-heals: this relink rewrites the out-set and
// the next relink of the far endpoint rewrites its side.
func (e *Engine) reportOneSided(ctx context.Context, docID string, prior []*types.Link) {
	for _, link := range prior {
		if !link.Mutual {
			continue
		}
		reverse, err := e.links.ListOutgoing(ctx, link.ToID, types.LinkKindSemantic)
		if err != nil {
			continue
		}
		found := false
		for _, r := range reverse {
			if r.ToID == docID {
				found = true
				break
			}
		}
		if !found {
			e.logger.Warn("one-sided mutual link detected, healing on relink",
				"from", docID, "to", link.ToID)
		}
	}
}
