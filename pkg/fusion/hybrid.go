package fusion

import (
	"context"
	"log/slog"

	"github.com/soundprediction/trama/pkg/config"
	"github.com/soundprediction/trama/pkg/oracle"
	"github.com/soundprediction/trama/pkg/types"
	"github.com/soundprediction/trama/pkg/utils"
)

// overFetchFactor is how far past the requested limit each oracle is asked
// to rank before fusion truncates.
const overFetchFactor = 2

// CorpusCounter reports the corpus size driving the search-breadth policy.
type CorpusCounter interface {
	CountDocuments(ctx context.Context) (int, error)
}

// HybridSearcher runs the full search path: classify the query, tune the
// semantic search breadth, rank through both oracles concurrently, filter
// weak semantic hits, and fuse.
type HybridSearcher struct {
	engine   *Engine
	lexical  oracle.Ranker
	semantic oracle.Ranker
	counter  CorpusCounter
	cfg      config.FusionConfig
	logger   *slog.Logger
}

// NewHybridSearcher wires a searcher from validated configuration.
func NewHybridSearcher(cfg config.FusionConfig, lexical, semantic oracle.Ranker, counter CorpusCounter, logger *slog.Logger) (*HybridSearcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	engine, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &HybridSearcher{
		engine:   engine,
		lexical:  lexical,
		semantic: semantic,
		counter:  counter,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Search executes a hybrid query and returns up to limit fused results. A
// single failed oracle degrades to an empty list; the search fails only
// when no ranked source succeeded.
func (s *HybridSearcher) Search(ctx context.Context, query string, limit int) ([]types.FusedResult, error) {
	if query == "" {
		return nil, types.ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, types.ErrInvalidLimit
	}

	features, weights, k := Classify(query)
	if !s.cfg.AdaptiveWeights {
		weights = types.FusionWeights{Lexical: s.cfg.LexicalWeight, Semantic: s.cfg.SemanticWeight}
	}

	breadth := MinSearchBreadth
	if s.counter != nil {
		corpusSize, err := s.counter.CountDocuments(ctx)
		if err != nil {
			s.logger.Warn("corpus count unavailable, using minimum search breadth", "error", err)
		} else if b, err := SearchBreadth(RecallTarget(s.cfg.RecallTarget), corpusSize); err == nil {
			breadth = b
		}
	}

	fetch := limit * overFetchFactor
	var lexList, semList types.RankedList

	executor := utils.NewConcurrentExecutor(2)
	errs := executor.Execute(ctx,
		func() error {
			list, err := s.lexical.Rank(ctx, query, fetch, breadth)
			if err != nil {
				return err
			}
			lexList = list
			return nil
		},
		func() error {
			list, err := s.semantic.Rank(ctx, query, fetch, breadth)
			if err != nil {
				return err
			}
			semList = list
			return nil
		},
	)

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		source := "lexical"
		if i == 1 {
			source = "semantic"
		}
		s.logger.Warn("ranked source failed, fusing without it",
			"source", source, "query_tokens", features.TokenCount, "error", err)
	}
	if failed == len(errs) {
		return nil, errs[0]
	}

	semList = dropWeakSemanticHits(semList, s.cfg.MinSemanticSimilarity)
	lists := []types.RankedList{lexList, semList}

	if s.cfg.AdaptiveK {
		k = AdaptK(k, lists)
	} else {
		k = s.cfg.RRFK
	}

	return s.engine.Fuse(lists, k, weights, limit)
}

// dropWeakSemanticHits removes hits below the similarity floor and
// renumbers the survivors so fusion sees contiguous 1-based ranks.
func dropWeakSemanticHits(list types.RankedList, minSimilarity float64) types.RankedList {
	if minSimilarity <= 0 || len(list.Hits) == 0 {
		return list
	}
	filtered := types.RankedList{ListID: list.ListID}
	for _, hit := range list.Hits {
		if hit.RawScore < minSimilarity {
			continue
		}
		hit.Rank = len(filtered.Hits) + 1
		filtered.Hits = append(filtered.Hits, hit)
	}
	return filtered
}
