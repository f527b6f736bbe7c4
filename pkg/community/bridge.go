package community

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/soundprediction/trama/pkg/config"
	"github.com/soundprediction/trama/pkg/oracle"
	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/types"
)

// RunReport summarizes one bridge pass.
type RunReport struct {
	RunID          string `json:"run_id"`
	Skipped        bool   `json:"skipped"`
	CorpusSize     int    `json:"corpus_size"`
	Communities    int    `json:"communities"`
	PairsEvaluated int    `json:"pairs_evaluated"`
	PairsResumed   int    `json:"pairs_resumed"`
	BridgesCreated int    `json:"bridges_created"`
}

// Job runs periodic bridge passes over the link graph. It only ever adds
// bridge edges, never mutates semantic ones, so it is safe to run while
// relinks are in flight.
type Job struct {
	docs       store.DocumentStore
	links      store.LinkStore
	graph      store.GraphReader
	oracle     oracle.SimilarityOracle
	checkpoint *Checkpoint
	cfg        config.CommunityConfig
	logger     *slog.Logger
}

// NewJob wires a bridge job. The checkpoint may be nil, in which case
// interrupted runs restart from scratch.
func NewJob(docs store.DocumentStore, links store.LinkStore, graph store.GraphReader, sim oracle.SimilarityOracle, checkpoint *Checkpoint, cfg config.CommunityConfig, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		docs:       docs,
		links:      links,
		graph:      graph,
		oracle:     sim,
		checkpoint: checkpoint,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes one bridge pass. Below the corpus-size floor the pass is a
// no-op unless forced: small corpora are already well connected by mutual
// k-NN. An oracle failure mid-run exits early; bridges created so far stay,
// and the next run resumes from the checkpoint.
func (j *Job) Run(ctx context.Context, force bool) (*RunReport, error) {
	report := &RunReport{RunID: uuid.New().String()}

	corpusSize, err := j.docs.CountDocuments(ctx)
	if err != nil {
		return report, fmt.Errorf("bridge pass: corpus count failed: %w", err)
	}
	report.CorpusSize = corpusSize

	if corpusSize < j.cfg.MinCorpusSize && !force {
		report.Skipped = true
		j.logger.Info("bridge pass skipped, corpus below threshold",
			"run_id", report.RunID, "corpus_size", corpusSize, "min", j.cfg.MinCorpusSize)
		return report, nil
	}

	links, err := j.graph.AllLinks(ctx, types.LinkKindSemantic)
	if err != nil {
		return report, fmt.Errorf("bridge pass: reading graph failed: %w", err)
	}

	communities := DetectCommunities(links, j.cfg.MaxPasses)
	report.Communities = len(communities)
	if len(communities) < 2 {
		j.logger.Info("bridge pass found a single community, nothing to bridge",
			"run_id", report.RunID, "communities", len(communities))
		return report, nil
	}

	epoch := graphEpoch(links)
	degrees := degreeIndex(links)

	j.logger.Info("bridge pass started",
		"run_id", report.RunID, "communities", len(communities), "epoch", epoch)

	for i := 0; i < len(communities); i++ {
		for k := i + 1; k < len(communities); k++ {
			pairKey := communityPairKey(communities[i], communities[k])

			if j.checkpoint != nil {
				done, err := j.checkpoint.IsProcessed(epoch, pairKey)
				if err != nil {
					return report, fmt.Errorf("bridge pass: checkpoint read failed: %w", err)
				}
				if done {
					report.PairsResumed++
					continue
				}
			}

			created, err := j.bridgePair(ctx, communities[i], communities[k], degrees)
			if err != nil {
				j.logger.Error("bridge pass exiting early, created bridges kept",
					"run_id", report.RunID, "error", err)
				return report, err
			}
			report.PairsEvaluated++
			if created {
				report.BridgesCreated++
			}

			if j.checkpoint != nil {
				if err := j.checkpoint.MarkProcessed(epoch, pairKey); err != nil {
					return report, fmt.Errorf("bridge pass: checkpoint write failed: %w", err)
				}
			}
		}
	}

	j.logger.Info("bridge pass completed",
		"run_id", report.RunID, "pairs", report.PairsEvaluated,
		"resumed", report.PairsResumed, "bridges", report.BridgesCreated)
	return report, nil
}

// bridgePair samples both communities, finds the highest cross-pair
// similarity, and upserts one bidirectional bridge link when it clears the
// threshold. Upserts are keyed by (from, to, kind), so repeating a pair
// never duplicates a bridge.
func (j *Job) bridgePair(ctx context.Context, a, b Community, degrees map[string]int) (bool, error) {
	sampleA := sampleByDegree(a.Members, degrees, j.cfg.SampleSize)
	sampleB := sampleByDegree(b.Members, degrees, j.cfg.SampleSize)

	bestSim := -1.0
	var bestFrom, bestTo string
	for _, docA := range sampleA {
		for _, docB := range sampleB {
			sim, err := j.oracle.Similarity(ctx, docA, docB)
			if err != nil {
				return false, fmt.Errorf("similarity %s/%s failed: %w", docA, docB, err)
			}
			if sim > bestSim {
				bestSim, bestFrom, bestTo = sim, docA, docB
			}
		}
	}

	if bestSim < j.cfg.BridgeThreshold {
		return false, nil
	}

	link := &types.Link{
		FromID: bestFrom,
		ToID:   bestTo,
		Kind:   types.LinkKindBridge,
		Weight: bestSim,
	}
	if err := j.links.UpsertPair(ctx, link); err != nil {
		return false, fmt.Errorf("bridge upsert %s/%s failed: %w", bestFrom, bestTo, err)
	}
	j.logger.Info("bridge created",
		"from", bestFrom, "to", bestTo, "similarity", bestSim)
	return true, nil
}

// sampleByDegree picks up to n members, best-connected first. Hubs are the
// most representative probes for their community.
func sampleByDegree(members []string, degrees map[string]int, n int) []string {
	sorted := append([]string(nil), members...)
	sort.Slice(sorted, func(i, j int) bool {
		if degrees[sorted[i]] != degrees[sorted[j]] {
			return degrees[sorted[i]] > degrees[sorted[j]]
		}
		return sorted[i] < sorted[j]
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func degreeIndex(links []*types.Link) map[string]int {
	degrees := make(map[string]int)
	for _, link := range links {
		degrees[link.FromID]++
	}
	return degrees
}

// communityPairKey identifies a community pair by each side's lowest member
// id. Detection is deterministic, so the key is stable across a resumed
// run on an unchanged graph.
func communityPairKey(a, b Community) string {
	loA, loB := a.Members[0], b.Members[0]
	if loA > loB {
		loA, loB = loB, loA
	}
	return loA + "|" + loB
}

// graphEpoch fingerprints the link set. A changed graph gets a new epoch,
// invalidating checkpoint marks from previous runs.
func graphEpoch(links []*types.Link) string {
	keys := make([]string, 0, len(links))
	for _, link := range links {
		keys = append(keys, link.FromID+"\x00"+link.ToID+"\x00"+string(link.Kind))
	}
	sort.Strings(keys)

	h := fnv.New64a()
	for _, key := range keys {
		h.Write([]byte(key))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
