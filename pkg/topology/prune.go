package topology

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/soundprediction/trama/pkg/types"
)

// pruneRedundant applies the relative-neighborhood criterion to docID's
// semantic out-set: when two neighbors A and B are closer to each other
// than either is to docID, the edge to the weaker of the two carries no
// information the graph cannot recover in one extra hop, so it is removed.
//
// Neighbors are visited strongest-first and a removal decision depends only
// on the pair itself, so the strongest neighbor always survives, the last
// edge is never removed, and a second pass over the surviving set removes
// nothing.
func (e *Engine) pruneRedundant(ctx context.Context, docID string) error {
	neighbors, err := e.links.ListOutgoing(ctx, docID, types.LinkKindSemantic)
	if err != nil {
		return err
	}
	if len(neighbors) < 2 {
		return nil
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Weight != neighbors[j].Weight {
			return neighbors[i].Weight > neighbors[j].Weight
		}
		return neighbors[i].ToID < neighbors[j].ToID
	})

	removed := make(map[string]bool)
	pruned := 0
	for i := 0; i < len(neighbors); i++ {
		if removed[neighbors[i].ToID] {
			continue
		}
		for j := i + 1; j < len(neighbors); j++ {
			if removed[neighbors[j].ToID] {
				continue
			}

			sim, err := e.oracle.Similarity(ctx, neighbors[i].ToID, neighbors[j].ToID)
			if err != nil {
				return fmt.Errorf("pairwise similarity %s/%s failed: %w",
					neighbors[i].ToID, neighbors[j].ToID, err)
			}

			floor := neighbors[i].Weight
			if neighbors[j].Weight < floor {
				floor = neighbors[j].Weight
			}
			if sim <= floor {
				continue
			}

			// j is the weaker endpoint under the strongest-first order.
			weaker := neighbors[j]
			if err := e.removeEdge(ctx, docID, weaker); err != nil {
				return err
			}
			removed[weaker.ToID] = true
			pruned++
		}
	}

	if pruned > 0 {
		e.logger.Info("pruned redundant links",
			"doc_id", docID, "pruned", pruned, "remaining", len(neighbors)-pruned)
	}
	return nil
}

func (e *Engine) removeEdge(ctx context.Context, docID string, link *types.Link) error {
	var err error
	if link.Mutual {
		err = e.links.DeletePair(ctx, docID, link.ToID, types.LinkKindSemantic)
	} else {
		err = e.links.DeleteLink(ctx, docID, link.ToID, types.LinkKindSemantic)
	}
	if err != nil && !errors.Is(err, types.ErrLinkNotFound) {
		return fmt.Errorf("pruning edge %s -> %s failed: %w", docID, link.ToID, err)
	}
	return nil
}
