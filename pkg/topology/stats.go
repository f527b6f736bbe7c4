package topology

import (
	"context"
	"sort"

	"github.com/soundprediction/trama/pkg/config"
	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/types"
)

// Analyzer computes read-only observability metrics over the link graph.
type Analyzer struct {
	docs  store.DocumentStore
	graph store.GraphReader
	cfg   config.TopologyConfig
}

// NewAnalyzer creates a topology analyzer.
func NewAnalyzer(docs store.DocumentStore, graph store.GraphReader, cfg config.TopologyConfig) *Analyzer {
	return &Analyzer{docs: docs, graph: graph, cfg: cfg}
}

// Stats computes degree, clustering, and connectivity metrics over the
// undirected projection of the link graph. Documents with no links count as
// isolated, degree-zero nodes.
func (a *Analyzer) Stats(ctx context.Context) (*types.TopologyStats, error) {
	docs, err := a.docs.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	links, err := a.graph.AllLinks(ctx)
	if err != nil {
		return nil, err
	}

	adjacency := make(map[string]map[string]bool, len(docs))
	for _, doc := range docs {
		adjacency[doc.ID] = make(map[string]bool)
	}
	for _, link := range links {
		if adjacency[link.FromID] == nil {
			adjacency[link.FromID] = make(map[string]bool)
		}
		if adjacency[link.ToID] == nil {
			adjacency[link.ToID] = make(map[string]bool)
		}
		adjacency[link.FromID][link.ToID] = true
		adjacency[link.ToID][link.FromID] = true
	}

	stats := &types.TopologyStats{
		TotalDocuments:     len(docs),
		TotalLinks:         len(links),
		DegreeDistribution: make(map[int]int),
		LinkStrategy:       a.cfg.Strategy,
		EffectiveK:         EffectiveK(len(docs), a.cfg.KMin, a.cfg.KMax),
	}

	degrees := make([]int, 0, len(adjacency))
	totalDegree := 0
	var clusteringSum float64

	for _, neighbors := range adjacency {
		degree := len(neighbors)
		degrees = append(degrees, degree)
		totalDegree += degree
		stats.DegreeDistribution[degree]++
		if degree == 0 {
			stats.IsolatedDocuments++
		}
		if degree > stats.MaxDegree {
			stats.MaxDegree = degree
		}
		clusteringSum += localClustering(adjacency, neighbors)
	}

	if len(adjacency) > 0 {
		stats.AvgDegree = float64(totalDegree) / float64(len(adjacency))
		stats.ClusteringCoefficient = clusteringSum / float64(len(adjacency))
		sort.Ints(degrees)
		stats.MedianDegree = float64(degrees[len(degrees)/2])
	}
	stats.ConnectedComponents = countComponents(adjacency)

	return stats, nil
}

// localClustering is the fraction of a node's neighbor pairs that are
// themselves connected. Degree < 2 contributes 0.
func localClustering(adjacency map[string]map[string]bool, neighbors map[string]bool) float64 {
	if len(neighbors) < 2 {
		return 0
	}
	ids := make([]string, 0, len(neighbors))
	for id := range neighbors {
		ids = append(ids, id)
	}

	connected := 0
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if adjacency[ids[i]][ids[j]] {
				connected++
			}
		}
	}
	possible := len(ids) * (len(ids) - 1) / 2
	return float64(connected) / float64(possible)
}

func countComponents(adjacency map[string]map[string]bool) int {
	visited := make(map[string]bool, len(adjacency))
	components := 0

	for start := range adjacency {
		if visited[start] {
			continue
		}
		components++
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			for neighbor := range adjacency[node] {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}
	}
	return components
}
