// Package community partitions the similarity graph into clusters and adds
// sparse bridge links between them, so tight neighborhoods found by mutual
// k-NN stay traversable from one another.
package community

import (
	"sort"

	"github.com/soundprediction/trama/pkg/types"
)

// Community is one detected cluster. Ephemeral: recomputed on every run and
// never persisted.
type Community struct {
	ID      int
	Members []string
}

// detector holds the agglomeration state for one detection run.
type detector struct {
	// community id -> member set
	members map[int][]string
	// inter-community weight, keyed by (lo, hi) community id
	between map[[2]int]float64
	// total weighted degree per community
	degree map[int]float64
	// 2m: total degree mass of the graph
	totalDegree float64
}

// DetectCommunities partitions the undirected weighted projection of the
// given links by greedy modularity merging: start with singleton
// communities, repeatedly merge the connected pair with the largest
// positive modularity gain, stop when no merge improves modularity or the
// pass budget runs out. Deterministic: ties resolve toward the lowest
// community ids.
func DetectCommunities(links []*types.Link, maxPasses int) []Community {
	weights := undirectedWeights(links)
	if len(weights.nodes) == 0 {
		return nil
	}

	d := newDetector(weights)
	if maxPasses <= 0 {
		maxPasses = 1
	}

	budget := maxPasses * len(weights.nodes)
	for merges := 0; merges < budget; merges++ {
		a, b, gain := d.bestMerge()
		if gain <= 0 {
			break
		}
		d.merge(a, b)
	}

	return d.communities()
}

type projection struct {
	nodes []string
	// canonical (lo, hi) doc id pair -> weight
	edges map[[2]string]float64
}

// undirectedWeights collapses directed links into a symmetric weighted
// edge set, keeping the strongest weight seen for a pair.
func undirectedWeights(links []*types.Link) projection {
	p := projection{edges: make(map[[2]string]float64)}
	seen := make(map[string]bool)

	for _, link := range links {
		lo, hi := link.FromID, link.ToID
		if lo > hi {
			lo, hi = hi, lo
		}
		key := [2]string{lo, hi}
		if link.Weight > p.edges[key] {
			p.edges[key] = link.Weight
		}
		for _, id := range []string{lo, hi} {
			if !seen[id] {
				seen[id] = true
				p.nodes = append(p.nodes, id)
			}
		}
	}
	sort.Strings(p.nodes)
	return p
}

func newDetector(p projection) *detector {
	index := make(map[string]int, len(p.nodes))
	for i, id := range p.nodes {
		index[id] = i
	}

	d := &detector{
		members: make(map[int][]string, len(p.nodes)),
		between: make(map[[2]int]float64),
		degree:  make(map[int]float64, len(p.nodes)),
	}
	for i, id := range p.nodes {
		d.members[i] = []string{id}
	}
	for pair, weight := range p.edges {
		a, b := index[pair[0]], index[pair[1]]
		if a > b {
			a, b = b, a
		}
		d.between[[2]int{a, b}] += weight
		d.degree[a] += weight
		d.degree[b] += weight
		d.totalDegree += 2 * weight
	}
	return d
}

// bestMerge returns the connected community pair with the highest modularity
// gain. Gain for merging A and B: w_AB/m - deg_A*deg_B/(2m^2).
func (d *detector) bestMerge() (int, int, float64) {
	if d.totalDegree == 0 {
		return 0, 0, 0
	}
	m := d.totalDegree / 2

	keys := make([][2]int, 0, len(d.between))
	for key := range d.between {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	bestA, bestB := 0, 0
	bestGain := 0.0
	for _, key := range keys {
		gain := d.between[key]/m - d.degree[key[0]]*d.degree[key[1]]/(2*m*m)
		if gain > bestGain {
			bestA, bestB, bestGain = key[0], key[1], gain
		}
	}
	return bestA, bestB, bestGain
}

// merge folds community b into community a.
func (d *detector) merge(a, b int) {
	d.members[a] = append(d.members[a], d.members[b]...)
	delete(d.members, b)
	d.degree[a] += d.degree[b]
	delete(d.degree, b)

	for key, weight := range d.between {
		if key[0] != b && key[1] != b {
			continue
		}
		delete(d.between, key)
		other := key[0]
		if other == b {
			other = key[1]
		}
		if other == a {
			continue // internal edge now
		}
		lo, hi := a, other
		if lo > hi {
			lo, hi = hi, lo
		}
		d.between[[2]int{lo, hi}] += weight
	}
}

// communities materializes the surviving communities with sorted members
// and sequential ids.
func (d *detector) communities() []Community {
	ids := make([]int, 0, len(d.members))
	for id := range d.members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Community, 0, len(ids))
	for i, id := range ids {
		members := append([]string(nil), d.members[id]...)
		sort.Strings(members)
		out = append(out, Community{ID: i, Members: members})
	}
	return out
}
