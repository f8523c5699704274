// Package cluster groups embedding vectors into communities of near-duplicates.
package cluster

import "sort"

// Detector finds clusters of similar vectors.
//
// Each returned cluster is a slice of indices into vectors. Implementations only
// report clusters with at least minSize members, where two vectors count as
// connected when their cosine similarity is >= threshold.
type Detector interface {
	Detect(vectors [][]float32, minSize int, threshold float64) [][]int
}

// CommunityDetector is a greedy community detection over the similarity graph.
//
// Every node whose neighbourhood (nodes at or above the threshold, itself
// included) has at least minSize members seeds a candidate community. Candidates
// are processed largest first; nodes already claimed by an earlier community are
// removed from later ones, and a candidate survives only while it still has
// minSize members. The result is therefore always disjoint.
type CommunityDetector struct{}

// NewCommunityDetector creates the default detector.
func NewCommunityDetector() *CommunityDetector {
	return &CommunityDetector{}
}

// Detect implements Detector.
func (d *CommunityDetector) Detect(vectors [][]float32, minSize int, threshold float64) [][]int {
	if len(vectors) == 0 || minSize > len(vectors) {
		return [][]int{}
	}
	if minSize < 1 {
		minSize = 1
	}

	sims := SimilarityMatrix(vectors)

	// Step 1: candidate community per node, ordered by similarity to the seed.
	var candidates [][]int
	for _, row := range sims {
		var members []int
		for j, s := range row {
			if s >= threshold {
				members = append(members, j)
			}
		}
		if len(members) < minSize {
			continue
		}
		sort.SliceStable(members, func(a, b int) bool {
			return row[members[a]] > row[members[b]]
		})
		candidates = append(candidates, members)
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return len(candidates[a]) > len(candidates[b])
	})

	// Step 2: strip overlaps, largest communities claim nodes first.
	claimed := make(map[int]bool, len(vectors))
	communities := make([][]int, 0, len(candidates))
	for _, candidate := range candidates {
		var free []int
		for _, idx := range candidate {
			if !claimed[idx] {
				free = append(free, idx)
			}
		}
		if len(free) < minSize {
			continue
		}
		for _, idx := range free {
			claimed[idx] = true
		}
		communities = append(communities, free)
	}

	sort.SliceStable(communities, func(a, b int) bool {
		return len(communities[a]) > len(communities[b])
	})

	return communities
}

// UnionFindDetector reports the connected components of the threshold graph.
// It is transitive: a chain a~b~c lands in one cluster even when a and c are
// not directly similar.
type UnionFindDetector struct{}

// NewUnionFindDetector creates a connected-components detector.
func NewUnionFindDetector() *UnionFindDetector {
	return &UnionFindDetector{}
}

// Detect implements Detector. Members are in ascending index order and clusters
// are ordered by their smallest member.
func (d *UnionFindDetector) Detect(vectors [][]float32, minSize int, threshold float64) [][]int {
	n := len(vectors)
	if n == 0 || minSize > n {
		return [][]int{}
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if CosineSimilarity(vectors[i], vectors[j]) < threshold {
				continue
			}
			ri, rj := find(i), find(j)
			if ri == rj {
				continue
			}
			// Smaller root wins so the root is always the smallest member.
			if ri < rj {
				parent[rj] = ri
			} else {
				parent[ri] = rj
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		r := find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	clusters := make([][]int, 0, len(roots))
	for _, r := range roots {
		if len(groups[r]) >= minSize {
			clusters = append(clusters, groups[r])
		}
	}

	return clusters
}
