package layout

import (
	"sort"

	"gridcal/internal/model"
)

// OverlapGroup is a maximal set of events connected by a chain of pairwise
// time overlaps (a connected component of the overlap graph). Events in the
// group are ordered by (Start asc, End asc), stable on ties.
type OverlapGroup struct {
	ClusterID int
	Events    []model.Event
}

// unionFind is a disjoint-set structure with path compression and union by
// size. Cluster merging is conceptually a union operation; modelling it
// explicitly keeps the bridge case (one event connecting two existing
// clusters) from degenerating into list splicing.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		size:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}

// BuildClusters partitions events into overlap clusters.
//
// Events are processed in start-time order (stable on ties). Each event is
// tested against every previously placed event; any overlap unions the two
// into the same set, so an event bridging two existing clusters merges them.
// The post-condition is transitive closure: if A overlaps B and B overlaps
// C, all three share a cluster even when A and C never directly overlap.
//
// Cluster IDs are assigned in order of each cluster's earliest event, so an
// unchanged input always yields identical IDs.
//
// Pairwise testing is O(n²); fine for per-day/per-week volumes (tens to low
// hundreds of events). A sweep line would bring this to O(n log n) if feeds
// ever get much denser.
func BuildClusters(events []model.Event) []OverlapGroup {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].End.Before(sorted[j].End)
	})

	uf := newUnionFind(len(sorted))
	for i := 1; i < len(sorted); i++ {
		for j := 0; j < i; j++ {
			if Overlaps(sorted[i], sorted[j]) {
				uf.union(i, j)
			}
		}
	}

	// Group members by root, numbering clusters by first appearance in
	// sorted order.
	clusterOf := make(map[int]int)
	groups := make([]OverlapGroup, 0)
	for i, ev := range sorted {
		root := uf.find(i)
		id, ok := clusterOf[root]
		if !ok {
			id = len(groups)
			clusterOf[root] = id
			groups = append(groups, OverlapGroup{ClusterID: id})
		}
		groups[id].Events = append(groups[id].Events, ev)
	}

	return groups
}
