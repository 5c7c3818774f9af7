package shard

import (
	"sort"

	"github.com/cuemby/graphengine/internal/graph"
)

// sortNodesByNumericID and sortEdgesBySrcThenNumeric give every result
// set a deterministic order: ascending numeric id for nodes, and
// ascending (src, dst, type) for edges. Callers combine delta-ordered
// and segment-ordered slices by concatenating delta first, segment
// second, never by merging: both halves are already individually
// sorted.
func sortNodesByNumericID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].NumericID < nodes[j].NumericID })
}

func sortEdgesBySrcThenNumeric(edges []graph.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Src != b.Src {
			return a.Src < b.Src
		}
		if a.Dst != b.Dst {
			return a.Dst < b.Dst
		}
		return a.Type < b.Type
	})
}
