package engine

import (
	"sort"

	"github.com/cuemby/graphengine/internal/errs"
	"github.com/cuemby/graphengine/internal/graph"
)

// GetNodeByNumericID resolves a node by its engine-wide numeric id via
// the numeric_id -> shard cross-shard index, then a single shard
// lookup.
func (e *Engine) GetNodeByNumericID(id uint64) (graph.Node, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	shardName, ok := e.numericIndex[id]
	if !ok {
		return graph.Node{}, errs.ErrNotFound
	}
	n, ok := e.shards[shardName].GetNodeByNumericID(id)
	if !ok {
		return graph.Node{}, errs.ErrNotFound
	}
	return n, nil
}

// GetNodeBySemanticID resolves a node by its semantic id via the
// semantic_id -> shard cross-shard index.
func (e *Engine) GetNodeBySemanticID(sid string) (graph.Node, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	shardName, ok := e.semanticIndex[sid]
	if !ok {
		return graph.Node{}, errs.ErrNotFound
	}
	n, ok := e.shards[shardName].GetNodeBySemanticID(sid)
	if !ok {
		return graph.Node{}, errs.ErrNotFound
	}
	return n, nil
}

// FindNodesByType scans every shard for live nodes of the given type,
// shard by shard in sorted name order; within each shard, delta entries
// come first and segment entries second, each ascending by numeric id.
func (e *Engine) FindNodesByType(typ string) []graph.Node {
	return e.FindNodes(func(n graph.Node) bool { return n.Type == typ })
}

// FindNodes scans every shard for live nodes matching pred.
func (e *Engine) FindNodes(pred func(graph.Node) bool) []graph.Node {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []graph.Node
	for _, name := range e.shardNames() {
		out = append(out, e.shards[name].FindNodes(pred)...)
	}
	return out
}

// OutgoingEdges returns every live edge with src == nodeID, gathered
// from the node's home shard plus every shard the node_id cross-shard
// index says also holds an edge touching it (enrichment shards).
func (e *Engine) OutgoingEdges(nodeID uint64) []graph.Edge {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collectEdges(nodeID, func(s shardEdgeSource) []graph.Edge { return s.OutgoingEdges(nodeID) })
}

// IncomingEdges returns every live edge with dst == nodeID.
func (e *Engine) IncomingEdges(nodeID uint64) []graph.Edge {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collectEdges(nodeID, func(s shardEdgeSource) []graph.Edge { return s.IncomingEdges(nodeID) })
}

type shardEdgeSource interface {
	OutgoingEdges(uint64) []graph.Edge
	IncomingEdges(uint64) []graph.Edge
}

func (e *Engine) collectEdges(nodeID uint64, fetch func(shardEdgeSource) []graph.Edge) []graph.Edge {
	names := make([]string, 0, len(e.nodeShards[nodeID]))
	for name := range e.nodeShards[nodeID] {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []graph.Edge
	for _, name := range names {
		out = append(out, fetch(e.shards[name])...)
	}
	return out
}

// Direction restricts which side of an edge Neighbors walks.
type Direction int

const (
	// DirectionBoth walks both outgoing and incoming edges.
	DirectionBoth Direction = iota
	DirectionOut
	DirectionIn
)

func edgeTypeAllowed(edgeTypes []string, typ string) bool {
	if len(edgeTypes) == 0 {
		return true
	}
	for _, t := range edgeTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// Neighbors returns the distinct nodes reachable by one edge from
// nodeID, ascending by numeric id, capped at maxResults (0 means
// unbounded). edgeTypes restricts which edge types are followed (empty
// means all); dir restricts which direction is walked.
func (e *Engine) Neighbors(nodeID uint64, edgeTypes []string, dir Direction, maxResults int) []graph.Node {
	e.mu.RLock()
	ids := map[uint64]bool{}
	if dir == DirectionBoth || dir == DirectionOut {
		for _, edge := range e.collectEdges(nodeID, func(s shardEdgeSource) []graph.Edge { return s.OutgoingEdges(nodeID) }) {
			if edgeTypeAllowed(edgeTypes, edge.Type) {
				ids[edge.Dst] = true
			}
		}
	}
	if dir == DirectionBoth || dir == DirectionIn {
		for _, edge := range e.collectEdges(nodeID, func(s shardEdgeSource) []graph.Edge { return s.IncomingEdges(nodeID) }) {
			if edgeTypeAllowed(edgeTypes, edge.Type) {
				ids[edge.Src] = true
			}
		}
	}
	e.mu.RUnlock()

	sorted := make([]uint64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var out []graph.Node
	for _, id := range sorted {
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		if n, err := e.GetNodeByNumericID(id); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// BFS walks outgoing edges breadth-first from start, up to maxHops,
// returning every distinct node visited (start excluded) in visit
// order. edgeFilter restricts which edge types are followed (empty
// means all). Each hop's frontier is expanded in ascending numeric-id
// order so the traversal is fully deterministic.
func (e *Engine) BFS(start uint64, maxHops int, edgeFilter []string) []graph.Node {
	visited := map[uint64]bool{start: true}
	frontier := []uint64{start}
	var out []graph.Node

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		e.mu.RLock()
		var next []uint64
		for _, id := range frontier {
			for _, edge := range e.collectEdges(id, func(s shardEdgeSource) []graph.Edge { return s.OutgoingEdges(id) }) {
				if !edgeTypeAllowed(edgeFilter, edge.Type) {
					continue
				}
				if !visited[edge.Dst] {
					visited[edge.Dst] = true
					next = append(next, edge.Dst)
				}
			}
		}
		e.mu.RUnlock()

		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		for _, id := range next {
			if n, err := e.GetNodeByNumericID(id); err == nil {
				out = append(out, n)
			}
		}
		frontier = next
	}
	return out
}
