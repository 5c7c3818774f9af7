package shard

import "github.com/cuemby/graphengine/internal/graph"

// delta is a shard's in-memory write buffer: an ordered append-only log
// plus by-key maps so overrides and uniqueness checks are O(1)/O(log n)
// instead of a scan.
//
// Grounded on storageShard (storage/shard.go): an append-
// only `inserts []dataset` plus a `deletions map[uint]struct{}`,
// generalized here to two parallel logs (nodes, edges) each with their
// own by-key index instead of one untyped dataset slice.
type delta struct {
	nodes        []graph.Node
	nodeDeleted  []bool
	nodeBySemID  map[string]int // semantic id -> index into nodes (latest wins)
	nodeByNumID  map[uint64]int // numeric id -> index into nodes

	edges       []graph.Edge
	edgeDeleted []bool
	edgeByKey   map[graph.EdgeKey]int
}

func newDelta() *delta {
	return &delta{
		nodeBySemID: map[string]int{},
		nodeByNumID: map[uint64]int{},
		edgeByKey:   map[graph.EdgeKey]int{},
	}
}

func (d *delta) addNode(n graph.Node) {
	idx := len(d.nodes)
	d.nodes = append(d.nodes, n)
	d.nodeDeleted = append(d.nodeDeleted, false)
	d.nodeBySemID[n.SemanticID] = idx
	d.nodeByNumID[n.NumericID] = idx
}

func (d *delta) addEdge(e graph.Edge) {
	key := e.Key()
	if idx, ok := d.edgeByKey[key]; ok && !d.edgeDeleted[idx] {
		// same (type,src,dst) re-inserted within the same delta lifetime
		// (i.e. before the next flush): replace metadata in place rather
		// than growing the log, keeping count bookkeeping trivial.
		d.edges[idx] = e
		return
	}
	idx := len(d.edges)
	d.edges = append(d.edges, e)
	d.edgeDeleted = append(d.edgeDeleted, false)
	d.edgeByKey[key] = idx
}

// deleteBySemanticID marks the delta's copy of sid deleted, if present
// and not already deleted. Reports whether it found (and removed) a
// live entry.
func (d *delta) deleteBySemanticID(sid string) bool {
	idx, ok := d.nodeBySemID[sid]
	if !ok || d.nodeDeleted[idx] {
		return false
	}
	d.nodeDeleted[idx] = true
	delete(d.nodeBySemID, sid)
	delete(d.nodeByNumID, d.nodes[idx].NumericID)
	return true
}

func (d *delta) deleteEdgeByKey(key graph.EdgeKey) bool {
	idx, ok := d.edgeByKey[key]
	if !ok || d.edgeDeleted[idx] {
		return false
	}
	d.edgeDeleted[idx] = true
	delete(d.edgeByKey, key)
	return true
}

func (d *delta) getByNumericID(id uint64) (graph.Node, bool) {
	idx, ok := d.nodeByNumID[id]
	if !ok || d.nodeDeleted[idx] {
		return graph.Node{}, false
	}
	return d.nodes[idx], true
}

func (d *delta) getBySemanticID(sid string) (graph.Node, bool) {
	idx, ok := d.nodeBySemID[sid]
	if !ok || d.nodeDeleted[idx] {
		return graph.Node{}, false
	}
	return d.nodes[idx], true
}

// liveNodes returns every non-deleted node currently in the delta, most
// recent write per semantic id only (nodeBySemID already guarantees
// that), ascending by numeric id, as required for the delta portion of
// any result set.
func (d *delta) liveNodes() []graph.Node {
	out := make([]graph.Node, 0, len(d.nodeBySemID))
	for _, idx := range d.nodeBySemID {
		out = append(out, d.nodes[idx])
	}
	sortNodesByNumericID(out)
	return out
}

func (d *delta) liveEdges() []graph.Edge {
	out := make([]graph.Edge, 0, len(d.edgeByKey))
	for _, idx := range d.edgeByKey {
		out = append(out, d.edges[idx])
	}
	sortEdgesBySrcThenNumeric(out)
	return out
}

func (d *delta) nodeCount() int { return len(d.nodeBySemID) }
func (d *delta) edgeCount() int { return len(d.edgeByKey) }
