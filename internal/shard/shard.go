// Package shard implements the engine's L2 tier: a shard is an ordered
// list of immutable segments plus one in-memory delta, exposing the
// read/write primitives the multi-shard engine composes into the batch
// commit protocol.
//
// Grounded on storageShard (storage/shard.go, storage/
// table.go): a table there is "main storage + delta + deletion set",
// generalized here to "ordered segments + delta + per-segment
// tombstone bitsets", and on storage/index.go for the idea of keeping
// an ordered secondary index (there a sorted-slice index over a
// column; here a github.com/google/btree index over edge keys) instead
// of re-scanning on every lookup.
package shard

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/btree"

	"github.com/cuemby/graphengine/internal/errs"
	"github.com/cuemby/graphengine/internal/graph"
	"github.com/cuemby/graphengine/internal/manifest"
	"github.com/cuemby/graphengine/internal/segment"
)

type segLoc struct {
	segIdx int
	pos    int
}

// outEntry and inEntry key the two ordered edge indices this shard
// keeps for neighbor enumeration: (src,type,dst) ascending for
// outgoing, (dst,type,src) ascending for incoming. Keeping both
// directions pre-sorted turns "neighbors of node N" into a bounded
// btree range scan instead of an O(edges) walk.
type outEntry struct {
	src, dst uint64
	typ      string
	loc      segLoc
	delta    bool // true if loc indexes into the delta log, not a segment
}

type inEntry struct {
	dst, src uint64
	typ      string
	loc      segLoc
	delta    bool
}

func lessOut(a, b outEntry) bool {
	if a.src != b.src {
		return a.src < b.src
	}
	if a.typ != b.typ {
		return a.typ < b.typ
	}
	return a.dst < b.dst
}

func lessIn(a, b inEntry) bool {
	if a.dst != b.dst {
		return a.dst < b.dst
	}
	if a.typ != b.typ {
		return a.typ < b.typ
	}
	return a.src < b.src
}

// Shard is one routing bucket of the graph: a name, an append-only
// list of sealed segments, and the one in-memory delta that absorbs
// writes until the next flush.
type Shard struct {
	Name     string
	dir      string
	compress bool

	mu       sync.RWMutex
	segments []*segment.Segment
	delta    *delta
	idSeq    uint64 // highest numeric id handed out so far, atomic

	segNumericIndex  map[uint64]segLoc
	segSemanticIndex map[string]segLoc
	segEdgeIndex     map[graph.EdgeKey]segLoc

	outIdx *btree.BTreeG[outEntry]
	inIdx  *btree.BTreeG[inEntry]
}

// New creates an empty shard backed by dir, with no segments yet.
func New(name, dir string, compress bool) *Shard {
	return &Shard{
		Name:             name,
		dir:              dir,
		compress:         compress,
		delta:            newDelta(),
		segNumericIndex:  map[uint64]segLoc{},
		segSemanticIndex: map[string]segLoc{},
		segEdgeIndex:     map[graph.EdgeKey]segLoc{},
		outIdx:           btree.NewG(32, lessOut),
		inIdx:            btree.NewG(32, lessIn),
	}
}

// Load opens every segment generation recorded for this shard in sm,
// rebuilding all in-memory indices by scanning each segment exactly
// once.
func Load(name, dir string, sm *manifest.ShardManifest, compress bool) (*Shard, error) {
	s := New(name, dir, compress)
	s.idSeq = sm.HighWatermark
	for _, gen := range sm.Segments {
		seg, err := segment.Open(dir, gen, compress)
		if err != nil {
			return nil, &errs.RecoveryError{Path: dir, Err: fmt.Errorf("open segment %d: %w", gen, err)}
		}
		s.indexSegment(seg)
	}
	return s, nil
}

// indexSegment scans seg once, appending it to s.segments and adding
// every entry, tombstoned or not, to the segment-level indices.
// Tombstoned entries stay in the maps; lookups always re-check liveness
// via the segment's bitset, so an index entry pointing at a tombstoned
// row is simply resolved as "not found" rather than removed.
func (s *Shard) indexSegment(seg *segment.Segment) {
	segIdx := len(s.segments)
	s.segments = append(s.segments, seg)

	for i := 0; i < seg.NodeCount(); i++ {
		n := seg.Node(i)
		loc := segLoc{segIdx: segIdx, pos: i}
		s.segNumericIndex[n.NumericID] = loc
		s.segSemanticIndex[n.SemanticID] = loc
	}
	for i := 0; i < seg.EdgeCount(); i++ {
		e := seg.Edge(i)
		loc := segLoc{segIdx: segIdx, pos: i}
		s.segEdgeIndex[e.Key()] = loc
		s.outIdx.ReplaceOrInsert(outEntry{src: e.Src, dst: e.Dst, typ: e.Type, loc: loc})
		s.inIdx.ReplaceOrInsert(inEntry{dst: e.Dst, src: e.Src, typ: e.Type, loc: loc})
	}
	if s.idSeq < highestNumericID(seg) {
		s.idSeq = highestNumericID(seg)
	}
}

func highestNumericID(seg *segment.Segment) uint64 {
	var max uint64
	for i := 0; i < seg.NodeCount(); i++ {
		if id := seg.Node(i).NumericID; id > max {
			max = id
		}
	}
	return max
}

// NextNumericID hands out the next never-reused numeric id for this
// shard: numeric ids are assigned monotonically and never recycled,
// even across deletes.
func (s *Shard) NextNumericID() uint64 {
	return atomic.AddUint64(&s.idSeq, 1)
}

// HighWatermark returns the highest numeric id handed out so far.
func (s *Shard) HighWatermark() uint64 {
	return atomic.LoadUint64(&s.idSeq)
}

// AddNode appends n to the delta. Callers (the engine's commit
// protocol) are responsible for having already tombstoned any prior
// live occurrence of n.SemanticID before calling this, per the
// "tombstone before apply" ordering of the commit protocol.
func (s *Shard) AddNode(n graph.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delta.addNode(n)
}

// AddEdge appends e to the delta, indexing it for ordered neighbor
// scans immediately (delta entries participate in outIdx/inIdx too, so
// a single index serves both delta and segment data uniformly).
func (s *Shard) AddEdge(e graph.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delta.addEdge(e)
	idx := s.delta.edgeByKey[e.Key()]
	loc := segLoc{pos: idx}
	s.outIdx.ReplaceOrInsert(outEntry{src: e.Src, dst: e.Dst, typ: e.Type, loc: loc, delta: true})
	s.inIdx.ReplaceOrInsert(inEntry{dst: e.Dst, src: e.Src, typ: e.Type, loc: loc, delta: true})
}

// TombstoneNodeBySemanticID removes the live node with semantic id sid,
// wherever it currently lives (delta or a sealed segment), and reports
// whether a live entry was found.
func (s *Shard) TombstoneNodeBySemanticID(sid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.delta.deleteBySemanticID(sid) {
		return true, nil
	}
	loc, ok := s.segSemanticIndex[sid]
	if !ok {
		return false, nil
	}
	seg := s.segments[loc.segIdx]
	if seg.NodeTombstoned(loc.pos) {
		return false, nil
	}
	if err := seg.TombstoneNode(loc.pos); err != nil {
		return false, &errs.IOFailureError{Op: "tombstone node", Err: err}
	}
	return true, nil
}

// TombstoneEdgeByKey removes the live edge identified by key, wherever
// it currently lives.
func (s *Shard) TombstoneEdgeByKey(key graph.EdgeKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.delta.deleteEdgeByKey(key) {
		return true, nil
	}
	loc, ok := s.segEdgeIndex[key]
	if !ok {
		return false, nil
	}
	seg := s.segments[loc.segIdx]
	if seg.EdgeTombstoned(loc.pos) {
		return false, nil
	}
	if err := seg.TombstoneEdge(loc.pos); err != nil {
		return false, &errs.IOFailureError{Op: "tombstone edge", Err: err}
	}
	return true, nil
}

// GetNodeByNumericID resolves a node by its numeric id, delta first.
func (s *Shard) GetNodeByNumericID(id uint64) (graph.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n, ok := s.delta.getByNumericID(id); ok {
		return n, true
	}
	loc, ok := s.segNumericIndex[id]
	if !ok {
		return graph.Node{}, false
	}
	seg := s.segments[loc.segIdx]
	if seg.NodeTombstoned(loc.pos) {
		return graph.Node{}, false
	}
	return seg.Node(loc.pos), true
}

// GetNodeBySemanticID resolves a node by its semantic id, delta first.
func (s *Shard) GetNodeBySemanticID(sid string) (graph.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBySemanticIDLocked(sid)
}

func (s *Shard) getBySemanticIDLocked(sid string) (graph.Node, bool) {
	if n, ok := s.delta.getBySemanticID(sid); ok {
		return n, true
	}
	loc, ok := s.segSemanticIndex[sid]
	if !ok {
		return graph.Node{}, false
	}
	seg := s.segments[loc.segIdx]
	if seg.NodeTombstoned(loc.pos) {
		return graph.Node{}, false
	}
	return seg.Node(loc.pos), true
}

// HasLiveSemanticID reports whether sid currently names a live node in
// this shard.
func (s *Shard) HasLiveSemanticID(sid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.getBySemanticIDLocked(sid)
	return ok
}

// FindNodes returns every live node matching pred, delta entries first
// (ascending numeric id), then segment entries (ascending numeric id).
func (s *Shard) FindNodes(pred func(graph.Node) bool) []graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []graph.Node
	for _, n := range s.delta.liveNodes() {
		if pred(n) {
			out = append(out, n)
		}
	}
	var segMatches []graph.Node
	for _, seg := range s.segments {
		for i := 0; i < seg.NodeCount(); i++ {
			if seg.NodeTombstoned(i) {
				continue
			}
			n := seg.Node(i)
			if pred(n) {
				segMatches = append(segMatches, n)
			}
		}
	}
	sortNodesByNumericID(segMatches)
	return append(out, segMatches...)
}

func (s *Shard) resolveOut(e outEntry) (graph.Edge, bool) {
	if e.delta {
		if e.loc.pos >= len(s.delta.edges) || s.delta.edgeDeleted[e.loc.pos] {
			return graph.Edge{}, false
		}
		return s.delta.edges[e.loc.pos], true
	}
	seg := s.segments[e.loc.segIdx]
	if seg.EdgeTombstoned(e.loc.pos) {
		return graph.Edge{}, false
	}
	return seg.Edge(e.loc.pos), true
}

func (s *Shard) resolveIn(e inEntry) (graph.Edge, bool) {
	if e.delta {
		if e.loc.pos >= len(s.delta.edges) || s.delta.edgeDeleted[e.loc.pos] {
			return graph.Edge{}, false
		}
		return s.delta.edges[e.loc.pos], true
	}
	seg := s.segments[e.loc.segIdx]
	if seg.EdgeTombstoned(e.loc.pos) {
		return graph.Edge{}, false
	}
	return seg.Edge(e.loc.pos), true
}

// OutgoingEdges returns every live edge with src == nodeID, ascending
// by (type, dst).
func (s *Shard) OutgoingEdges(nodeID uint64) []graph.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []graph.Edge
	pivot := outEntry{src: nodeID}
	s.outIdx.AscendGreaterOrEqual(pivot, func(item outEntry) bool {
		if item.src != nodeID {
			return false
		}
		if e, ok := s.resolveOut(item); ok {
			out = append(out, e)
		}
		return true
	})
	return out
}

// IncomingEdges returns every live edge with dst == nodeID, ascending
// by (type, src).
func (s *Shard) IncomingEdges(nodeID uint64) []graph.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []graph.Edge
	pivot := inEntry{dst: nodeID}
	s.inIdx.AscendGreaterOrEqual(pivot, func(item inEntry) bool {
		if item.dst != nodeID {
			return false
		}
		if e, ok := s.resolveIn(item); ok {
			out = append(out, e)
		}
		return true
	})
	return out
}

// AllNodes returns every live node in the shard, delta first then
// segments, both ascending by numeric id.
func (s *Shard) AllNodes() []graph.Node {
	return s.FindNodes(func(graph.Node) bool { return true })
}

// AllEdges returns every live edge in the shard by walking the ordered
// outgoing index once, which holds exactly one entry per live-or-dead
// edge key; resolveOut filters out anything currently tombstoned.
func (s *Shard) AllEdges() []graph.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []graph.Edge
	s.outIdx.Ascend(func(item outEntry) bool {
		if e, ok := s.resolveOut(item); ok {
			out = append(out, e)
		}
		return true
	})
	return out
}

// CountLiveNodes implements the counting policy:
// segment_live - (delta entries that override a live segment entry) +
// delta_fresh, where "delta_fresh" already excludes internally-deleted
// delta rows because delta.nodeCount() only counts live ones.
func (s *Shard) CountLiveNodes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segLive := 0
	for _, seg := range s.segments {
		segLive += seg.LiveNodeCount()
	}
	overrides := 0
	for sid := range s.delta.nodeBySemID {
		if loc, ok := s.segSemanticIndex[sid]; ok {
			if !s.segments[loc.segIdx].NodeTombstoned(loc.pos) {
				overrides++
			}
		}
	}
	return segLive - overrides + s.delta.nodeCount()
}

// CountLiveEdges mirrors CountLiveNodes for edges.
func (s *Shard) CountLiveEdges() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segLive := 0
	for _, seg := range s.segments {
		segLive += seg.LiveEdgeCount()
	}
	overrides := 0
	for key := range s.delta.edgeByKey {
		if loc, ok := s.segEdgeIndex[key]; ok {
			if !s.segments[loc.segIdx].EdgeTombstoned(loc.pos) {
				overrides++
			}
		}
	}
	return segLive - overrides + s.delta.edgeCount()
}

// DeltaSize reports the number of live node and edge entries currently
// buffered in memory, the signal the engine's flush-threshold check
// uses.
func (s *Shard) DeltaSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delta.nodeCount() + s.delta.edgeCount()
}

// Flush seals the current delta into a new segment, appends it to the
// shard's segment list, re-indexes it, and clears the delta. Any
// segment entry a delta row overrides was already tombstoned during
// the commit that produced the override, so Flush itself never needs
// to detect or apply overrides — it only persists what is currently
// live in the delta.
func (s *Shard) Flush() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.delta.nodeCount() == 0 && s.delta.edgeCount() == 0 {
		return 0, nil
	}

	nodes := s.delta.liveNodes()
	edges := s.delta.liveEdges()

	var generation uint64
	if n := len(s.segments); n > 0 {
		generation = s.segments[n-1].Generation + 1
	}

	seg, err := segment.Create(s.dir, generation, nodes, edges, s.compress)
	if err != nil {
		return 0, &errs.IOFailureError{Op: "flush segment", Err: err}
	}

	s.indexSegment(seg)
	// Rows deleted from the delta before this flush still have index
	// entries pointing into the old delta log; drop them so they cannot
	// resolve against rows of the next delta.
	for i, e := range s.delta.edges {
		if !s.delta.edgeDeleted[i] {
			continue
		}
		out := outEntry{src: e.Src, dst: e.Dst, typ: e.Type}
		if cur, ok := s.outIdx.Get(out); ok && cur.delta {
			s.outIdx.Delete(out)
		}
		in := inEntry{dst: e.Dst, src: e.Src, typ: e.Type}
		if cur, ok := s.inIdx.Get(in); ok && cur.delta {
			s.inIdx.Delete(in)
		}
	}
	s.delta = newDelta()
	return generation, nil
}

// Generations returns the ordered list of segment generations currently
// held open, for writing back into the manifest.
func (s *Shard) Generations() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint64, len(s.segments))
	for i, seg := range s.segments {
		out[i] = seg.Generation
	}
	return out
}

// Close unmaps every segment backing this shard.
func (s *Shard) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, seg := range s.segments {
		if err := seg.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
