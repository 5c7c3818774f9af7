package segment

import (
	"fmt"
	"os"
	"sync"

	"github.com/cuemby/graphengine/internal/graph"
)

// Segment is one immutable, sealed generation of a shard's contents:
// columnar node and edge fields plus a tombstone bitset per entity
// kind. Once Create returns, the column files never change; only the
// tombstone bitsets are ever rewritten.
type Segment struct {
	Dir        string
	Generation uint64
	Compressed bool

	nodeID       *uint64Column
	nodeSemID    *stringColumn
	nodeType     *stringColumn
	nodeName     *stringColumn
	nodeFile     *stringColumn
	nodeExported *boolColumn
	nodeMeta     *stringColumn

	edgeType *stringColumn
	edgeSrc  *uint64Column
	edgeDst  *uint64Column
	edgeMeta *stringColumn

	mu       sync.RWMutex
	nodeTomb *Bitset
	edgeTomb *Bitset
}

func basePath(dir string, generation uint64) string {
	return fmt.Sprintf("%s/seg-%06d", dir, generation)
}

// Create writes one new sealed segment from the given nodes and edges
// in a single pass, fsyncs every column, and returns it open for read.
// Callers (shard.flush) are responsible for making the segment visible
// only after the manifest has been rewritten to reference it.
func Create(dir string, generation uint64, nodes []graph.Node, edges []graph.Edge, compress bool) (*Segment, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("segment: mkdir %s: %w", dir, err)
	}
	base := basePath(dir, generation)

	ids := make([]uint64, len(nodes))
	semids := make([]string, len(nodes))
	types := make([]string, len(nodes))
	names := make([]string, len(nodes))
	files := make([]string, len(nodes))
	exported := make([]bool, len(nodes))
	nodeMeta := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.NumericID
		semids[i] = n.SemanticID
		types[i] = n.Type
		names[i] = n.Name
		files[i] = n.File
		exported[i] = n.Exported
		nodeMeta[i] = n.Metadata
	}

	etypes := make([]string, len(edges))
	esrc := make([]uint64, len(edges))
	edst := make([]uint64, len(edges))
	emeta := make([]string, len(edges))
	for i, e := range edges {
		etypes[i] = e.Type
		esrc[i] = e.Src
		edst[i] = e.Dst
		emeta[i] = e.Metadata
	}

	writers := []func() error{
		func() error { return writeUint64Column(base+".nodes.id", ids) },
		func() error { return writeStringColumn(dir, fmt.Sprintf("seg-%06d.nodes.semid", generation), semids, false) },
		func() error { return writeStringColumn(dir, fmt.Sprintf("seg-%06d.nodes.type", generation), types, false) },
		func() error { return writeStringColumn(dir, fmt.Sprintf("seg-%06d.nodes.name", generation), names, false) },
		func() error { return writeStringColumn(dir, fmt.Sprintf("seg-%06d.nodes.file", generation), files, false) },
		func() error { return writeBoolColumn(base+".nodes.exported", exported) },
		func() error {
			return writeStringColumn(dir, fmt.Sprintf("seg-%06d.nodes.meta", generation), nodeMeta, compress)
		},
		func() error { return writeStringColumn(dir, fmt.Sprintf("seg-%06d.edges.type", generation), etypes, false) },
		func() error { return writeUint64Column(base+".edges.src", esrc) },
		func() error { return writeUint64Column(base+".edges.dst", edst) },
		func() error {
			return writeStringColumn(dir, fmt.Sprintf("seg-%06d.edges.meta", generation), emeta, compress)
		},
	}
	for _, w := range writers {
		if err := w(); err != nil {
			return nil, err
		}
	}

	nodeTomb := NewBitset(len(nodes))
	edgeTomb := NewBitset(len(edges))
	if err := nodeTomb.WriteFile(base + ".nodes.tomb"); err != nil {
		return nil, err
	}
	if err := edgeTomb.WriteFile(base + ".edges.tomb"); err != nil {
		return nil, err
	}

	return Open(dir, generation, compress)
}

// Open maps an existing sealed segment for reading.
func Open(dir string, generation uint64, compress bool) (*Segment, error) {
	base := basePath(dir, generation)
	s := &Segment{Dir: dir, Generation: generation, Compressed: compress}

	var err error
	if s.nodeID, err = openUint64Column(base + ".nodes.id"); err != nil {
		return nil, err
	}
	if s.nodeSemID, err = openStringColumn(dir, fmt.Sprintf("seg-%06d.nodes.semid", generation), false); err != nil {
		return nil, err
	}
	if s.nodeType, err = openStringColumn(dir, fmt.Sprintf("seg-%06d.nodes.type", generation), false); err != nil {
		return nil, err
	}
	if s.nodeName, err = openStringColumn(dir, fmt.Sprintf("seg-%06d.nodes.name", generation), false); err != nil {
		return nil, err
	}
	if s.nodeFile, err = openStringColumn(dir, fmt.Sprintf("seg-%06d.nodes.file", generation), false); err != nil {
		return nil, err
	}
	if s.nodeExported, err = openBoolColumn(base + ".nodes.exported"); err != nil {
		return nil, err
	}
	if s.nodeMeta, err = openStringColumn(dir, fmt.Sprintf("seg-%06d.nodes.meta", generation), compress); err != nil {
		return nil, err
	}
	if s.edgeType, err = openStringColumn(dir, fmt.Sprintf("seg-%06d.edges.type", generation), false); err != nil {
		return nil, err
	}
	if s.edgeSrc, err = openUint64Column(base + ".edges.src"); err != nil {
		return nil, err
	}
	if s.edgeDst, err = openUint64Column(base + ".edges.dst"); err != nil {
		return nil, err
	}
	if s.edgeMeta, err = openStringColumn(dir, fmt.Sprintf("seg-%06d.edges.meta", generation), compress); err != nil {
		return nil, err
	}

	nodeTomb, err := ReadBitsetFile(base + ".nodes.tomb")
	if err != nil {
		return nil, err
	}
	edgeTomb, err := ReadBitsetFile(base + ".edges.tomb")
	if err != nil {
		return nil, err
	}
	s.nodeTomb = nodeTomb
	s.edgeTomb = edgeTomb
	return s, nil
}

// NodeCount returns the number of node entries in this segment
// (including any that are tombstoned).
func (s *Segment) NodeCount() int { return s.nodeID.Len() }

// EdgeCount returns the number of edge entries in this segment
// (including any that are tombstoned).
func (s *Segment) EdgeCount() int { return s.edgeSrc.Len() }

// Node materializes the i-th node entry, O(1).
func (s *Segment) Node(i int) graph.Node {
	return graph.Node{
		NumericID:  s.nodeID.At(i),
		SemanticID: s.nodeSemID.At(i),
		Type:       s.nodeType.At(i),
		Name:       s.nodeName.At(i),
		File:       s.nodeFile.At(i),
		Exported:   s.nodeExported.At(i),
		Metadata:   s.nodeMeta.At(i),
	}
}

// Edge materializes the i-th edge entry, O(1).
func (s *Segment) Edge(i int) graph.Edge {
	return graph.Edge{
		Type:     s.edgeType.At(i),
		Src:      s.edgeSrc.At(i),
		Dst:      s.edgeDst.At(i),
		Metadata: s.edgeMeta.At(i),
	}
}

// NodeTombstoned reports whether the i-th node entry has been deleted.
func (s *Segment) NodeTombstoned(i int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeTomb.Get(i)
}

// EdgeTombstoned reports whether the i-th edge entry has been deleted.
func (s *Segment) EdgeTombstoned(i int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgeTomb.Get(i)
}

// TombstoneNode marks the i-th node entry deleted and persists the new
// bitset generation (fsync'd) before returning.
func (s *Segment) TombstoneNode(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeTomb.Set(i, true)
	return s.nodeTomb.WriteFile(basePath(s.Dir, s.Generation) + ".nodes.tomb")
}

// TombstoneEdge marks the i-th edge entry deleted and persists the new
// bitset generation.
func (s *Segment) TombstoneEdge(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edgeTomb.Set(i, true)
	return s.edgeTomb.WriteFile(basePath(s.Dir, s.Generation) + ".edges.tomb")
}

// LiveNodeCount returns the number of non-tombstoned node entries.
func (s *Segment) LiveNodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NodeCount() - s.nodeTomb.Count()
}

// LiveEdgeCount returns the number of non-tombstoned edge entries.
func (s *Segment) LiveEdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.EdgeCount() - s.edgeTomb.Count()
}

// Close unmaps every column file backing this segment.
func (s *Segment) Close() error {
	closers := []interface{ Close() error }{
		s.nodeID, s.nodeSemID, s.nodeType, s.nodeName, s.nodeFile, s.nodeExported, s.nodeMeta,
		s.edgeType, s.edgeSrc, s.edgeDst, s.edgeMeta,
	}
	var first error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RemoveFiles deletes every file backing this segment. Only safe to
// call once the manifest no longer references this generation and no
// reader holds it mapped.
func RemoveFiles(dir string, generation uint64) {
	base := basePath(dir, generation)
	suffixes := []string{
		".nodes.id", ".nodes.semid.off", ".nodes.semid.blob",
		".nodes.type.off", ".nodes.type.blob", ".nodes.name.off", ".nodes.name.blob",
		".nodes.file.off", ".nodes.file.blob", ".nodes.exported",
		".nodes.meta.off", ".nodes.meta.blob", ".nodes.meta.blob.lz4",
		".edges.type.off", ".edges.type.blob", ".edges.src", ".edges.dst",
		".edges.meta.off", ".edges.meta.blob", ".edges.meta.blob.lz4",
		".nodes.tomb", ".edges.tomb",
	}
	for _, suf := range suffixes {
		os.Remove(base + suf)
	}
}
