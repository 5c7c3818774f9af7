package engine

import (
	"github.com/cuemby/graphengine/internal/errs"
	"github.com/cuemby/graphengine/internal/graph"
)

// NodeInput describes one node to create or replace. Nodes are
// addressed by their semantic id (Type+Name+File), never by numeric
// id, since the numeric id does not exist until the commit assigns it.
type NodeInput struct {
	Type     string
	Name     string
	File     string
	Exported bool
	Metadata string
}

func (n NodeInput) semanticID() string { return graph.SynthesizeSemanticID(n.Type, n.Name, n.File) }

// EdgeInput describes one edge to create or replace, addressed by the
// semantic ids of its endpoints.
type EdgeInput struct {
	Type          string
	SrcSemanticID string
	DstSemanticID string
	Metadata      string
}

// EdgeDelete identifies one edge to remove by its endpoints' semantic
// ids.
type EdgeDelete struct {
	Type          string
	SrcSemanticID string
	DstSemanticID string
}

// EnrichmentReplace wipes every edge a producer previously wrote for
// one source file. It is an additive convenience for clearing a
// producer/file pair other than the one a commit's own FileContext
// names; the FileContext-scoped sweep below is what the protocol
// itself requires on every enrichment commit.
type EnrichmentReplace struct {
	Producer   string
	SourceFile string
}

// FileContext pins an enrichment commit's edges to one producer's
// shard for one source file. When set on a Batch it is mutually
// exclusive with ChangedFiles: scope resolution uses FileContext alone
// and every edge in the batch is routed to the one enrichment shard it
// names, stamped with the matching __file_context metadata.
type FileContext struct {
	Producer   string
	SourceFile string
}

// Batch is one unit of work submitted to Commit. ChangedFiles and
// FileContext drive the commit's scope resolution: an analysis commit
// names the files it touched in ChangedFiles; an enrichment commit
// names its producer/source-file pair in FileContext instead, and
// ChangedFiles is then ignored.
type Batch struct {
	Nodes        []NodeInput
	Edges        []EdgeInput
	ChangedFiles []string
	Tags         []string
	FileContext  *FileContext
	RequestID    string

	DeleteNodes       []string // semantic ids
	DeleteEdges       []EdgeDelete
	EnrichmentReplace []EnrichmentReplace
}

// CommitResult reports what happened to each part of a batch. Per-
// record conflicts (ConflictingSemanticId, ConflictingEdge) are
// reported here, not as a failed commit — the rest of the batch still
// applies.
type CommitResult struct {
	NodesAdded      int
	NodesRejected   []string
	NodesTombstoned int
	EdgesAdded      int
	EdgesRejected   []EdgeDelete
	EdgesTombstoned int
	FlushedShards   []string
}

// Commit runs the engine's batch protocol: resolve the commit's
// changed scope, tombstone every live node/edge it owns, then assign
// ids, route, and apply the batch's own records — so a semantic id
// reappearing within its own file's scope replaces the old occurrence
// instead of colliding with it. It holds the engine's write lock for
// the whole call, so concurrent commits serialize and readers see
// either the whole batch or none of it.
//
// Grounded on transaction.go's commitACID: snapshot the
// pre-commit state, validate, apply, persist — generalized here from
// one table's row-version compare-and-swap to many shards' delta
// append plus a shared manifest rewrite.
func (e *Engine) Commit(b Batch) (CommitResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := CommitResult{}

	nodes := dedupeNodesLastWins(b.Nodes)
	edges := dedupeEdgesLastWins(b.Edges)
	touched := map[string]bool{}

	switch {
	case b.FileContext != nil:
		n, err := e.tombstoneFileContextScopeLocked(*b.FileContext, touched)
		if err != nil {
			return result, err
		}
		result.EdgesTombstoned += n
	case len(b.ChangedFiles) > 0:
		nNodes, nEdges, err := e.tombstoneChangedFilesScopeLocked(b.ChangedFiles, touched)
		if err != nil {
			return result, err
		}
		result.NodesTombstoned += nNodes
		result.EdgesTombstoned += nEdges
	}

	// Additive client-driven convenience, layered on top of the scope
	// sweep above rather than substituting for it.
	for _, r := range b.EnrichmentReplace {
		shardName := shardForEnrichment(r.Producer, r.SourceFile, e.cfg.EnrichmentShardCount)
		s := e.getOrCreateShard(shardName)
		label := graph.EnrichmentFileContext(r.Producer, r.SourceFile)
		for _, edge := range s.AllEdges() {
			if fc, ok := graph.FileContext(edge.Metadata); ok && fc == label {
				found, err := s.TombstoneEdgeByKey(edge.Key())
				if err != nil {
					return result, err
				}
				if found {
					result.EdgesTombstoned++
					touched[shardName] = true
				}
			}
		}
	}

	for _, sid := range b.DeleteNodes {
		if shardName, ok := e.semanticIndex[sid]; ok {
			found, err := e.shards[shardName].TombstoneNodeBySemanticID(sid)
			if err != nil {
				return result, err
			}
			if found {
				e.forgetSemanticID(sid)
				result.NodesTombstoned++
				touched[shardName] = true
			}
		}
	}
	for _, de := range b.DeleteEdges {
		key, ok := e.resolveEdgeKeyLocked(de.Type, de.SrcSemanticID, de.DstSemanticID)
		if !ok {
			continue
		}
		if shardName, ok := e.edgeHomeLocked(key); ok {
			found, err := e.shards[shardName].TombstoneEdgeByKey(key)
			if err != nil {
				return result, err
			}
			if found {
				result.EdgesTombstoned++
				touched[shardName] = true
			}
		}
	}

	stagedNumericID := map[string]uint64{} // semantic id -> numeric id assigned/found this commit
	for _, n := range nodes {
		sid := n.semanticID()
		if homeShard, ok := e.semanticIndex[sid]; ok {
			if _, stillLive := e.shards[homeShard].GetNodeBySemanticID(sid); stillLive {
				// the tombstone phase above already cleared every
				// in-scope occurrence, so a semantic id still live
				// here is a genuine cross-commit conflict.
				result.NodesRejected = append(result.NodesRejected, sid)
				continue
			}
		}
		id := e.nextNumericID()
		homeShard := e.homeShardForNode(n.File)
		s := e.getOrCreateShard(homeShard)
		node := graph.Node{
			NumericID:  id,
			SemanticID: sid,
			Type:       n.Type,
			Name:       n.Name,
			File:       n.File,
			Exported:   n.Exported,
			Metadata:   n.Metadata,
		}
		s.AddNode(node)
		e.recordNodeLocation(sid, id, homeShard)
		touched[homeShard] = true
		stagedNumericID[sid] = id
		result.NodesAdded++
	}

	for _, ei := range edges {
		srcID, srcOK := stagedNumericID[ei.SrcSemanticID]
		if !srcOK {
			if n, ok := e.resolveNodeLocked(ei.SrcSemanticID); ok {
				srcID, srcOK = n.NumericID, true
			}
		}
		dstID, dstOK := stagedNumericID[ei.DstSemanticID]
		if !dstOK {
			if n, ok := e.resolveNodeLocked(ei.DstSemanticID); ok {
				dstID, dstOK = n.NumericID, true
			}
		}
		if !srcOK || !dstOK {
			result.EdgesRejected = append(result.EdgesRejected, EdgeDelete{ei.Type, ei.SrcSemanticID, ei.DstSemanticID})
			continue
		}

		key := graph.EdgeKey{Type: ei.Type, Src: srcID, Dst: dstID}
		var shardName string
		if b.FileContext != nil {
			shardName = shardForEnrichment(b.FileContext.Producer, b.FileContext.SourceFile, e.cfg.EnrichmentShardCount)
		} else {
			shardName = e.homeShardForNode(mustFile(e, srcID))
		}

		if _, ok := e.edgeHomeLocked(key); ok {
			// the tombstone phase already cleared every in-scope
			// occurrence, so this is a genuine cross-commit conflict.
			result.EdgesRejected = append(result.EdgesRejected, EdgeDelete{ei.Type, ei.SrcSemanticID, ei.DstSemanticID})
			continue
		}

		metadata := ei.Metadata
		if b.FileContext != nil {
			metadata = graph.WithFileContext(metadata, graph.EnrichmentFileContext(b.FileContext.Producer, b.FileContext.SourceFile))
		}
		edge := graph.Edge{Type: ei.Type, Src: srcID, Dst: dstID, Metadata: metadata}
		s := e.getOrCreateShard(shardName)
		s.AddEdge(edge)
		e.touchNodeShard(srcID, shardName)
		e.touchNodeShard(dstID, shardName)
		touched[shardName] = true
		result.EdgesAdded++
	}

	for shardName := range touched {
		s := e.shards[shardName]
		if s.DeltaSize() >= e.cfg.FlushNodeThreshold {
			if _, err := s.Flush(); err != nil {
				return result, err
			}
			result.FlushedShards = append(result.FlushedShards, shardName)
		}
		sm := e.manifest.Shard(shardName)
		sm.Segments = s.Generations()
		sm.HighWatermark = e.nextID
	}
	if len(touched) > 0 {
		if err := e.manifest.Save(e.cfg.DatabasePath); err != nil {
			return result, &errs.IOFailureError{Op: "save manifest", Err: err}
		}
	}

	return result, nil
}

// tombstoneChangedFilesScopeLocked clears every live node whose File is
// one of files, and every live edge whose owning file is one of files,
// before the rest of the batch is applied. An edge's owning file is
// its __file_context metadata if present, else its src node's File;
// since a non-enrichment edge is always stored in its src node's home
// shard, the shard set a file's own routing touches is exactly the
// shard set its edges could live in, so no full fan-out is needed.
func (e *Engine) tombstoneChangedFilesScopeLocked(files []string, touched map[string]bool) (int, int, error) {
	scope := map[string]bool{}
	shardSet := map[string]bool{}
	for _, f := range files {
		scope[f] = true
		shardSet[e.homeShardForNode(f)] = true
	}

	var nodesTombstoned, edgesTombstoned int
	for shardName := range shardSet {
		s, ok := e.shards[shardName]
		if !ok {
			continue
		}

		// Resolve every live edge's owning file before any tombstoning
		// runs, since tombstoning a node makes its file unreadable
		// from GetNodeByNumericID afterward.
		var edgeKeys []graph.EdgeKey
		for _, edge := range s.AllEdges() {
			owningFile, ok := graph.FileContext(edge.Metadata)
			if !ok {
				if n, found := s.GetNodeByNumericID(edge.Src); found {
					owningFile = n.File
				}
			}
			if scope[owningFile] {
				edgeKeys = append(edgeKeys, edge.Key())
			}
		}
		for _, key := range edgeKeys {
			found, err := s.TombstoneEdgeByKey(key)
			if err != nil {
				return nodesTombstoned, edgesTombstoned, err
			}
			if found {
				edgesTombstoned++
				touched[shardName] = true
			}
		}

		var nodeSIDs []string
		for _, n := range s.AllNodes() {
			if scope[n.File] {
				nodeSIDs = append(nodeSIDs, n.SemanticID)
			}
		}
		for _, sid := range nodeSIDs {
			found, err := s.TombstoneNodeBySemanticID(sid)
			if err != nil {
				return nodesTombstoned, edgesTombstoned, err
			}
			if found {
				e.forgetSemanticID(sid)
				nodesTombstoned++
				touched[shardName] = true
			}
		}
	}
	return nodesTombstoned, edgesTombstoned, nil
}

// tombstoneFileContextScopeLocked clears every live edge in fc's
// enrichment shard whose __file_context metadata matches fc, before
// this commit's own edges (stamped with the same label) are applied.
func (e *Engine) tombstoneFileContextScopeLocked(fc FileContext, touched map[string]bool) (int, error) {
	shardName := shardForEnrichment(fc.Producer, fc.SourceFile, e.cfg.EnrichmentShardCount)
	s := e.getOrCreateShard(shardName)
	label := graph.EnrichmentFileContext(fc.Producer, fc.SourceFile)

	var tombstoned int
	for _, edge := range s.AllEdges() {
		if lbl, ok := graph.FileContext(edge.Metadata); ok && lbl == label {
			found, err := s.TombstoneEdgeByKey(edge.Key())
			if err != nil {
				return tombstoned, err
			}
			if found {
				tombstoned++
				touched[shardName] = true
			}
		}
	}
	return tombstoned, nil
}

func (e *Engine) resolveNodeLocked(sid string) (graph.Node, bool) {
	shardName, ok := e.semanticIndex[sid]
	if !ok {
		return graph.Node{}, false
	}
	return e.shards[shardName].GetNodeBySemanticID(sid)
}

func (e *Engine) resolveEdgeKeyLocked(typ, srcSID, dstSID string) (graph.EdgeKey, bool) {
	src, ok := e.resolveNodeLocked(srcSID)
	if !ok {
		return graph.EdgeKey{}, false
	}
	dst, ok := e.resolveNodeLocked(dstSID)
	if !ok {
		return graph.EdgeKey{}, false
	}
	return graph.EdgeKey{Type: typ, Src: src.NumericID, Dst: dst.NumericID}, true
}

func (e *Engine) edgeHomeLocked(key graph.EdgeKey) (string, bool) {
	for name := range e.nodeShards[key.Src] {
		if e.shards[name] == nil {
			continue
		}
		if _, ok := findEdgeInShard(e.shards[name], key); ok {
			return name, true
		}
	}
	return "", false
}

func findEdgeInShard(s shardEdgeSource, key graph.EdgeKey) (graph.Edge, bool) {
	for _, edge := range s.OutgoingEdges(key.Src) {
		if edge.Type == key.Type && edge.Dst == key.Dst {
			return edge, true
		}
	}
	return graph.Edge{}, false
}

func mustFile(e *Engine, numericID uint64) string {
	shardName, ok := e.numericIndex[numericID]
	if !ok {
		return ""
	}
	n, ok := e.shards[shardName].GetNodeByNumericID(numericID)
	if !ok {
		return ""
	}
	return n.File
}

func dedupeNodesLastWins(in []NodeInput) []NodeInput {
	order := make([]string, 0, len(in))
	bySID := map[string]NodeInput{}
	for _, n := range in {
		sid := n.semanticID()
		if _, exists := bySID[sid]; !exists {
			order = append(order, sid)
		}
		bySID[sid] = n
	}
	out := make([]NodeInput, 0, len(order))
	for _, sid := range order {
		out = append(out, bySID[sid])
	}
	return out
}

func dedupeEdgesLastWins(in []EdgeInput) []EdgeInput {
	type key struct{ t, s, d string }
	order := make([]key, 0, len(in))
	byKey := map[key]EdgeInput{}
	for _, ei := range in {
		k := key{ei.Type, ei.SrcSemanticID, ei.DstSemanticID}
		if _, exists := byKey[k]; !exists {
			order = append(order, k)
		}
		byKey[k] = ei
	}
	out := make([]EdgeInput, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}
