// Package engine implements the multi-shard L3 tier: the shard
// planner, the cross-shard indices that make semantic/numeric id
// lookup and enrichment-edge traversal O(1)/O(shards-touched) instead
// of a scan over every shard, and the batch commit protocol that keeps
// them all consistent with the on-disk manifest.
//
// Grounded on storage/database.go (a Database owning many
// storageTable, with LoadDatabases doing the startup scan this
// package's Recover performs) and storage/transaction.go (whose
// commitACID snapshot/validate/apply/persist shape the batch commit
// protocol in commit.go generalizes).
package engine

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cuemby/graphengine/internal/manifest"
	"github.com/cuemby/graphengine/internal/shard"
)

// Config governs shard counts and flush behavior. It is intentionally
// a plain struct here rather than importing internal/config, so this
// package has no dependency on the YAML/fsnotify machinery — the
// server binary translates a loaded config.Config into this.
type Config struct {
	DatabasePath            string
	ShardCount               int
	EnrichmentShardCount     int
	FlushNodeThreshold       int
	Compress                 bool
}

// Engine is the top-level handle for one graph database: every shard,
// the cross-shard indices derived from them, and the durable manifest.
type Engine struct {
	cfg      Config
	mu       sync.RWMutex
	manifest *manifest.Manifest
	shards   map[string]*shard.Shard
	nextID   uint64 // global monotonic numeric id counter, atomic

	// Cross-shard indices. None of these are ever persisted; Recover
	// rebuilds all three from the segments and deltas of every shard
	// at startup.
	semanticIndex map[string]string            // semantic id -> home shard name
	numericIndex  map[uint64]string            // numeric id -> home shard name
	nodeShards    map[uint64]map[string]bool   // numeric id -> every shard holding an edge touching it
}

// shardNames returns every shard name currently known, sorted, so that
// any operation that fans out across shards produces a deterministic
// order.
func (e *Engine) shardNames() []string {
	names := make([]string, 0, len(e.shards))
	for name := range e.shards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) getOrCreateShard(name string) *shard.Shard {
	if s, ok := e.shards[name]; ok {
		return s
	}
	dir := manifest.ShardDir(e.cfg.DatabasePath, name)
	s := shard.New(name, dir, e.cfg.Compress)
	e.shards[name] = s
	e.manifest.Shard(name)
	return s
}

func (e *Engine) homeShardForNode(file string) string {
	return shardForFile(file, e.cfg.ShardCount)
}

func (e *Engine) recordNodeLocation(sid string, numID uint64, shardName string) {
	e.semanticIndex[sid] = shardName
	e.numericIndex[numID] = shardName
	e.touchNodeShard(numID, shardName)
}

func (e *Engine) touchNodeShard(numID uint64, shardName string) {
	set, ok := e.nodeShards[numID]
	if !ok {
		set = map[string]bool{}
		e.nodeShards[numID] = set
	}
	set[shardName] = true
}

func (e *Engine) forgetSemanticID(sid string) {
	delete(e.semanticIndex, sid)
}

func (e *Engine) nextNumericID() uint64 {
	return atomic.AddUint64(&e.nextID, 1)
}

// Close flushes every shard's delta into a new segment, rewrites the
// manifest to reference the resulting segments, and then unmaps every
// shard's segments.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var first error
	for name, s := range e.shards {
		if _, err := s.Flush(); err != nil && first == nil {
			first = err
		}
		sm := e.manifest.Shard(name)
		sm.Segments = s.Generations()
		sm.HighWatermark = e.nextID
	}
	if len(e.shards) > 0 {
		if err := e.manifest.Save(e.cfg.DatabasePath); err != nil && first == nil {
			first = err
		}
	}
	for _, s := range e.shards {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stats summarizes the engine for the debug HTTP/RPC surface.
type Stats struct {
	ShardCount int            `json:"shard_count"`
	NodeCount  int            `json:"node_count"`
	EdgeCount  int            `json:"edge_count"`
	PerShard   map[string]int `json:"per_shard_nodes"`
}

// Stats computes a live snapshot. It takes the read lock, same as any
// query, so it waits for an in-flight commit to finish and never
// observes a partial one.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := Stats{ShardCount: len(e.shards), PerShard: map[string]int{}}
	for name, s := range e.shards {
		n := s.CountLiveNodes()
		st.NodeCount += n
		st.EdgeCount += s.CountLiveEdges()
		st.PerShard[name] = n
	}
	return st
}
