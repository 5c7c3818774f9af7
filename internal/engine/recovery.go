package engine

import (
	"github.com/cuemby/graphengine/internal/manifest"
	"github.com/cuemby/graphengine/internal/shard"
)

// Recover opens (or creates) the database at cfg.DatabasePath: it loads
// the manifest, opens every shard's recorded segments, and rebuilds
// every cross-shard index by walking each shard's live nodes and edges
// exactly once. No partial recovery is attempted — any unreadable
// segment or malformed manifest aborts the whole open.
func Recover(cfg Config) (*Engine, error) {
	if cfg.ShardCount < 1 {
		cfg.ShardCount = 1
	}
	if cfg.EnrichmentShardCount < 1 {
		cfg.EnrichmentShardCount = 1
	}
	if cfg.FlushNodeThreshold < 1 {
		cfg.FlushNodeThreshold = 1
	}

	m, err := manifest.Load(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:           cfg,
		manifest:      m,
		shards:        map[string]*shard.Shard{},
		semanticIndex: map[string]string{},
		numericIndex:  map[uint64]string{},
		nodeShards:    map[uint64]map[string]bool{},
	}

	for name, sm := range m.Shards {
		dir := manifest.ShardDir(cfg.DatabasePath, name)
		s, err := shard.Load(name, dir, sm, cfg.Compress)
		if err != nil {
			return nil, err
		}
		e.shards[name] = s
		if s.HighWatermark() > e.nextID {
			e.nextID = s.HighWatermark()
		}
	}

	e.rebuildCrossShardIndices()
	return e, nil
}

func (e *Engine) rebuildCrossShardIndices() {
	for name, s := range e.shards {
		for _, n := range s.AllNodes() {
			e.semanticIndex[n.SemanticID] = name
			e.numericIndex[n.NumericID] = name
		}
	}
	for name, s := range e.shards {
		for _, edge := range s.AllEdges() {
			e.touchNodeShard(edge.Src, name)
			e.touchNodeShard(edge.Dst, name)
		}
	}
}
