package engine

import (
	"fmt"
	"hash/fnv"
	"path/filepath"

	"github.com/cuemby/graphengine/internal/graph"
)

// shardForFile routes a node or edge to a shard by hashing the parent
// directory of its owning file, so that files in the same package tend
// to land in the same shard and most edits touch one shard's delta.
func shardForFile(file string, shardCount int) string {
	if shardCount < 1 {
		shardCount = 1
	}
	dir := filepath.Dir(file)
	h := fnv.New32a()
	h.Write([]byte(dir))
	return fmt.Sprintf("shard-%04d", h.Sum32()%uint32(shardCount))
}

// shardForEnrichment routes an enrichment producer's edges for one
// source file to a dedicated enrichment shard, keyed by the synthetic
// file_context label so that re-running one producer against one file
// only ever touches this one shard's delta.
func shardForEnrichment(producer, sourceFile string, shardCount int) string {
	if shardCount < 1 {
		shardCount = 1
	}
	label := graph.EnrichmentFileContext(producer, sourceFile)
	h := fnv.New32a()
	h.Write([]byte(label))
	return fmt.Sprintf("enrichment-%04d", h.Sum32()%uint32(shardCount))
}
