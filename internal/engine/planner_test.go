package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardForFileIsStableAndSameDirCollocates(t *testing.T) {
	a := shardForFile("pkg/foo/a.go", 8)
	b := shardForFile("pkg/foo/b.go", 8)
	assert.Equal(t, a, shardForFile("pkg/foo/a.go", 8))
	assert.Equal(t, a, b, "files in the same directory should land in the same shard")
}

func TestShardForFileClampsShardCount(t *testing.T) {
	assert.Equal(t, "shard-0000", shardForFile("pkg/foo/a.go", 0))
}

func TestShardForEnrichmentIsStablePerProducerAndFile(t *testing.T) {
	a := shardForEnrichment("docgen", "pkg/foo/a.go", 4)
	b := shardForEnrichment("docgen", "pkg/foo/a.go", 4)
	assert.Equal(t, a, b)

	other := shardForEnrichment("linter", "pkg/foo/a.go", 4)
	assert.NotEmpty(t, other)
}
