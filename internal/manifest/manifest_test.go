package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingManifestYieldsEmpty(t *testing.T) {
	m, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, m.SchemaVersion)
	assert.Empty(t, m.Shards)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := New()
	sm := m.Shard("shard-0001")
	sm.Segments = []uint64{1, 2, 3}
	sm.HighWatermark = 42

	require.NoError(t, m.Save(dir))

	reloaded, err := Load(dir)
	require.NoError(t, err)
	got := reloaded.Shard("shard-0001")
	assert.Equal(t, []uint64{1, 2, 3}, got.Segments)
	assert.Equal(t, uint64(42), got.HighWatermark)
}

func TestShardCreatesEntryOnce(t *testing.T) {
	m := New()
	a := m.Shard("shard-0001")
	a.HighWatermark = 7
	b := m.Shard("shard-0001")
	assert.Equal(t, uint64(7), b.HighWatermark)
	assert.Len(t, m.Shards, 1)
}

func TestShardDirLayout(t *testing.T) {
	assert.Equal(t, "/data/shards/shard-0001", ShardDir("/data", "shard-0001"))
}
