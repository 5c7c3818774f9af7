package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphengine/internal/graph"
	"github.com/cuemby/graphengine/internal/manifest"
)

func node(id uint64, sid, typ, file string) graph.Node {
	return graph.Node{NumericID: id, SemanticID: sid, Type: typ, Name: sid, File: file}
}

func TestShardAddAndLookup(t *testing.T) {
	s := New("shard-0", t.TempDir(), false)
	s.AddNode(node(1, "fn:a@a.go", "function", "a.go"))
	s.AddNode(node(2, "fn:b@b.go", "function", "b.go"))
	s.AddEdge(graph.Edge{Type: "calls", Src: 1, Dst: 2})

	n, ok := s.GetNodeBySemanticID("fn:a@a.go")
	require.True(t, ok)
	assert.Equal(t, uint64(1), n.NumericID)

	_, ok = s.GetNodeByNumericID(99)
	assert.False(t, ok)

	out := s.OutgoingEdges(1)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(2), out[0].Dst)

	in := s.IncomingEdges(2)
	require.Len(t, in, 1)
	assert.Equal(t, uint64(1), in[0].Src)

	assert.Equal(t, 2, s.CountLiveNodes())
	assert.Equal(t, 1, s.CountLiveEdges())
}

func TestShardCountInvariantAcrossFlush(t *testing.T) {
	s := New("shard-0", t.TempDir(), false)
	s.AddNode(node(1, "fn:a@a.go", "function", "a.go"))
	s.AddNode(node(2, "fn:b@b.go", "function", "b.go"))
	s.AddEdge(graph.Edge{Type: "calls", Src: 1, Dst: 2})

	before := s.CountLiveNodes()
	beforeEdges := s.CountLiveEdges()

	gen, err := s.Flush()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), gen)

	assert.Equal(t, before, s.CountLiveNodes())
	assert.Equal(t, beforeEdges, s.CountLiveEdges())

	n, ok := s.GetNodeBySemanticID("fn:a@a.go")
	require.True(t, ok)
	assert.Equal(t, uint64(1), n.NumericID)

	out := s.OutgoingEdges(1)
	require.Len(t, out, 1)
}

func TestShardTombstoneThenOverride(t *testing.T) {
	s := New("shard-0", t.TempDir(), false)
	s.AddNode(node(1, "fn:a@a.go", "function", "a.go"))
	_, err := s.Flush()
	require.NoError(t, err)

	found, err := s.TombstoneNodeBySemanticID("fn:a@a.go")
	require.NoError(t, err)
	assert.True(t, found)

	_, ok := s.GetNodeBySemanticID("fn:a@a.go")
	assert.False(t, ok)
	assert.Equal(t, 0, s.CountLiveNodes())

	s.AddNode(node(2, "fn:a@a.go", "function", "a.go"))
	n, ok := s.GetNodeBySemanticID("fn:a@a.go")
	require.True(t, ok)
	assert.Equal(t, uint64(2), n.NumericID)
	assert.Equal(t, 1, s.CountLiveNodes())

	_, err = s.Flush()
	require.NoError(t, err)
	assert.Equal(t, 1, s.CountLiveNodes())
}

func TestShardLoadRebuildsIndices(t *testing.T) {
	dir := t.TempDir()
	s := New("shard-0", dir, false)
	s.AddNode(node(1, "fn:a@a.go", "function", "a.go"))
	s.AddNode(node(2, "fn:b@b.go", "function", "b.go"))
	s.AddEdge(graph.Edge{Type: "calls", Src: 1, Dst: 2})
	_, err := s.Flush()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	sm := &manifest.ShardManifest{Segments: s.Generations(), HighWatermark: s.HighWatermark()}
	loaded, err := Load("shard-0", dir, sm, false)
	require.NoError(t, err)

	n, ok := loaded.GetNodeBySemanticID("fn:a@a.go")
	require.True(t, ok)
	assert.Equal(t, uint64(1), n.NumericID)
	assert.Equal(t, 2, loaded.CountLiveNodes())
	assert.Equal(t, 1, loaded.CountLiveEdges())
	assert.Equal(t, uint64(2), loaded.HighWatermark())
}

func TestShardFindNodes(t *testing.T) {
	s := New("shard-0", t.TempDir(), false)
	s.AddNode(node(1, "fn:a@a.go", "function", "a.go"))
	s.AddNode(node(2, "struct:b@b.go", "struct", "b.go"))
	_, err := s.Flush()
	require.NoError(t, err)
	s.AddNode(node(3, "fn:c@c.go", "function", "c.go"))

	matches := s.FindNodes(func(n graph.Node) bool { return n.Type == "function" })
	require.Len(t, matches, 2)
	assert.Equal(t, uint64(3), matches[0].NumericID) // delta entries first
	assert.Equal(t, uint64(1), matches[1].NumericID)
}
