package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphengine/internal/graph"
)

func sampleNodesEdges() ([]graph.Node, []graph.Edge) {
	nodes := []graph.Node{
		{NumericID: 1, SemanticID: "func:a:x.go", Type: "func", Name: "a", File: "x.go", Exported: true, Metadata: `{"line":1}`},
		{NumericID: 2, SemanticID: "func:b:x.go", Type: "func", Name: "b", File: "x.go", Exported: false, Metadata: `{"line":9}`},
	}
	edges := []graph.Edge{
		{Type: "calls", Src: 1, Dst: 2, Metadata: ""},
	}
	return nodes, edges
}

func TestCreateAndOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	nodes, edges := sampleNodesEdges()

	seg, err := Create(dir, 1, nodes, edges, false)
	require.NoError(t, err)
	defer seg.Close()

	require.Equal(t, 2, seg.NodeCount())
	require.Equal(t, 1, seg.EdgeCount())
	assert.Equal(t, nodes[0], seg.Node(0))
	assert.Equal(t, nodes[1], seg.Node(1))
	assert.Equal(t, edges[0], seg.Edge(0))
	assert.False(t, seg.NodeTombstoned(0))
	assert.Equal(t, 2, seg.LiveNodeCount())
}

func TestCreateAndOpenRoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	nodes, edges := sampleNodesEdges()

	seg, err := Create(dir, 1, nodes, edges, true)
	require.NoError(t, err)
	defer seg.Close()

	assert.Equal(t, nodes[0].Metadata, seg.Node(0).Metadata)
	assert.Equal(t, nodes[1].Metadata, seg.Node(1).Metadata)
}

func TestTombstoneNodePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	nodes, edges := sampleNodesEdges()

	seg, err := Create(dir, 1, nodes, edges, false)
	require.NoError(t, err)
	require.NoError(t, seg.TombstoneNode(0))
	assert.Equal(t, 1, seg.LiveNodeCount())
	require.NoError(t, seg.Close())

	reopened, err := Open(dir, 1, false)
	require.NoError(t, err)
	defer reopened.Close()
	assert.True(t, reopened.NodeTombstoned(0))
	assert.False(t, reopened.NodeTombstoned(1))
	assert.Equal(t, 1, reopened.LiveNodeCount())
}

func TestRemoveFilesDeletesEverything(t *testing.T) {
	dir := t.TempDir()
	nodes, edges := sampleNodesEdges()

	seg, err := Create(dir, 7, nodes, edges, true)
	require.NoError(t, err)
	require.NoError(t, seg.Close())

	RemoveFiles(dir, 7)
	_, err = Open(dir, 7, true)
	assert.Error(t, err)
}
