package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	return Config{
		DatabasePath:         t.TempDir(),
		ShardCount:           4,
		EnrichmentShardCount: 2,
		FlushNodeThreshold:   1000,
	}
}

func TestCommitAddAndQuery(t *testing.T) {
	e, err := Recover(testConfig(t))
	require.NoError(t, err)

	res, err := e.Commit(Batch{
		Nodes: []NodeInput{
			{Type: "function", Name: "Foo", File: "a.go", Exported: true},
			{Type: "function", Name: "Bar", File: "a.go"},
		},
		Edges: []EdgeInput{
			{Type: "calls", SrcSemanticID: "function:Foo@a.go", DstSemanticID: "function:Bar@a.go"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NodesAdded)
	assert.Equal(t, 1, res.EdgesAdded)
	assert.Empty(t, res.NodesRejected)
	assert.Empty(t, res.EdgesRejected)

	foo, err := e.GetNodeBySemanticID("function:Foo@a.go")
	require.NoError(t, err)
	assert.Equal(t, "Foo", foo.Name)
	assert.True(t, foo.Exported)

	out := e.OutgoingEdges(foo.NumericID)
	require.Len(t, out, 1)
	assert.Equal(t, "calls", out[0].Type)

	neighbors := e.Neighbors(foo.NumericID, nil, DirectionBoth, 0)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "Bar", neighbors[0].Name)
}

func TestCommitRejectsConflictingSemanticIDOutsideScope(t *testing.T) {
	e, err := Recover(testConfig(t))
	require.NoError(t, err)

	_, err = e.Commit(Batch{Nodes: []NodeInput{{Type: "function", Name: "Foo", File: "a.go"}}})
	require.NoError(t, err)

	// re-adding the same semantic id without naming a.go as changed is a
	// genuine cross-commit conflict: nothing tombstoned it first.
	res, err := e.Commit(Batch{Nodes: []NodeInput{{Type: "function", Name: "Foo", File: "a.go", Exported: true}}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.NodesAdded)
	require.Len(t, res.NodesRejected, 1)
	assert.Equal(t, "function:Foo@a.go", res.NodesRejected[0])

	// the earlier version is untouched
	foo, err := e.GetNodeBySemanticID("function:Foo@a.go")
	require.NoError(t, err)
	assert.False(t, foo.Exported)
}

// TestSurgicalReindexByChangedFiles is the re-index scenario the
// commit protocol exists for: re-committing a node with its owning
// file listed in ChangedFiles replaces it in place and automatically
// tombstones edges it owned, without the client enumerating deletes.
func TestSurgicalReindexByChangedFiles(t *testing.T) {
	e, err := Recover(testConfig(t))
	require.NoError(t, err)

	_, err = e.Commit(Batch{
		ChangedFiles: []string{"src/x.js"},
		Nodes: []NodeInput{
			{Type: "function", Name: "a", File: "src/x.js"},
			{Type: "function", Name: "b", File: "src/x.js"},
		},
		Edges: []EdgeInput{
			{Type: "CONTAINS", SrcSemanticID: "function:a@src/x.js", DstSemanticID: "function:b@src/x.js"},
		},
	})
	require.NoError(t, err)

	a, err := e.GetNodeBySemanticID("function:a@src/x.js")
	require.NoError(t, err)
	require.Len(t, e.OutgoingEdges(a.NumericID), 1)

	// re-commit a alone, scoped to the same file: a updates in place,
	// and the stale CONTAINS edge to b is tombstoned automatically.
	res, err := e.Commit(Batch{
		ChangedFiles: []string{"src/x.js"},
		Nodes: []NodeInput{
			{Type: "function", Name: "a", File: "src/x.js", Exported: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesAdded)
	assert.Equal(t, 0, len(res.NodesRejected))
	assert.Equal(t, 2, res.NodesTombstoned) // the old "a" and "b" both owned by src/x.js
	assert.Equal(t, 1, res.EdgesTombstoned)

	updated, err := e.GetNodeBySemanticID("function:a@src/x.js")
	require.NoError(t, err)
	assert.True(t, updated.Exported)
	assert.NotEqual(t, a.NumericID, updated.NumericID, "the replacement gets a fresh numeric id")
	assert.Empty(t, e.OutgoingEdges(updated.NumericID))

	_, err = e.GetNodeBySemanticID("function:b@src/x.js")
	assert.Error(t, err, "b was owned by the same scoped file and was not re-added")
}

// TestSurgicalReindexLeavesOtherFilesAlone is the re-index scenario
// across two distinct files: committing node A with edge src in a
// changed file and dst in an untouched file tombstones the edge (by
// src's file) on re-commit of A alone, while B itself is left alone.
func TestSurgicalReindexLeavesOtherFilesAlone(t *testing.T) {
	e, err := Recover(testConfig(t))
	require.NoError(t, err)

	_, err = e.Commit(Batch{
		ChangedFiles: []string{"src/x.js", "src/y.js"},
		Nodes: []NodeInput{
			{Type: "A", Name: "a", File: "src/x.js"},
			{Type: "B", Name: "b", File: "src/y.js"},
		},
		Edges: []EdgeInput{
			{Type: "CONTAINS", SrcSemanticID: "A:a@src/x.js", DstSemanticID: "B:b@src/y.js"},
		},
	})
	require.NoError(t, err)

	res, err := e.Commit(Batch{
		ChangedFiles: []string{"src/x.js"},
		Nodes:        []NodeInput{{Type: "A", Name: "a", File: "src/x.js", Exported: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesAdded)
	assert.Equal(t, 1, res.NodesTombstoned) // only the old A, not B
	assert.Equal(t, 1, res.EdgesTombstoned) // CONTAINS, owned by A's file

	updated, err := e.GetNodeBySemanticID("A:a@src/x.js")
	require.NoError(t, err)
	assert.True(t, updated.Exported)

	b, err := e.GetNodeBySemanticID("B:b@src/y.js")
	require.NoError(t, err)
	assert.Equal(t, "b", b.Name)
}

func TestCommitReplacesWithinSameBatch(t *testing.T) {
	e, err := Recover(testConfig(t))
	require.NoError(t, err)

	res, err := e.Commit(Batch{Nodes: []NodeInput{
		{Type: "function", Name: "Foo", File: "a.go", Exported: false},
		{Type: "function", Name: "Foo", File: "a.go", Exported: true},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesAdded)

	foo, err := e.GetNodeBySemanticID("function:Foo@a.go")
	require.NoError(t, err)
	assert.True(t, foo.Exported)
}

func TestCommitDeleteThenReAdd(t *testing.T) {
	e, err := Recover(testConfig(t))
	require.NoError(t, err)

	_, err = e.Commit(Batch{Nodes: []NodeInput{{Type: "function", Name: "Foo", File: "a.go"}}})
	require.NoError(t, err)

	_, err = e.Commit(Batch{
		DeleteNodes: []string{"function:Foo@a.go"},
		Nodes:       []NodeInput{{Type: "function", Name: "Foo", File: "a.go", Exported: true}},
	})
	require.NoError(t, err)

	foo, err := e.GetNodeBySemanticID("function:Foo@a.go")
	require.NoError(t, err)
	assert.True(t, foo.Exported)
}

func TestEnrichmentSurgicalReplace(t *testing.T) {
	e, err := Recover(testConfig(t))
	require.NoError(t, err)

	_, err = e.Commit(Batch{Nodes: []NodeInput{
		{Type: "function", Name: "Foo", File: "a.go"},
		{Type: "function", Name: "Bar", File: "b.go"},
	}})
	require.NoError(t, err)

	_, err = e.Commit(Batch{
		FileContext: &FileContext{Producer: "callgraph-x", SourceFile: "a.go"},
		Edges: []EdgeInput{
			{Type: "calls-via-x", SrcSemanticID: "function:Foo@a.go", DstSemanticID: "function:Bar@b.go"},
		},
	})
	require.NoError(t, err)

	foo, err := e.GetNodeBySemanticID("function:Foo@a.go")
	require.NoError(t, err)
	require.Len(t, e.OutgoingEdges(foo.NumericID), 1)

	// re-running the same producer against the same file with no edges
	// must not leave the old edge behind: the commit's own FileContext
	// sweeps its prior edges before applying (none, here).
	res, err := e.Commit(Batch{
		FileContext: &FileContext{Producer: "callgraph-x", SourceFile: "a.go"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.EdgesTombstoned)
	assert.Empty(t, e.OutgoingEdges(foo.NumericID))
}

func TestNeighborsFiltersByTypeAndDirection(t *testing.T) {
	e, err := Recover(testConfig(t))
	require.NoError(t, err)

	_, err = e.Commit(Batch{
		Nodes: []NodeInput{
			{Type: "function", Name: "a", File: "a.go"},
			{Type: "function", Name: "b", File: "a.go"},
			{Type: "function", Name: "c", File: "a.go"},
		},
		Edges: []EdgeInput{
			{Type: "calls", SrcSemanticID: "function:a@a.go", DstSemanticID: "function:b@a.go"},
			{Type: "imports", SrcSemanticID: "function:c@a.go", DstSemanticID: "function:a@a.go"},
		},
	})
	require.NoError(t, err)

	a, err := e.GetNodeBySemanticID("function:a@a.go")
	require.NoError(t, err)

	all := e.Neighbors(a.NumericID, nil, DirectionBoth, 0)
	require.Len(t, all, 2)

	out := e.Neighbors(a.NumericID, nil, DirectionOut, 0)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].Name)

	in := e.Neighbors(a.NumericID, nil, DirectionIn, 0)
	require.Len(t, in, 1)
	assert.Equal(t, "c", in[0].Name)

	callsOnly := e.Neighbors(a.NumericID, []string{"calls"}, DirectionBoth, 0)
	require.Len(t, callsOnly, 1)
	assert.Equal(t, "b", callsOnly[0].Name)
}

func TestBFSRespectsEdgeFilter(t *testing.T) {
	e, err := Recover(testConfig(t))
	require.NoError(t, err)

	_, err = e.Commit(Batch{
		Nodes: []NodeInput{
			{Type: "function", Name: "a", File: "a.go"},
			{Type: "function", Name: "b", File: "a.go"},
			{Type: "function", Name: "c", File: "a.go"},
		},
		Edges: []EdgeInput{
			{Type: "calls", SrcSemanticID: "function:a@a.go", DstSemanticID: "function:b@a.go"},
			{Type: "imports", SrcSemanticID: "function:a@a.go", DstSemanticID: "function:c@a.go"},
		},
	})
	require.NoError(t, err)

	a, err := e.GetNodeBySemanticID("function:a@a.go")
	require.NoError(t, err)

	unfiltered := e.BFS(a.NumericID, 2, nil)
	require.Len(t, unfiltered, 2)

	filtered := e.BFS(a.NumericID, 2, []string{"calls"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "b", filtered[0].Name)
}

func TestRecoverRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	cfg.FlushNodeThreshold = 1 // force every commit to flush, so the data is read back from a segment written by Commit
	e, err := Recover(cfg)
	require.NoError(t, err)

	_, err = e.Commit(Batch{
		Nodes: []NodeInput{
			{Type: "function", Name: "Foo", File: "a.go"},
			{Type: "function", Name: "Bar", File: "a.go"},
		},
		Edges: []EdgeInput{{Type: "calls", SrcSemanticID: "function:Foo@a.go", DstSemanticID: "function:Bar@a.go"}},
	})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	reloaded, err := Recover(cfg)
	require.NoError(t, err)

	foo, err := reloaded.GetNodeBySemanticID("function:Foo@a.go")
	require.NoError(t, err)
	out := reloaded.OutgoingEdges(foo.NumericID)
	require.Len(t, out, 1)
	assert.Equal(t, "calls", out[0].Type)
}
