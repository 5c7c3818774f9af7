package rpc

import (
	"github.com/cuemby/graphengine/internal/engine"
	"github.com/cuemby/graphengine/internal/graph"
)

// ProtocolVersion is bumped whenever a request/response struct changes
// shape in a way a gob decoder cannot absorb.
const ProtocolVersion = 1

type HelloRequest struct{ ProtocolVersion uint32 }
type HelloResponse struct {
	ProtocolVersion uint32
	ServerVersion   string
}

type PingRequest struct{}
type PingResponse struct{}

type BeginBatchResponse struct{ BatchID uint64 }

type AddNodeRequest struct {
	BatchID uint64
	Node    engine.NodeInput
}

type AddEdgeRequest struct {
	BatchID uint64
	Edge    engine.EdgeInput
}

type DeleteNodeRequest struct {
	BatchID    uint64
	SemanticID string
}

type DeleteEdgeRequest struct {
	BatchID uint64
	Edge    engine.EdgeDelete
}

type EnrichmentReplaceRequest struct {
	BatchID uint64
	Replace engine.EnrichmentReplace
}

// CommitBatchRequest carries the commit's scope alongside the
// accumulated batch: ChangedFiles for an analysis commit, or
// FileContext for an enrichment commit (mutually exclusive —
// FileContext wins if both are set). RequestID is an optional
// client-supplied token for logging/tracing one commit across retries.
type CommitBatchRequest struct {
	BatchID      uint64
	ChangedFiles []string
	Tags         []string
	FileContext  *engine.FileContext
	RequestID    string
}
type CommitBatchResponse struct{ Result engine.CommitResult }

type AbortBatchRequest struct{ BatchID uint64 }

// GetNodeRequest looks a node up by one of the two fields; the request
// kind selects which: KindGetNodeBySemanticID reads SemanticID and
// KindGetNodeByNumericID reads NumericID.
type GetNodeRequest struct {
	NumericID  uint64
	SemanticID string
}
type GetNodeResponse struct {
	Node  graph.Node
	Found bool
}

type FindNodesByTypeRequest struct{ Type string }
type FindNodesResponse struct{ Nodes []graph.Node }

type EdgesRequest struct{ NumericID uint64 }
type EdgesResponse struct{ Edges []graph.Edge }

// NeighborsRequest's Direction mirrors engine.Direction (0=both,
// 1=out, 2=in); EdgeTypes restricts which edge types are followed
// (empty means all).
type NeighborsRequest struct {
	NumericID  uint64
	EdgeTypes  []string
	Direction  engine.Direction
	MaxResults int
}
type NeighborsResponse struct{ Nodes []graph.Node }

type BFSRequest struct {
	StartNumericID uint64
	MaxHops        int
	EdgeFilter     []string
}
type BFSResponse struct{ Nodes []graph.Node }

type StatsResponse struct{ Stats engine.Stats }

// ErrorResponse reports a request failure without closing the
// session; the client should inspect Kind before retrying.
type ErrorResponse struct {
	Kind    string
	Message string
}
