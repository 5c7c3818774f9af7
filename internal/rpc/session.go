package rpc

import (
	"errors"
	"io"
	"net"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cuemby/graphengine/internal/engine"
	"github.com/cuemby/graphengine/internal/errs"
	"github.com/cuemby/graphengine/internal/graph"
)

var batchIDSeq uint64

// session holds one connection's state: at most one open batch at a
// time, accumulated until CommitBatch or AbortBatch. Concurrency across
// sessions is the engine's problem (its own mutex serializes commits);
// a session itself is only ever driven by its own goroutine.
type session struct {
	conn   net.Conn
	engine *engine.Engine
	log    *zap.Logger

	batchID uint64
	batch   *engine.Batch // nil when no batch is open
}

func newSession(conn net.Conn, eng *engine.Engine, log *zap.Logger) *session {
	return &session{conn: conn, engine: eng, log: log}
}

// serve reads and dispatches frames until the connection closes or a
// protocol error occurs.
func (s *session) serve() {
	defer s.conn.Close()
	for {
		kind, body, err := ReadFrame(s.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("session read failed", zap.Error(err))
			}
			return
		}
		if err := s.dispatch(kind, body); err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("session dispatch failed", zap.Error(err))
			}
			return
		}
	}
}

func (s *session) dispatch(kind Kind, body []byte) error {
	switch kind {
	case KindHello:
		var req HelloRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		return WriteFrame(s.conn, KindOK, HelloResponse{ProtocolVersion: ProtocolVersion, ServerVersion: "graphengine"})

	case KindPing:
		return WriteFrame(s.conn, KindOK, PingResponse{})

	case KindBeginBatch:
		s.batchID = atomic.AddUint64(&batchIDSeq, 1)
		s.batch = &engine.Batch{}
		return WriteFrame(s.conn, KindOK, BeginBatchResponse{BatchID: s.batchID})

	case KindAddNode:
		var req AddNodeRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		if s.batch == nil || req.BatchID != s.batchID {
			return s.writeTypedError(errs.ErrBatchNotOpen)
		}
		s.batch.Nodes = append(s.batch.Nodes, req.Node)
		return WriteFrame(s.conn, KindOK, nil)

	case KindAddEdge:
		var req AddEdgeRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		if s.batch == nil || req.BatchID != s.batchID {
			return s.writeTypedError(errs.ErrBatchNotOpen)
		}
		s.batch.Edges = append(s.batch.Edges, req.Edge)
		return WriteFrame(s.conn, KindOK, nil)

	case KindDeleteNode:
		var req DeleteNodeRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		if s.batch == nil || req.BatchID != s.batchID {
			return s.writeTypedError(errs.ErrBatchNotOpen)
		}
		s.batch.DeleteNodes = append(s.batch.DeleteNodes, req.SemanticID)
		return WriteFrame(s.conn, KindOK, nil)

	case KindDeleteEdge:
		var req DeleteEdgeRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		if s.batch == nil || req.BatchID != s.batchID {
			return s.writeTypedError(errs.ErrBatchNotOpen)
		}
		s.batch.DeleteEdges = append(s.batch.DeleteEdges, req.Edge)
		return WriteFrame(s.conn, KindOK, nil)

	case KindEnrichmentReplace:
		var req EnrichmentReplaceRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		if s.batch == nil || req.BatchID != s.batchID {
			return s.writeTypedError(errs.ErrBatchNotOpen)
		}
		s.batch.EnrichmentReplace = append(s.batch.EnrichmentReplace, req.Replace)
		return WriteFrame(s.conn, KindOK, nil)

	case KindCommitBatch:
		var req CommitBatchRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		if s.batch == nil || req.BatchID != s.batchID {
			return s.writeTypedError(errs.ErrBatchNotOpen)
		}
		s.batch.ChangedFiles = req.ChangedFiles
		s.batch.Tags = req.Tags
		s.batch.FileContext = req.FileContext
		s.batch.RequestID = req.RequestID
		result, err := s.engine.Commit(*s.batch)
		s.batch = nil
		if err != nil {
			return s.writeTypedError(err)
		}
		return WriteFrame(s.conn, KindOK, CommitBatchResponse{Result: result})

	case KindAbortBatch:
		s.batch = nil
		return WriteFrame(s.conn, KindOK, nil)

	case KindGetNodeByNumericID, KindGetNodeBySemanticID:
		var req GetNodeRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		n, lookupErr := s.lookupNode(kind, req)
		if lookupErr != nil {
			if errors.Is(lookupErr, errs.ErrNotFound) {
				return WriteFrame(s.conn, KindOK, GetNodeResponse{Found: false})
			}
			return s.writeTypedError(lookupErr)
		}
		return WriteFrame(s.conn, KindOK, GetNodeResponse{Node: n, Found: true})

	case KindFindNodesByType:
		var req FindNodesByTypeRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		return WriteFrame(s.conn, KindOK, FindNodesResponse{Nodes: s.engine.FindNodesByType(req.Type)})

	case KindOutgoingEdges:
		var req EdgesRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		return WriteFrame(s.conn, KindOK, EdgesResponse{Edges: s.engine.OutgoingEdges(req.NumericID)})

	case KindIncomingEdges:
		var req EdgesRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		return WriteFrame(s.conn, KindOK, EdgesResponse{Edges: s.engine.IncomingEdges(req.NumericID)})

	case KindNeighbors:
		var req NeighborsRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		return WriteFrame(s.conn, KindOK, NeighborsResponse{Nodes: s.engine.Neighbors(req.NumericID, req.EdgeTypes, req.Direction, req.MaxResults)})

	case KindBFS:
		var req BFSRequest
		if err := Decode(body, &req); err != nil {
			return s.writeError(err)
		}
		return WriteFrame(s.conn, KindOK, BFSResponse{Nodes: s.engine.BFS(req.StartNumericID, req.MaxHops, req.EdgeFilter)})

	case KindStats:
		return WriteFrame(s.conn, KindOK, StatsResponse{Stats: s.engine.Stats()})

	case KindShutdown:
		return io.EOF // ends this session only; the server keeps accepting and does not flush or exit

	default:
		return s.writeTypedError(&errs.InvalidRequestError{Reason: "unknown request kind"})
	}
}

func (s *session) lookupNode(kind Kind, req GetNodeRequest) (graph.Node, error) {
	if kind == KindGetNodeBySemanticID {
		return s.engine.GetNodeBySemanticID(req.SemanticID)
	}
	return s.engine.GetNodeByNumericID(req.NumericID)
}

func (s *session) writeError(err error) error {
	return WriteFrame(s.conn, KindError, ErrorResponse{Kind: "InvalidRequest", Message: err.Error()})
}

func (s *session) writeTypedError(err error) error {
	kind := "Internal"
	switch {
	case errors.Is(err, errs.ErrNotFound):
		kind = "NotFound"
	case errors.Is(err, errs.ErrBatchNotOpen):
		kind = "BatchNotOpen"
	default:
		switch err.(type) {
		case *errs.InvalidRequestError:
			kind = "InvalidRequest"
		case *errs.IOFailureError:
			kind = "IOFailure"
		case *errs.RecoveryError:
			kind = "RecoveryFailure"
		case *errs.FatalError:
			kind = "Fatal"
		}
	}
	return WriteFrame(s.conn, KindError, ErrorResponse{Kind: kind, Message: err.Error()})
}
