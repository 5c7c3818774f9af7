// Package errs defines the error vocabulary the engine reports to its
// callers. The RPC server maps every one of these onto a response-frame
// error kind; the engine never signals failure by closing a
// session or panicking across an API boundary.
package errs

import "fmt"

// Sentinel errors for conditions that carry no extra payload.
var (
	// ErrNotFound means a lookup by id/semantic-id found no match. The
	// RPC layer reports this as a null result, not as an error frame.
	ErrNotFound = fmt.Errorf("graphengine: not found")

	// ErrBatchNotOpen means AddNode/AddEdge/CommitBatch was called
	// without a preceding BeginBatch on the session.
	ErrBatchNotOpen = fmt.Errorf("graphengine: batch not open")

	// ErrConflictReplaced names the case of a write replacing an
	// existing entry from an earlier commit. Commit does not return it:
	// a cross-commit conflict is rejected and listed in
	// CommitResult.NodesRejected / EdgesRejected instead.
	ErrConflictReplaced = fmt.Errorf("graphengine: replaced existing entry")
)

// InvalidRequestError wraps a malformed frame, an unknown request kind,
// or a version-incompatible payload. The session continues afterward.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "graphengine: invalid request: " + e.Reason
}

// IOFailureError wraps a failed segment write, fsync, or manifest write.
// The engine reverts to its pre-commit snapshot and keeps serving reads.
type IOFailureError struct {
	Op  string
	Err error
}

func (e *IOFailureError) Error() string {
	return fmt.Sprintf("graphengine: io failure during %s: %v", e.Op, e.Err)
}

func (e *IOFailureError) Unwrap() error { return e.Err }

// RecoveryError means the manifest or a referenced segment was
// unreadable at startup. The engine refuses to serve when this occurs;
// no partial recovery is attempted.
type RecoveryError struct {
	Path string
	Err  error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("graphengine: recovery failed reading %s: %v", e.Path, e.Err)
}

func (e *RecoveryError) Unwrap() error { return e.Err }

// FatalError marks a bug condition — an index inconsistency detected at
// runtime that the engine cannot safely continue past. The server logs,
// flushes what it can, and exits.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string {
	return "graphengine: fatal: " + e.Reason
}
