// Package rpc implements the engine's wire protocol: a Unix-domain
// socket carrying length-prefixed binary frames, each a one-byte
// request/response kind followed by a gob-encoded payload.
//
// Grounded on scm/network.go's HTTPServe loop (accept, dispatch-by-
// request-kind, one goroutine per connection) — generalized from
// line-oriented HTTP onto a custom framed binary protocol, since this
// engine's clients are other internal services rather than browsers.
// No other reference implementation on hand shows a bespoke binary
// frame codec of this shape, so the codec itself (this file) is
// built on encoding/binary + encoding/gob rather than adapted from a
// third-party library.
package rpc

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// Kind identifies the request or response carried by one frame.
type Kind byte

const (
	KindHello Kind = iota + 1
	KindPing
	KindBeginBatch
	KindAddNode
	KindAddEdge
	KindDeleteNode
	KindDeleteEdge
	KindEnrichmentReplace
	KindCommitBatch
	KindAbortBatch
	KindGetNodeByNumericID
	KindGetNodeBySemanticID
	KindFindNodesByType
	KindOutgoingEdges
	KindIncomingEdges
	KindNeighbors
	KindBFS
	KindStats
	KindShutdown

	KindOK
	KindError
)

// maxFrameLength bounds a single frame at 64 MiB, generous for a
// FindNodes response yet small enough that a corrupt length prefix
// cannot make the server allocate unbounded memory.
const maxFrameLength = 64 << 20

// WriteFrame gob-encodes payload (nil is allowed for kinds that carry
// none) and writes it as one length-prefixed frame.
func WriteFrame(w io.Writer, kind Kind, payload any) error {
	var buf bytes.Buffer
	buf.WriteByte(byte(kind))
	if payload != nil {
		if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
			return fmt.Errorf("rpc: encode frame kind %d: %w", kind, err)
		}
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(buf.Len()))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadFrame blocks until one full frame has arrived, returning its
// kind and raw (still gob-encoded) body.
func ReadFrame(r io.Reader) (Kind, []byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length < 1 || length > maxFrameLength {
		return 0, nil, fmt.Errorf("rpc: invalid frame length %d", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return Kind(body[0]), body[1:], nil
}

// Decode gob-decodes a frame body (as returned by ReadFrame) into v.
func Decode(body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}
	return gob.NewDecoder(bytes.NewReader(body)).Decode(v)
}
