package rpc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, KindHello, HelloRequest{ProtocolVersion: 1}))

	kind, body, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, KindHello, kind)

	var req HelloRequest
	require.NoError(t, Decode(body, &req))
	assert.Equal(t, uint32(1), req.ProtocolVersion)
}

func TestFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	_, _, err := ReadFrame(&buf)
	assert.Error(t, err)
}

func TestFrameWithNilPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, KindPing, nil))
	kind, body, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, KindPing, kind)
	assert.Empty(t, body)
}
