package h2core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWindowUpdateFrame(t *testing.T, streamID uint32, increment int32) *FrameHeader {
	t.Helper()
	fh := AcquireFrameHeader()
	wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
	wu.SetIncrement(increment)
	fh.SetBody(wu)
	fh.SetStream(streamID)
	return fh
}

// TestWindowUpdateIdleStreamIsProtocolError covers RFC 7540 §4.6: a
// WINDOW_UPDATE naming a stream id nobody has ever opened is a
// connection error, distinct from one naming a stream that has since
// closed.
func TestWindowUpdateIdleStreamIsProtocolError(t *testing.T) {
	c := &Conn{streams: NewStreamSet(1, 2)}

	err := c.handleWindowUpdate(newWindowUpdateFrame(t, 99, 100))
	require.Error(t, err)
	assert.True(t, IsConnError(err))
	var e Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrCodeProtocol, e.Code)
}

func TestWindowUpdateClosedStreamIsResetStream(t *testing.T) {
	c := &Conn{streams: NewStreamSet(1, 2)}
	s, err := c.streams.NewStream(0, 0)
	require.NoError(t, err)
	c.streams.Close(s)

	err = c.handleWindowUpdate(newWindowUpdateFrame(t, s.id, 100))
	require.Error(t, err)
	assert.True(t, IsStreamError(err))
	var e Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrCodeStreamClosed, e.Code)
}

func TestWindowUpdateActiveStreamWakesItsWriter(t *testing.T) {
	c := &Conn{streams: NewStreamSet(1, 2)}
	s, err := c.streams.NewStream(0, 0)
	require.NoError(t, err)

	require.NoError(t, c.handleWindowUpdate(newWindowUpdateFrame(t, s.id, 100)))

	assert.EqualValues(t, 100, s.SendWindow())
	assert.True(t, drained(t, s), "a stream-level WINDOW_UPDATE must wake a blocked writer")
}
