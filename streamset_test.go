package h2core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSetParity(t *testing.T) {
	// Client side: odd ids only.
	client := NewStreamSet(1, 2)
	s1, err := client.NewStream(0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, s1.id)
	s2, err := client.NewStream(0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, s2.id)

	// Server side: even ids only.
	server := NewStreamSet(2, 1)
	s3, err := server.NewStream(0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, s3.id)
	s4, err := server.NewStream(0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 4, s4.id)
}

func TestStreamSetActiveCount(t *testing.T) {
	ss := NewStreamSet(1, 2)
	s1, err := ss.NewStream(0, 0)
	require.NoError(t, err)
	s2, err := ss.NewStream(0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ss.ActiveCount(true))

	ss.Close(s1)
	assert.EqualValues(t, 1, ss.ActiveCount(true))
	ss.Close(s2)
	assert.EqualValues(t, 0, ss.ActiveCount(true))
}

func TestStreamSetGetOnlyReturnsActive(t *testing.T) {
	ss := NewStreamSet(1, 2)
	s, err := ss.NewStream(0, 0)
	require.NoError(t, err)

	_, ok := ss.Get(s.id, true)
	assert.True(t, ok)

	ss.Close(s)
	_, ok = ss.Get(s.id, true)
	assert.False(t, ok, "a closed stream must not be reported active")
	assert.True(t, ss.WasClosed(s.id, true))

	// An id the set never saw at all is neither active nor closed.
	assert.False(t, ss.WasClosed(999, true))
}

func TestStreamSetMaxConcurrentStreams(t *testing.T) {
	ss := NewStreamSet(2, 1)
	ss.UpdateTheirMaxActive(2)

	_, err := ss.NewRemoteStream(1, 0, 0)
	require.NoError(t, err)
	_, err = ss.NewRemoteStream(3, 0, 0)
	require.NoError(t, err)

	_, err = ss.NewRemoteStream(5, 0, 0)
	require.Error(t, err)
	assert.True(t, IsStreamError(err))
	var e Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrCodeRefusedStream, e.Code)
}

func TestStreamSetRemoteIDOrdering(t *testing.T) {
	ss := NewStreamSet(2, 1)
	_, err := ss.NewRemoteStream(3, 0, 0)
	require.NoError(t, err)

	// A remote id at or below the last accepted one is a protocol error,
	// not merely refused.
	_, err = ss.NewRemoteStream(3, 0, 0)
	require.Error(t, err)
	assert.True(t, IsConnError(err))

	_, err = ss.NewRemoteStream(1, 0, 0)
	require.Error(t, err)
	assert.True(t, IsConnError(err))
}

func TestStreamSetRemoteIDParity(t *testing.T) {
	// Server side: the peer (a client) may only open odd-numbered streams.
	server := NewStreamSet(2, 1)
	_, err := server.NewRemoteStream(2, 0, 0)
	require.Error(t, err)
	assert.True(t, IsConnError(err))

	// Client side: the peer (a server) may only open even-numbered streams.
	client := NewStreamSet(1, 2)
	_, err = client.NewRemoteStream(3, 0, 0)
	require.Error(t, err)
	assert.True(t, IsConnError(err))
}

func TestStreamSetHighestTheirID(t *testing.T) {
	ss := NewStreamSet(2, 1)
	assert.EqualValues(t, 0, ss.HighestTheirID())

	_, err := ss.NewRemoteStream(1, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ss.HighestTheirID())

	_, err = ss.NewRemoteStream(7, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, ss.HighestTheirID(), "highest id tracks the last accepted, not a running count")
}

func TestStreamSetWindowBroadcast(t *testing.T) {
	ss := NewStreamSet(1, 2)
	s1, err := ss.NewStream(1000, 1000)
	require.NoError(t, err)
	s2, err := ss.NewStream(1000, 1000)
	require.NoError(t, err)

	ss.UpdateAllSendWindows(500)
	assert.EqualValues(t, 1500, s1.SendWindow())
	assert.EqualValues(t, 1500, s2.SendWindow())

	ss.UpdateAllRecvWindows(-200)
	assert.EqualValues(t, 800, s1.RecvWindow())
	assert.EqualValues(t, 800, s2.RecvWindow())
}
