package h2core

import (
	"bufio"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ackSettingsFrame(t *testing.T, w *bufio.Writer) {
	t.Helper()
	fh := AcquireFrameHeader()
	sf := AcquireFrame(FrameSettings).(*SettingsFrame)
	sf.SetAck(true)
	fh.SetBody(sf)
	_, err := fh.WriteTo(w)
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	ReleaseFrameHeader(fh)
}

// TestUpdateSettingsRejectsWhileOutstanding covers the single-outstanding-
// SETTINGS rule: the Conn's own initial SETTINGS (sent during handshake)
// hasn't been ACKed yet here, so a second one is refused rather than
// queued.
func TestUpdateSettingsRejectsWhileOutstanding(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	br := bufio.NewReader(clientConn)
	bw := bufio.NewWriter(clientConn)
	conn := becomeAsClient(t, serverConn, ConnOpts{}, DefaultSettings(), DefaultSettings(), nil, br, bw)
	defer func() {
		// net.Pipe is unbuffered: close our end first so the GOAWAY that
		// Close flushes fails at once instead of waiting for a reader.
		clientConn.Close()
		conn.Close()
	}()

	err := conn.UpdateSettings(DefaultSettings())
	assert.ErrorIs(t, err, ErrSettingsOutstanding)
}

// TestUpdateSettingsAppliesOnlyAfterAck covers RFC 7540 §6.5.3: a locally
// initiated SETTINGS change must not affect stream-set bookkeeping (or
// anything else) until the peer ACKs it.
func TestUpdateSettingsAppliesOnlyAfterAck(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	br := bufio.NewReader(clientConn)
	bw := bufio.NewWriter(clientConn)
	conn := becomeAsClient(t, serverConn, ConnOpts{}, DefaultSettings(), DefaultSettings(), nil, br, bw)
	defer func() {
		// net.Pipe is unbuffered: close our end first so the GOAWAY that
		// Close flushes fails at once instead of waiting for a reader.
		clientConn.Close()
		conn.Close()
	}()

	ackSettingsFrame(t, bw)
	require.NoError(t, conn.doSync(func() {})) // let run consume the ack first

	newSettings := DefaultSettings()
	newSettings.MaxConcurrentStreams = 7
	// UpdateSettings returns only after its SETTINGS frame is flushed, and
	// net.Pipe lets that flush finish only once the frame is read below.
	updErr := make(chan error, 1)
	go func() { updErr <- conn.UpdateSettings(newSettings) }()

	fh, err := ReadFrameFrom(br)
	require.NoError(t, err)
	require.NoError(t, <-updErr)

	// Unacknowledged: bookkeeping still reflects the old value.
	assert.EqualValues(t, DefaultSettings().MaxConcurrentStreams, atomic.LoadUint32(&conn.streams.theirs.maxActive))

	require.Equal(t, FrameSettings, fh.Type())
	sf := fh.Body().(*SettingsFrame)
	require.False(t, sf.Ack())
	assert.EqualValues(t, 7, sf.Settings.MaxConcurrentStreams)

	assert.ErrorIs(t, conn.UpdateSettings(newSettings), ErrSettingsOutstanding)

	ackSettingsFrame(t, bw)
	require.NoError(t, conn.doSync(func() {}))

	assert.EqualValues(t, 7, atomic.LoadUint32(&conn.streams.theirs.maxActive))
	assert.Equal(t, newSettings, conn.localSettings)
}
