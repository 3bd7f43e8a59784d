package h2core

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowframe/h2core/wire"
)

type becomeResult struct {
	conn *Conn
	err  error
}

// becomeAsync runs Become on its own goroutine so a test can play the
// peer synchronously: net.Pipe has no buffering, so the handshake's own
// outbound SETTINGS write blocks until something reads it, and that
// can't happen from the same goroutine that's waiting on Become.
func becomeAsync(c net.Conn, isClient bool, opts ConnOpts, settings Settings, cb StreamCallback) <-chan becomeResult {
	ch := make(chan becomeResult, 1)
	go func() {
		conn, err := Become(c, isClient, opts, settings, cb)
		ch <- becomeResult{conn, err}
	}()
	return ch
}

func writeSettingsFrame(t *testing.T, w *bufio.Writer, s Settings) {
	t.Helper()
	fh := AcquireFrameHeader()
	sf := AcquireFrame(FrameSettings).(*SettingsFrame)
	sf.Settings = s
	fh.SetBody(sf)
	_, err := fh.WriteTo(w)
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	ReleaseFrameHeader(fh)
}

// becomeAsServer drives the peer side of the preface/SETTINGS exchange
// for a Conn being tested in the server role (isClient=false): send the
// preface, observe the Conn's own initial SETTINGS, then send ours and
// wait for it to be acknowledged.
func becomeAsServer(t *testing.T, serverConn net.Conn, opts ConnOpts, localSettings, peerSettings Settings, cb StreamCallback, br *bufio.Reader, bw *bufio.Writer) *Conn {
	t.Helper()
	ch := becomeAsync(serverConn, false, opts, localSettings, cb)

	_, err := bw.Write(ClientPreface)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())

	fh, err := ReadFrameFrom(br) // the Conn's own initial SETTINGS
	require.NoError(t, err)
	require.Equal(t, FrameSettings, fh.Type())

	res := <-ch
	require.NoError(t, res.err)

	writeSettingsFrame(t, bw, peerSettings)

	ackFH, err := ReadFrameFrom(br) // SETTINGS ACK answering ours
	require.NoError(t, err)
	require.Equal(t, FrameSettings, ackFH.Type())
	require.True(t, ackFH.Body().(*SettingsFrame).Ack())

	return res.conn
}

// becomeAsClient is the mirror image for a Conn tested in the client
// role (isClient=true): it sends the preface itself, so the peer here
// only ever reads one, consumes the Conn's own initial SETTINGS, then
// replies with its own.
func becomeAsClient(t *testing.T, serverConn net.Conn, opts ConnOpts, localSettings, peerSettings Settings, cb StreamCallback, br *bufio.Reader, bw *bufio.Writer) *Conn {
	t.Helper()
	ch := becomeAsync(serverConn, true, opts, localSettings, cb)

	preface := make([]byte, len(ClientPreface))
	_, err := io.ReadFull(br, preface)
	require.NoError(t, err)
	require.Equal(t, ClientPreface, preface)

	fh, err := ReadFrameFrom(br) // the Conn's own initial SETTINGS
	require.NoError(t, err)
	require.Equal(t, FrameSettings, fh.Type())

	res := <-ch
	require.NoError(t, res.err)

	writeSettingsFrame(t, bw, peerSettings)

	ackFH, err := ReadFrameFrom(br) // SETTINGS ACK answering ours
	require.NoError(t, err)
	require.True(t, ackFH.Body().(*SettingsFrame).Ack())

	return res.conn
}

// TestPrefaceRejection covers scenario 1: a peer that never sends the
// HTTP/2 client preface gets its connection torn down during handshake,
// before the connection ever reaches stateConnected.
func TestPrefaceRejection(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go func() {
		bw := bufio.NewWriter(clientConn)
		// Exactly len(ClientPreface) bytes, but not a match.
		garbage := make([]byte, len(ClientPreface))
		copy(garbage, "GET / HTTP/1.1\r\n")
		bw.Write(garbage)
		bw.Flush()
	}()

	_, err := Become(serverConn, false, ConnOpts{}, DefaultSettings(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadPreface)
}

// TestSettingsTimeoutClosesWithGoAway covers scenario 2: a peer that
// never acknowledges our initial SETTINGS is disconnected with
// GOAWAY(SETTINGS_TIMEOUT) once the deadline passes.
func TestSettingsTimeoutClosesWithGoAway(t *testing.T) {
	oldTimeout, oldPing := DefaultSettingsTimeout, DefaultPingInterval
	DefaultSettingsTimeout = 30 * time.Millisecond
	DefaultPingInterval = 10 * time.Millisecond
	defer func() { DefaultSettingsTimeout, DefaultPingInterval = oldTimeout, oldPing }()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	br := bufio.NewReader(clientConn)
	bw := bufio.NewWriter(clientConn)
	conn := becomeAsServer(t, serverConn, ConnOpts{}, DefaultSettings(), DefaultSettings(), nil, br, bw)

	// We never send our own ACK for the Conn's initial SETTINGS, so it
	// must eventually give up. The keepalive PINGs it sends on every tick
	// are answered, so the unanswered-PING check does not close it first.
	fh, err := ReadFrameFrom(br)
	for err == nil && fh.Type() == FramePing {
		reply := AcquireFrameHeader()
		ack := AcquireFrame(FramePing).(*Ping)
		ack.SetAck(true)
		ack.SetData(fh.Body().(*Ping).Data())
		reply.SetBody(ack)
		if _, err = reply.WriteTo(bw); err == nil {
			err = bw.Flush()
		}
		if err == nil {
			fh, err = ReadFrameFrom(br)
		}
	}
	require.NoError(t, err)
	require.Equal(t, FrameGoAway, fh.Type())
	assert.Equal(t, ErrCodeSettingsTimeout, fh.Body().(*GoAway).Code())

	conn.Wait()
}

// TestConcurrentStreamsCap covers scenario 4: once the peer's
// MAX_CONCURRENT_STREAMS is exhausted, further NewStream calls are
// refused without emitting anything for the id they'd have used.
func TestConcurrentStreamsCap(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	peerSettings := DefaultSettings()
	peerSettings.MaxConcurrentStreams = 2

	br := bufio.NewReader(clientConn)
	bw := bufio.NewWriter(clientConn)
	conn := becomeAsClient(t, serverConn, ConnOpts{}, DefaultSettings(), peerSettings, nil, br, bw)

	assert.EqualValues(t, 2, conn.peerSettings.MaxConcurrentStreams)

	h1, err := conn.NewStream()
	require.NoError(t, err)
	assert.EqualValues(t, 1, h1.ID())

	h2, err := conn.NewStream()
	require.NoError(t, err)
	assert.EqualValues(t, 3, h2.ID())

	_, err = conn.NewStream()
	assert.ErrorIs(t, err, ErrTooManyStreams)
}

// TestBadPingLengthClosesWithFrameSizeError covers scenario 5: a PING
// whose declared length isn't exactly 8 is a connection error.
func TestBadPingLengthClosesWithFrameSizeError(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	br := bufio.NewReader(clientConn)
	bw := bufio.NewWriter(clientConn)
	conn := becomeAsServer(t, serverConn, ConnOpts{}, DefaultSettings(), DefaultSettings(), nil, br, bw)

	go func() {
		var header [9]byte
		wire.PutUint24(header[:3], 9) // one byte too many for PING
		header[3] = byte(FramePing)
		wire.PutUint32(header[5:], 0)
		bw.Write(header[:])
		bw.Write(make([]byte, 9))
		bw.Flush()
	}()

	fh, err := ReadFrameFrom(br)
	require.NoError(t, err)
	require.Equal(t, FrameGoAway, fh.Type())
	assert.Equal(t, ErrCodeFrameSize, fh.Body().(*GoAway).Code())

	conn.Wait()
}

// TestContinuationInterleaveClosesWithProtocolError covers scenario 6: a
// frame other than CONTINUATION arriving mid-header-block is a protocol
// error, not silently tolerated.
func TestContinuationInterleaveClosesWithProtocolError(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	br := bufio.NewReader(clientConn)
	bw := bufio.NewWriter(clientConn)
	conn := becomeAsServer(t, serverConn, ConnOpts{}, DefaultSettings(), DefaultSettings(), nil, br, bw)

	go func() {
		hfh := AcquireFrameHeader()
		h := AcquireFrame(FrameHeaders).(*Headers)
		h.SetHeaders([]byte{0x82}) // ":method: GET", a valid single HPACK byte
		h.SetEndHeaders(false)
		hfh.SetBody(h)
		hfh.SetStream(1)
		hfh.WriteTo(bw)

		dfh := AcquireFrameHeader()
		d := AcquireFrame(FrameData).(*Data)
		d.SetData([]byte("oops"))
		dfh.SetBody(d)
		dfh.SetStream(1)
		dfh.WriteTo(bw)
		bw.Flush()
	}()

	fh, err := ReadFrameFrom(br)
	require.NoError(t, err)
	require.Equal(t, FrameGoAway, fh.Type())
	assert.Equal(t, ErrCodeProtocol, fh.Body().(*GoAway).Code())

	conn.Wait()
}

// TestFlowControlledLargeBodyChunking covers scenario 3: a body larger
// than the peer's receive window is split across exactly as many DATA
// frames as the window and max-frame-size allow, resumes once credit is
// replenished, and sets END_STREAM only on the final frame.
func TestFlowControlledLargeBodyChunking(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	peerSettings := DefaultSettings()
	peerSettings.InitialWindowSize = 65535
	peerSettings.MaxFrameSize = 16384

	br := bufio.NewReader(clientConn)
	bw := bufio.NewWriter(clientConn)
	conn := becomeAsClient(t, serverConn, ConnOpts{}, DefaultSettings(), peerSettings, nil, br, bw)
	defer func() {
		// net.Pipe is unbuffered: close our end first so the GOAWAY that
		// Close flushes fails at once instead of waiting for a reader.
		clientConn.Close()
		conn.Close()
	}()

	h, err := conn.NewStream()
	require.NoError(t, err)
	require.EqualValues(t, 1, h.ID())
	hdrErr := make(chan error, 1)
	go func() { hdrErr <- h.SendHeaders(fields(":method", "POST", ":path", "/upload"), false) }()

	headersFH, err := ReadFrameFrom(br)
	require.NoError(t, err)
	require.Equal(t, FrameHeaders, headersFH.Type())
	require.NoError(t, <-hdrErr)

	body := make([]byte, 100000)
	go h.SendData(body, true)

	readDataBurst := func() (frames int, total int, lastEndStream bool) {
		for {
			fh, err := ReadFrameFrom(br)
			require.NoError(t, err)
			require.Equal(t, FrameData, fh.Type())
			d := fh.Body().(*Data)
			frames++
			total += d.Len()
			lastEndStream = d.EndStream()
			if total >= 65535 || lastEndStream {
				return
			}
		}
	}

	frames, total, _ := readDataBurst()
	assert.Equal(t, 4, frames, "ceil(65535/16384) frames")
	assert.Equal(t, 65535, total)

	// Replenish both windows exactly as much as was consumed so the
	// remaining 34,465 bytes can go out.
	for _, streamID := range []uint32{1, 0} {
		fh := AcquireFrameHeader()
		wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
		wu.SetIncrement(100000 - 65535)
		fh.SetBody(wu)
		fh.SetStream(streamID)
		_, err := fh.WriteTo(bw)
		require.NoError(t, err)
	}
	require.NoError(t, bw.Flush())

	frames, total, lastEndStream := readDataBurst()
	assert.Equal(t, 3, frames)
	assert.Equal(t, 100000-65535, total)
	assert.True(t, lastEndStream)
}
