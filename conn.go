package h2core

import (
	"bufio"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"
)

// connState is the connection's lifecycle state machine: listen is
// only meaningful for a not-yet-accepted server connection, handshake
// covers the preface/initial-SETTINGS exchange, connected is steady
// state, continuation is a sub-state of connected entered while
// reassembling a HEADERS/CONTINUATION run, and closing covers everything
// after a GOAWAY has been sent or received.
type connState int32

const (
	stateListen connState = iota
	stateHandshake
	stateConnected
	stateContinuation
	stateClosing
)

// StreamCallback is the application's hook into the connection. Every
// method is invoked from the per-stream handler goroutine for the
// stream it concerns, so implementations do not need to worry about
// concurrent delivery for a single stream, but must expect concurrent
// calls across different streams on the same connection.
type StreamCallback interface {
	OnHeaders(s *StreamHandle, headers []HeaderField, endStream bool)
	OnData(s *StreamHandle, data []byte, endStream bool)
	OnTrailers(s *StreamHandle, trailers []HeaderField)
	OnReset(s *StreamHandle, code ErrorCode)
}

// Conn is one HTTP/2 connection: the frame codec, stream set, HPACK
// contexts, flow-control windows, and the goroutines that drive them.
//
// A single goroutine (run) owns the StreamSet and all connection-level
// protocol state outright; the reader goroutine and any
// per-stream writer only ever reach the connection through the events
// channel or through the writeMu-guarded socket writer.
type Conn struct {
	c  net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	writeMu sync.Mutex

	isClient bool
	opts     ConnOpts
	logger   Logger
	cb       StreamCallback

	state int32 // connState, atomic

	streams *StreamSet
	hpack   *HPACK

	localSettings   Settings
	peerSettings    Settings
	pendingSettings Settings // our settings awaiting the peer's ACK; see handleSettingsFrame

	localWindow int32 // atomic; our connection-level receive window
	peerWindow  int32 // atomic; our connection-level send window

	settingsAckPending  int32 // atomic bool
	settingsAckDeadline int64 // atomic UnixNano; valid only while settingsAckPending == 1

	pingOutstanding int32 // atomic bool
	pingData        [8]byte

	continuation continuationState

	events   chan frameEvent
	commands chan func()

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// continuationState buffers a HEADERS (or PUSH_PROMISE) block that spans
// more than one frame, enforcing that nothing but CONTINUATION frames on
// the same stream may appear until END_HEADERS.
type continuationState struct {
	active   bool
	streamID uint32
	buf      bytebufferpool.ByteBuffer
	endStream bool
	isPush    bool
	promisedID uint32
}

type frameEvent struct {
	fh  *FrameHeader
	err error
}

// Dial opens a client connection to addr and performs the HTTP/2
// handshake (client preface plus initial SETTINGS exchange).
func Dial(addr string, tlsConfig *tls.Config, opts ConnOpts, settings Settings) (*Conn, error) {
	dialer := &net.Dialer{Timeout: opts.connectTimeout()}

	tc, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := applySocketOptions(tc, opts.SocketOptions); err != nil {
		tc.Close()
		return nil, err
	}
	if err := applyTCPUserTimeout(tc, opts.TCPUserTimeout); err != nil {
		tc.Close()
		return nil, err
	}

	var c net.Conn = tc
	if tlsConfig != nil {
		cfg := tlsConfig.Clone()
		cfg.NextProtos = []string{ALPNProto}
		tlsConn := tls.Client(tc, cfg)
		if err := tlsConn.Handshake(); err != nil {
			tc.Close()
			return nil, err
		}
		c = tlsConn
	}
	return Become(c, true, opts, settings, nil)
}

// Serve accepts connections on ln and runs each through Become with cb as
// the application callback, blocking until ln.Accept fails.
func Serve(ln net.Listener, opts ConnOpts, settings Settings, cb StreamCallback) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		go func() {
			if err := applySocketOptions(c, opts.SocketOptions); err != nil {
				loggerOrDefault(opts.Logger).Printf("h2core: socket options failed: %s", err)
				c.Close()
				return
			}
			if err := applyTCPUserTimeout(c, opts.TCPUserTimeout); err != nil {
				loggerOrDefault(opts.Logger).Printf("h2core: tcp user timeout failed: %s", err)
				c.Close()
				return
			}
			conn, err := Become(c, false, opts, settings, cb)
			if err != nil {
				loggerOrDefault(opts.Logger).Printf("h2core: handshake failed: %s", err)
				return
			}
			conn.Wait()
		}()
	}
}

// Become wraps an already-dialed/accepted net.Conn (post-ALPN, or
// post-Upgrade) as an HTTP/2 connection, performs the handshake, and
// starts the reader and event-loop goroutines. isClient selects which
// side of the preface/SETTINGS exchange to drive.
func Become(c net.Conn, isClient bool, opts ConnOpts, settings Settings, cb StreamCallback) (*Conn, error) {
	localStart, remoteStart := uint32(2), uint32(1)
	if isClient {
		localStart, remoteStart = uint32(1), uint32(2)
	}

	if settings.MaxConcurrentStreams == 0 {
		settings = DefaultSettings()
	}

	conn := &Conn{
		c:             c,
		br:            bufio.NewReaderSize(c, 1<<16),
		bw:            bufio.NewWriterSize(c, 1<<16),
		isClient:      isClient,
		opts:          opts,
		logger:        loggerOrDefault(opts.Logger),
		cb:            cb,
		streams:       NewStreamSet(localStart, remoteStart),
		hpack:         NewHPACK(DefaultHeaderTableSize),
		localSettings:   settings,
		peerSettings:    DefaultSettings(),
		pendingSettings: settings,
		localWindow:   int32(DefaultInitialWindowSize),
		peerWindow:    int32(DefaultInitialWindowSize),
		events:        make(chan frameEvent, 64),
		commands:      make(chan func()),
		closed:        make(chan struct{}),
	}
	conn.streams.UpdateTheirMaxActive(settings.MaxConcurrentStreams)

	atomic.StoreInt32(&conn.state, int32(stateHandshake))

	if err := conn.handshake(); err != nil {
		c.Close()
		return nil, err
	}

	atomic.StoreInt32(&conn.state, int32(stateConnected))

	go conn.readerLoop()
	go conn.run()

	return conn, nil
}

// handshake exchanges the connection preface and each side's initial
// SETTINGS frame, per RFC 7540 §3.5. It does not wait for the SETTINGS
// ACK — that is tracked by the run loop's settings-ack timeout instead.
func (c *Conn) handshake() error {
	c.c.SetDeadline(time.Now().Add(DefaultHandshakeTimeout))
	defer c.c.SetDeadline(time.Time{})

	if c.isClient {
		if _, err := c.bw.Write(ClientPreface); err != nil {
			return err
		}
	} else {
		buf := make([]byte, len(ClientPreface))
		if _, err := readFull(c.br, buf); err != nil {
			return err
		}
		if string(buf) != string(ClientPreface) {
			return ErrBadPreface
		}
	}

	if err := c.writeSettings(c.localSettings, false); err != nil {
		return err
	}
	return c.bw.Flush()
}

func readFull(br *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := br.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Wait blocks until the connection's run loop has exited.
func (c *Conn) Wait() {
	<-c.closed
}

// Closed reports whether the connection has finished shutting down.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Err returns the error that caused the connection to close, or nil if
// it either is still open or closed cleanly via Close/Stop. Only
// meaningful after Closed reports true or Wait has returned.
func (c *Conn) Err() error {
	return c.closeErr
}

// Close sends a GOAWAY with NO_ERROR naming the highest stream id already
// processed, flushes it, and closes the socket right away; it does not
// wait for outstanding streams to finish.
func (c *Conn) Close() error {
	return c.closeWithError(nil, ErrCodeNo)
}

func (c *Conn) closeWithError(err error, code ErrorCode) error {
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.state, int32(stateClosing))
		c.writeGoAway(code, err)
		c.bw.Flush()
		c.closeErr = err
		c.c.Close()
		close(c.closed)
		if c.opts.OnDisconnect != nil {
			c.opts.OnDisconnect(err)
		}
	})
	return nil
}

// CanOpenStream reports whether this endpoint may currently open another
// stream without exceeding the peer's MAX_CONCURRENT_STREAMS.
func (c *Conn) CanOpenStream() bool {
	return c.streams.ActiveCount(true) < int32(atomic.LoadUint32(&c.streams.mine.maxActive))
}

var errWriterClosed = errors.New("h2core: write on closed connection")

// checkOpen is consulted by every outbound frame writer before it takes
// writeMu, so a write racing a shutdown fails fast instead of blocking on
// a socket that closeWithError is about to tear down.
func (c *Conn) checkOpen() error {
	if c.Closed() {
		return errWriterClosed
	}
	return nil
}

// doSync runs fn on the run loop's goroutine and waits for it to finish,
// letting embedder-facing setters touch StreamSet/Settings/HPACK state
// without racing the frame-handling path that also owns them.
func (c *Conn) doSync(fn func()) error {
	done := make(chan struct{})
	select {
	case c.commands <- func() { fn(); close(done) }:
	case <-c.closed:
		return errWriterClosed
	}
	select {
	case <-done:
		return nil
	case <-c.closed:
		return errWriterClosed
	}
}
