package h2core

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/valyala/fastrand"
)

// run is the connection's single-owner event loop: it is
// the only goroutine that structurally mutates the StreamSet, the
// negotiated Settings pair, or the HPACK contexts. Everything else
// (the reader, per-stream writers) only ever reaches it through events
// or the write-serializing socket mutex.
func (c *Conn) run() {
	pingInterval := c.opts.pingInterval()
	var pingTicker *time.Ticker
	var pingC <-chan time.Time
	if pingInterval > 0 {
		pingTicker = time.NewTicker(pingInterval)
		pingC = pingTicker.C
		defer pingTicker.Stop()
	}

	var hibernateTimer *time.Timer
	var hibernateC <-chan time.Time
	if c.opts.HibernateAfter > 0 {
		hibernateTimer = time.NewTimer(c.opts.HibernateAfter)
		hibernateC = hibernateTimer.C
		defer hibernateTimer.Stop()
	}

	for {
		select {
		case fn := <-c.commands:
			fn()

		case ev := <-c.events:
			if hibernateTimer != nil {
				hibernateTimer.Reset(c.opts.HibernateAfter)
			}
			if ev.err != nil {
				c.closeWithError(ev.err, codeFor(ev.err))
				return
			}
			if err := c.handleFrame(ev.fh); err != nil {
				c.reportError(ev.fh.Stream(), err)
				if IsConnError(err) {
					c.closeWithError(err, codeFor(err))
					ReleaseFrameHeader(ev.fh)
					return
				}
			}
			ReleaseFrameHeader(ev.fh)

		case <-hibernateC:
			c.hibernate()

		case <-pingC:
			if !c.opts.DisablePingChecking && atomic.LoadInt32(&c.pingOutstanding) == 1 {
				c.closeWithError(errPingTimeout, ErrCodeNo)
				return
			}
			if atomic.LoadInt32(&c.settingsAckPending) == 1 {
				deadline := atomic.LoadInt64(&c.settingsAckDeadline)
				if time.Now().UnixNano() > deadline {
					c.closeWithError(errSettingsAckTimeout, ErrCodeSettingsTimeout)
					return
				}
			}
			for i := range c.pingData {
				c.pingData[i] = byte(fastrand.Uint32n(256))
			}
			atomic.StoreInt32(&c.pingOutstanding, 1)
			c.writePing(c.pingData[:], false)

		case <-c.closed:
			return
		}
	}
}

// hibernate runs after HibernateAfter has passed with no frame activity.
// When no header block is being reassembled it truncates the
// CONTINUATION-reassembly buffer to zero length. The buffer is a plain
// value on Conn, not drawn from a pool, so nothing is returned to one and
// its backing array is kept.
func (c *Conn) hibernate() {
	if !c.continuation.active {
		c.continuation.buf.Reset()
	}
}

var errPingTimeout = NewGoAwayError(ErrCodeNo, "ping not acknowledged in time")
var errSettingsAckTimeout = NewGoAwayError(ErrCodeSettingsTimeout, "settings not acknowledged in time")

func codeFor(err error) ErrorCode {
	var e Error
	if ok := asError(err, &e); ok {
		return e.Code
	}
	switch err {
	case io.EOF:
		return ErrCodeNo
	case ErrMissingBytes, ErrPayloadExceeds:
		return ErrCodeFrameSize
	}
	return ErrCodeInternal
}

func asError(err error, target *Error) bool {
	e, ok := err.(Error)
	if ok {
		*target = e
	}
	return ok
}

// handleFrame routes one inbound frame to the right connection- or
// stream-level handler.
func (c *Conn) handleFrame(fh *FrameHeader) error {
	if c.continuation.active && fh.Type() != FrameContinuation {
		return NewGoAwayError(ErrCodeProtocol, "frame interleaved with CONTINUATION sequence")
	}

	switch fh.Type() {
	case FrameSettings:
		return c.handleSettingsFrame(fh.Body().(*SettingsFrame))
	case FrameWindowUpdate:
		return c.handleWindowUpdate(fh)
	case FramePing:
		return c.handlePingFrame(fh.Body().(*Ping))
	case FrameGoAway:
		return c.handleGoAwayFrame(fh.Body().(*GoAway))
	case FrameHeaders:
		return c.handleHeadersFrame(fh)
	case FrameContinuation:
		return c.handleContinuationFrame(fh)
	case FramePushPromise:
		return c.handlePushPromiseFrame(fh)
	case FrameData:
		return c.handleDataFrame(fh)
	case FramePriority:
		// Parsed for protocol correctness, never acted on (Non-goal: no
		// priority-tree reordering).
		return nil
	case FrameResetStream:
		return c.handleRstStreamFrame(fh)
	}
	// Every FrameType this connection can decode is handled above;
	// anything else was already discarded by readFrom/readerLoop before
	// reaching here (RFC 7540 §4.1: unknown frame types are ignored).
	return nil
}

func (c *Conn) reportError(streamID uint32, err error) {
	var e Error
	if !asError(err, &e) {
		c.logger.Printf("h2core: stream=%d error: %s", streamID, err)
		return
	}
	if e.FrameType == FrameResetStream && streamID != 0 {
		c.writeReset(streamID, e.Code)
		if s, ok := c.streams.Get(streamID, false); ok {
			c.finishStream(s, e.Code)
		} else if s, ok := c.streams.Get(streamID, true); ok {
			c.finishStream(s, e.Code)
		}
	}
}

// --- SETTINGS -----------------------------------------------------------

func (c *Conn) handleSettingsFrame(sf *SettingsFrame) error {
	if sf.Ack() {
		if atomic.LoadInt32(&c.settingsAckPending) == 0 {
			return nil
		}
		atomic.StoreInt32(&c.settingsAckPending, 0)
		c.applyLocalSettings(c.pendingSettings)
		return nil
	}

	old := c.peerSettings
	c.peerSettings = sf.Settings
	// unspecified parameters retain their previous value (Settings.Decode
	// only overwrites fields present in the wire payload, but sf.Settings
	// here already started from the zero value, so merge forward).
	if sf.Settings.HeaderTableSize == 0 {
		c.peerSettings.HeaderTableSize = old.HeaderTableSize
	}
	if sf.Settings.MaxConcurrentStreams == 0 {
		c.peerSettings.MaxConcurrentStreams = old.MaxConcurrentStreams
	}
	if sf.Settings.InitialWindowSize == 0 {
		c.peerSettings.InitialWindowSize = old.InitialWindowSize
	}
	if sf.Settings.MaxFrameSize == 0 {
		c.peerSettings.MaxFrameSize = old.MaxFrameSize
	}

	if delta := int32(c.peerSettings.InitialWindowSize) - int32(old.InitialWindowSize); delta != 0 {
		c.streams.UpdateAllSendWindows(delta)
	}
	c.streams.UpdateMyMaxActive(c.peerSettings.MaxConcurrentStreams)
	// The encoder is shared with sendHeaderBlock, which uses it under writeMu.
	c.writeMu.Lock()
	c.hpack.SetMaxEncoderTableSize(c.peerSettings.HeaderTableSize)
	c.writeMu.Unlock()

	return c.writeSettingsAck()
}

// applyLocalSettings installs s as our negotiated SETTINGS once the peer
// has ACKed them. Per RFC 7540 §6.5.3 a sender must not assume its own
// SETTINGS have taken effect before that ACK arrives, so every local
// consequence of a SETTINGS change (not just the peer-facing ones from
// handleSettingsFrame's non-ack branch) is deferred to here.
func (c *Conn) applyLocalSettings(s Settings) {
	old := c.localSettings
	c.localSettings = s
	c.streams.UpdateTheirMaxActive(s.MaxConcurrentStreams)
	c.hpack.SetMaxTableSize(s.HeaderTableSize)
	if delta := int32(s.InitialWindowSize) - int32(old.InitialWindowSize); delta != 0 {
		c.streams.UpdateAllRecvWindows(delta)
	}
}

func (c *Conn) writeSettings(s Settings, ack bool) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	fh := AcquireFrameHeader()
	defer ReleaseFrameHeader(fh)
	sf := AcquireFrame(FrameSettings).(*SettingsFrame)
	sf.SetAck(ack)
	sf.Settings = s
	fh.SetBody(sf)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if !ack {
		atomic.StoreInt64(&c.settingsAckDeadline, time.Now().Add(DefaultSettingsTimeout).UnixNano())
		atomic.StoreInt32(&c.settingsAckPending, 1)
	}
	_, err := fh.WriteTo(c.bw)
	if err == nil {
		err = c.bw.Flush()
	}
	return err
}

func (c *Conn) writeSettingsAck() error {
	return c.writeSettings(Settings{}, true)
}

// --- WINDOW_UPDATE --------------------------------------------------------

func (c *Conn) handleWindowUpdate(fh *FrameHeader) error {
	wu := fh.Body().(*WindowUpdate)
	if fh.Stream() == 0 {
		if int64(atomic.LoadInt32(&c.peerWindow))+int64(wu.Increment()) > MaxWindowSize {
			return NewGoAwayError(ErrCodeFlowControl, "connection window overflow")
		}
		atomic.AddInt32(&c.peerWindow, wu.Increment())
		c.wakeStreams(sweepAll())
		return nil
	}

	id := fh.Stream()
	s, ok := c.streams.Get(id, true)
	if !ok {
		s, ok = c.streams.Get(id, false)
	}
	if !ok {
		if c.streams.WasClosed(id, true) || c.streams.WasClosed(id, false) {
			return NewResetStreamError(ErrCodeStreamClosed, "WINDOW_UPDATE for closed stream")
		}
		return NewGoAwayError(ErrCodeProtocol, "WINDOW_UPDATE for idle stream")
	}
	if int64(s.SendWindow())+int64(wu.Increment()) > MaxWindowSize {
		return NewResetStreamError(ErrCodeFlowControl, "stream window overflow")
	}
	s.addSendWindow(wu.Increment())
	c.wakeStreams(sweepOne(id))
	return nil
}

func (c *Conn) writeWindowUpdate(streamID uint32, increment int32) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	fh := AcquireFrameHeader()
	defer ReleaseFrameHeader(fh)
	wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
	wu.SetIncrement(increment)
	fh.SetBody(wu)
	fh.SetStream(streamID)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := fh.WriteTo(c.bw)
	if err == nil {
		err = c.bw.Flush()
	}
	return err
}

// --- PING -----------------------------------------------------------------

func (c *Conn) handlePingFrame(p *Ping) error {
	if p.Ack() {
		atomic.StoreInt32(&c.pingOutstanding, 0)
		if c.opts.OnPong != nil {
			var data [8]byte
			copy(data[:], p.Data())
			c.opts.OnPong(data)
		}
		return nil
	}
	return c.writePing(p.Data(), true)
}

func (c *Conn) writePing(data []byte, ack bool) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	fh := AcquireFrameHeader()
	defer ReleaseFrameHeader(fh)
	p := AcquireFrame(FramePing).(*Ping)
	p.SetAck(ack)
	p.SetData(data)
	fh.SetBody(p)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := fh.WriteTo(c.bw)
	if err == nil {
		err = c.bw.Flush()
	}
	return err
}

// SendPing issues an unsolicited PING with a random payload, for
// embedder-driven round-trip measurement.
func (c *Conn) SendPing() error {
	var data [8]byte
	for i := range data {
		data[i] = byte(fastrand.Uint32n(256))
	}
	return c.writePing(data[:], false)
}

// --- GOAWAY -----------------------------------------------------------------

func (c *Conn) handleGoAwayFrame(ga *GoAway) error {
	c.closeWithError(NewGoAwayError(ga.Code(), "peer sent GOAWAY"), ga.Code())
	return nil
}

func (c *Conn) writeGoAway(code ErrorCode, cause error) error {
	fh := AcquireFrameHeader()
	defer ReleaseFrameHeader(fh)
	ga := AcquireFrame(FrameGoAway).(*GoAway)
	ga.SetLastStreamID(c.streams.HighestTheirID())
	ga.SetCode(code)
	if cause != nil {
		ga.SetDebugData([]byte(cause.Error()))
	}
	fh.SetBody(ga)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := fh.WriteTo(c.bw)
	return err
}

// --- RST_STREAM -------------------------------------------------------------

func (c *Conn) handleRstStreamFrame(fh *FrameHeader) error {
	rst := fh.Body().(*RstStream)
	s, ok := c.streams.Get(fh.Stream(), true)
	if !ok {
		s, ok = c.streams.Get(fh.Stream(), false)
	}
	if !ok {
		return nil
	}
	if err := s.transition(inRecvReset); err != nil {
		return err
	}
	c.finishStream(s, rst.Code())
	return nil
}

func (c *Conn) writeReset(streamID uint32, code ErrorCode) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	fh := AcquireFrameHeader()
	defer ReleaseFrameHeader(fh)
	rst := AcquireFrame(FrameResetStream).(*RstStream)
	rst.SetCode(code)
	fh.SetBody(rst)
	fh.SetStream(streamID)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := fh.WriteTo(c.bw)
	if err == nil {
		err = c.bw.Flush()
	}
	return err
}
