package h2core

import (
	"sync/atomic"
)

// handleDataFrame applies dual-level flow-control bookkeeping and
// delivers the payload to the stream's handler goroutine,
// auto-replenishing both windows once they drop under half their
// negotiated size, unless the embedder opted out via ClientFlowControl.
func (c *Conn) handleDataFrame(fh *FrameHeader) error {
	d := fh.Body().(*Data)
	id := fh.Stream()
	if id == 0 {
		return NewGoAwayError(ErrCodeProtocol, "DATA on stream 0")
	}

	n := int32(fh.Len())

	nw := atomic.AddInt32(&c.localWindow, -n)
	if nw < 0 {
		return NewGoAwayError(ErrCodeFlowControl, "connection recv window exceeded")
	}

	s, err := c.getOrRejectStream(id)
	if err != nil {
		return err
	}
	if s == nil {
		return NewGoAwayError(ErrCodeProtocol, "DATA for unknown stream")
	}

	if sw := s.addRecvWindow(-n); sw < 0 {
		return NewResetStreamError(ErrCodeFlowControl, "stream recv window exceeded")
	}

	if c.opts.clientFlowControl() {
		if nw < int32(DefaultInitialWindowSize)/2 {
			inc := int32(DefaultInitialWindowSize) - nw
			atomic.AddInt32(&c.localWindow, inc)
			c.writeWindowUpdate(0, inc)
		}
		if sw := s.RecvWindow(); sw < int32(c.localSettings.InitialWindowSize)/2 {
			inc := int32(c.localSettings.InitialWindowSize) - sw
			s.addRecvWindow(inc)
			c.writeWindowUpdate(id, inc)
		}
	}

	if !c.opts.GarbageOnEnd {
		s.resp.appendBody(d.Data())
	}
	if s.handler != nil {
		s.handler.post(streamEvent{kind: evData, data: append([]byte(nil), d.Data()...), endStream: d.EndStream()})
	}

	if d.EndStream() {
		if err := s.transition(inRecvEndStream); err != nil {
			return err
		}
		if s.isTerminal() {
			c.finishStream(s, ErrCodeNo)
		}
	}

	return nil
}

// sendHeaderBlock encodes fields and writes one HEADERS frame followed by
// as many CONTINUATION frames as needed to stay within the peer's
// negotiated SETTINGS_MAX_FRAME_SIZE — the reassembly discipline applied
// in reverse, on the sending side.
func (c *Conn) sendHeaderBlock(s *stream, fields []HeaderField, endStream, push bool, promisedID uint32) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	maxFrame := c.peerSettings.MaxFrameSize
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrameSize
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// Encoding under writeMu keeps the HPACK encoder's state changes in the
	// same order as the header blocks reach the wire.
	block := c.hpack.Encode(nil, fields)

	first := block
	var rest []byte
	if uint32(len(block)) > maxFrame {
		first = block[:maxFrame]
		rest = block[maxFrame:]
	}

	fh := AcquireFrameHeader()
	if push {
		ppFr := AcquireFrame(FramePushPromise).(*PushPromise)
		ppFr.SetPromisedStream(promisedID)
		ppFr.SetHeaders(first)
		ppFr.SetEndHeaders(rest == nil)
		fh.SetBody(ppFr)
	} else {
		hFr := AcquireFrame(FrameHeaders).(*Headers)
		hFr.SetHeaders(first)
		hFr.SetEndStream(endStream)
		hFr.SetEndHeaders(rest == nil)
		fh.SetBody(hFr)
	}
	fh.SetStream(s.id)
	_, err := fh.WriteTo(c.bw)
	ReleaseFrameHeader(fh)
	if err != nil {
		return err
	}

	for rest != nil {
		chunk := rest
		if uint32(len(chunk)) > maxFrame {
			chunk = rest[:maxFrame]
			rest = rest[maxFrame:]
		} else {
			rest = nil
		}
		cfh := AcquireFrameHeader()
		cFr := AcquireFrame(FrameContinuation).(*Continuation)
		cFr.SetHeaders(chunk)
		cFr.SetEndHeaders(rest == nil)
		cfh.SetBody(cFr)
		cfh.SetStream(s.id)
		_, err = cfh.WriteTo(c.bw)
		ReleaseFrameHeader(cfh)
		if err != nil {
			return err
		}
	}

	if !push {
		s.headersSent = true
	}
	return c.bw.Flush()
}

// sendData writes p in SETTINGS_MAX_FRAME_SIZE-and-flow-control-sized
// chunks. When no credit is available it blocks on the stream's wake
// channel until a WINDOW_UPDATE (connection- or stream-level) arrives,
// rather than polling for it.
func (c *Conn) sendData(s *stream, p []byte, endStream bool) error {
	if len(p) == 0 {
		if endStream {
			return c.writeDataFrame(s.id, nil, true)
		}
		return nil
	}

	for len(p) > 0 {
		maxFrame := c.peerSettings.MaxFrameSize
		if maxFrame == 0 {
			maxFrame = DefaultMaxFrameSize
		}

		credit := sendCredit(atomic.LoadInt32(&c.peerWindow), s.SendWindow())
		if credit <= 0 {
			select {
			case <-s.wake:
			case <-c.closed:
				return ErrConnClosed
			}
			continue
		}

		n := chunkSize(len(p), maxFrame, credit)
		if n == 0 {
			continue
		}
		chunk := p[:n]
		p = p[n:]

		atomic.AddInt32(&c.peerWindow, -int32(n))
		s.addSendWindow(-int32(n))

		if err := c.writeDataFrame(s.id, chunk, endStream && len(p) == 0); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) writeDataFrame(streamID uint32, chunk []byte, endStream bool) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	fh := AcquireFrameHeader()
	defer ReleaseFrameHeader(fh)
	d := AcquireFrame(FrameData).(*Data)
	d.SetData(chunk)
	d.SetEndStream(endStream)
	fh.SetBody(d)
	fh.SetStream(streamID)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := fh.WriteTo(c.bw)
	if err == nil {
		err = c.bw.Flush()
	}
	return err
}
