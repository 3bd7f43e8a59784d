package h2core

func (c *Conn) getOrRejectStream(id uint32) (*stream, error) {
	if s, ok := c.streams.Get(id, false); ok {
		return s, nil
	}
	if s, ok := c.streams.Get(id, true); ok {
		return s, nil
	}
	if c.streams.WasClosed(id, false) || c.streams.WasClosed(id, true) {
		return nil, NewResetStreamError(ErrCodeStreamClosed, "frame for closed stream")
	}
	return nil, nil
}

func (c *Conn) handleHeadersFrame(fh *FrameHeader) error {
	h := fh.Body().(*Headers)
	id := fh.Stream()
	if id == 0 {
		return NewGoAwayError(ErrCodeProtocol, "HEADERS on stream 0")
	}

	s, err := c.getOrRejectStream(id)
	if err != nil {
		return err
	}
	isNew := s == nil
	if isNew {
		s, err = c.streams.NewRemoteStream(id, int32(c.peerSettings.InitialWindowSize), int32(c.localSettings.InitialWindowSize))
		if err != nil {
			return err
		}
		c.startStreamHandler(s)
	}

	if !h.EndHeaders() {
		c.continuation = continuationState{
			active:    true,
			streamID:  id,
			endStream: h.EndStream(),
		}
		c.continuation.buf.Write(h.Headers())
		return nil
	}

	return c.deliverHeaderBlock(s, h.Headers(), h.EndStream(), false, 0)
}

func (c *Conn) handleContinuationFrame(fh *FrameHeader) error {
	cont := fh.Body().(*Continuation)
	if !c.continuation.active || c.continuation.streamID != fh.Stream() {
		return NewGoAwayError(ErrCodeProtocol, "CONTINUATION without matching HEADERS")
	}

	c.continuation.buf.Write(cont.Headers())

	if !cont.EndHeaders() {
		return nil
	}

	streamID := c.continuation.streamID
	endStream := c.continuation.endStream
	isPush := c.continuation.isPush
	promisedID := c.continuation.promisedID
	block := append([]byte(nil), c.continuation.buf.B...)
	c.continuation = continuationState{}

	if isPush {
		return c.deliverPushPromise(streamID, promisedID, block)
	}

	s, err := c.getOrRejectStream(streamID)
	if err != nil {
		return err
	}
	if s == nil {
		return NewGoAwayError(ErrCodeProtocol, "CONTINUATION for unknown stream")
	}
	return c.deliverHeaderBlock(s, block, endStream, false, 0)
}

func (c *Conn) deliverHeaderBlock(s *stream, block []byte, endStream, push bool, promisedID uint32) error {
	decoded, err := c.hpack.Decode(block)
	if err != nil {
		return err
	}
	// Decode reuses its backing slice on the next call, but the fields
	// are about to cross into a separate stream-handler goroutine, so
	// they need a copy of their own.
	fields := append([]HeaderField(nil), decoded...)

	if !s.headersReceived {
		if err := s.transition(inRecvHeaders); err != nil {
			return err
		}
		s.headersReceived = true
		if !c.opts.GarbageOnEnd {
			s.resp.setHeaders(fields)
		}
		if s.handler != nil {
			s.handler.post(streamEvent{kind: evHeaders, headers: fields, endStream: endStream})
		}
	} else {
		if !c.opts.GarbageOnEnd {
			s.resp.setTrailers(fields)
		}
		if s.handler != nil {
			s.handler.post(streamEvent{kind: evTrailers, headers: fields})
		}
	}

	if endStream {
		if err := s.transition(inRecvEndStream); err != nil {
			return err
		}
		if s.isTerminal() {
			c.finishStream(s, ErrCodeNo)
		}
	}

	return nil
}

func (c *Conn) handlePushPromiseFrame(fh *FrameHeader) error {
	pp := fh.Body().(*PushPromise)
	if !c.isClient {
		return NewGoAwayError(ErrCodeProtocol, "server received PUSH_PROMISE")
	}

	if !pp.EndHeaders() {
		c.continuation = continuationState{
			active:     true,
			streamID:   fh.Stream(),
			isPush:     true,
			promisedID: pp.PromisedStream(),
		}
		c.continuation.buf.Write(pp.Headers())
		return nil
	}

	return c.deliverPushPromise(fh.Stream(), pp.PromisedStream(), pp.Headers())
}

func (c *Conn) deliverPushPromise(associatedID, promisedID uint32, block []byte) error {
	decoded, err := c.hpack.Decode(block)
	if err != nil {
		return err
	}
	fields := append([]HeaderField(nil), decoded...)
	s, err := c.streams.NewRemoteStream(promisedID, int32(c.peerSettings.InitialWindowSize), int32(c.localSettings.InitialWindowSize))
	if err != nil {
		return err
	}
	s.proto = stateReservedRemote
	s.headersReceived = true
	c.startStreamHandler(s)
	s.handler.post(streamEvent{kind: evHeaders, headers: fields, endStream: false})
	return nil
}

// finishStream marks s closed in the stream set and tells its handler
// goroutine (which then stops). The closed entry stays in the set so
// late frames for it can be recognized; nothing evicts it.
func (c *Conn) finishStream(s *stream, code ErrorCode) {
	if s.variant != streamActive {
		return
	}
	s.resp.finish(c.opts.GarbageOnEnd)
	c.streams.Close(s)
	if s.handler != nil {
		if code != ErrCodeNo {
			s.handler.post(streamEvent{kind: evReset, code: code})
		}
		s.handler.stop()
	}
}
