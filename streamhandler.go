package h2core

// streamEventKind tags what a streamHandler's input channel carries.
type streamEventKind uint8

const (
	evHeaders streamEventKind = iota
	evData
	evTrailers
	evReset
)

type streamEvent struct {
	kind      streamEventKind
	headers   []HeaderField
	data      []byte
	endStream bool
	code      ErrorCode
}

// streamHandler runs as an independent task: one goroutine per active
// stream, fed through a bounded channel so application callbacks run off
// the connection goroutine. When a stream's channel is full, post blocks
// the connection goroutine, which holds up frame delivery for every
// stream until that callback catches up.
type streamHandler struct {
	conn   *Conn
	s      *stream
	handle *StreamHandle
	in     chan streamEvent
}

func (c *Conn) startStreamHandler(s *stream) *streamHandler {
	h := &streamHandler{
		conn: c,
		s:    s,
		in:   make(chan streamEvent, 16),
	}
	h.handle = &StreamHandle{conn: c, s: s, h: h}
	s.handler = h
	go h.loop()
	return h
}

func (h *streamHandler) loop() {
	for ev := range h.in {
		if h.conn.cb == nil {
			continue
		}
		switch ev.kind {
		case evHeaders:
			h.conn.cb.OnHeaders(h.handle, ev.headers, ev.endStream)
		case evData:
			h.conn.cb.OnData(h.handle, ev.data, ev.endStream)
		case evTrailers:
			h.conn.cb.OnTrailers(h.handle, ev.headers)
		case evReset:
			h.conn.cb.OnReset(h.handle, ev.code)
		}
	}
}

func (h *streamHandler) post(ev streamEvent) {
	select {
	case h.in <- ev:
	case <-h.conn.closed:
	}
}

func (h *streamHandler) stop() {
	close(h.in)
}

// StreamHandle is the embedder-facing view of one stream: identity plus
// the outbound operations (SendHeaders/SendData/SendTrailers/Reset).
type StreamHandle struct {
	conn *Conn
	s    *stream
	h    *streamHandler
}

func (sh *StreamHandle) ID() uint32 { return sh.s.id }

// SendHeaders encodes fields via the connection's HPACK encoder and
// writes one or more HEADERS/CONTINUATION frames, splitting at the
// peer's negotiated SETTINGS_MAX_FRAME_SIZE.
func (sh *StreamHandle) SendHeaders(fields []HeaderField, endStream bool) error {
	return sh.conn.sendHeaderBlock(sh.s, fields, endStream, false, 0)
}

// SendTrailers sends a second, headers-only block terminating the
// stream's send side.
func (sh *StreamHandle) SendTrailers(fields []HeaderField) error {
	var transitionErr error
	if err := sh.conn.doSync(func() {
		transitionErr = sh.s.transition(inSendTrailers)
	}); err != nil {
		return err
	}
	if transitionErr != nil {
		return transitionErr
	}
	return sh.conn.sendHeaderBlock(sh.s, fields, true, false, 0)
}

// SendData writes p as one or more DATA frames, chunked to respect both
// the connection and stream send windows and the peer's max frame size.
// It blocks until all of p has been released to the flow-control
// scheduler or the connection closes.
func (sh *StreamHandle) SendData(p []byte, endStream bool) error {
	return sh.conn.sendData(sh.s, p, endStream)
}

// Reset sends RST_STREAM with code and marks the stream closed locally.
func (sh *StreamHandle) Reset(code ErrorCode) error {
	var transitionErr error
	if err := sh.conn.doSync(func() {
		transitionErr = sh.s.transition(inLocalReset)
		if transitionErr == nil {
			sh.conn.finishStream(sh.s, code)
		}
	}); err != nil {
		return err
	}
	if transitionErr != nil {
		return transitionErr
	}
	return sh.conn.writeReset(sh.s.id, code)
}
