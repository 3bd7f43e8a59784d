package h2core

// readerLoop is the connection's reader task: the only goroutine that
// calls ReadFrameFromWithSize. It validates wire-level framing (the
// first-frame-must-be-SETTINGS rule, frame size against our own
// negotiated maximum) and otherwise just ships frames to the run loop,
// which is the sole owner of all higher-level connection state.
func (c *Conn) readerLoop() {
	first := true
	for {
		maxLen := c.localSettings.MaxFrameSize
		fh, err := ReadFrameFromWithSize(c.br, maxLen)
		if err == ErrUnknownFrameType {
			// RFC 7540 §4.1: an unrecognized frame type is ignored once
			// its payload has been discarded, not a connection error —
			// this is what keeps the frame format extension-friendly.
			continue
		}
		if err != nil {
			c.events <- frameEvent{err: err}
			return
		}

		if first {
			first = false
			if fh.Type() != FrameSettings {
				c.events <- frameEvent{err: NewGoAwayError(ErrCodeProtocol, "first frame must be SETTINGS")}
				ReleaseFrameHeader(fh)
				return
			}
		}

		c.events <- frameEvent{fh: fh}
	}
}
