package h2core

// sendCredit computes how many DATA bytes the scheduler may release right
// now for a stream whose connection-level send window is connWindow and
// whose own send window is s.SendWindow(): the RFC 7540 §6.9.1 rule that
// an endpoint's effective credit is the minimum of both, never negative.
func sendCredit(connWindow, streamWindow int32) int32 {
	m := connWindow
	if streamWindow < m {
		m = streamWindow
	}
	if m < 0 {
		return 0
	}
	return m
}

// chunkSize returns how many bytes of a pending write of size remaining
// may go out in the next DATA frame, bounded by the negotiated
// SETTINGS_MAX_FRAME_SIZE and by the flow-control credit available.
func chunkSize(remaining int, maxFrame uint32, credit int32) int {
	n := remaining
	if uint32(n) > maxFrame {
		n = int(maxFrame)
	}
	if int32(n) > credit {
		n = int(credit)
	}
	if n < 0 {
		n = 0
	}
	return n
}

// sweepTarget selects which streams a "send what we can" pass should
// consider: either every active stream (all, from sweepAll) or exactly
// one (streamID, from sweepOne). Tie-breaking among multiple ready streams is by
// ascending stream id — this package does not implement priority-tree
// reordering.
type sweepTarget struct {
	all      bool
	streamID uint32
}

func sweepAll() sweepTarget          { return sweepTarget{all: true} }
func sweepOne(id uint32) sweepTarget { return sweepTarget{streamID: id} }

func (t sweepTarget) matches(id uint32) bool {
	return t.all || t.streamID == id
}

// wakeStreams implements send_what_we_can: it wakes every stream
// matching target so its writer goroutine, if blocked in sendData on
// exhausted credit, rechecks now that a WINDOW_UPDATE has arrived.
// Streams are visited peer-opened-then-ours, ascending id within each
// side, matching the order a priority-blind sender should service them.
func (c *Conn) wakeStreams(target sweepTarget) {
	c.streams.EachInSendOrder(func(s *stream) {
		if target.matches(s.id) {
			s.notifyWake()
		}
	})
}
