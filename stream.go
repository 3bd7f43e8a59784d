package h2core

import "sync/atomic"

// protoState is a stream's RFC 7540 §5.1 protocol state. It is tracked
// independently of streamVariant (below), which only says whether the
// stream set still needs to remember the stream at all.
type protoState uint8

const (
	stateIdle protoState = iota
	stateReservedLocal
	stateReservedRemote
	stateOpen
	stateHalfClosedLocal
	stateHalfClosedRemote
	stateClosed
)

func (s protoState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateReservedLocal:
		return "reserved_local"
	case stateReservedRemote:
		return "reserved_remote"
	case stateOpen:
		return "open"
	case stateHalfClosedLocal:
		return "half_closed_local"
	case stateHalfClosedRemote:
		return "half_closed_remote"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// input is a stream-state-machine transition trigger (RFC 7540 §5.1).
type input uint8

const (
	inRecvHeaders input = iota
	inRecvData
	inRecvEndStream
	inRecvPushPromise
	inSendHeaders
	inSendTrailers
	inSendData
	inRecvReset
	inLocalReset
)

// streamVariant is a tagged-sum storage discipline: a stream the set
// has never heard of needs no entry at all
// (idle), one currently in flight needs full bookkeeping (active), and
// one that finished is remembered so duplicate/late frames can be
// rejected (closed). Closed entries are not evicted.
type streamVariant uint8

const (
	streamIdle streamVariant = iota
	streamActive
	streamClosed
)

// stream is one HTTP/2 stream's mutable state, always accessed through
// the StreamSet. Only the connection goroutine mutates proto/variant/
// windows by direct field access; sendWindow and recvWindow are atomics
// so the scheduler and the per-stream writer goroutine may read (and
// adjust, for sendWindow) them without a round trip through the
// connection goroutine.
type stream struct {
	id    uint32
	local bool // true if this endpoint opened it ("mine")

	proto   protoState
	variant streamVariant

	sendWindow int32 // atomic
	recvWindow int32 // atomic

	weight uint8
	parent uint32

	headersReceived bool
	headersSent     bool

	handler *streamHandler
	resp    *storedResponse

	wake chan struct{} // buffered 1; wakes a blocked sendData on new credit
}

func newStream(id uint32, local bool, initialSend, initialRecv int32) *stream {
	return &stream{
		id:         id,
		local:      local,
		proto:      stateIdle,
		variant:    streamActive,
		sendWindow: initialSend,
		recvWindow: initialRecv,
		weight:     16,
		resp:       &storedResponse{},
		wake:       make(chan struct{}, 1),
	}
}

// notifyWake wakes a writer blocked on send credit. Non-blocking: if a
// wake is already pending and unconsumed, a second one is redundant.
func (s *stream) notifyWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *stream) SendWindow() int32 { return atomic.LoadInt32(&s.sendWindow) }
func (s *stream) RecvWindow() int32 { return atomic.LoadInt32(&s.recvWindow) }

func (s *stream) addSendWindow(delta int32) int32 {
	return atomic.AddInt32(&s.sendWindow, delta)
}

func (s *stream) addRecvWindow(delta int32) int32 {
	return atomic.AddInt32(&s.recvWindow, delta)
}

// transition applies in to the stream's protocol state, returning a
// stream error if the input is illegal in the current state (RFC 7540
// §5.1's state diagram, read literally rather than its prose summary).
func (s *stream) transition(in input) error {
	switch s.proto {
	case stateIdle:
		switch in {
		case inRecvHeaders, inSendHeaders:
			s.proto = stateOpen
		case inRecvPushPromise:
			s.proto = stateReservedRemote
		case inLocalReset:
			s.proto = stateClosed
		default:
			return illegalTransition(s, in)
		}
	case stateReservedLocal:
		switch in {
		case inSendHeaders:
			s.proto = stateHalfClosedRemote
		case inRecvReset, inLocalReset:
			s.proto = stateClosed
		default:
			return illegalTransition(s, in)
		}
	case stateReservedRemote:
		switch in {
		case inRecvHeaders:
			s.proto = stateHalfClosedLocal
		case inRecvReset, inLocalReset:
			s.proto = stateClosed
		default:
			return illegalTransition(s, in)
		}
	case stateOpen:
		switch in {
		case inRecvEndStream:
			s.proto = stateHalfClosedRemote
		case inSendTrailers:
			s.proto = stateHalfClosedLocal
		case inRecvReset, inLocalReset:
			s.proto = stateClosed
		case inRecvHeaders, inRecvData, inSendData, inRecvPushPromise:
			// no transition
		default:
			return illegalTransition(s, in)
		}
	case stateHalfClosedLocal:
		switch in {
		case inRecvEndStream, inRecvReset, inLocalReset:
			s.proto = stateClosed
		case inRecvHeaders, inRecvData, inRecvPushPromise:
			// no transition
		default:
			return illegalTransition(s, in)
		}
	case stateHalfClosedRemote:
		switch in {
		case inSendTrailers, inRecvReset, inLocalReset:
			s.proto = stateClosed
		case inSendData, inSendHeaders:
			// no transition
		default:
			return illegalTransition(s, in)
		}
	case stateClosed:
		// RFC 7540 §5.1: a closed stream tolerates RST_STREAM/WINDOW_UPDATE/
		// PRIORITY for a while; everything else is a connection error. The
		// caller decides tolerance based on how recently it closed.
		return illegalTransition(s, in)
	}
	return nil
}

func illegalTransition(s *stream, in input) error {
	return NewResetStreamError(ErrCodeStreamClosed, "illegal transition on stream in state "+s.proto.String())
}

func (s *stream) isTerminal() bool {
	return s.proto == stateClosed
}
