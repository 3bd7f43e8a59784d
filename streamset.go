package h2core

import (
	"sort"
	"sync/atomic"
)

// partition is one side ("mine" or "theirs") of the stream set: the
// streams this endpoint opened, or the streams the peer opened. Each
// side tracks its own id allocator and concurrency ceiling independently,
// per RFC 7540 §5.1.1.
type partition struct {
	streams map[uint32]*stream

	nextID    uint32 // atomic; next id this side may allocate (mine only)
	highestID uint32 // atomic; largest id ever accepted on this side (theirs only)
	maxActive uint32 // atomic; SETTINGS_MAX_CONCURRENT_STREAMS ceiling
	active    int32  // atomic; streams currently in streamActive
}

func newPartition(startID uint32) *partition {
	return &partition{
		streams:   make(map[uint32]*stream),
		nextID:    startID,
		maxActive: DefaultMaxConcurrent,
	}
}

// StreamSet is the connection's single registry of streams, owned
// exclusively by the connection's event-loop goroutine for any structural
// mutation (RFC 7540 §5.1's "mine"/"theirs" split plus the idle/active/
// closed storage discipline from the data model). Counters are atomics so
// other goroutines may read them without messaging the owner.
type StreamSet struct {
	mine   *partition // streams this endpoint initiated (odd ids if client... server uses even)
	theirs *partition

	theirsParity uint32 // id%2 every peer-initiated stream must match, RFC 7540 §5.1.1
}

// NewStreamSet builds an empty set. localStartID is the first stream id
// this endpoint will allocate: 1 for clients (odd ids), 2 for servers
// that push (even ids); remoteStartID is the smallest id the peer may
// legally open next.
func NewStreamSet(localStartID, remoteStartID uint32) *StreamSet {
	return &StreamSet{
		mine:         newPartition(localStartID),
		theirs:       newPartition(remoteStartID),
		theirsParity: remoteStartID % 2,
	}
}

func (ss *StreamSet) sideFor(id uint32, local bool) *partition {
	if local {
		return ss.mine
	}
	_ = id
	return ss.theirs
}

// NewStream allocates the next id on our side and registers an active
// stream for it. Returns ErrTooManyStreams if doing so would exceed the
// peer's advertised MAX_CONCURRENT_STREAMS.
func (ss *StreamSet) NewStream(initialSend, initialRecv int32) (*stream, error) {
	p := ss.mine
	if uint32(atomic.LoadInt32(&p.active)) >= atomic.LoadUint32(&p.maxActive) {
		return nil, ErrTooManyStreams
	}
	id := atomic.LoadUint32(&p.nextID)
	atomic.StoreUint32(&p.nextID, id+2)

	s := newStream(id, true, initialSend, initialRecv)
	p.streams[id] = s
	atomic.AddInt32(&p.active, 1)
	return s, nil
}

// NewRemoteStream registers a stream the peer just opened with HEADERS or
// PUSH_PROMISE, enforcing RFC 5.1.1 id ordering (strictly increasing) and
// our own MAX_CONCURRENT_STREAMS ceiling.
func (ss *StreamSet) NewRemoteStream(id uint32, initialSend, initialRecv int32) (*stream, error) {
	if id%2 != ss.theirsParity {
		return nil, NewGoAwayError(ErrCodeProtocol, "stream id has wrong parity for peer-initiated stream")
	}
	p := ss.theirs
	if h := atomic.LoadUint32(&p.highestID); h != 0 && id <= h {
		return nil, NewGoAwayError(ErrCodeProtocol, "stream id reused or out of order")
	}
	if uint32(atomic.LoadInt32(&p.active)) >= atomic.LoadUint32(&p.maxActive) {
		return nil, NewResetStreamError(ErrCodeRefusedStream, "max concurrent streams exceeded")
	}

	atomic.StoreUint32(&p.highestID, id)
	s := newStream(id, false, initialSend, initialRecv)
	p.streams[id] = s
	atomic.AddInt32(&p.active, 1)
	return s, nil
}

// Get returns the stream for id, and true if it is currently active.
// A closed-but-remembered or never-seen id both return (nil, false); the
// caller distinguishes via WasClosed when it needs to (closed and idle
// tolerate different late frames under RFC 7540 §5.1).
func (ss *StreamSet) Get(id uint32, local bool) (*stream, bool) {
	p := ss.sideFor(id, local)
	s, ok := p.streams[id]
	if !ok || s.variant != streamActive {
		return nil, false
	}
	return s, true
}

// Lookup finds a stream by id on either side regardless of variant, for
// callers like GetResponse that need to reach a just-closed stream's
// buffered state rather than only its currently-active entries.
func (ss *StreamSet) Lookup(id uint32) (*stream, bool) {
	if s, ok := ss.mine.streams[id]; ok {
		return s, true
	}
	if s, ok := ss.theirs.streams[id]; ok {
		return s, true
	}
	return nil, false
}

// WasClosed reports whether id was ever registered and has since closed,
// as opposed to never having existed.
func (ss *StreamSet) WasClosed(id uint32, local bool) bool {
	p := ss.sideFor(id, local)
	s, ok := p.streams[id]
	return ok && s.variant == streamClosed
}

// Close transitions s to the closed storage variant. The entry is kept
// (not deleted) so late frames can be recognized as "for a closed
// stream" rather than "for a stream that never existed" — RFC 7540 §5.1
// treats those differently.
func (ss *StreamSet) Close(s *stream) {
	if s.variant != streamActive {
		return
	}
	s.variant = streamClosed
	s.proto = stateClosed
	p := ss.sideFor(s.id, s.local)
	atomic.AddInt32(&p.active, -1)
}

// Evict fully forgets id. No code path in this package calls it, so
// closed entries otherwise stay in the set for the connection's lifetime.
func (ss *StreamSet) Evict(id uint32, local bool) {
	p := ss.sideFor(id, local)
	delete(p.streams, id)
}

// ActiveCount returns the number of streams this endpoint currently has
// open on the given side.
func (ss *StreamSet) ActiveCount(local bool) int32 {
	p := ss.mine
	if !local {
		p = ss.theirs
	}
	return atomic.LoadInt32(&p.active)
}

// UpdateMyMaxActive applies a new SETTINGS_MAX_CONCURRENT_STREAMS learned
// from the peer, bounding how many streams we may open.
func (ss *StreamSet) UpdateMyMaxActive(n uint32) {
	atomic.StoreUint32(&ss.mine.maxActive, n)
}

// UpdateTheirMaxActive applies our own locally configured
// MAX_CONCURRENT_STREAMS, bounding how many streams the peer may open.
func (ss *StreamSet) UpdateTheirMaxActive(n uint32) {
	atomic.StoreUint32(&ss.theirs.maxActive, n)
}

// Each iterates every currently active stream on both sides. It is only
// safe to call from the connection's owning goroutine.
func (ss *StreamSet) Each(fn func(*stream)) {
	for _, s := range ss.mine.streams {
		if s.variant == streamActive {
			fn(s)
		}
	}
	for _, s := range ss.theirs.streams {
		if s.variant == streamActive {
			fn(s)
		}
	}
}

// EachInSendOrder iterates active streams in the order a send_what_we_can
// sweep should service them: peer-opened streams before our own, each
// side ascending by id. Only safe from the connection's owning goroutine.
func (ss *StreamSet) EachInSendOrder(fn func(*stream)) {
	eachSortedActive(ss.theirs, fn)
	eachSortedActive(ss.mine, fn)
}

func eachSortedActive(p *partition, fn func(*stream)) {
	ids := make([]uint32, 0, len(p.streams))
	for id, s := range p.streams {
		if s.variant == streamActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(p.streams[id])
	}
}

// UpdateAllSendWindows applies a SETTINGS_INITIAL_WINDOW_SIZE change
// (delta = new - old) to every stream's send window at once, as RFC 7540
// §6.9.2 requires.
func (ss *StreamSet) UpdateAllSendWindows(delta int32) {
	ss.Each(func(s *stream) { s.addSendWindow(delta) })
}

// UpdateAllRecvWindows applies a local flow-control policy change
// (delta = new - old) to every stream's receive window.
func (ss *StreamSet) UpdateAllRecvWindows(delta int32) {
	ss.Each(func(s *stream) { s.addRecvWindow(delta) })
}

// HighestTheirID returns the largest stream id the peer has opened that
// this endpoint has accepted, for the "last stream processed" field of
// an outgoing GOAWAY (RFC 7540 §6.8).
func (ss *StreamSet) HighestTheirID() uint32 {
	return atomic.LoadUint32(&ss.theirs.highestID)
}
