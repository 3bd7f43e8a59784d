package h2core

import (
	"bufio"
	"io"
	"sync"

	"github.com/flowframe/h2core/wire"
)

// rawHeaderSize is the fixed 9-octet frame header defined by RFC 7540 §4.1:
// a 24-bit length, an 8-bit type, an 8-bit flags field and a 31-bit stream
// identifier (top bit reserved).
const rawHeaderSize = 9

// defaultMaxFrameSize is the smallest value SETTINGS_MAX_FRAME_SIZE may
// advertise and the value assumed before any SETTINGS frame is exchanged.
const defaultMaxFrameSize = 1 << 14

// Frame is implemented by every frame payload type (Data, Headers, ...).
// Deserialize fills the payload from a wire-read FrameHeader; Serialize
// writes it back into one ahead of a wire write.
type Frame interface {
	Type() FrameType
	Reset()
	Deserialize(fh *FrameHeader) error
	Serialize(fh *FrameHeader)
}

// FrameWithHeaders is implemented by the three frame types that carry a
// (possibly partial) HPACK header block: Headers, PushPromise and
// Continuation.
type FrameWithHeaders interface {
	Headers() []byte
}

var frameConstructors = [...]func() Frame{
	FrameData:         func() Frame { return &Data{} },
	FrameHeaders:      func() Frame { return &Headers{} },
	FramePriority:     func() Frame { return &Priority{} },
	FrameResetStream:  func() Frame { return &RstStream{} },
	FrameSettings:     func() Frame { return &SettingsFrame{} },
	FramePushPromise:  func() Frame { return &PushPromise{} },
	FramePing:         func() Frame { return &Ping{} },
	FrameGoAway:       func() Frame { return &GoAway{} },
	FrameWindowUpdate: func() Frame { return &WindowUpdate{} },
	FrameContinuation: func() Frame { return &Continuation{} },
}

var framePools [len(frameConstructors)]sync.Pool

func init() {
	for i := range framePools {
		ctor := frameConstructors[i]
		framePools[i].New = func() interface{} { return ctor() }
	}
}

// AcquireFrame returns a zeroed Frame body of the given type from its pool.
func AcquireFrame(t FrameType) Frame {
	if int(t) >= len(framePools) {
		return nil
	}
	return framePools[t].Get().(Frame)
}

// ReleaseFrame resets fr and returns it to its type's pool.
func ReleaseFrame(fr Frame) {
	if fr == nil {
		return
	}
	fr.Reset()
	t := fr.Type()
	if int(t) < len(framePools) {
		framePools[t].Put(fr)
	}
}

var frameHeaderPool = sync.Pool{
	New: func() interface{} { return &FrameHeader{} },
}

// FrameHeader is the 9-byte envelope around a Frame body: length, type,
// flags and stream id, plus the raw payload bytes backing the body.
//
// A FrameHeader must not be shared across goroutines. Acquire one with
// AcquireFrameHeader and return it with ReleaseFrameHeader.
//
// https://httpwg.org/specs/rfc7540.html#FrameHeader
type FrameHeader struct {
	length int
	kind   FrameType
	flags  FrameFlags
	stream uint32

	maxLen uint32

	rawHeader [rawHeaderSize]byte
	payload   []byte

	fr Frame
}

func AcquireFrameHeader() *FrameHeader {
	fh := frameHeaderPool.Get().(*FrameHeader)
	fh.Reset()
	return fh
}

func ReleaseFrameHeader(fh *FrameHeader) {
	ReleaseFrame(fh.fr)
	fh.fr = nil
	frameHeaderPool.Put(fh)
}

func (fh *FrameHeader) Reset() {
	fh.kind = 0
	fh.flags = 0
	fh.stream = 0
	fh.length = 0
	fh.maxLen = defaultMaxFrameSize
	fh.fr = nil
	fh.payload = fh.payload[:0]
}

func (fh *FrameHeader) Type() FrameType     { return fh.kind }
func (fh *FrameHeader) Flags() FrameFlags   { return fh.flags }
func (fh *FrameHeader) SetFlags(f FrameFlags) { fh.flags = f }
func (fh *FrameHeader) Stream() uint32      { return fh.stream }
func (fh *FrameHeader) SetStream(id uint32) { fh.stream = id & (1<<31 - 1) }
func (fh *FrameHeader) Len() int            { return fh.length }
func (fh *FrameHeader) MaxLen() uint32      { return fh.maxLen }
func (fh *FrameHeader) SetMaxLen(n uint32)  { fh.maxLen = n }
func (fh *FrameHeader) Body() Frame         { return fh.fr }

func (fh *FrameHeader) SetBody(fr Frame) {
	if fr == nil {
		panic("h2core: FrameHeader body cannot be nil")
	}
	fh.kind = fr.Type()
	fh.fr = fr
}

func (fh *FrameHeader) setPayload(b []byte) {
	fh.payload = append(fh.payload[:0], b...)
}

func (fh *FrameHeader) checkLen() error {
	if fh.maxLen != 0 && fh.length > int(fh.maxLen) {
		return ErrPayloadExceeds
	}
	return nil
}

func (fh *FrameHeader) parseValues(header []byte) {
	fh.length = int(wire.Uint24(header[:3]))
	fh.kind = FrameType(header[3])
	fh.flags = FrameFlags(header[4])
	fh.stream = wire.Uint32(header[5:]) & (1<<31 - 1)
}

func (fh *FrameHeader) encodeHeader(header []byte) {
	wire.PutUint24(header[:3], uint32(fh.length))
	header[3] = byte(fh.kind)
	header[4] = byte(fh.flags)
	wire.PutUint32(header[5:], fh.stream)
}

// ReadFrameFrom reads and decodes one frame from br using the connection's
// default negotiated max frame size.
func ReadFrameFrom(br *bufio.Reader) (*FrameHeader, error) {
	return ReadFrameFromWithSize(br, defaultMaxFrameSize)
}

// ReadFrameFromWithSize reads and decodes one frame from br, rejecting
// any whose declared length exceeds max (our SETTINGS_MAX_FRAME_SIZE).
func ReadFrameFromWithSize(br *bufio.Reader, max uint32) (*FrameHeader, error) {
	fh := AcquireFrameHeader()
	fh.maxLen = max
	_, err := fh.readFrom(br)
	if err != nil {
		ReleaseFrameHeader(fh)
		return nil, err
	}
	return fh, nil
}

func (fh *FrameHeader) readFrom(br *bufio.Reader) (int64, error) {
	header, err := br.Peek(rawHeaderSize)
	if err != nil {
		return 0, err
	}
	br.Discard(rawHeaderSize)
	rn := int64(rawHeaderSize)

	fh.parseValues(header)
	if err := fh.checkLen(); err != nil {
		return rn, err
	}

	if fh.kind > FrameContinuation {
		if fh.length > 0 {
			br.Discard(fh.length)
		}
		return rn, ErrUnknownFrameType
	}

	fh.fr = AcquireFrame(fh.kind)

	if fh.length > 0 {
		fh.payload = wire.Grow(fh.payload, fh.length)
		n, err := io.ReadFull(br, fh.payload)
		rn += int64(n)
		if err != nil {
			return rn, err
		}
	}

	return rn, fh.fr.Deserialize(fh)
}

// WriteTo serializes the body and writes the header and payload to w.
func (fh *FrameHeader) WriteTo(w *bufio.Writer) (int64, error) {
	fh.fr.Serialize(fh)
	fh.length = len(fh.payload)
	fh.encodeHeader(fh.rawHeader[:])

	n, err := w.Write(fh.rawHeader[:])
	wb := int64(n)
	if err != nil {
		return wb, err
	}
	n, err = w.Write(fh.payload)
	wb += int64(n)
	return wb, err
}
