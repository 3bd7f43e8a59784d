package h2core

import "github.com/flowframe/h2core/wire"

var (
	_ Frame            = (*Headers)(nil)
	_ FrameWithHeaders = (*Headers)(nil)
)

// Headers opens a stream (or updates one opened by PUSH_PROMISE) carrying
// a HEADERS block fragment, optionally preceded by stream dependency/
// weight information and followed by PADDED padding.
//
// Flags: END_STREAM, END_HEADERS, PADDED, PRIORITY.
//
// https://httpwg.org/specs/rfc7540.html#section-6.2
type Headers struct {
	padded     bool
	depStream  uint32
	weight     uint8
	exclusive  bool
	endStream  bool
	endHeaders bool
	rawHeaders []byte
}

func (h *Headers) Type() FrameType { return FrameHeaders }

func (h *Headers) Reset() {
	h.padded = false
	h.depStream = 0
	h.weight = 0
	h.exclusive = false
	h.endStream = false
	h.endHeaders = false
	h.rawHeaders = h.rawHeaders[:0]
}

func (h *Headers) CopyTo(dst *Headers) {
	dst.padded = h.padded
	dst.depStream = h.depStream
	dst.weight = h.weight
	dst.exclusive = h.exclusive
	dst.endStream = h.endStream
	dst.endHeaders = h.endHeaders
	dst.rawHeaders = append(dst.rawHeaders[:0], h.rawHeaders...)
}

func (h *Headers) Headers() []byte        { return h.rawHeaders }
func (h *Headers) SetHeaders(b []byte)    { h.rawHeaders = append(h.rawHeaders[:0], b...) }
func (h *Headers) AppendHeaders(b []byte) { h.rawHeaders = append(h.rawHeaders, b...) }
func (h *Headers) EndStream() bool        { return h.endStream }
func (h *Headers) SetEndStream(v bool)    { h.endStream = v }
func (h *Headers) EndHeaders() bool       { return h.endHeaders }
func (h *Headers) SetEndHeaders(v bool)   { h.endHeaders = v }
func (h *Headers) Padded() bool           { return h.padded }
func (h *Headers) SetPadded(v bool)       { h.padded = v }

func (h *Headers) Deserialize(fh *FrameHeader) (err error) {
	flags := fh.Flags()
	payload := fh.payload

	if flags.Has(FlagPadded) {
		payload, err = wire.CutPadding(payload, fh.Len())
		if err != nil {
			return err
		}
	}

	if flags.Has(FlagPriority) {
		if len(payload) < 5 {
			return ErrMissingBytes
		}
		dep := wire.Uint32(payload)
		h.exclusive = dep&(1<<31) != 0
		h.depStream = dep & (1<<31 - 1)
		h.weight = payload[4]
		payload = payload[5:]
	}

	h.endStream = flags.Has(FlagEndStream)
	h.endHeaders = flags.Has(FlagEndHeaders)
	h.rawHeaders = append(h.rawHeaders[:0], payload...)

	return nil
}

func (h *Headers) Serialize(fh *FrameHeader) {
	if h.endStream {
		fh.SetFlags(fh.Flags().Add(FlagEndStream))
	}
	if h.endHeaders {
		fh.SetFlags(fh.Flags().Add(FlagEndHeaders))
	}

	payload := h.rawHeaders
	if h.weight > 0 {
		fh.SetFlags(fh.Flags().Add(FlagPriority))
		dep := h.depStream
		if h.exclusive {
			dep |= 1 << 31
		}
		prefix := make([]byte, 5)
		wire.PutUint32(prefix, dep)
		prefix[4] = h.weight
		payload = append(prefix, payload...)
	}

	if h.padded {
		fh.SetFlags(fh.Flags().Add(FlagPadded))
		payload = wire.AddPadding(append([]byte(nil), payload...), 0)
	}

	fh.setPayload(payload)
}
