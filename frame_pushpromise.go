package h2core

import "github.com/flowframe/h2core/wire"

var (
	_ Frame            = (*PushPromise)(nil)
	_ FrameWithHeaders = (*PushPromise)(nil)
)

// PushPromise announces a stream the server intends to push, identifying
// the promised stream id and carrying its request header block.
//
// https://httpwg.org/specs/rfc7540.html#section-6.6
type PushPromise struct {
	padded         bool
	endHeaders     bool
	promisedStream uint32
	rawHeaders     []byte
}

func (pp *PushPromise) Type() FrameType { return FramePushPromise }

func (pp *PushPromise) Reset() {
	pp.padded = false
	pp.endHeaders = false
	pp.promisedStream = 0
	pp.rawHeaders = pp.rawHeaders[:0]
}

func (pp *PushPromise) CopyTo(dst *PushPromise) {
	dst.padded = pp.padded
	dst.endHeaders = pp.endHeaders
	dst.promisedStream = pp.promisedStream
	dst.rawHeaders = append(dst.rawHeaders[:0], pp.rawHeaders...)
}

func (pp *PushPromise) Headers() []byte            { return pp.rawHeaders }
func (pp *PushPromise) SetHeaders(b []byte)        { pp.rawHeaders = append(pp.rawHeaders[:0], b...) }
func (pp *PushPromise) PromisedStream() uint32     { return pp.promisedStream }
func (pp *PushPromise) SetPromisedStream(id uint32) { pp.promisedStream = id & (1<<31 - 1) }
func (pp *PushPromise) EndHeaders() bool           { return pp.endHeaders }
func (pp *PushPromise) SetEndHeaders(v bool)       { pp.endHeaders = v }

func (pp *PushPromise) Deserialize(fh *FrameHeader) error {
	payload := fh.payload

	if fh.Flags().Has(FlagPadded) {
		var err error
		payload, err = wire.CutPadding(payload, fh.Len())
		if err != nil {
			return err
		}
	}
	if len(payload) < 4 {
		return ErrMissingBytes
	}

	pp.promisedStream = wire.Uint32(payload) & (1<<31 - 1)
	pp.rawHeaders = append(pp.rawHeaders[:0], payload[4:]...)
	pp.endHeaders = fh.Flags().Has(FlagEndHeaders)

	return nil
}

func (pp *PushPromise) Serialize(fh *FrameHeader) {
	if pp.endHeaders {
		fh.SetFlags(fh.Flags().Add(FlagEndHeaders))
	}

	payload := wire.AppendUint32(fh.payload[:0], pp.promisedStream)
	payload = append(payload, pp.rawHeaders...)

	if pp.padded {
		fh.SetFlags(fh.Flags().Add(FlagPadded))
		payload = wire.AddPadding(payload, 0)
	}

	fh.setPayload(payload)
}
