package h2core

import "github.com/flowframe/h2core/wire"

var _ Frame = (*RstStream)(nil)

// RstStream immediately terminates a stream, carrying the ErrorCode that
// explains why.
//
// https://httpwg.org/specs/rfc7540.html#section-6.4
type RstStream struct {
	code ErrorCode
}

func (r *RstStream) Type() FrameType { return FrameResetStream }
func (r *RstStream) Reset()          { r.code = 0 }
func (r *RstStream) CopyTo(dst *RstStream) { dst.code = r.code }
func (r *RstStream) Code() ErrorCode { return r.code }
func (r *RstStream) SetCode(c ErrorCode) { r.code = c }

func (r *RstStream) Deserialize(fh *FrameHeader) error {
	if len(fh.payload) < 4 {
		return ErrMissingBytes
	}
	r.code = ErrorCode(wire.Uint32(fh.payload))
	return nil
}

func (r *RstStream) Serialize(fh *FrameHeader) {
	fh.setPayload(wire.AppendUint32(fh.payload[:0], uint32(r.code)))
}
