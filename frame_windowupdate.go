package h2core

import "github.com/flowframe/h2core/wire"

var _ Frame = (*WindowUpdate)(nil)

// WindowUpdate grants the sender additional flow-control credit, either
// for the whole connection (stream id 0) or for a single stream.
//
// https://httpwg.org/specs/rfc7540.html#section-6.9
type WindowUpdate struct {
	increment int32
}

func (wu *WindowUpdate) Type() FrameType { return FrameWindowUpdate }
func (wu *WindowUpdate) Reset()          { wu.increment = 0 }
func (wu *WindowUpdate) CopyTo(dst *WindowUpdate) { dst.increment = wu.increment }
func (wu *WindowUpdate) Increment() int32        { return wu.increment }
func (wu *WindowUpdate) SetIncrement(n int32)    { wu.increment = n }

func (wu *WindowUpdate) Deserialize(fh *FrameHeader) error {
	if len(fh.payload) < 4 {
		return ErrMissingBytes
	}
	inc := int32(wire.Uint32(fh.payload) & (1<<31 - 1))
	if inc == 0 {
		return NewGoAwayError(ErrCodeProtocol, "WINDOW_UPDATE increment of 0")
	}
	wu.increment = inc
	return nil
}

func (wu *WindowUpdate) Serialize(fh *FrameHeader) {
	fh.setPayload(wire.AppendUint32(fh.payload[:0], uint32(wu.increment)))
}
