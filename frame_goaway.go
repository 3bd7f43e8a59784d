package h2core

import (
	"fmt"

	"github.com/flowframe/h2core/wire"
)

var _ Frame = (*GoAway)(nil)

// GoAway tells the peer to stop creating streams beyond LastStreamID,
// carrying the ErrorCode the connection is closing with.
//
// https://httpwg.org/specs/rfc7540.html#section-6.8
type GoAway struct {
	lastStreamID uint32
	code         ErrorCode
	debug        []byte
}

func (ga *GoAway) Type() FrameType { return FrameGoAway }

func (ga *GoAway) Reset() {
	ga.lastStreamID = 0
	ga.code = 0
	ga.debug = ga.debug[:0]
}

func (ga *GoAway) CopyTo(dst *GoAway) {
	dst.lastStreamID = ga.lastStreamID
	dst.code = ga.code
	dst.debug = append(dst.debug[:0], ga.debug...)
}

func (ga *GoAway) Error() string {
	return fmt.Sprintf("GOAWAY last_stream=%d code=%s debug=%q", ga.lastStreamID, ga.code, ga.debug)
}

func (ga *GoAway) LastStreamID() uint32      { return ga.lastStreamID }
func (ga *GoAway) SetLastStreamID(id uint32) { ga.lastStreamID = id & (1<<31 - 1) }
func (ga *GoAway) Code() ErrorCode           { return ga.code }
func (ga *GoAway) SetCode(c ErrorCode)       { ga.code = c }
func (ga *GoAway) DebugData() []byte         { return ga.debug }
func (ga *GoAway) SetDebugData(b []byte)     { ga.debug = append(ga.debug[:0], b...) }

func (ga *GoAway) Deserialize(fh *FrameHeader) error {
	if len(fh.payload) < 8 {
		return ErrMissingBytes
	}
	ga.lastStreamID = wire.Uint32(fh.payload) & (1<<31 - 1)
	ga.code = ErrorCode(wire.Uint32(fh.payload[4:]))
	if len(fh.payload) > 8 {
		ga.debug = append(ga.debug[:0], fh.payload[8:]...)
	}
	return nil
}

func (ga *GoAway) Serialize(fh *FrameHeader) {
	payload := wire.AppendUint32(fh.payload[:0], ga.lastStreamID)
	payload = wire.AppendUint32(payload, uint32(ga.code))
	payload = append(payload, ga.debug...)
	fh.setPayload(payload)
}
