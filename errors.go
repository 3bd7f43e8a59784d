package h2core

import "errors"

// Error is the error type every connection and stream failure is reported
// as. FrameType says which frame the peer (or we) must send to carry it:
// FrameGoAway for connection errors, FrameResetStream for stream errors.
//
// https://httpwg.org/specs/rfc7540.html#ErrorCodeRegistry
type Error struct {
	Code      ErrorCode
	FrameType FrameType
	Msg       string
}

func (e Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Msg
}

// NewGoAwayError builds a connection-level error. The connection state
// machine answers it with a GOAWAY frame and tears the connection down.
func NewGoAwayError(code ErrorCode, msg string) Error {
	return Error{Code: code, FrameType: FrameGoAway, Msg: msg}
}

// NewResetStreamError builds a stream-level error. The connection state
// machine answers it with a RST_STREAM frame on the offending stream only.
func NewResetStreamError(code ErrorCode, msg string) Error {
	return Error{Code: code, FrameType: FrameResetStream, Msg: msg}
}

// IsConnError and IsStreamError classify an Error produced by this package.
func IsConnError(err error) bool {
	var e Error
	return errors.As(err, &e) && e.FrameType == FrameGoAway
}

func IsStreamError(err error) bool {
	var e Error
	return errors.As(err, &e) && e.FrameType == FrameResetStream
}

var (
	ErrMissingBytes     = errors.New("h2core: frame payload shorter than required")
	ErrPayloadExceeds   = errors.New("h2core: frame payload exceeds negotiated max size")
	ErrUnknownFrameType = errors.New("h2core: unknown frame type")
	ErrBadPreface       = errors.New("h2core: invalid connection preface")
	ErrNotSettingsFirst = errors.New("h2core: first frame on a connection must be SETTINGS")
	ErrStreamNotFound   = errors.New("h2core: stream id not found in stream set")
	ErrConnClosed       = errors.New("h2core: connection is closed")
	ErrStreamsExhausted = errors.New("h2core: no stream ids available")
	ErrTooManyStreams   = errors.New("h2core: peer's concurrent stream limit reached")
	ErrContinuationMix  = errors.New("h2core: frame interleaved within a HEADERS/CONTINUATION sequence")
)
