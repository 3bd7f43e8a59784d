package h2core

import "fmt"

// ClientPreface is the fixed 24-octet sequence a client must send before
// any frame, confirming that the connection speaks HTTP/2.
//
// https://httpwg.org/specs/rfc7540.html#ConnectionHeader
var ClientPreface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// ALPNProto and UpgradeProto are the two protocol tokens a peer uses to
// announce HTTP/2 support, via TLS-ALPN and the plaintext Upgrade header
// respectively.
const (
	ALPNProto    = "h2"
	UpgradeProto = "h2c"
)

// FrameType identifies the kind of frame a FrameHeader carries.
//
// https://httpwg.org/specs/rfc7540.html#FrameTypes
type FrameType uint8

const (
	FrameData FrameType = iota
	FrameHeaders
	FramePriority
	FrameResetStream
	FrameSettings
	FramePushPromise
	FramePing
	FrameGoAway
	FrameWindowUpdate
	FrameContinuation
)

func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameHeaders:
		return "HEADERS"
	case FramePriority:
		return "PRIORITY"
	case FrameResetStream:
		return "RST_STREAM"
	case FrameSettings:
		return "SETTINGS"
	case FramePushPromise:
		return "PUSH_PROMISE"
	case FramePing:
		return "PING"
	case FrameGoAway:
		return "GOAWAY"
	case FrameWindowUpdate:
		return "WINDOW_UPDATE"
	case FrameContinuation:
		return "CONTINUATION"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", uint8(t))
	}
}

// FrameFlags is the frame header's 8-bit flags field. Meaning is
// frame-type-dependent; FlagAck and FlagEndStream share bit 0x1.
type FrameFlags uint8

const (
	FlagAck        FrameFlags = 0x1
	FlagEndStream  FrameFlags = 0x1
	FlagEndHeaders FrameFlags = 0x4
	FlagPadded     FrameFlags = 0x8
	FlagPriority   FrameFlags = 0x20
)

func (f FrameFlags) Has(flag FrameFlags) bool { return f&flag == flag }
func (f FrameFlags) Add(flag FrameFlags) FrameFlags { return f | flag }
func (f FrameFlags) Delete(flag FrameFlags) FrameFlags { return f &^ flag }

// ErrorCode is one of the HTTP/2 error codes carried by RST_STREAM and
// GOAWAY frames.
//
// https://httpwg.org/specs/rfc7540.html#ErrorCodes
type ErrorCode uint32

const (
	ErrCodeNo                 ErrorCode = 0x0
	ErrCodeProtocol           ErrorCode = 0x1
	ErrCodeInternal           ErrorCode = 0x2
	ErrCodeFlowControl        ErrorCode = 0x3
	ErrCodeSettingsTimeout    ErrorCode = 0x4
	ErrCodeStreamClosed       ErrorCode = 0x5
	ErrCodeFrameSize          ErrorCode = 0x6
	ErrCodeRefusedStream      ErrorCode = 0x7
	ErrCodeCancel             ErrorCode = 0x8
	ErrCodeCompression        ErrorCode = 0x9
	ErrCodeConnect            ErrorCode = 0xa
	ErrCodeEnhanceYourCalm    ErrorCode = 0xb
	ErrCodeInadequateSecurity ErrorCode = 0xc
	ErrCodeHTTP11Required     ErrorCode = 0xd
)

var errCodeNames = [...]string{
	"NO_ERROR", "PROTOCOL_ERROR", "INTERNAL_ERROR", "FLOW_CONTROL_ERROR",
	"SETTINGS_TIMEOUT", "STREAM_CLOSED", "FRAME_SIZE_ERROR", "REFUSED_STREAM",
	"CANCEL", "COMPRESSION_ERROR", "CONNECT_ERROR", "ENHANCE_YOUR_CALM",
	"INADEQUATE_SECURITY", "HTTP_1_1_REQUIRED",
}

func (c ErrorCode) String() string {
	if int(c) < len(errCodeNames) {
		return errCodeNames[c]
	}
	return fmt.Sprintf("ERROR_CODE(0x%x)", uint32(c))
}
