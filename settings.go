package h2core

import "github.com/flowframe/h2core/wire"

// Settings parameter identifiers, carried as the first two bytes of each
// six-byte SETTINGS entry.
//
// https://httpwg.org/specs/rfc7540.html#SettingValues
const (
	SettingHeaderTableSize      uint16 = 0x1
	SettingEnablePush           uint16 = 0x2
	SettingMaxConcurrentStreams uint16 = 0x3
	SettingInitialWindowSize    uint16 = 0x4
	SettingMaxFrameSize         uint16 = 0x5
	SettingMaxHeaderListSize    uint16 = 0x6
)

// Default and bound values from RFC 7540 §6.5.2 and §11.3.
const (
	DefaultHeaderTableSize   uint32 = 4096
	DefaultMaxConcurrent     uint32 = 100
	DefaultInitialWindowSize uint32 = 1<<16 - 1
	DefaultMaxFrameSize      uint32 = 1 << 14

	MaxWindowSize = 1<<31 - 1
	MaxFrameSizeLimit = 1<<24 - 1
)

// Settings is the humanized view of a SETTINGS frame's payload: the six
// parameters two endpoints negotiate at connection start and may update
// again later.
type Settings struct {
	HeaderTableSize      uint32
	DisablePush          bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32
}

// DefaultSettings returns the values this package assumes for a peer
// before any SETTINGS frame from them has been processed.
func DefaultSettings() Settings {
	return Settings{
		HeaderTableSize:      DefaultHeaderTableSize,
		MaxConcurrentStreams: DefaultMaxConcurrent,
		InitialWindowSize:    DefaultInitialWindowSize,
		MaxFrameSize:         DefaultMaxFrameSize,
	}
}

// Decode applies every six-byte entry in payload onto st, leaving
// parameters it doesn't mention untouched (RFC 7540 §6.5: "each
// unspecified parameter ... retains its current value").
func (st *Settings) Decode(payload []byte) error {
	if len(payload)%6 != 0 {
		return ErrMissingBytes
	}
	for i := 0; i+6 <= len(payload); i += 6 {
		entry := payload[i : i+6]
		key := uint16(entry[0])<<8 | uint16(entry[1])
		value := wire.Uint32(entry[2:])

		switch key {
		case SettingHeaderTableSize:
			st.HeaderTableSize = value
		case SettingEnablePush:
			st.DisablePush = value == 0
		case SettingMaxConcurrentStreams:
			st.MaxConcurrentStreams = value
		case SettingInitialWindowSize:
			st.InitialWindowSize = value
		case SettingMaxFrameSize:
			st.MaxFrameSize = value
		case SettingMaxHeaderListSize:
			st.MaxHeaderListSize = value
		}
	}
	return nil
}

// Encode appends st's parameters to dst as wire-format six-byte entries.
func (st *Settings) Encode(dst []byte) []byte {
	dst = appendSetting(dst, SettingHeaderTableSize, st.HeaderTableSize)
	if st.DisablePush {
		dst = appendSetting(dst, SettingEnablePush, 0)
	} else {
		dst = appendSetting(dst, SettingEnablePush, 1)
	}
	dst = appendSetting(dst, SettingMaxConcurrentStreams, st.MaxConcurrentStreams)
	dst = appendSetting(dst, SettingInitialWindowSize, st.InitialWindowSize)
	dst = appendSetting(dst, SettingMaxFrameSize, st.MaxFrameSize)
	if st.MaxHeaderListSize != 0 {
		dst = appendSetting(dst, SettingMaxHeaderListSize, st.MaxHeaderListSize)
	}
	return dst
}

func appendSetting(dst []byte, key uint16, value uint32) []byte {
	dst = append(dst, byte(key>>8), byte(key))
	return wire.AppendUint32(dst, value)
}
