package h2core

var _ Frame = (*SettingsFrame)(nil)

// SettingsFrame carries either a batch of Settings updates, or (when Ack
// is set) an empty acknowledgement of the peer's previous SETTINGS frame.
//
// https://httpwg.org/specs/rfc7540.html#section-6.5
type SettingsFrame struct {
	ack      bool
	Settings Settings
}

func (s *SettingsFrame) Type() FrameType { return FrameSettings }

func (s *SettingsFrame) Reset() {
	s.ack = false
	s.Settings = Settings{}
}

func (s *SettingsFrame) CopyTo(dst *SettingsFrame) {
	dst.ack = s.ack
	dst.Settings = s.Settings
}

func (s *SettingsFrame) Ack() bool     { return s.ack }
func (s *SettingsFrame) SetAck(v bool) { s.ack = v }

func (s *SettingsFrame) Deserialize(fh *FrameHeader) error {
	s.ack = fh.Flags().Has(FlagAck)
	if s.ack {
		if fh.Len() != 0 {
			return NewGoAwayError(ErrCodeFrameSize, "SETTINGS ACK must be empty")
		}
		return nil
	}
	if fh.Stream() != 0 {
		return NewGoAwayError(ErrCodeProtocol, "SETTINGS on non-zero stream")
	}
	return s.Settings.Decode(fh.payload)
}

func (s *SettingsFrame) Serialize(fh *FrameHeader) {
	if s.ack {
		fh.SetFlags(fh.Flags().Add(FlagAck))
		fh.setPayload(nil)
		return
	}
	fh.setPayload(s.Settings.Encode(fh.payload[:0]))
}
