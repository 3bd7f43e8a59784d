package h2core

var _ Frame = (*Ping)(nil)

// Ping carries an 8-byte opaque value the receiver echoes back with
// FlagAck set, used for round-trip measurement and liveness checks.
//
// https://httpwg.org/specs/rfc7540.html#section-6.7
type Ping struct {
	ack  bool
	data [8]byte
}

func (p *Ping) Type() FrameType { return FramePing }

func (p *Ping) Reset() {
	p.ack = false
	p.data = [8]byte{}
}

func (p *Ping) CopyTo(dst *Ping) {
	dst.ack = p.ack
	dst.data = p.data
}

func (p *Ping) Ack() bool        { return p.ack }
func (p *Ping) SetAck(v bool)    { p.ack = v }
func (p *Ping) Data() []byte     { return p.data[:] }
func (p *Ping) SetData(b []byte) { copy(p.data[:], b) }

func (p *Ping) Deserialize(fh *FrameHeader) error {
	if len(fh.payload) != 8 {
		return ErrMissingBytes
	}
	p.ack = fh.Flags().Has(FlagAck)
	copy(p.data[:], fh.payload)
	return nil
}

func (p *Ping) Serialize(fh *FrameHeader) {
	if p.ack {
		fh.SetFlags(fh.Flags().Add(FlagAck))
	}
	fh.setPayload(p.data[:])
}
