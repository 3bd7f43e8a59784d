package h2core

import "github.com/flowframe/h2core/wire"

var _ Frame = (*Priority)(nil)

// Priority carries a stream's dependency and weight. This package parses
// it for protocol correctness, then the connection drops it: it is not
// passed to callers, and there is no priority-tree reordering of
// outbound frames.
//
// https://httpwg.org/specs/rfc7540.html#section-6.3
type Priority struct {
	dep       uint32
	exclusive bool
	weight    byte
}

func (p *Priority) Type() FrameType { return FramePriority }

func (p *Priority) Reset() {
	p.dep = 0
	p.exclusive = false
	p.weight = 0
}

func (p *Priority) CopyTo(dst *Priority) {
	dst.dep = p.dep
	dst.exclusive = p.exclusive
	dst.weight = p.weight
}

func (p *Priority) Dependency() uint32 { return p.dep }
func (p *Priority) SetDependency(id uint32) { p.dep = id & (1<<31 - 1) }
func (p *Priority) Exclusive() bool     { return p.exclusive }
func (p *Priority) SetExclusive(v bool) { p.exclusive = v }
func (p *Priority) Weight() byte        { return p.weight }
func (p *Priority) SetWeight(w byte)    { p.weight = w }

func (p *Priority) Deserialize(fh *FrameHeader) error {
	if len(fh.payload) < 5 {
		return ErrMissingBytes
	}
	dep := wire.Uint32(fh.payload)
	p.exclusive = dep&(1<<31) != 0
	p.dep = dep & (1<<31 - 1)
	p.weight = fh.payload[4]
	return nil
}

func (p *Priority) Serialize(fh *FrameHeader) {
	dep := p.dep
	if p.exclusive {
		dep |= 1 << 31
	}
	payload := wire.AppendUint32(fh.payload[:0], dep)
	payload = append(payload, p.weight)
	fh.setPayload(payload)
}
