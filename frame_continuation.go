package h2core

var (
	_ Frame            = (*Continuation)(nil)
	_ FrameWithHeaders = (*Continuation)(nil)
)

// Continuation carries the overflow of a HEADERS or PUSH_PROMISE header
// block that didn't fit in one frame. A run of CONTINUATION frames must
// not be interleaved with frames of any other type or stream.
//
// https://httpwg.org/specs/rfc7540.html#section-6.10
type Continuation struct {
	endHeaders bool
	rawHeaders []byte
}

func (c *Continuation) Type() FrameType { return FrameContinuation }

func (c *Continuation) Reset() {
	c.endHeaders = false
	c.rawHeaders = c.rawHeaders[:0]
}

func (c *Continuation) CopyTo(dst *Continuation) {
	dst.endHeaders = c.endHeaders
	dst.rawHeaders = append(dst.rawHeaders[:0], c.rawHeaders...)
}

func (c *Continuation) Headers() []byte        { return c.rawHeaders }
func (c *Continuation) SetHeaders(b []byte)    { c.rawHeaders = append(c.rawHeaders[:0], b...) }
func (c *Continuation) AppendHeaders(b []byte) { c.rawHeaders = append(c.rawHeaders, b...) }
func (c *Continuation) EndHeaders() bool       { return c.endHeaders }
func (c *Continuation) SetEndHeaders(v bool)   { c.endHeaders = v }

func (c *Continuation) Deserialize(fh *FrameHeader) error {
	c.endHeaders = fh.Flags().Has(FlagEndHeaders)
	c.SetHeaders(fh.payload)
	return nil
}

func (c *Continuation) Serialize(fh *FrameHeader) {
	if c.endHeaders {
		fh.SetFlags(fh.Flags().Add(FlagEndHeaders))
	}
	fh.setPayload(c.rawHeaders)
}
