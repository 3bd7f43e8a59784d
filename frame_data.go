package h2core

import "github.com/flowframe/h2core/wire"

var _ Frame = (*Data)(nil)

// Data carries an arbitrary-length slice of a stream's body.
//
// Flags: END_STREAM, PADDED.
//
// https://httpwg.org/specs/rfc7540.html#section-6.1
type Data struct {
	endStream bool
	padded    bool
	b         []byte
}

func (d *Data) Type() FrameType { return FrameData }

func (d *Data) Reset() {
	d.endStream = false
	d.padded = false
	d.b = d.b[:0]
}

func (d *Data) CopyTo(dst *Data) {
	dst.endStream = d.endStream
	dst.padded = d.padded
	dst.b = append(dst.b[:0], d.b...)
}

func (d *Data) EndStream() bool      { return d.endStream }
func (d *Data) SetEndStream(v bool)  { d.endStream = v }
func (d *Data) Data() []byte         { return d.b }
func (d *Data) SetData(b []byte)     { d.b = append(d.b[:0], b...) }
func (d *Data) Append(b []byte)      { d.b = append(d.b, b...) }
func (d *Data) Len() int             { return len(d.b) }
func (d *Data) Padded() bool         { return d.padded }
func (d *Data) SetPadded(v bool)     { d.padded = v }

func (d *Data) Write(b []byte) (int, error) {
	d.Append(b)
	return len(b), nil
}

func (d *Data) Deserialize(fh *FrameHeader) error {
	payload := fh.payload

	if fh.Flags().Has(FlagPadded) {
		var err error
		payload, err = wire.CutPadding(payload, fh.Len())
		if err != nil {
			return err
		}
	}

	d.endStream = fh.Flags().Has(FlagEndStream)
	d.b = append(d.b[:0], payload...)

	return nil
}

func (d *Data) Serialize(fh *FrameHeader) {
	if d.endStream {
		fh.SetFlags(fh.Flags().Add(FlagEndStream))
	}

	payload := d.b
	if d.padded {
		fh.SetFlags(fh.Flags().Add(FlagPadded))
		payload = wire.AddPadding(append([]byte(nil), d.b...), 0)
	}

	fh.setPayload(payload)
}
