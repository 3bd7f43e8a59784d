package h2core

import (
	"bytes"

	"golang.org/x/net/http2/hpack"
)

// HPACK is treated as an opaque collaborator: this package never
// reimplements the compression algorithm itself, it only owns one
// encoder and one decoder context per connection and drives them from
// the frame layer. Both contexts wrap golang.org/x/net/http2/hpack,
// which is already what the rest of the Go HTTP/2 ecosystem uses.
type HPACK struct {
	enc    *hpack.Encoder
	encBuf bytes.Buffer
	dec    *hpack.Decoder

	fields []HeaderField
}

// NewHPACK builds a fresh encode/decode context pair, unique to one
// connection, with maxTableSize as the decoder's starting dynamic-table
// budget. The encoder starts at the hpack package's default of 4096
// until SetMaxEncoderTableSize is called.
func NewHPACK(maxTableSize uint32) *HPACK {
	h := &HPACK{}
	h.enc = hpack.NewEncoder(&h.encBuf)
	h.dec = hpack.NewDecoder(maxTableSize, nil)
	return h
}

// SetMaxTableSize applies a new SETTINGS_HEADER_TABLE_SIZE to the decoder
// side — the side that must track how much of its table the peer's
// encoder is permitted to use.
func (h *HPACK) SetMaxTableSize(n uint32) {
	h.dec.SetMaxDynamicTableSize(n)
}

// SetMaxEncoderTableSize bounds how much dynamic table our own encoder
// builds, per the peer's SETTINGS_HEADER_TABLE_SIZE.
func (h *HPACK) SetMaxEncoderTableSize(n uint32) {
	h.enc.SetMaxDynamicTableSize(n)
}

// Decode parses a complete header block (already reassembled across any
// HEADERS/CONTINUATION run) into a slice of HeaderField, reusing the
// adapter's own backing slice across calls.
func (h *HPACK) Decode(block []byte) ([]HeaderField, error) {
	h.fields = h.fields[:0]
	h.dec.SetEmitFunc(func(f hpack.HeaderField) {
		var hf HeaderField
		hf.SetKeyBytes([]byte(f.Name))
		hf.SetValueBytes([]byte(f.Value))
		hf.SetSensitive(f.Sensitive)
		h.fields = append(h.fields, hf)
	})
	if _, err := h.dec.Write(block); err != nil {
		return nil, NewGoAwayError(ErrCodeCompression, err.Error())
	}
	if err := h.dec.Close(); err != nil {
		return nil, NewGoAwayError(ErrCodeCompression, err.Error())
	}
	return h.fields, nil
}

// Encode appends the HPACK encoding of fields to dst.
func (h *HPACK) Encode(dst []byte, fields []HeaderField) []byte {
	h.encBuf.Reset()
	for _, hf := range fields {
		h.enc.WriteField(hpack.HeaderField{
			Name:      hf.Key(),
			Value:     hf.Value(),
			Sensitive: hf.IsSensitive(),
		})
	}
	return append(dst, h.encBuf.Bytes()...)
}
