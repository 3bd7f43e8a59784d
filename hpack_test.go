package h2core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(pairs ...string) []HeaderField {
	var out []HeaderField
	for i := 0; i+1 < len(pairs); i += 2 {
		var hf HeaderField
		hf.Set(pairs[i], pairs[i+1])
		out = append(out, hf)
	}
	return out
}

// TestHPACKRoundTrip exercises R1: encoding a header list with one
// encoder and decoding it with a cooperative decoder reproduces the
// original list, in order.
func TestHPACKRoundTrip(t *testing.T) {
	enc := NewHPACK(DefaultHeaderTableSize)
	dec := NewHPACK(DefaultHeaderTableSize)

	want := fields(
		":method", "GET",
		":path", "/",
		":scheme", "https",
		":authority", "example.com",
		"user-agent", "h2core-test",
	)

	block := enc.Encode(nil, want)
	got, err := dec.Decode(block)
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		assert.Equal(t, want[i].Key(), got[i].Key())
		assert.Equal(t, want[i].Value(), got[i].Value())
	}
}

func TestHPACKRoundTripAcrossMultipleBlocks(t *testing.T) {
	enc := NewHPACK(DefaultHeaderTableSize)
	dec := NewHPACK(DefaultHeaderTableSize)

	first := fields(":method", "POST", ":path", "/upload")
	second := fields(":method", "GET", ":path", "/status")

	block1 := enc.Encode(nil, first)
	got1, err := dec.Decode(block1)
	require.NoError(t, err)
	require.Len(t, got1, 2)
	assert.Equal(t, "POST", got1[0].Value())

	// Decode reuses its backing slice; a second call must not leave stale
	// entries from the first one behind.
	block2 := enc.Encode(nil, second)
	got2, err := dec.Decode(block2)
	require.NoError(t, err)
	require.Len(t, got2, 2)
	assert.Equal(t, "GET", got2[0].Value())
	assert.Equal(t, "/status", got2[1].Value())
}

func TestHPACKDecodeMalformedBlock(t *testing.T) {
	dec := NewHPACK(DefaultHeaderTableSize)
	_, err := dec.Decode([]byte{0xff, 0xff, 0xff, 0xff, 0xff})
	require.Error(t, err)
	assert.True(t, IsConnError(err))
	var e Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrCodeCompression, e.Code)
}

func TestHPACKMaxTableSizeIsCooperative(t *testing.T) {
	enc := NewHPACK(DefaultHeaderTableSize)
	dec := NewHPACK(DefaultHeaderTableSize)

	// Shrinking the decoder's table to 0 forces the encoder, once told
	// about it, to stop referencing the dynamic table at all; the round
	// trip must still succeed.
	dec.SetMaxTableSize(0)
	enc.SetMaxEncoderTableSize(0)

	want := fields("x-custom", "value")
	block := enc.Encode(nil, want)
	got, err := dec.Decode(block)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "value", got[0].Value())
}
