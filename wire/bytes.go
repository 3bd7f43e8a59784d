// Package wire holds the low-level byte-twiddling helpers the frame codec
// and HPACK adapter share: big-endian 24/32-bit integers, case-insensitive
// ASCII comparison, buffer growth, frame padding, and zero-copy string
// conversions.
package wire

import (
	"crypto/rand"
	"fmt"
	"unsafe"

	"github.com/valyala/fastrand"
)

// PutUint24 writes the low 24 bits of n into b in big-endian order.
// Used for the frame header's length field (RFC 7540 §4.1).
func PutUint24(b []byte, n uint32) {
	_ = b[2]
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

func Uint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func AppendUint32(dst []byte, n uint32) []byte {
	return append(dst, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

func PutUint32(b []byte, n uint32) {
	_ = b[3]
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
}

func Uint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// EqualFold reports whether a and b are equal ASCII strings, ignoring case.
func EqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i]|0x20 != b[i]|0x20 {
			return false
		}
	}
	return true
}

// Grow returns b resized to neededLen, reusing spare capacity when possible.
func Grow(b []byte, neededLen int) []byte {
	b = b[:cap(b)]
	if n := neededLen - len(b); n > 0 {
		b = append(b, make([]byte, n)...)
	}
	return b[:neededLen]
}

// CutPadding strips the PADDED flag's leading pad-length byte and trailing
// padding from payload, given the frame's declared length.
func CutPadding(payload []byte, length int) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("wire: empty padded payload")
	}
	pad := int(payload[0])
	if length-pad-1 < 0 || len(payload) < length-pad-1 {
		return nil, fmt.Errorf("wire: padding %d exceeds frame length %d", pad, length)
	}
	return payload[1 : length-pad], nil
}

// AddPadding prepends a random pad-length byte and appends that many random
// padding bytes to b, as DATA/HEADERS senders may optionally do (RFC 7540
// §6.1, §6.2) to obscure payload size on the wire.
func AddPadding(b []byte, maxPad int) []byte {
	if maxPad <= 0 {
		maxPad = 256
	}
	n := int(fastrand.Uint32n(uint32(maxPad)))
	orig := len(b)

	b = Grow(b, orig+n+1)
	copy(b[1:], b[:orig])
	b[0] = uint8(n)
	rand.Read(b[orig+1 : orig+1+n])

	return b
}

// BytesToString reinterprets b as a string without copying. The caller must
// not mutate b afterwards.
func BytesToString(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// StringToBytes reinterprets s as a byte slice without copying. The
// returned slice must not be mutated.
func StringToBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
