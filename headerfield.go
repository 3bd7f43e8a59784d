package h2core

import "sync"

// HeaderField is one decoded (or to-be-encoded) HTTP header: a key/value
// pair plus HPACK's "never index" sensitivity bit.
//
// Acquire one from the pool with AcquireHeaderField; return it with
// ReleaseHeaderField.
type HeaderField struct {
	key, value []byte
	sensitive  bool
}

var headerFieldPool = sync.Pool{
	New: func() interface{} { return &HeaderField{} },
}

func AcquireHeaderField() *HeaderField {
	return headerFieldPool.Get().(*HeaderField)
}

func ReleaseHeaderField(hf *HeaderField) {
	hf.Reset()
	headerFieldPool.Put(hf)
}

func (hf *HeaderField) Reset() {
	hf.key = hf.key[:0]
	hf.value = hf.value[:0]
	hf.sensitive = false
}

func (hf *HeaderField) Empty() bool {
	return len(hf.key) == 0 && len(hf.value) == 0
}

func (hf *HeaderField) String() string {
	return hf.Key() + ": " + hf.Value()
}

// Size is the RFC 7541 §4.1 accounting size: name + value octets plus 32.
func (hf *HeaderField) Size() int {
	return len(hf.key) + len(hf.value) + 32
}

func (hf *HeaderField) CopyTo(dst *HeaderField) {
	dst.key = append(dst.key[:0], hf.key...)
	dst.value = append(dst.value[:0], hf.value...)
	dst.sensitive = hf.sensitive
}

func (hf *HeaderField) Set(k, v string)          { hf.SetKey(k); hf.SetValue(v) }
func (hf *HeaderField) SetBytes(k, v []byte)      { hf.SetKeyBytes(k); hf.SetValueBytes(v) }
func (hf *HeaderField) Key() string               { return string(hf.key) }
func (hf *HeaderField) Value() string             { return string(hf.value) }
func (hf *HeaderField) KeyBytes() []byte          { return hf.key }
func (hf *HeaderField) ValueBytes() []byte        { return hf.value }
func (hf *HeaderField) SetKey(k string)           { hf.key = append(hf.key[:0], k...) }
func (hf *HeaderField) SetValue(v string)         { hf.value = append(hf.value[:0], v...) }
func (hf *HeaderField) SetKeyBytes(k []byte)      { hf.key = append(hf.key[:0], k...) }
func (hf *HeaderField) SetValueBytes(v []byte)    { hf.value = append(hf.value[:0], v...) }
func (hf *HeaderField) IsPseudo() bool            { return len(hf.key) > 0 && hf.key[0] == ':' }
func (hf *HeaderField) IsSensitive() bool         { return hf.sensitive }
func (hf *HeaderField) SetSensitive(v bool)       { hf.sensitive = v }
