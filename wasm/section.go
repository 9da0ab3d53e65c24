package wasm

import "github.com/eosio-wasm/wasm-ld/wasm/internal/binary"

// WriteSection appends a length-prefixed section to w: the section id byte,
// a ULEB128 byte count, then the section's own contents.
func WriteSection(w *binary.Writer, id byte, contents []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(contents)))
	w.WriteBytes(contents)
}

// NewWriter returns a fresh byte-stream writer, re-exported so callers outside
// this package don't need to import the internal/binary package directly.
func NewWriter() *binary.Writer {
	return binary.NewWriter()
}
