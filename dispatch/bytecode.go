package dispatch

import (
	"bytes"

	"github.com/eosio-wasm/wasm-ld/wasm"
)

// emitter is the stateful bytecode-emitter struct used by both dispatcher
// bodies, grounded on the teacher's SynthModuleBuilder/bridge.Builder
// pattern (a buffer plus small append helpers), extended here with the
// i64 comparison/memory ops the dispatchers need.
type emitter struct {
	buf bytes.Buffer
}

func (e *emitter) byte(b byte) { e.buf.WriteByte(b) }
func (e *emitter) u32(v uint32) { wasm.WriteLEB128u(&e.buf, v) }

func (e *emitter) i32Const(v int32) {
	e.byte(wasm.OpI32Const)
	wasm.WriteLEB128s64(&e.buf, int64(v))
}

func (e *emitter) i64Const(v int64) {
	e.byte(wasm.OpI64Const)
	wasm.WriteLEB128s64(&e.buf, v)
}

func (e *emitter) localGet(idx uint32)  { e.byte(wasm.OpLocalGet); e.u32(idx) }
func (e *emitter) localSet(idx uint32)  { e.byte(wasm.OpLocalSet); e.u32(idx) }
func (e *emitter) globalGet(idx uint32) { e.byte(wasm.OpGlobalGet); e.u32(idx) }
func (e *emitter) globalSet(idx uint32) { e.byte(wasm.OpGlobalSet); e.u32(idx) }
func (e *emitter) call(idx uint32)      { e.byte(wasm.OpCall); e.u32(idx) }

func (e *emitter) i64Eq() { e.byte(wasm.OpI64Eq) }
func (e *emitter) i64Ne() { e.byte(wasm.OpI64Ne) }

func (e *emitter) i32Load(align, offset uint32) {
	e.byte(wasm.OpI32Load)
	e.u32(align)
	e.u32(offset)
}

func (e *emitter) i64Load(align, offset uint32) {
	e.byte(wasm.OpI64Load)
	e.u32(align)
	e.u32(offset)
}

func (e *emitter) i64Store(align, offset uint32) {
	e.byte(wasm.OpI64Store)
	e.u32(align)
	e.u32(offset)
}

// ifBlock begins an `if` with void block type (the condition is already on
// the stack).
func (e *emitter) ifVoid() {
	e.byte(wasm.OpIf)
	e.byte(wasm.BlockTypeVoid)
}

func (e *emitter) elseBlock() { e.byte(wasm.OpElse) }
func (e *emitter) end()       { e.byte(wasm.OpEnd) }
func (e *emitter) ret()       { e.byte(wasm.OpReturn) }

// wrapBody prepends the given locals-declaration encoding and a ULEB128
// length prefix, per §4.6's body-wrapping rule. locals is already the
// fully-encoded locals-declaration-group vector (including its own count
// prefix); callers pass an empty one-byte zero-count vector when the body
// declares no locals.
func wrapBody(code []byte, locals []byte) []byte {
	var body bytes.Buffer
	body.Write(locals)
	body.Write(code)

	var out bytes.Buffer
	wasm.WriteLEB128u(&out, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

// noLocals is the locals-declaration vector for a body with zero local
// groups: a single ULEB128-encoded zero.
var noLocals = []byte{0x00}

// i32Locals2 declares one locals group: 2 locals of type i32 (the sync-call
// dispatcher's `data` and `header` temporaries).
var i32Locals2 = []byte{0x01, 0x02, byte(wasm.ValI32)}
