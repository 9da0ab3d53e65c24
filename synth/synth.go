// Package synth implements the Synthetic Function Emitter (C6): it emits
// the bytecode bodies for __wasm_call_ctors, __wasm_init_memory,
// __wasm_apply_relocs, and __wasm_init_tls, per §4.6.
package synth

import (
	"bytes"

	"github.com/eosio-wasm/wasm-ld/symtab"
	"github.com/eosio-wasm/wasm-ld/wasm"
)

// Emitter is a stateful bytecode-emitter struct wrapping a byte buffer,
// following the teacher's SynthModuleBuilder/bridge.Builder pattern: small
// append methods build up a function body incrementally.
type Emitter struct {
	buf bytes.Buffer
}

func (e *Emitter) byte(b byte) { e.buf.WriteByte(b) }

func (e *Emitter) u32(v uint32) { wasm.WriteLEB128u(&e.buf, v) }

func (e *Emitter) i32Const(v int32) {
	e.byte(wasm.OpI32Const)
	wasm.WriteLEB128s64(&e.buf, int64(v))
}

func (e *Emitter) call(funcIdx uint32) {
	e.byte(wasm.OpCall)
	e.u32(funcIdx)
}

func (e *Emitter) localGet(idx uint32) {
	e.byte(wasm.OpLocalGet)
	e.u32(idx)
}

func (e *Emitter) globalSet(idx uint32) {
	e.byte(wasm.OpGlobalSet)
	e.u32(idx)
}

func (e *Emitter) memoryInit(segIdx uint32) {
	e.byte(wasm.OpPrefixMisc)
	e.u32(wasm.MiscMemoryInit)
	e.u32(segIdx)
	e.byte(0x00) // memory index, always 0
}

func (e *Emitter) dataDrop(segIdx uint32) {
	e.byte(wasm.OpPrefixMisc)
	e.u32(wasm.MiscDataDrop)
	e.u32(segIdx)
}

func (e *Emitter) end() { e.byte(wasm.OpEnd) }

// Body wraps accumulated bytecode with a locals-count-0 prefix and a
// ULEB128 length prefix, ready for installation into the code section, per
// §4.6 ("each body declares num_locals=0 ... terminates with END ...
// wrapped with a ULEB128 length prefix").
func (e *Emitter) Body() []byte {
	var body bytes.Buffer
	wasm.WriteLEB128u(&body, 0) // num local-declaration groups
	body.Write(e.buf.Bytes())

	var out bytes.Buffer
	wasm.WriteLEB128u(&out, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

// PassiveSegment is the subset of segment.Output synth needs: an output
// data segment's assigned index, name, and byte size.
type PassiveSegment struct {
	Index uint32
	Name  string
	Size  uint32
}

// InitMemory emits __wasm_init_memory: for each passive non-.tdata
// segment, initialize it from its data segment and drop the data segment,
// per §4.6.
func InitMemory(segs []PassiveSegment, destVAOf func(segIdx uint32) int32) []byte {
	e := &Emitter{}
	for _, seg := range segs {
		if seg.Name == ".tdata" {
			continue
		}
		e.i32Const(destVAOf(seg.Index))
		e.i32Const(0)
		e.i32Const(int32(seg.Size))
		e.memoryInit(seg.Index)
		e.dataDrop(seg.Index)
	}
	e.end()
	return e.Body()
}

// InitTLS emits __wasm_init_tls: local 0 is the destination pointer; it
// sets __tls_base to that pointer, then initializes the .tdata segment at
// offset 0, per §4.6.
func InitTLS(tlsBaseGlobal uint32, tdataSegIdx uint32, tdataSize uint32) []byte {
	e := &Emitter{}
	e.localGet(0)
	e.globalSet(tlsBaseGlobal)
	e.localGet(0)
	e.i32Const(0)
	e.i32Const(int32(tdataSize))
	e.memoryInit(tdataSegIdx)
	e.dataDrop(tdataSegIdx)
	e.end()
	return e.Body()
}

// CallCtors emits __wasm_call_ctors: optionally calls __wasm_init_memory,
// optionally calls __wasm_apply_relocs, then calls each init function in
// stable-sorted priority order, per §4.6 and §3's Init Function Entry
// ordering rule (stable by ascending priority, ties preserve discovery
// order).
func CallCtors(initMemoryFuncIdx, applyRelocsFuncIdx *uint32, initFuncs []symtab.InitFunc) []byte {
	e := &Emitter{}
	if initMemoryFuncIdx != nil {
		e.call(*initMemoryFuncIdx)
	}
	if applyRelocsFuncIdx != nil {
		e.call(*applyRelocsFuncIdx)
	}
	for _, fn := range SortInitFuncs(initFuncs) {
		e.call(fn.Symbol.FuncIndex)
	}
	e.end()
	return e.Body()
}

// SortInitFuncs stable-sorts init functions by ascending priority; ties
// preserve the input (discovery) order, per §3.
func SortInitFuncs(fns []symtab.InitFunc) []symtab.InitFunc {
	out := make([]symtab.InitFunc, len(fns))
	copy(out, fns)
	// insertion sort: stable, and the input is expected to be small
	// (init-function lists are rarely more than a handful of entries).
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Priority > out[j].Priority {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

// RelocationApplier lets each input segment contribute its own relocation-
// application bytecode to __wasm_apply_relocs, per §4.6 ("ask each input
// segment to emit its relocation application code") -- applying a single
// relocation's bytes is out of scope per §1, so this is modeled as a
// caller-supplied hook rather than real relocation-record interpretation.
type RelocationApplier func(seg *symtab.InputSegment, e *Emitter)

// ApplyRelocs emits __wasm_apply_relocs (PIC only): delegates to apply for
// every live input segment with at least one relocation.
func ApplyRelocs(objs []*symtab.Object, apply RelocationApplier) []byte {
	e := &Emitter{}
	for _, obj := range objs {
		for i := range obj.Segments {
			seg := &obj.Segments[i]
			if seg.Live && len(seg.Relocations) > 0 {
				apply(seg, e)
			}
		}
	}
	e.end()
	return e.Body()
}
