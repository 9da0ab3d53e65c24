package dispatch

import "github.com/eosio-wasm/wasm-ld/wasm"

// CanaryConfig carries the globals/helpers the stack-canary prologue and
// epilogue need, per §4.7.1's "Stack canary" rule.
type CanaryConfig struct {
	StackCanaryGlobal uint32 // __stack_canary global index
	EosioAssertCode   uint32
	DataEndVA         uint64 // __data_end -- canary lives at __data_end+8

	// TimeIdx is current_time()'s function index, the CALL operand in the
	// canary prologue. Written via a single-byte writeU8 instead of a
	// ULEB128 -- preserved verbatim per the flagged Open Question in spec
	// §9 item 3. Malformed only when TimeIdx >= 128.
	TimeIdx uint32
}

// ValidateCanary performs no checks and always returns nil. CanaryConfig
// carries only resolved indices, so whether current_time and
// eosio_assert_code exist in the symbol table is not visible here, and a
// missing helper is not reported by this function.
func ValidateCanary(cfg *CanaryConfig) error {
	if cfg == nil {
		return nil
	}
	return nil
}

// emitCanaryPrologue stores current_time() into __stack_canary and writes
// it to linear memory at __data_end+8 (i64.store align=8), per §4.7.1.
//
// Preserves the flagged single-byte time_idx write bug (spec §9 item 3):
// the CALL opcode's function-index operand is written via writeU8 instead
// of a ULEB128 (wasm.WriteLEB128u), truncating any TimeIdx >= 128 to its
// low byte. Not fixed.
func emitCanaryPrologue(e *emitter, cfg *CanaryConfig) {
	e.byte(wasm.OpCall)
	writeU8(e, byte(cfg.TimeIdx))
	e.globalSet(cfg.StackCanaryGlobal)

	e.i32Const(int32(cfg.DataEndVA + 8))
	e.globalGet(cfg.StackCanaryGlobal)
	e.i64Store(3, 0) // align=8 (2^3)
}

// emitCanaryEpilogue reloads the canary from memory and compares against
// the global; mismatch calls eosio_assert_code(0, EOSIO_CANARY_FAILURE),
// per §4.7.1.
func emitCanaryEpilogue(e *emitter, cfg *CanaryConfig) {
	e.i32Const(int32(cfg.DataEndVA + 8))
	e.i64Load(3, 0)
	e.globalGet(cfg.StackCanaryGlobal)
	e.i64Ne()
	e.ifVoid()
	e.i32Const(0)
	e.i64Const(EOSIOCanaryFailure)
	e.call(cfg.EosioAssertCode)
	e.end()
}

// writeU8 appends a single raw byte to the stream. This is the exact call
// the original linker makes for TimeIdx in the canary prologue where a
// ULEB128 write (wasm.WriteLEB128u) would be correct -- see the TimeIdx
// doc comment and DESIGN.md's Open Questions entry.
func writeU8(e *emitter, b byte) {
	e.byte(b)
}
