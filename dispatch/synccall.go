package dispatch

import (
	"github.com/eosio-wasm/wasm-ld/errors"
	"github.com/eosio-wasm/wasm-ld/symtab"
	"github.com/eosio-wasm/wasm-ld/wasm"
)

// CallEntry is one declared sync-call entry point: `call_name:fn`, per §6.
type CallEntry struct {
	Name string
	Func *symtab.Symbol
}

// Locals for the sync-call dispatcher, per §4.7.2.
const (
	SCSender    uint32 = 0
	SCReceiver  uint32 = 1
	SCDataSize  uint32 = 2
	SCData      uint32 = 3 // declared i32 local
	SCHeader    uint32 = 4 // declared i32 local
)

// SyncCallConfig carries everything BuildSyncCall needs.
type SyncCallConfig struct {
	Calls []CallEntry

	SetContractName          uint32
	GetSyncCallData          uint32 // __eos_get_sync_call_data_
	GetSyncCallDataHeader    uint32 // __eos_get_sync_call_data_header_
	CallCtors                *uint32
	CxaFinalize              *uint32

	Canary *CanaryConfig
}

// BuildSyncCall emits the sync-call dispatcher per §4.7.2.
//
// Fatal precondition: len(cfg.Calls) must be > 0 -- the link fails
// otherwise, per §4.7.2.
func BuildSyncCall(cfg SyncCallConfig) ([]byte, error) {
	calls := dedupCalls(cfg.Calls)
	if len(calls) == 0 {
		return nil, errors.New(errors.PhaseDispatch, errors.KindInvariant).
			Detail("sync-call dispatcher requested with zero registered calls").
			Build()
	}
	if cfg.Canary != nil {
		if err := ValidateCanary(cfg.Canary); err != nil {
			return nil, err
		}
	}

	e := &emitter{}

	e.localGet(SCReceiver)
	e.call(cfg.SetContractName)

	if cfg.CallCtors != nil {
		e.call(*cfg.CallCtors)
	}

	if cfg.Canary != nil {
		emitCanaryPrologue(e, cfg.Canary)
	}

	for _, c := range calls {
		e.localGet(SCDataSize)
		e.call(cfg.GetSyncCallData)
		e.localSet(SCData)

		e.localGet(SCData)
		e.call(cfg.GetSyncCallDataHeader)
		e.localSet(SCHeader)

		emitHeaderVersionGuard(e)

		e.localGet(SCHeader)
		e.i64Load(3, 8)
		e.i64Const(int64(HashID(c.Name)))
		e.i64Eq()
		e.ifVoid()
		e.localGet(SCSender)
		e.localGet(SCReceiver)
		e.localGet(SCDataSize)
		e.localGet(SCData)
		e.call(c.Func.FuncIndex)
		e.elseBlock()
	}

	e.i64Const(SyncCallUnknownFunction)
	e.ret()

	for range calls {
		e.end()
	}

	if cfg.Canary != nil {
		emitCanaryEpilogue(e, cfg.Canary)
	}
	if cfg.CxaFinalize != nil {
		e.i32Const(0)
		e.call(*cfg.CxaFinalize)
	}

	e.i64Const(SyncCallExecuted)
	e.end()

	return wrapBody(e.buf.Bytes(), i32Locals2), nil
}

// emitHeaderVersionGuard emits: if (i32.load(header+0) != 0) return
// SYNC_CALL_UNSUPPORTED_HEADER_VERSION, per §4.7.2.
func emitHeaderVersionGuard(e *emitter) {
	e.localGet(SCHeader)
	e.i32Load(2, 0)
	e.i32Const(0)
	e.byte(wasm.OpI32Ne)
	e.ifVoid()
	e.i64Const(SyncCallUnsupportedHeaderVersion)
	e.ret()
	e.end()
}

func dedupCalls(calls []CallEntry) []CallEntry {
	seen := make(map[string]bool, len(calls))
	var out []CallEntry
	for _, c := range calls {
		if !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	return out
}
