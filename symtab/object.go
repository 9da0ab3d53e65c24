package symtab

import "github.com/eosio-wasm/wasm-ld/wasm"

// InitFunc pairs a constructor-priority function symbol with the priority
// value used to order __wasm_call_ctors invocations (lower runs first).
type InitFunc struct {
	Symbol   *Symbol
	Priority uint32
}

// Object represents one parsed input object file's contribution to the
// link: its segments, its symbols (split by index space for convenience),
// its declared feature set, and the EOSIO contract metadata (actions,
// notification handlers, sync-call entries) the dispatcher emitter (C7)
// reads from it.
type Object struct {
	Name string

	Segments  []InputSegment
	Functions []*Symbol
	Globals   []*Symbol
	Events    []*Symbol

	// Types holds this object's local function types, keyed by local type
	// index; C5 re-dedups these into the output type table.
	Types []wasm.FuncType

	CustomSections []wasm.CustomSection

	UsedFeatures       []string
	RequiredFeatures   []string
	DisallowedFeatures []string

	// ABI holds this object's raw ABI JSON fragment, if it contributed one.
	ABI string

	// Actions holds "name:function_symbol" pairs declared via the eosio
	// ACTION / contract macros.
	Actions []string
	// Notify holds "code::action:function_symbol" notification handler
	// triples (code may be the literal wildcard used for "any contract").
	Notify []string
	// Calls holds "call_name:function_symbol" sync-call entry points.
	Calls []string

	InitFunctions []InitFunc
}
