package wasm

// FuncType is a WebAssembly function signature: zero or more parameter
// value types followed by zero or more result value types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether a and b have identical parameter and result lists.
// The type table (C5) uses this for structural deduplication.
func (a FuncType) Equal(b FuncType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}

// Import represents an imported function, table, memory, or global.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item. Kind uses the Kind* byte constants.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// TableType describes a table with element type and size limits.
type TableType struct {
	Limits   Limits
	ElemType byte
}

// MemoryType describes a linear memory with size limits, in WASM page units.
type MemoryType struct {
	Limits Limits
	Shared bool
}

// Limits describes size constraints for tables and memories.
type Limits struct {
	Max *uint32
	Min uint32
}

// GlobalType describes a global variable's value type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global represents a global variable with type and a constant init expr.
type Global struct {
	Type GlobalType
	Init []byte
}

// TagType describes an exception-handling event tag: a function type with
// no results, referenced by type index.
type TagType struct {
	Attribute byte
	TypeIdx   uint32
}

// Export describes an exported item. Kind uses the Kind* byte constants.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Element is an active element segment initializing a table with function
// indices. The synthesized modules this linker emits never need passive or
// declarative element segments, so only the active form is modeled.
type Element struct {
	Offset   []byte
	FuncIdxs []uint32
	TableIdx uint32
}

// DataSegment is a data segment. Flags follows the WASM encoding: 0 active
// (memIdx implicitly 0), 1 passive, 2 active with explicit memIdx.
type DataSegment struct {
	Offset []byte
	Init   []byte
	Flags  uint32
	MemIdx uint32
}

// CustomSection holds a named custom section's raw payload.
type CustomSection struct {
	Name string
	Data []byte
}
