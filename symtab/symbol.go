// Package symtab models the symbol table and object files the linker core
// consumes. Producing these values -- parsing a real .o file, resolving
// undefined references across objects -- is out of scope for this repo (see
// spec §1); this package only defines the shapes later components (segment
// planning, layout, index assignment, dispatcher emission) operate on. It
// has no builder helpers; tests construct these values as struct literals.
package symtab

import "github.com/eosio-wasm/wasm-ld/wasm"

// Kind distinguishes the seven symbol variants named in the data model.
type Kind int

const (
	DefinedFunction Kind = iota
	DefinedGlobal
	DefinedData
	DefinedEvent
	SectionSymbol
	UndefinedFunction
	UndefinedGlobal
)

func (k Kind) String() string {
	switch k {
	case DefinedFunction:
		return "defined_function"
	case DefinedGlobal:
		return "defined_global"
	case DefinedData:
		return "defined_data"
	case DefinedEvent:
		return "defined_event"
	case SectionSymbol:
		return "section_symbol"
	case UndefinedFunction:
		return "undefined_function"
	case UndefinedGlobal:
		return "undefined_global"
	default:
		return "unknown"
	}
}

// IsDefined reports whether the symbol has a body/value in some object file.
func (k Kind) IsDefined() bool {
	switch k {
	case DefinedFunction, DefinedGlobal, DefinedData, DefinedEvent:
		return true
	default:
		return false
	}
}

// IsFunction reports whether the symbol occupies the function index space.
func (k Kind) IsFunction() bool {
	return k == DefinedFunction || k == UndefinedFunction
}

// IsGlobal reports whether the symbol occupies the global index space.
func (k Kind) IsGlobal() bool {
	return k == DefinedGlobal || k == UndefinedGlobal
}

// Visibility controls whether a defined symbol is eligible for export.
type Visibility int

const (
	VisDefault  Visibility = iota // neither hidden nor forced local
	VisHidden                     // excluded from export unless exportAll
	VisLocal                      // never exported, never imported
)

// DataPayload describes where a DefinedData symbol's bytes live.
type DataPayload struct {
	Segment *InputSegment
	Offset  uint32
	Size    uint32
}

// Symbol is a named entity from an input object, or synthesized by the
// linker itself (e.g. __heap_base, __wasm_call_ctors).
//
// Exactly one of the payload fields below is meaningful, selected by Kind:
// Func*/GlobalIndex for function and global symbols, EventIndex for events,
// Data for DefinedData, VirtualAddress for any symbol with a fixed address
// (globals and data also report their VA once layout has run).
type Symbol struct {
	Object *Object // owning object file; nil for purely synthetic symbols

	Name       string
	Kind       Kind
	Visibility Visibility

	Live             bool
	UsedInRegularObj bool
	Weak             bool
	Mutable          bool // meaningful for DefinedGlobal/UndefinedGlobal only

	// Signature is populated for function symbols (defined or undefined);
	// it drives type-table deduplication in C5.
	Signature wasm.FuncType

	FuncIndex      uint32
	GlobalIndex    uint32
	EventIndex     uint32
	VirtualAddress uint64
	Data           *DataPayload

	// Code is the already-resolved function body (locals + instructions,
	// unwrapped -- no outer length prefix), meaningful only for
	// DefinedFunction symbols. Producing these bytes (parsing the input
	// object and applying relocations to them) is out of scope per §1;
	// this field just carries the already-resolved result the object
	// file reports, for the Section Assembler to place in the code
	// section at this symbol's assigned FuncIndex.
	Code []byte

	// The *IndexAssigned flags distinguish "index 0, unassigned" from "index 0,
	// the zeroth entry" -- encodable indices start at 0 so a bool flag is
	// required rather than a sentinel value.
	FuncIndexAssigned   bool
	GlobalIndexAssigned bool
	EventIndexAssigned  bool
}

// IsHidden reports whether the symbol is excluded from export by default.
func (s *Symbol) IsHidden() bool { return s.Visibility == VisHidden }

// IsLocal reports whether the symbol can never be imported or exported.
func (s *Symbol) IsLocal() bool { return s.Visibility == VisLocal }

// Exportable reports whether s is a candidate for the export section per
// §4.5: live, defined, non-local, and (non-hidden or exportAll).
func (s *Symbol) Exportable(exportAll bool) bool {
	if !s.Live || !s.Kind.IsDefined() || s.IsLocal() {
		return false
	}
	return exportAll || !s.IsHidden()
}

// Importable reports whether s must be imported per §4.5:
// undefined ∧ live ∧ usedInRegularObj ∧ ¬(weak ∧ ¬relocatable) ∧ ¬isDataSymbol.
func (s *Symbol) Importable(relocatable bool) bool {
	if s.Kind.IsDefined() || s.Kind == SectionSymbol {
		return false
	}
	if !s.Live || !s.UsedInRegularObj {
		return false
	}
	if s.Weak && !relocatable {
		return false
	}
	return true
}
