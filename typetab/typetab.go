// Package typetab implements the Type/Import/Export Calculator (C5): the
// deduplicated type table, the import-eligibility predicate, and export
// enumeration, per §4.5.
package typetab

import (
	"github.com/eosio-wasm/wasm-ld/symtab"
	"github.com/eosio-wasm/wasm-ld/wasm"
)

// Table is the deduplicated output type table.
type Table struct {
	types []wasm.FuncType
}

// Add inserts ft if no structurally equal signature is already present,
// and returns its output index, per §4.5's dedup-by-structural-equality
// rule. Insertion order is preserved for first-seen signatures.
func (t *Table) Add(ft wasm.FuncType) uint32 {
	for i, existing := range t.types {
		if existing.Equal(ft) {
			return uint32(i)
		}
	}
	idx := uint32(len(t.types))
	t.types = append(t.types, ft)
	return idx
}

// Types returns the final deduplicated type list, in insertion order.
func (t *Table) Types() []wasm.FuncType { return t.types }

// Build collects signatures from object type tables (types used in
// relocations — here approximated as every type an object declares, since
// relocation scanning itself is out of scope per §1), imported function/
// event symbols, and defined functions/events, deduplicating by structural
// equality per §4.5.
func Build(objs []*symtab.Object, importedFuncs, importedEvents []*symtab.Symbol) *Table {
	t := &Table{}
	for _, obj := range objs {
		for _, ft := range obj.Types {
			t.Add(ft)
		}
	}
	for _, sym := range importedFuncs {
		t.Add(sym.Signature)
	}
	for _, obj := range objs {
		for _, sym := range obj.Functions {
			if sym.Kind == symtab.DefinedFunction {
				t.Add(sym.Signature)
			}
		}
		for _, sym := range obj.Events {
			if sym.Kind == symtab.DefinedEvent {
				t.Add(sym.Signature)
			}
		}
	}
	for _, sym := range importedEvents {
		t.Add(sym.Signature)
	}
	return t
}

// Importable reports whether sym must be imported, per §4.5:
// undefined ∧ live ∧ usedInRegularObj ∧ ¬(weak ∧ ¬relocatable) ∧ ¬isDataSymbol.
// isDataSymbol is always false here since DefinedData is, by definition,
// never undefined -- kept as a named predicate for readability at call
// sites rather than inlining symtab.Symbol.Importable everywhere.
func Importable(sym *symtab.Symbol, relocatable bool) bool {
	return sym.Importable(relocatable)
}

// ExportRecord is one export section entry; Kind uses the wasm.Kind* byte
// constants.
type ExportRecord struct {
	Name string
	Kind byte
	Idx  uint32
}

// Exports enumerates the export section per §4.5. Only called when
// !relocatable, per the component's gating rule. extraGlobals covers
// linker-synthesized global symbols with no owning Object (the
// __start_*/__stop_* pairs C8 synthesizes for output data segments);
// they're exported the same as any other non-hidden defined global.
func Exports(cfg ExportConfig, objs []*symtab.Object, numImportedGlobals, numDefinedGlobals uint32, extraGlobals ...*symtab.Symbol) []ExportRecord {
	var out []ExportRecord

	if !cfg.ImportMemory {
		out = append(out, ExportRecord{Name: "memory", Kind: wasm.KindMemory, Idx: 0})
	}
	if cfg.ExportTable {
		out = append(out, ExportRecord{Name: "__indirect_function_table", Kind: wasm.KindTable, Idx: 0})
	}

	for _, sym := range extraGlobals {
		if sym.Exportable(cfg.ExportAll) {
			out = append(out, ExportRecord{Name: sym.Name, Kind: wasm.KindGlobal, Idx: sym.GlobalIndex})
		}
	}

	dataIdx := uint32(0)
	for _, obj := range objs {
		for _, sym := range obj.Functions {
			if sym.Exportable(cfg.ExportAll) {
				out = append(out, ExportRecord{Name: sym.Name, Kind: wasm.KindFunc, Idx: sym.FuncIndex})
			}
		}
		for _, sym := range obj.Globals {
			if !sym.Exportable(cfg.ExportAll) {
				continue
			}
			if sym.Kind == symtab.DefinedGlobal && isMutableSkippable(sym) {
				continue
			}
			out = append(out, ExportRecord{Name: sym.Name, Kind: wasm.KindGlobal, Idx: sym.GlobalIndex})
		}
		for _, sym := range obj.Events {
			if sym.Exportable(cfg.ExportAll) {
				out = append(out, ExportRecord{Name: sym.Name, Kind: wasm.KindEvent, Idx: sym.EventIndex})
			}
		}
	}

	// Data symbols export as synthesized "fake globals" whose index is
	// numImportedGlobals + numDefinedGlobals + k for the k-th data export.
	for _, obj := range objs {
		for _, sym := range dataSymbols(obj) {
			if !sym.Exportable(cfg.ExportAll) {
				continue
			}
			out = append(out, ExportRecord{
				Name: sym.Name,
				Kind: wasm.KindGlobal,
				Idx:  numImportedGlobals + numDefinedGlobals + dataIdx,
			})
			dataIdx++
		}
	}

	return out
}

// dataSymbols returns an object's DefinedData symbols. Data symbols live
// alongside globals in symtab's in-memory model since they share the
// "fake global" export representation.
func dataSymbols(obj *symtab.Object) []*symtab.Symbol {
	var out []*symtab.Symbol
	for _, sym := range obj.Globals {
		if sym.Kind == symtab.DefinedData {
			out = append(out, sym)
		}
	}
	return out
}

// isMutableSkippable reports whether a mutable global must be skipped from
// export per §4.5's assertion-level invariant: mutable globals are skipped
// except __stack_pointer/__tls_base.
func isMutableSkippable(sym *symtab.Symbol) bool {
	if sym.Name == "__stack_pointer" || sym.Name == "__tls_base" {
		return false
	}
	return sym.Mutable
}

// ExportConfig carries the subset of driver configuration needed for
// export enumeration.
type ExportConfig struct {
	ImportMemory bool
	ExportTable  bool
	ExportAll    bool
}
