package ld

import (
	"github.com/eosio-wasm/wasm-ld/index"
	"github.com/eosio-wasm/wasm-ld/layout"
	"github.com/eosio-wasm/wasm-ld/segment"
	"github.com/eosio-wasm/wasm-ld/symtab"
	"github.com/eosio-wasm/wasm-ld/typetab"
	"github.com/eosio-wasm/wasm-ld/wasm"
)

// buildKnownSections assembles the fixed (non-custom) section contents
// from the pipeline's intermediate state, per §4.10's "calculateTypes;
// calculateExports; ...; addSections" steps.
//
// Global *imports* are collected by the driver for feature/index
// bookkeeping but this linker only ever imports EOSIO host functions in
// practice (no object in the corpus imports a global) -- encoding a
// global-import entry is left unimplemented here and noted in
// DESIGN.md rather than half-built against untested assumptions about
// its init-expression shape.
func buildKnownSections(
	tab *symtab.Table,
	idx *index.Result,
	types *typetab.Table,
	exports []typetab.ExportRecord,
	outs []*segment.Output,
	layoutRes *layout.Result,
	cfg Config,
	importedFuncs []*symtab.Symbol,
	syntheticFuncs []*symtab.Symbol,
	syntheticGlobals []*symtab.Symbol,
	typeList []wasm.FuncType,
	needDataCount bool,
) map[byte][]byte {
	known := make(map[byte][]byte)

	known[wasm.SectionType] = encodeTypeSection(typeList)

	typeIdxOf := func(sym *symtab.Symbol) uint32 {
		return types.Add(sym.Signature)
	}
	known[wasm.SectionImport] = encodeImportSection(importedFuncs, typeIdxOf)

	definedFuncs := orderedDefinedFuncs(tab, syntheticFuncs)
	var funcTypeIdxs []uint32
	var bodies [][]byte
	for _, sym := range definedFuncs {
		funcTypeIdxs = append(funcTypeIdxs, typeIdxOf(sym))
		bodies = append(bodies, sym.Code)
	}
	known[wasm.SectionFunction] = encodeFunctionSection(funcTypeIdxs)
	known[wasm.SectionCode] = encodeCodeSection(bodies)

	if cfg.ExportTable {
		known[wasm.SectionTable] = encodeTableSection(0)
	}

	if !cfg.ImportMemory {
		known[wasm.SectionMemory] = encodeMemorySection(layoutRes.MemPages, layoutRes.MaxPages, layoutRes.HasMax, cfg.Shared)
	}

	known[wasm.SectionGlobal] = encodeGlobalSection(definedGlobalDefs(tab, syntheticGlobals))
	known[wasm.SectionExport] = encodeExportSection(exports)

	entries := dataEntries(outs)
	known[wasm.SectionData] = encodeDataSection(entries)
	if needDataCount {
		known[wasm.SectionDataCount] = encodeDataCountSection(len(entries))
	}

	return known
}

// orderedDefinedFuncs returns every defined function symbol (object and
// synthetic), ordered by assigned FuncIndex. Synthetic functions
// (__wasm_call_ctors, apply, sync_call, ...) are registered on the table
// via Table.Define rather than owned by any Object, so they're passed in
// separately -- the table has no table-wide "every defined function"
// accessor that would otherwise see them.
func orderedDefinedFuncs(tab *symtab.Table, syntheticFuncs []*symtab.Symbol) []*symtab.Symbol {
	byIdx := make(map[uint32]*symtab.Symbol)
	var maxIdx uint32
	add := func(sym *symtab.Symbol) {
		if sym.Kind == symtab.DefinedFunction && sym.FuncIndexAssigned {
			byIdx[sym.FuncIndex] = sym
			if sym.FuncIndex > maxIdx {
				maxIdx = sym.FuncIndex
			}
		}
	}
	for _, obj := range tab.Objects {
		for _, sym := range obj.Functions {
			add(sym)
		}
	}
	for _, sym := range syntheticFuncs {
		add(sym)
	}
	var out []*symtab.Symbol
	for i := uint32(0); i <= maxIdx; i++ {
		if sym, ok := byIdx[i]; ok {
			out = append(out, sym)
		}
	}
	return out
}

// definedGlobalDefs builds the global-section entries for defined
// (non-imported) globals, in assigned GlobalIndex order. Values are
// taken from each symbol's VirtualAddress, which layout/index stages
// have already populated for well-known globals; every global is encoded
// as an i32.const of that value (a pointer into linear memory) except
// __stack_canary, which is a mutable i64 initialized to zero.
// syntheticGlobals covers __stack_pointer, the __start_*/__stop_* pairs
// and __stack_canary, which (like synthetic functions) have no owning
// Object and so aren't reachable through tab.Objects.
func definedGlobalDefs(tab *symtab.Table, syntheticGlobals []*symtab.Symbol) []GlobalDef {
	byIdx := make(map[uint32]*symtab.Symbol)
	var maxIdx uint32
	add := func(sym *symtab.Symbol) {
		if sym.Kind == symtab.DefinedGlobal && sym.GlobalIndexAssigned {
			byIdx[sym.GlobalIndex] = sym
			if sym.GlobalIndex > maxIdx {
				maxIdx = sym.GlobalIndex
			}
		}
	}
	for _, obj := range tab.Objects {
		for _, sym := range obj.Globals {
			add(sym)
		}
	}
	for _, sym := range syntheticGlobals {
		add(sym)
	}
	var out []GlobalDef
	for i := uint32(0); i <= maxIdx; i++ {
		sym, ok := byIdx[i]
		if !ok {
			continue
		}
		if sym.Name == "__stack_canary" {
			out = append(out, GlobalDef{
				Type: wasm.GlobalType{ValType: wasm.ValI64, Mutable: true},
				Init: i64ConstExpr(0),
			})
			continue
		}
		out = append(out, GlobalDef{
			Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: sym.Mutable},
			Init: i32ConstExpr(int32(sym.VirtualAddress)),
		})
	}
	return out
}

func dataEntries(outs []*segment.Output) []DataEntry {
	var entries []DataEntry
	for _, o := range outs {
		var data []byte
		for _, in := range o.Inputs {
			data = append(data, in.Data...)
		}
		e := DataEntry{Passive: o.Passive, Bytes: data}
		if !o.Passive {
			e.Offset = i32ConstExpr(int32(o.StartVA))
		}
		entries = append(entries, e)
	}
	return entries
}
