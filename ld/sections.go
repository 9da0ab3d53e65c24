package ld

import (
	"sort"

	"github.com/eosio-wasm/wasm-ld/symtab"
	"github.com/eosio-wasm/wasm-ld/typetab"
	"github.com/eosio-wasm/wasm-ld/wasm"
)

// byteWriter is the subset of wasm.NewWriter()'s buffered-writer methods
// this file needs. wasm.NewWriter returns a concrete type from an
// internal package this package cannot name directly, so section
// encoders here are written against this structurally-satisfied
// interface instead.
type byteWriter interface {
	Byte(b byte)
	WriteBytes(data []byte)
	WriteU32(v uint32)
	WriteS64(v int64)
	WriteName(s string)
	Bytes() []byte
}

// encodeFuncType writes one function-type entry: 0x60, params vec, results vec.
func encodeFuncType(w byteWriter, ft wasm.FuncType) {
	w.Byte(wasm.FuncTypeByte)
	w.WriteU32(uint32(len(ft.Params)))
	for _, p := range ft.Params {
		w.Byte(byte(p))
	}
	w.WriteU32(uint32(len(ft.Results)))
	for _, r := range ft.Results {
		w.Byte(byte(r))
	}
}

func encodeTypeSection(types []wasm.FuncType) []byte {
	if len(types) == 0 {
		return nil
	}
	var w byteWriter = wasm.NewWriter()
	w.WriteU32(uint32(len(types)))
	for _, ft := range types {
		encodeFuncType(w, ft)
	}
	return w.Bytes()
}

// encodeLimits writes a WebAssembly limits record.
func encodeLimits(w byteWriter, l wasm.Limits) {
	if l.Max != nil {
		w.Byte(wasm.LimitsHasMax)
		w.WriteU32(l.Min)
		w.WriteU32(*l.Max)
	} else {
		w.Byte(0x00)
		w.WriteU32(l.Min)
	}
}

// encodeImportSection emits one import entry per symbol in imports, whose
// Signature/typeIdx was already resolved by the type table, per §4.5.
func encodeImportSection(imports []*symtab.Symbol, typeIdxOf func(*symtab.Symbol) uint32) []byte {
	if len(imports) == 0 {
		return nil
	}
	var w byteWriter = wasm.NewWriter()
	w.WriteU32(uint32(len(imports)))
	for _, sym := range imports {
		w.WriteName("env")
		w.WriteName(sym.Name)
		w.Byte(wasm.KindFunc)
		w.WriteU32(typeIdxOf(sym))
	}
	return w.Bytes()
}

// encodeFunctionSection maps each defined function (in assigned index
// order) to its type-table index.
func encodeFunctionSection(typeIdxs []uint32) []byte {
	if len(typeIdxs) == 0 {
		return nil
	}
	var w byteWriter = wasm.NewWriter()
	w.WriteU32(uint32(len(typeIdxs)))
	for _, idx := range typeIdxs {
		w.WriteU32(idx)
	}
	return w.Bytes()
}

// encodeTableSection emits a single funcref table with the given minimum
// size, only when one is needed (exportTable set), per §6's exportTable
// config flag.
func encodeTableSection(minEntries uint32) []byte {
	var w byteWriter = wasm.NewWriter()
	w.WriteU32(1)
	w.Byte(byte(wasm.ValFuncRef))
	encodeLimits(w, wasm.Limits{Min: minEntries})
	return w.Bytes()
}

// encodeMemorySection emits the single linear memory, skipped entirely
// when importMemory is set (the memory is imported instead), per §4.10.
func encodeMemorySection(pages, maxPages uint32, hasMax, shared bool) []byte {
	var w byteWriter = wasm.NewWriter()
	w.WriteU32(1)
	limits := wasm.Limits{Min: pages}
	if hasMax {
		limits.Max = &maxPages
	}
	if shared {
		w.Byte(0x03) // shared + has-max, per the shared-memory proposal's flag byte
		w.WriteU32(limits.Min)
		w.WriteU32(maxPages)
	} else {
		encodeLimits(w, limits)
	}
	return w.Bytes()
}

// GlobalDef is one defined global's type and constant-expression init,
// already resolved by the caller (the layout/dispatch stages that know
// each well-known global's value).
type GlobalDef struct {
	Type wasm.GlobalType
	Init []byte // a const-expr body, e.g. i32.const <VA> end
}

func encodeGlobalSection(globals []GlobalDef) []byte {
	if len(globals) == 0 {
		return nil
	}
	var w byteWriter = wasm.NewWriter()
	w.WriteU32(uint32(len(globals)))
	for _, g := range globals {
		w.Byte(byte(g.Type.ValType))
		if g.Type.Mutable {
			w.Byte(0x01)
		} else {
			w.Byte(0x00)
		}
		w.WriteBytes(g.Init)
	}
	return w.Bytes()
}

func encodeExportSection(exports []typetab.ExportRecord) []byte {
	if len(exports) == 0 {
		return nil
	}
	var w byteWriter = wasm.NewWriter()
	w.WriteU32(uint32(len(exports)))
	for _, e := range exports {
		w.WriteName(e.Name)
		w.Byte(e.Kind)
		w.WriteU32(e.Idx)
	}
	return w.Bytes()
}

// encodeCodeSection emits the code section body given already-wrapped
// function bodies (each produced via synth/dispatch's wrapBody/Body, or
// carried on symtab.Symbol.Code for object-defined functions), in
// assigned function-index order.
func encodeCodeSection(bodies [][]byte) []byte {
	if len(bodies) == 0 {
		return nil
	}
	var w byteWriter = wasm.NewWriter()
	w.WriteU32(uint32(len(bodies)))
	for _, b := range bodies {
		w.WriteBytes(b)
	}
	return w.Bytes()
}

// DataEntry is one output data segment ready for encoding: active
// segments carry an i32.const offset const-expr, passive segments carry
// none (their offset is supplied at `memory.init` time in C6).
type DataEntry struct {
	Passive bool
	Offset  []byte // const-expr body, only for active segments
	Bytes   []byte
}

func encodeDataSection(entries []DataEntry) []byte {
	if len(entries) == 0 {
		return nil
	}
	var w byteWriter = wasm.NewWriter()
	w.WriteU32(uint32(len(entries)))
	for _, e := range entries {
		if e.Passive {
			w.WriteU32(1) // flags=1: passive
		} else {
			w.WriteU32(0) // flags=0: active, memory index 0 implied
			w.WriteBytes(e.Offset)
		}
		w.WriteU32(uint32(len(e.Bytes)))
		w.WriteBytes(e.Bytes)
	}
	return w.Bytes()
}

// i32ConstExpr builds a minimal `i32.const v; end` const-expression body.
func i32ConstExpr(v int32) []byte {
	var w byteWriter = wasm.NewWriter()
	w.Byte(wasm.OpI32Const)
	w.WriteS64(int64(v))
	w.Byte(wasm.OpEnd)
	return w.Bytes()
}

// i64ConstExpr builds a minimal `i64.const v; end` const-expression body,
// used for __stack_canary's zero init.
func i64ConstExpr(v int64) []byte {
	var w byteWriter = wasm.NewWriter()
	w.Byte(wasm.OpI64Const)
	w.WriteS64(v)
	w.Byte(wasm.OpEnd)
	return w.Bytes()
}

// encodeDataCountSection emits the data-count section's sole field: the
// total number of output data segments (active and passive alike), per
// the bulk-memory proposal's requirement that any module containing
// memory.init/data.drop carries one. Callers only call this when C6
// actually emitted one of those instructions (__wasm_init_memory or
// __wasm_init_tls).
func encodeDataCountSection(numSegments int) []byte {
	if numSegments == 0 {
		return nil
	}
	var w byteWriter = wasm.NewWriter()
	w.WriteU32(uint32(numSegments))
	return w.Bytes()
}

// targetFeaturePrefix marks every emitted feature as used-by-this-module,
// per the tool-conventions target_features section format; the
// used/required/disallowed distinction only matters while reconciling
// input objects (feature.Reconcile), not in the linked output.
const targetFeaturePrefix = '+'

// encodeTargetFeaturesSection emits §4.4's target_features custom
// section body (the vector of (prefix, name) pairs following the
// section's own name string, which Assemble's wrapCustomSection adds).
// features is sorted for deterministic output, per §12.
func encodeTargetFeaturesSection(features []string) []byte {
	if len(features) == 0 {
		return nil
	}
	sorted := make([]string, len(features))
	copy(sorted, features)
	sort.Strings(sorted)

	var w byteWriter = wasm.NewWriter()
	w.WriteU32(uint32(len(sorted)))
	for _, f := range sorted {
		w.Byte(targetFeaturePrefix)
		w.WriteName(f)
	}
	return w.Bytes()
}

// encodeProducersSection emits a minimal producers custom section body
// identifying this linker as the tool that processed the module, per
// §4.10's populateProducers step. The original aggregates per-object
// producer metadata (language/sdk/processed-by) read from each input's
// own producers section; parsing that input data is out of scope per
// §1, so this core only ever contributes its own processed-by entry.
func encodeProducersSection(toolName, toolVersion string) []byte {
	var w byteWriter = wasm.NewWriter()
	w.WriteU32(1) // one field: "processed-by"
	w.WriteName("processed-by")
	w.WriteU32(1) // one value for that field
	w.WriteName(toolName)
	w.WriteName(toolVersion)
	return w.Bytes()
}
