// Package index implements the Index Assigner (C3): it seals the import
// section and assigns function/global/event indices across synthetic and
// object-defined entities.
package index

import "github.com/eosio-wasm/wasm-ld/symtab"

// Space assigns sequential indices within one index space: imported
// entries first, then (for functions) synthetic entries, then
// object-defined entries, in object iteration order — per §4.3.
type Space struct {
	sealed bool
	next   uint32
}

// Seal marks the import section as closed by setting the flag Sealed
// reports; it does not change how indices are numbered.
func (s *Space) Seal() { s.sealed = true }

// Sealed reports whether imports have been sealed.
func (s *Space) Sealed() bool { return s.sealed }

// assignFunc gives sym the next function index in this space and marks
// it assigned.
// Returns the assigned index.
func (s *Space) assignFunc(sym *symtab.Symbol) uint32 {
	idx := s.next
	s.next++
	sym.FuncIndex = idx
	sym.FuncIndexAssigned = true
	return idx
}

func (s *Space) assignGlobal(sym *symtab.Symbol) uint32 {
	idx := s.next
	s.next++
	sym.GlobalIndex = idx
	sym.GlobalIndexAssigned = true
	return idx
}

func (s *Space) assignEvent(sym *symtab.Symbol) uint32 {
	idx := s.next
	s.next++
	sym.EventIndex = idx
	sym.EventIndexAssigned = true
	return idx
}

// Result holds the three assigned index spaces' final counts, needed by
// later components (export "fake global" indices in C5, bounds checks in
// §8's testable properties).
type Result struct {
	Funcs   *Space
	Globals *Space
	Events  *Space

	NumImportedFuncs   uint32
	NumImportedGlobals uint32
	NumImportedEvents  uint32
}

// AssignFunctions assigns the function index space: imported ∥ synthetic ∥
// object-defined, per §4.3. imported and synthetic are already in their
// desired final order; objs is walked in iteration order for its defined
// functions.
func AssignFunctions(imported, synthetic []*symtab.Symbol, objs []*symtab.Object) *Space {
	sp := &Space{}
	sp.Seal()
	for _, sym := range imported {
		sp.assignFunc(sym)
	}
	for _, sym := range synthetic {
		sp.assignFunc(sym)
	}
	for _, obj := range objs {
		for _, sym := range obj.Functions {
			if sym.Kind == symtab.DefinedFunction && !sym.FuncIndexAssigned {
				sp.assignFunc(sym)
			}
		}
	}
	return sp
}

// AssignGlobals assigns the global index space: imported ∥ synthetic ∥
// object-defined, per §4.3.
func AssignGlobals(imported, synthetic []*symtab.Symbol, objs []*symtab.Object) *Space {
	sp := &Space{}
	sp.Seal()
	for _, sym := range imported {
		sp.assignGlobal(sym)
	}
	for _, sym := range synthetic {
		sp.assignGlobal(sym)
	}
	for _, obj := range objs {
		for _, sym := range obj.Globals {
			if sym.Kind == symtab.DefinedGlobal && !sym.GlobalIndexAssigned {
				sp.assignGlobal(sym)
			}
		}
	}
	return sp
}

// AssignEvents assigns the event index space: imported ∥ object-defined,
// per §4.3 (events have no synthetic tier).
func AssignEvents(imported []*symtab.Symbol, objs []*symtab.Object) *Space {
	sp := &Space{}
	sp.Seal()
	for _, sym := range imported {
		sp.assignEvent(sym)
	}
	for _, obj := range objs {
		for _, sym := range obj.Events {
			if sym.Kind == symtab.DefinedEvent && !sym.EventIndexAssigned {
				sp.assignEvent(sym)
			}
		}
	}
	return sp
}

// Assign runs all three index spaces per §4.3's invariant that assignment
// must complete before any dispatcher bytecode (which encodes absolute
// indices) is emitted.
func Assign(importedFuncs, syntheticFuncs, importedGlobals, syntheticGlobals, importedEvents []*symtab.Symbol, objs []*symtab.Object) *Result {
	funcs := AssignFunctions(importedFuncs, syntheticFuncs, objs)
	globals := AssignGlobals(importedGlobals, syntheticGlobals, objs)
	events := AssignEvents(importedEvents, objs)
	return &Result{
		Funcs:              funcs,
		Globals:            globals,
		Events:             events,
		NumImportedFuncs:   uint32(len(importedFuncs)),
		NumImportedGlobals: uint32(len(importedGlobals)),
		NumImportedEvents:  uint32(len(importedEvents)),
	}
}

// Count returns the total number of indices assigned in this space.
func (s *Space) Count() uint32 { return s.next }
