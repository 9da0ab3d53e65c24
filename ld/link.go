package ld

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/eosio-wasm/wasm-ld/abimerge"
	"github.com/eosio-wasm/wasm-ld/dispatch"
	"github.com/eosio-wasm/wasm-ld/errors"
	"github.com/eosio-wasm/wasm-ld/feature"
	"github.com/eosio-wasm/wasm-ld/index"
	"github.com/eosio-wasm/wasm-ld/layout"
	"github.com/eosio-wasm/wasm-ld/section"
	"github.com/eosio-wasm/wasm-ld/segment"
	"github.com/eosio-wasm/wasm-ld/symtab"
	"github.com/eosio-wasm/wasm-ld/synth"
	"github.com/eosio-wasm/wasm-ld/typetab"
	"github.com/eosio-wasm/wasm-ld/wasm"
	"go.uber.org/zap"
)

// Result is the output of a successful Link: the module bytes, the
// merged ABI (empty if no object contributed one, per §12's --no-abi
// passthrough, or if an ABI fragment was not valid JSON), and the
// accumulated non-fatal diagnostics.
type Result struct {
	Module      []byte
	ABI         string
	Diagnostics *Diagnostics
}

// Link runs the full C1-C10 pipeline over tab per §4.10's sequence.
func Link(tab *symtab.Table, cfg Config) (*Result, error) {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	diag := &Diagnostics{}

	globalBase := cfg.GlobalBase
	if cfg.Relocatable || cfg.IsPic {
		globalBase = 0
	}
	tableBase := uint32(1)
	if cfg.IsPic {
		tableBase = 0
	}
	_ = tableBase // reserved for indirect-call table layout; no indirect calls in this dispatcher model

	// C1: Segment Planner.
	cfg.notify("segment")
	segPolicy := segment.Policy{
		IsPic:           cfg.IsPic,
		MergeDataSegs:   cfg.MergeDataSegments,
		PassiveSegments: cfg.PassiveSegments,
	}
	outs, abis := segment.Plan(tab.Objects, segPolicy)

	// Well-known layout values, written by layout.Plan. __stack_pointer is
	// also defined on the table as a synthetic global once layout has run;
	// the other values are not defined as symbols and are passed directly
	// to the stages that read them.
	var globalBaseVA, dsoHandleVA, dataEndVA, stackPointerVA, tlsSizeVA, heapBaseVA uint64
	layoutSyms := layout.Symbols{
		GlobalBase:   &globalBaseVA,
		DSOHandle:    &dsoHandleVA,
		DataEnd:      &dataEndVA,
		StackPointer: &stackPointerVA,
		TLSSize:      &tlsSizeVA,
		HeapBase:     &heapBaseVA,
	}

	// C2: Memory Layout Engine.
	cfg.notify("layout")
	layoutCfg := layout.Config{
		GlobalBase:    globalBase,
		ZStackSize:    cfg.ZStackSize,
		InitialMemory: cfg.InitialMemory,
		MaxMemory:     cfg.MaxMemory,
		StackFirst:    cfg.StackFirst,
		Relocatable:   cfg.Relocatable,
		IsPic:         cfg.IsPic,
		Shared:        cfg.Shared,
		SharedMemory:  cfg.SharedMemory,
	}
	layoutRes, err := layout.Plan(layoutCfg, outs, layoutSyms)
	if err != nil {
		return nil, err
	}
	stackPointerSym := &symtab.Symbol{Name: "__stack_pointer", Kind: symtab.DefinedGlobal, Live: true, Mutable: true, Visibility: symtab.VisHidden, VirtualAddress: stackPointerVA}
	tab.Define(stackPointerSym)

	var startStop []section.StartStopSymbol
	if !cfg.Relocatable {
		startStop = section.StartStopSymbols(outs)
	}
	var startStopGlobals []*symtab.Symbol
	for _, s := range startStop {
		start := &symtab.Symbol{Name: "__start_" + s.Name, Kind: symtab.DefinedGlobal, Live: true, VirtualAddress: s.StartVA}
		stop := &symtab.Symbol{Name: "__stop_" + s.Name, Kind: symtab.DefinedGlobal, Live: true, VirtualAddress: s.EndVA}
		tab.Define(start)
		tab.Define(stop)
		startStopGlobals = append(startStopGlobals, start, stop)
	}

	// C4: Feature Reconciler.
	cfg.notify("feature")
	anyTLS := false
	for _, out := range outs {
		if out.TLS {
			anyTLS = true
		}
	}
	featRes, err := feature.Reconcile(feature.Config{
		SharedMemory:    cfg.SharedMemory,
		CheckFeatures:   cfg.CheckFeatures,
		Features:        cfg.Features,
		PassiveSegments: cfg.PassiveSegments,
		AnyTLSSegment:   anyTLS,
	}, tab.Objects)
	if err != nil {
		return nil, err
	}

	// C3: Index Assigner. Imported functions are every live undefined
	// function symbol across objects; synthetic functions are the
	// dispatcher/ctor helpers the driver may emit below, registered on
	// the table before this point so they're assignable uniformly.
	importedFuncs := tab.UndefinedFunctions(cfg.Relocatable)
	var importedGlobals, importedEvents []*symtab.Symbol
	for _, obj := range tab.Objects {
		for _, sym := range obj.Globals {
			if sym.Importable(cfg.Relocatable) {
				importedGlobals = append(importedGlobals, sym)
			}
		}
		for _, sym := range obj.Events {
			if sym.Importable(cfg.Relocatable) {
				importedEvents = append(importedEvents, sym)
			}
		}
	}

	var syntheticFuncs []*symtab.Symbol
	needInitMemory := hasPassiveNonTLS(outs)
	needInitTLS := anyTLS
	needCallCtors := true
	needApplyRelocs := cfg.IsPic

	initMemorySym := maybeSynthFunc(tab, "__wasm_init_memory", needInitMemory, &syntheticFuncs)
	initTLSSym := maybeSynthFunc(tab, "__wasm_init_tls", needInitTLS, &syntheticFuncs)
	applyRelocsSym := maybeSynthFunc(tab, "__wasm_apply_relocs", needApplyRelocs, &syntheticFuncs)
	callCtorsSym := maybeSynthFunc(tab, "__wasm_call_ctors", needCallCtors, &syntheticFuncs)

	wantApply := !cfg.OtherModel && tab.EntryIsUndefined() && hasAnyContractEntries(tab.Objects)
	wantSyncCall := anyHasSyncCalls(tab.Objects) && tab.SyncCallEntryIsUndefined()
	applySym := maybeSynthFunc(tab, "apply", wantApply, &syntheticFuncs)
	syncCallSym := maybeSynthFunc(tab, "sync_call", wantSyncCall, &syntheticFuncs)

	syntheticGlobals := append([]*symtab.Symbol{stackPointerSym}, startStopGlobals...)
	maybeSynthGlobal(tab, "__stack_canary", cfg.StackCanary, &syntheticGlobals)

	cfg.notify("index")
	idx := index.Assign(importedFuncs, syntheticFuncs, importedGlobals, syntheticGlobals, importedEvents, tab.Objects)

	// C6: synthetic function bodies, once indices are stable.
	cfg.notify("synth")
	var initFuncs []symtab.InitFunc
	for _, obj := range tab.Objects {
		initFuncs = append(initFuncs, obj.InitFunctions...)
	}
	initFuncs = synth.SortInitFuncs(initFuncs)

	if initMemorySym != nil {
		initMemorySym.Code = synth.InitMemory(passiveSegmentsOf(outs), func(segIdx uint32) int32 {
			return int32(outs[segIdx].StartVA)
		})
	}
	if initTLSSym != nil {
		tdataIdx, tdataSize := tdataSegment(outs)
		initTLSSym.Code = synth.InitTLS(0, tdataIdx, tdataSize)
	}
	if applyRelocsSym != nil {
		applyRelocsSym.Code = synth.ApplyRelocs(tab.Objects, func(seg *symtab.InputSegment, e *synth.Emitter) {
			// Relocation *application* is out of scope per §1; this
			// callback exists so ApplyRelocs can walk every relocatable
			// segment, but emits nothing per-entry here.
		})
	}
	if callCtorsSym != nil {
		var initMemIdx, applyRelocsIdx *uint32
		if initMemorySym != nil {
			v := initMemorySym.FuncIndex
			initMemIdx = &v
		}
		if applyRelocsSym != nil {
			v := applyRelocsSym.FuncIndex
			applyRelocsIdx = &v
		}
		callCtorsSym.Code = synth.CallCtors(initMemIdx, applyRelocsIdx, initFuncs)
	}

	// C7: dispatcher bodies.
	cfg.notify("dispatch")
	if applySym != nil {
		actions, notify := collectActionsAndNotify(tab.Objects, tab)
		var canary *dispatch.CanaryConfig
		if cfg.StackCanary {
			canary = buildCanaryConfig(tab, dataEndVA)
		}
		body, err := dispatch.BuildApply(dispatch.ApplyConfig{
			Actions:         actions,
			Notify:          notify,
			SetContractName: funcIdxOrZero(tab, "eosio_set_contract_name"),
			EosioAssertCode: funcIdxOrZero(tab, "eosio_assert_code"),
			CallCtors:       funcIdxPtr(callCtorsSym),
			PreDispatch:     funcIdxPtrByName(tab, "pre_dispatch"),
			PostDispatch:    funcIdxPtrByName(tab, "post_dispatch"),
			CxaFinalize:     funcIdxPtrByName(tab, "__cxa_finalize"),
			Canary:          canary,
		})
		if err != nil {
			diag.Error(err)
		} else {
			applySym.Code = body
		}
	}
	if syncCallSym != nil {
		calls := collectCalls(tab.Objects, tab)
		var canary *dispatch.CanaryConfig
		if cfg.StackCanary {
			canary = buildCanaryConfig(tab, dataEndVA)
		}
		body, err := dispatch.BuildSyncCall(dispatch.SyncCallConfig{
			Calls:                 calls,
			SetContractName:       funcIdxOrZero(tab, "eosio_set_contract_name"),
			GetSyncCallData:       funcIdxOrZero(tab, "__eos_get_sync_call_data_"),
			GetSyncCallDataHeader: funcIdxOrZero(tab, "__eos_get_sync_call_data_header_"),
			CallCtors:             funcIdxPtr(callCtorsSym),
			CxaFinalize:           funcIdxPtrByName(tab, "__cxa_finalize"),
			Canary:                canary,
		})
		if err != nil {
			diag.Error(err)
		} else {
			syncCallSym.Code = body
		}
	}

	// Early-return checkpoint after dispatcher emission, per §5.
	if diag.HasErrors() {
		return &Result{Diagnostics: diag}, errors.Invariant(errors.PhaseDispatch, "dispatcher emission reported errors")
	}

	// C5: Type/Import/Export Calculator.
	cfg.notify("typetab")
	types := typetab.Build(tab.Objects, importedFuncs, importedEvents)
	exportCfg := typetab.ExportConfig{
		ImportMemory: cfg.ImportMemory,
		ExportTable:  cfg.ExportTable,
		ExportAll:    cfg.ExportAll,
	}
	var exports []typetab.ExportRecord
	if !cfg.Relocatable {
		exports = typetab.Exports(exportCfg, tab.Objects, idx.NumImportedGlobals, idx.Globals.Count()-idx.NumImportedGlobals, syntheticGlobals...)
	}

	// C9: custom/reloc sections.
	cfg.notify("section")
	var inputCustom []section.InputCustomSection
	for _, obj := range tab.Objects {
		for _, cs := range obj.CustomSections {
			inputCustom = append(inputCustom, section.InputCustomSection{Name: cs.Name, Data: cs.Data})
		}
	}
	customOuts := section.GroupInputCustomSections(section.CustomSectionPolicy{
		StripDebug: cfg.StripDebug,
		StripAll:   cfg.StripAll,
	}, inputCustom)

	// reloc.CODE/reloc.DATA mirror sections are named and gated correctly
	// (emitted only when relocatable||emitRelocs, and only when their
	// target section actually carries relocations), but their per-entry
	// record payload is left empty here: a faithful record needs the
	// target section's final SectionIndex, which section.Assemble (run
	// below) doesn't decide until after these custom sections are handed
	// to it -- encoding real records would need a second assemble pass
	// keyed off the first one's output, and relocation *application* is
	// already out of scope per §1, so this core stops at a structurally
	// correct but payload-empty mirror section. See DESIGN.md.
	if cfg.Relocatable || cfg.EmitRelocs {
		var entries []section.RelocEntry
		codeRelocs, dataRelocs := countRelocations(outs)
		entries = append(entries,
			section.RelocEntry{SectionID: wasm.SectionCode, RelocCount: codeRelocs, RelocBytes: nil},
			section.RelocEntry{SectionID: wasm.SectionData, RelocCount: dataRelocs, RelocBytes: nil},
		)
		customOuts = append(customOuts, section.BuildRelocSections(entries, wasm.SectionCode, wasm.SectionData)...)
	}

	// producers/target_features, per §4.10's populateProducers/
	// populateTargetFeatures steps.
	customOuts = append(customOuts, section.Output{
		Name:  "producers",
		Bytes: encodeProducersSection("eosio-ld", "1.0.0"),
	})
	if featureNames := featRes.Used.Names(); len(featureNames) > 0 {
		customOuts = append(customOuts, section.Output{
			Name:  "target_features",
			Bytes: encodeTargetFeaturesSection(featureNames),
		})
	}

	cfg.notify("write")
	needDataCount := initMemorySym != nil || initTLSSym != nil
	known := buildKnownSections(tab, idx, types, exports, outs, layoutRes, cfg, importedFuncs, syntheticFuncs, syntheticGlobals, types.Types(), needDataCount)

	headerSize := uint64(8) // magic (4) + version (4)
	assembled, fileSize := section.Assemble(known, customOuts, headerSize)

	buf := make([]byte, fileSize)
	writeHeader(buf)
	if err := section.WriteAll(buf, assembled); err != nil {
		return nil, errors.IO("failed writing sections", err)
	}

	if cfg.Verify {
		if err := Verify(context.Background(), buf, importedFuncs); err != nil {
			return nil, errors.New(errors.PhaseWrite, errors.KindStructural).
				Detail("module failed wazero verification").
				Cause(err).
				Build()
		}
	}

	cfg.notify("abi")
	abi := ""
	if len(abis) > 0 {
		merger := abimerge.JSONMerger{}
		abi, err = merger.Merge(abis[len(abis)-1], abis)
		if err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if !stderrors.As(err, &syntaxErr) && !stderrors.As(err, &typeErr) {
				return nil, errors.ABIMergeFailed(err)
			}
			log.Warn("failed to write ABI", zap.Error(err))
			abi = ""
		}
	}

	log.Info("link complete",
		zap.Int("fileSize", len(buf)),
		zap.Bool("hasABI", abi != ""),
		zap.Int("diagnostics", diag.Count()),
	)

	return &Result{Module: buf, ABI: abi, Diagnostics: diag}, nil
}

func writeHeader(buf []byte) {
	buf[0], buf[1], buf[2], buf[3] = 0x00, 'a', 's', 'm'
	buf[4], buf[5], buf[6], buf[7] = 0x01, 0x00, 0x00, 0x00
}

func hasPassiveNonTLS(outs []*segment.Output) bool {
	for _, o := range outs {
		if o.Passive && o.Name != ".tdata" {
			return true
		}
	}
	return false
}

func passiveSegmentsOf(outs []*segment.Output) []synth.PassiveSegment {
	var segs []synth.PassiveSegment
	for i, o := range outs {
		if o.Passive {
			segs = append(segs, synth.PassiveSegment{Index: uint32(i), Name: o.Name, Size: uint32(o.Size)})
		}
	}
	return segs
}

func tdataSegment(outs []*segment.Output) (idx uint32, size uint32) {
	for i, o := range outs {
		if o.Name == ".tdata" {
			return uint32(i), uint32(o.Size)
		}
	}
	return 0, 0
}

func countRelocations(outs []*segment.Output) (code, data int) {
	for _, o := range outs {
		for _, in := range o.Inputs {
			if o.Name == ".text" {
				code += len(in.Relocations)
			} else {
				data += len(in.Relocations)
			}
		}
	}
	return
}

// maybeSynthFunc defines a linker-synthesized function symbol on the
// table when want is true, appending it to *into for index assignment.
func maybeSynthFunc(tab *symtab.Table, name string, want bool, into *[]*symtab.Symbol) *symtab.Symbol {
	if !want {
		return nil
	}
	sym := &symtab.Symbol{Name: name, Kind: symtab.DefinedFunction, Live: true}
	tab.Define(sym)
	*into = append(*into, sym)
	return sym
}

// maybeSynthGlobal defines a linker-synthesized global symbol on the
// table when want is true, appending it to *into for index assignment.
// Synthesized globals are always local (never exported), mirroring
// maybeSynthFunc's treatment of dispatcher helpers.
func maybeSynthGlobal(tab *symtab.Table, name string, want bool, into *[]*symtab.Symbol) *symtab.Symbol {
	if !want {
		return nil
	}
	sym := &symtab.Symbol{Name: name, Kind: symtab.DefinedGlobal, Live: true, Mutable: true, Visibility: symtab.VisLocal}
	tab.Define(sym)
	*into = append(*into, sym)
	return sym
}

func hasAnyContractEntries(objs []*symtab.Object) bool {
	for _, obj := range objs {
		if len(obj.Actions) > 0 || len(obj.Notify) > 0 {
			return true
		}
	}
	return false
}

func anyHasSyncCalls(objs []*symtab.Object) bool {
	for _, obj := range objs {
		if len(obj.Calls) > 0 {
			return true
		}
	}
	return false
}

func funcIdxOrZero(tab *symtab.Table, name string) uint32 {
	if sym := tab.Find(name); sym != nil {
		return sym.FuncIndex
	}
	return 0
}

func globalIdxOrZero(tab *symtab.Table, name string) uint32 {
	if sym := tab.Find(name); sym != nil {
		return sym.GlobalIndex
	}
	return 0
}

func funcIdxPtr(sym *symtab.Symbol) *uint32 {
	if sym == nil {
		return nil
	}
	v := sym.FuncIndex
	return &v
}

// funcIdxPtrByName resolves an optional hook by name -- present whether
// the object defines it itself or a host import provides it, per
// §4.7.1's "if present" hook protocol. It returns nil when the name was
// never declared, or when its symbol was never given a function index.
func funcIdxPtrByName(tab *symtab.Table, name string) *uint32 {
	sym := tab.Find(name)
	if sym == nil || !sym.FuncIndexAssigned {
		return nil
	}
	return funcIdxPtr(sym)
}

// collectActionsAndNotify parses each object's "name:fn" / "code::action:fn"
// declarations into dispatch entries, resolving fn against the table.
func collectActionsAndNotify(objs []*symtab.Object, tab *symtab.Table) ([]dispatch.ActionEntry, []dispatch.NotifyEntry) {
	var actions []dispatch.ActionEntry
	var notify []dispatch.NotifyEntry
	for _, obj := range objs {
		for _, a := range obj.Actions {
			name, fnName, ok := splitPair(a, ":")
			if !ok {
				continue
			}
			if fn := tab.Find(fnName); fn != nil {
				actions = append(actions, dispatch.ActionEntry{Name: name, Func: fn})
			}
		}
		for _, n := range obj.Notify {
			rest, fnName, ok := splitPair(n, ":")
			if !ok {
				continue
			}
			code, action, ok := splitPair(rest, "::")
			if !ok {
				continue
			}
			if fn := tab.Find(fnName); fn != nil {
				notify = append(notify, dispatch.NotifyEntry{Code: code, Action: action, Func: fn})
			}
		}
	}
	return actions, notify
}

func collectCalls(objs []*symtab.Object, tab *symtab.Table) []dispatch.CallEntry {
	var calls []dispatch.CallEntry
	for _, obj := range objs {
		for _, c := range obj.Calls {
			name, fnName, ok := splitPair(c, ":")
			if !ok {
				continue
			}
			if fn := tab.Find(fnName); fn != nil {
				calls = append(calls, dispatch.CallEntry{Name: name, Func: fn})
			}
		}
	}
	return calls
}

func splitPair(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+len(sep):], true
}

// buildCanaryConfig resolves the canary protocol's helper indices.
// StackCanaryGlobal is __stack_canary's real assigned index, resolved
// from the table like every other well-known symbol -- it is only ever
// called once that global has been synthesized (cfg.StackCanary implies
// maybeSynthGlobal already defined it), so the zero fallback never
// actually fires here.
// TimeIdx is current_time()'s resolved function index, fed straight into
// the prologue's buggy single-byte CALL operand write (see
// dispatch.CanaryConfig's doc comment) -- malformed only once a module
// has >=128 imports/functions ahead of current_time in the index space.
func buildCanaryConfig(tab *symtab.Table, dataEndVA uint64) *dispatch.CanaryConfig {
	return &dispatch.CanaryConfig{
		StackCanaryGlobal: globalIdxOrZero(tab, "__stack_canary"),
		EosioAssertCode:   funcIdxOrZero(tab, "eosio_assert_code"),
		DataEndVA:         dataEndVA,
		TimeIdx:           funcIdxOrZero(tab, "current_time"),
	}
}
