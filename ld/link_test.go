package ld

import (
	"bytes"
	"testing"

	"github.com/eosio-wasm/wasm-ld/dispatch"
	"github.com/eosio-wasm/wasm-ld/symtab"
	"github.com/eosio-wasm/wasm-ld/wasm"
)

// §8 scenario 1: empty contract, relocatable -- no dispatcher emitted, and
// since no object contributes an ABI fragment, no .abi content is produced.
func TestLink_EmptyContractRelocatable(t *testing.T) {
	tab := symtab.NewTable()
	tab.AddObject(&symtab.Object{Name: "empty.o"})

	res, err := Link(tab, Config{Relocatable: true, GlobalBase: 1024, ZStackSize: 65536})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if res.Diagnostics.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics.Errors())
	}
	if !bytes.HasPrefix(res.Module, []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}) {
		t.Errorf("module missing magic/version header: %v", res.Module[:8])
	}
	if res.ABI != "" {
		t.Errorf("expected no ABI output for an object contributing no ABI fragment, got %q", res.ABI)
	}
}

// §8 scenario 2: a contract with two actions gets an action dispatcher
// whose bytecode tests both actions' encoded names and falls through to
// the no-action guard.
func TestLink_TwoActionsEmitsApplyDispatcher(t *testing.T) {
	tab := symtab.NewTable()

	setContractName := &symtab.Symbol{Name: "eosio_set_contract_name", Kind: symtab.UndefinedFunction, Live: true, UsedInRegularObj: true}
	assertCode := &symtab.Symbol{Name: "eosio_assert_code", Kind: symtab.UndefinedFunction, Live: true, UsedInRegularObj: true}

	transferFn := &symtab.Symbol{Name: "transfer_fn", Kind: symtab.DefinedFunction, Live: true, Code: []byte{wasm.OpEnd}}
	issueFn := &symtab.Symbol{Name: "issue_fn", Kind: symtab.DefinedFunction, Live: true, Code: []byte{wasm.OpEnd}}

	obj := &symtab.Object{
		Name:      "token.o",
		Functions: []*symtab.Symbol{setContractName, assertCode, transferFn, issueFn},
		Actions:   []string{"transfer:transfer_fn", "issue:issue_fn"},
	}
	transferFn.Object, issueFn.Object = obj, obj
	setContractName.Object, assertCode.Object = obj, obj

	tab.AddObject(obj)

	res, err := Link(tab, Config{GlobalBase: 1024, ZStackSize: 65536})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if res.Diagnostics.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics.Errors())
	}

	applySym := tab.Find("apply")
	if applySym == nil || len(applySym.Code) == 0 {
		t.Fatalf("expected a synthesized apply dispatcher body")
	}

	transferName := wasm.EncodeLEB128s64(int64(dispatch.EncodeName("transfer")))
	issueName := wasm.EncodeLEB128s64(int64(dispatch.EncodeName("issue")))
	if !bytes.Contains(applySym.Code, transferName) {
		t.Error("apply dispatcher missing encoded name for \"transfer\"")
	}
	if !bytes.Contains(applySym.Code, issueName) {
		t.Error("apply dispatcher missing encoded name for \"issue\"")
	}

	noAction := wasm.EncodeLEB128s64(dispatch.EOSIOErrorNoAction)
	if !bytes.Contains(applySym.Code, noAction) {
		t.Error("apply dispatcher missing the no-action guard constant")
	}
}

// §8 scenario 5 (stack-first layout): verifies __stack_pointer's initial
// value when -stack-first is set.
func TestLink_StackFirstLayout(t *testing.T) {
	tab := symtab.NewTable()
	tab.AddObject(&symtab.Object{Name: "a.o"})

	_, err := Link(tab, Config{
		StackFirst: true,
		GlobalBase: 1024,
		ZStackSize: 65536,
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	sp := tab.Find("__stack_pointer")
	if sp == nil {
		t.Fatal("expected __stack_pointer to be defined")
	}
	if sp.VirtualAddress != 65536 {
		t.Errorf("__stack_pointer = %d, want 65536", sp.VirtualAddress)
	}
}

// With stackCanary enabled, __stack_canary must be defined as its own
// global (not aliased onto whatever sits at index 0) and the dispatcher
// body must target that real index.
func TestLink_StackCanaryResolvesRealGlobalIndex(t *testing.T) {
	tab := symtab.NewTable()

	setContractName := &symtab.Symbol{Name: "eosio_set_contract_name", Kind: symtab.UndefinedFunction, Live: true, UsedInRegularObj: true}
	assertCode := &symtab.Symbol{Name: "eosio_assert_code", Kind: symtab.UndefinedFunction, Live: true, UsedInRegularObj: true}
	currentTime := &symtab.Symbol{Name: "current_time", Kind: symtab.UndefinedFunction, Live: true, UsedInRegularObj: true}
	transferFn := &symtab.Symbol{Name: "transfer_fn", Kind: symtab.DefinedFunction, Live: true, Code: []byte{wasm.OpEnd}}

	obj := &symtab.Object{
		Name:      "token.o",
		Functions: []*symtab.Symbol{setContractName, assertCode, currentTime, transferFn},
		Actions:   []string{"transfer:transfer_fn"},
	}
	for _, sym := range obj.Functions {
		sym.Object = obj
	}
	tab.AddObject(obj)

	_, err := Link(tab, Config{GlobalBase: 1024, ZStackSize: 65536, StackCanary: true})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	canary := tab.Find("__stack_canary")
	if canary == nil || !canary.GlobalIndexAssigned {
		t.Fatal("expected __stack_canary to be defined and assigned a global index")
	}
	if canary.GlobalIndex == 0 {
		t.Error("expected __stack_canary to receive a non-zero global index in this module (__stack_pointer occupies index 0)")
	}
	applySym := tab.Find("apply")
	if applySym == nil {
		t.Fatal("expected a synthesized apply dispatcher body")
	}
	if !bytes.Contains(applySym.Code, []byte{wasm.OpGlobalSet, byte(canary.GlobalIndex)}) {
		t.Error("apply dispatcher does not target __stack_canary's real resolved global index")
	}
}

// The producers custom section is always present in the assembled
// module, and target_features is present when an object uses a feature.
func TestLink_EmitsProducersAndTargetFeaturesSections(t *testing.T) {
	tab := symtab.NewTable()
	tab.AddObject(&symtab.Object{Name: "a.o", UsedFeatures: []string{"bulk-memory"}})

	res, err := Link(tab, Config{Relocatable: true, GlobalBase: 1024, ZStackSize: 65536})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	if !bytes.Contains(res.Module, []byte("producers")) {
		t.Error("expected a producers custom section in the assembled module")
	}
	if !bytes.Contains(res.Module, []byte("target_features")) {
		t.Error("expected a target_features custom section in the assembled module")
	}
	if !bytes.Contains(res.Module, []byte("bulk-memory")) {
		t.Error("expected the used bulk-memory feature name to appear in target_features")
	}
}

// A contract with a passive data segment (forcing __wasm_init_memory's
// memory.init/data.drop) must carry a data-count section, per the
// bulk-memory proposal's validity requirement.
func TestLink_PassiveSegmentsEmitDataCountSection(t *testing.T) {
	tab := symtab.NewTable()
	tab.AddObject(&symtab.Object{
		Name:         "a.o",
		UsedFeatures: []string{"bulk-memory"},
		Segments: []symtab.InputSegment{
			{Name: "mysection", Data: []byte{1, 2, 3, 4}, Live: true, Passive: true},
		},
	})

	res, err := Link(tab, Config{
		Relocatable:     true,
		GlobalBase:      1024,
		ZStackSize:      65536,
		PassiveSegments: true,
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	if !hasSection(t, res.Module, wasm.SectionDataCount) {
		t.Error("expected a data-count section for a contract with a passive segment")
	}
}

// hasSection walks the module's top-level section headers (skipping the
// 8-byte magic/version preamble) looking for one with the given ID.
func hasSection(t *testing.T, module []byte, want byte) bool {
	t.Helper()
	r := bytes.NewReader(module[8:])
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			t.Fatalf("reading section id: %v", err)
		}
		size, err := wasm.ReadLEB128u(r)
		if err != nil {
			t.Fatalf("reading section size: %v", err)
		}
		if id == want {
			return true
		}
		if _, err := r.Seek(int64(size), 1); err != nil {
			t.Fatalf("skipping section body: %v", err)
		}
	}
	return false
}

// A misaligned zStackSize must fail the link with a configuration error,
// per §4.2's error conditions.
func TestLink_MisalignedStackSizeFails(t *testing.T) {
	tab := symtab.NewTable()
	tab.AddObject(&symtab.Object{Name: "a.o"})

	_, err := Link(tab, Config{GlobalBase: 1024, ZStackSize: 100})
	if err == nil {
		t.Fatal("expected an error for a non-16-aligned zStackSize")
	}
}

// Conflicting declared features (one object uses atomics, another
// disallows it) must fail the link, per §8 scenario 6.
func TestLink_ConflictingFeaturesFail(t *testing.T) {
	tab := symtab.NewTable()
	tab.AddObject(&symtab.Object{Name: "a.o", UsedFeatures: []string{"atomics"}})
	tab.AddObject(&symtab.Object{Name: "b.o", DisallowedFeatures: []string{"atomics"}})

	_, err := Link(tab, Config{Relocatable: true, GlobalBase: 1024, ZStackSize: 65536, SharedMemory: true})
	if err == nil {
		t.Fatal("expected an error for conflicting atomics feature declarations")
	}
}

// cfg.Progress is called once per pipeline phase, in the order Link
// reaches them, when set.
func TestLink_ProgressCallbackFiresInOrder(t *testing.T) {
	tab := symtab.NewTable()
	tab.AddObject(&symtab.Object{Name: "a.o"})

	var phases []string
	_, err := Link(tab, Config{
		Relocatable: true,
		GlobalBase:  1024,
		ZStackSize:  65536,
		Progress:    func(phase string) { phases = append(phases, phase) },
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	want := []string{"segment", "layout", "feature", "index", "synth", "dispatch", "typetab", "section", "write", "abi"}
	if len(phases) != len(want) {
		t.Fatalf("got %d phase notifications %v, want %d: %v", len(phases), phases, len(want), want)
	}
	for i, p := range want {
		if phases[i] != p {
			t.Errorf("phase[%d] = %q, want %q", i, phases[i], p)
		}
	}
}
