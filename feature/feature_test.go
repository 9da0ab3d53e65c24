package feature

import (
	"testing"

	"github.com/eosio-wasm/wasm-ld/symtab"
)

func TestReconcile_AtomicsRequiresSharedMemory(t *testing.T) {
	obj := &symtab.Object{Name: "a.o", UsedFeatures: []string{"atomics"}}
	_, err := Reconcile(Config{SharedMemory: false}, []*symtab.Object{obj})
	if err == nil {
		t.Fatal("expected error: atomics used without sharedMemory")
	}
}

func TestReconcile_AtomicsDisallowedConflictsWithSharedMemory(t *testing.T) {
	obj := &symtab.Object{Name: "a.o", DisallowedFeatures: []string{"atomics"}}
	_, err := Reconcile(Config{SharedMemory: true}, []*symtab.Object{obj})
	if err == nil {
		t.Fatal("expected error: atomics disallowed but sharedMemory enabled")
	}
}

func TestReconcile_TLSRequiresBulkMemory(t *testing.T) {
	obj := &symtab.Object{Name: "a.o"}
	_, err := Reconcile(Config{AnyTLSSegment: true}, []*symtab.Object{obj})
	if err == nil {
		t.Fatal("expected error: TLS segment present but bulk-memory not used")
	}
}

func TestReconcile_OKWhenBulkMemoryPresent(t *testing.T) {
	obj := &symtab.Object{Name: "a.o", UsedFeatures: []string{"bulk-memory"}}
	_, err := Reconcile(Config{AnyTLSSegment: true}, []*symtab.Object{obj})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReconcile_ConflictingObjectsNameBothFiles(t *testing.T) {
	a := &symtab.Object{Name: "a.o", UsedFeatures: []string{"atomics"}}
	b := &symtab.Object{Name: "b.o", DisallowedFeatures: []string{"atomics"}}
	_, err := Reconcile(Config{SharedMemory: true}, []*symtab.Object{a, b})
	if err == nil {
		t.Fatal("expected feature conflict error")
	}
	msg := err.Error()
	if !containsAll(msg, "a.o") || !containsAll(msg, "b.o") {
		t.Errorf("expected error to name both offending files, got %q", msg)
	}
}

func TestReconcile_UserSpecifiedOverridesInference(t *testing.T) {
	obj := &symtab.Object{Name: "a.o", UsedFeatures: []string{"sign-ext"}}
	res, err := Reconcile(Config{Features: []string{"bulk-memory"}}, []*symtab.Object{obj})
	if err == nil {
		t.Fatal("expected error: used feature not in declared set")
	}
	if !res.UserSpecified {
		t.Error("expected UserSpecified to be true")
	}
}

func containsAll(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
