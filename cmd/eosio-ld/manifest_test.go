package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eosio-wasm/wasm-ld/symtab"
)

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadObjects_Basic(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "token.json", `{
		"name": "token.o",
		"functions": [
			{"name": "transfer_fn", "kind": "defined_function", "code_hex": "0b"},
			{"name": "eosio_assert_code", "kind": "undefined_function", "used_in_regular_obj": true}
		],
		"segments": [
			{"name": ".data.foo", "data_hex": "deadbeef", "align": 4, "live": true}
		],
		"actions": ["transfer:transfer_fn"]
	}`)

	tab, err := LoadObjects([]string{path})
	if err != nil {
		t.Fatalf("LoadObjects: %v", err)
	}
	if len(tab.Objects) != 1 {
		t.Fatalf("got %d objects, want 1", len(tab.Objects))
	}
	obj := tab.Objects[0]
	if obj.Name != "token.o" {
		t.Errorf("object name = %q, want token.o", obj.Name)
	}
	if len(obj.Segments) != 1 || obj.Segments[0].Data[0] != 0xde {
		t.Fatalf("segment data not decoded correctly: %+v", obj.Segments)
	}
	if obj.Actions[0] != "transfer:transfer_fn" {
		t.Errorf("actions not carried through: %v", obj.Actions)
	}

	sym := tab.Find("transfer_fn")
	if sym == nil || sym.Kind != symtab.DefinedFunction {
		t.Fatalf("expected transfer_fn to resolve as a defined function, got %+v", sym)
	}
	if len(sym.Code) != 1 || sym.Code[0] != 0x0b {
		t.Errorf("code_hex not decoded correctly: %x", sym.Code)
	}

	undef := tab.Find("eosio_assert_code")
	if undef == nil || undef.Kind != symtab.UndefinedFunction {
		t.Fatalf("expected eosio_assert_code to resolve as undefined, got %+v", undef)
	}
}

func TestLoadObjects_MultipleObjectsPreserveOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeManifest(t, dir, "a.json", `{"name": "a.o"}`)
	b := writeManifest(t, dir, "b.json", `{"name": "b.o"}`)

	tab, err := LoadObjects([]string{a, b})
	if err != nil {
		t.Fatalf("LoadObjects: %v", err)
	}
	if len(tab.Objects) != 2 || tab.Objects[0].Name != "a.o" || tab.Objects[1].Name != "b.o" {
		t.Fatalf("objects out of order: %+v", tab.Objects)
	}
}

func TestLoadObjects_InitFunctionResolvesSymbol(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "ctor.json", `{
		"name": "ctor.o",
		"functions": [
			{"name": "__static_init", "kind": "defined_function", "code_hex": "0b"}
		],
		"init_functions": [
			{"symbol": "__static_init", "priority": 65535}
		]
	}`)

	tab, err := LoadObjects([]string{path})
	if err != nil {
		t.Fatalf("LoadObjects: %v", err)
	}
	obj := tab.Objects[0]
	if len(obj.InitFunctions) != 1 {
		t.Fatalf("expected 1 init function, got %d", len(obj.InitFunctions))
	}
	if obj.InitFunctions[0].Symbol.Name != "__static_init" || obj.InitFunctions[0].Priority != 65535 {
		t.Errorf("init function not resolved correctly: %+v", obj.InitFunctions[0])
	}
}

func TestLoadObjects_UnknownInitFunctionSymbolFails(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "bad.json", `{
		"name": "bad.o",
		"init_functions": [{"symbol": "nonexistent", "priority": 0}]
	}`)

	if _, err := LoadObjects([]string{path}); err == nil {
		t.Fatal("expected an error for an init function referencing an unknown symbol")
	}
}

func TestLoadObjects_UnknownKindFails(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "bad.json", `{
		"name": "bad.o",
		"functions": [{"name": "f", "kind": "not_a_real_kind"}]
	}`)

	if _, err := LoadObjects([]string{path}); err == nil {
		t.Fatal("expected an error for an unknown symbol kind")
	}
}

func TestLoadObjects_MissingFileFails(t *testing.T) {
	if _, err := LoadObjects([]string{"/nonexistent/path.json"}); err == nil {
		t.Fatal("expected an error for a missing manifest file")
	}
}
