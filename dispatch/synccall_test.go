package dispatch

import (
	"testing"

	"github.com/eosio-wasm/wasm-ld/symtab"
	"github.com/eosio-wasm/wasm-ld/wasm"
)

func TestBuildSyncCall_FailsWithZeroCalls(t *testing.T) {
	_, err := BuildSyncCall(SyncCallConfig{})
	if err == nil {
		t.Fatal("expected error when no sync-call entries are registered")
	}
}

func TestBuildSyncCall_DispatchesToTarget(t *testing.T) {
	target := &symtab.Symbol{Name: "withdraw", FuncIndex: 9}
	cfg := SyncCallConfig{
		Calls:                 []CallEntry{{Name: "withdraw", Func: target}},
		SetContractName:       1,
		GetSyncCallData:       2,
		GetSyncCallDataHeader: 3,
	}
	body, err := BuildSyncCall(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if countOccurrences(body, []byte{wasm.OpCall, 9}) != 1 {
		t.Error("expected the matched target function to be called exactly once")
	}
	hash := wasm.EncodeLEB128s64(int64(HashID("withdraw")))
	if countOccurrences(body, hash) == 0 {
		t.Error("expected the call's HashID constant to appear as an i64.const operand")
	}
}

func TestBuildSyncCall_DedupsFirstSeenCall(t *testing.T) {
	first := &symtab.Symbol{Name: "withdraw", FuncIndex: 1}
	second := &symtab.Symbol{Name: "withdraw", FuncIndex: 77}
	cfg := SyncCallConfig{
		Calls:                 []CallEntry{{Name: "withdraw", Func: first}, {Name: "withdraw", Func: second}},
		SetContractName:       1,
		GetSyncCallData:       2,
		GetSyncCallDataHeader: 3,
	}
	body, err := BuildSyncCall(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if countOccurrences(body, []byte{wasm.OpCall, 77}) != 0 {
		t.Error("expected duplicate sync-call entry to be dropped")
	}
}

func TestBuildSyncCall_UnknownFunctionFallthrough(t *testing.T) {
	target := &symtab.Symbol{Name: "withdraw", FuncIndex: 9}
	cfg := SyncCallConfig{
		Calls:                 []CallEntry{{Name: "withdraw", Func: target}},
		SetContractName:       1,
		GetSyncCallData:       2,
		GetSyncCallDataHeader: 3,
	}
	body, err := BuildSyncCall(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := wasm.EncodeLEB128s64(SyncCallUnknownFunction)
	if countOccurrences(body, want) == 0 {
		t.Error("expected SYNC_CALL_UNKNOWN_FUNCTION constant in fallthrough path")
	}
}

func TestBuildSyncCall_HeaderVersionGuardPresent(t *testing.T) {
	target := &symtab.Symbol{Name: "withdraw", FuncIndex: 9}
	cfg := SyncCallConfig{
		Calls:                 []CallEntry{{Name: "withdraw", Func: target}},
		SetContractName:       1,
		GetSyncCallData:       2,
		GetSyncCallDataHeader: 3,
	}
	body, err := BuildSyncCall(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := wasm.EncodeLEB128s64(SyncCallUnsupportedHeaderVersion)
	if countOccurrences(body, want) == 0 {
		t.Error("expected SYNC_CALL_UNSUPPORTED_HEADER_VERSION constant in header-version guard")
	}
}

func TestBuildSyncCall_ExecutedFallthroughValue(t *testing.T) {
	target := &symtab.Symbol{Name: "withdraw", FuncIndex: 9}
	cfg := SyncCallConfig{
		Calls:                 []CallEntry{{Name: "withdraw", Func: target}},
		SetContractName:       1,
		GetSyncCallData:       2,
		GetSyncCallDataHeader: 3,
	}
	body, err := BuildSyncCall(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := wasm.EncodeLEB128s64(SyncCallExecuted)
	if countOccurrences(body, want) == 0 {
		t.Error("expected SYNC_CALL_EXECUTED (0) constant as the final fallthrough value")
	}
}

func TestBuildSyncCall_DeclaresTwoI32Locals(t *testing.T) {
	target := &symtab.Symbol{Name: "withdraw", FuncIndex: 9}
	cfg := SyncCallConfig{
		Calls:                 []CallEntry{{Name: "withdraw", Func: target}},
		SetContractName:       1,
		GetSyncCallData:       2,
		GetSyncCallDataHeader: 3,
	}
	body, err := BuildSyncCall(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// body is length-prefixed; the locals vector (0x01 groups, count=2, i32)
	// must appear immediately after the ULEB128 length prefix byte.
	if len(body) < 4 || body[1] != 0x01 || body[2] != 0x02 || body[3] != byte(wasm.ValI32) {
		t.Errorf("expected locals declaration [0x01, 0x02, i32] right after length prefix, got %v", body[:4])
	}
}
