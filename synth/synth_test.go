package synth

import (
	"testing"

	"github.com/eosio-wasm/wasm-ld/symtab"
	"github.com/eosio-wasm/wasm-ld/wasm"
)

func TestSortInitFuncs_StableByPriority(t *testing.T) {
	a := &symtab.Symbol{Name: "a"}
	b := &symtab.Symbol{Name: "b"}
	c := &symtab.Symbol{Name: "c"}
	in := []symtab.InitFunc{
		{Symbol: a, Priority: 100},
		{Symbol: b, Priority: 50},
		{Symbol: c, Priority: 50},
	}
	out := SortInitFuncs(in)
	if out[0].Symbol != b || out[1].Symbol != c || out[2].Symbol != a {
		t.Fatalf("expected stable sort [b,c,a], got [%s,%s,%s]", out[0].Symbol.Name, out[1].Symbol.Name, out[2].Symbol.Name)
	}
}

func TestBody_WrapsWithZeroLocalsAndLengthPrefix(t *testing.T) {
	e := &Emitter{}
	e.end()
	body := e.Body()
	// byte 0: length-prefix ULEB128 (1 byte, value 2: 1 local-decl-count byte + 1 END byte)
	if len(body) != 3 {
		t.Fatalf("expected 3-byte body (len-prefix, num-locals=0, END), got %d: %v", len(body), body)
	}
	if body[0] != 2 || body[1] != 0 || body[2] != wasm.OpEnd {
		t.Errorf("unexpected body encoding: %v", body)
	}
}

func TestInitMemory_SkipsTData(t *testing.T) {
	segs := []PassiveSegment{
		{Index: 0, Name: ".tdata", Size: 8},
		{Index: 1, Name: ".rodata", Size: 4},
	}
	body := InitMemory(segs, func(idx uint32) int32 { return int32(idx) * 100 })
	// Just verify it contains the memory.init misc-prefix opcode exactly once
	// (for the non-.tdata segment) by counting 0xFC bytes followed by 0x08.
	count := 0
	for i := 0; i+1 < len(body); i++ {
		if body[i] == wasm.OpPrefixMisc && body[i+1] == byte(wasm.MiscMemoryInit) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly 1 memory.init (tdata skipped), got %d in %v", count, body)
	}
}

func TestCallCtors_CallsInOrder(t *testing.T) {
	initMem := uint32(5)
	a := &symtab.Symbol{Name: "ctor_a", FuncIndex: 10}
	fns := []symtab.InitFunc{{Symbol: a, Priority: 0}}
	body := CallCtors(&initMem, nil, fns)

	// expect: call 5, call 10, end
	expectCall := func(idx int, want byte) int {
		if body[idx] != wasm.OpCall {
			t.Fatalf("expected OpCall at %d, got %#x", idx, body[idx])
		}
		if body[idx+1] != want {
			t.Fatalf("expected call target %d at %d, got %d", want, idx+1, body[idx+1])
		}
		return idx + 2
	}
	// skip length-prefix(1) + num-locals(1)
	i := 2
	i = expectCall(i, 5)
	i = expectCall(i, 10)
	if body[i] != wasm.OpEnd {
		t.Fatalf("expected END at %d, got %#x", i, body[i])
	}
}
