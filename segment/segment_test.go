package segment

import (
	"testing"

	"github.com/eosio-wasm/wasm-ld/symtab"
)

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		p    Policy
		want string
	}{
		{"pic forces data", ".rodata.str1.1", Policy{IsPic: true}, ".data"},
		{"tdata merges", ".tdata.foo", Policy{}, ".tdata"},
		{"tbss merges into tdata", ".tbss", Policy{}, ".tdata"},
		{"text merge", ".text.foo", Policy{MergeDataSegs: true}, ".text"},
		{"data merge", ".data.bar", Policy{MergeDataSegs: true}, ".data"},
		{"no merge passthrough", ".text.foo", Policy{MergeDataSegs: false}, ".text.foo"},
		{"unrelated passthrough", ".custom_section", Policy{}, ".custom_section"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalName(tt.in, tt.p); got != tt.want {
				t.Errorf("CanonicalName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlan_SkipsDeadSegments(t *testing.T) {
	obj := &symtab.Object{
		Name: "a.o",
		Segments: []symtab.InputSegment{
			{Name: ".data", Data: []byte{1, 2, 3}, Live: true},
			{Name: ".data", Data: []byte{9, 9}, Live: false},
		},
		ABI: `{"actions":[]}`,
	}
	outs, abis := Plan([]*symtab.Object{obj}, Policy{})
	if len(outs) != 1 {
		t.Fatalf("expected 1 output segment, got %d", len(outs))
	}
	if outs[0].Size != 3 {
		t.Errorf("expected size 3 (dead segment skipped), got %d", outs[0].Size)
	}
	if len(abis) != 1 || abis[0] != obj.ABI {
		t.Errorf("expected abi list [%q], got %v", obj.ABI, abis)
	}
}

func TestPlan_TDataAlwaysPassive(t *testing.T) {
	obj := &symtab.Object{
		Name: "a.o",
		Segments: []symtab.InputSegment{
			{Name: ".tdata", Data: []byte{1}, Live: true},
		},
	}
	outs, _ := Plan([]*symtab.Object{obj}, Policy{})
	if !outs[0].Passive {
		t.Error("expected .tdata segment to be passive")
	}
	if !outs[0].TLS {
		t.Error("expected .tdata segment to be marked TLS")
	}
}

func TestPlan_MergesAcrossObjects(t *testing.T) {
	a := &symtab.Object{Name: "a.o", Segments: []symtab.InputSegment{
		{Name: ".data.x", Data: []byte{1, 2}, Live: true},
	}}
	b := &symtab.Object{Name: "b.o", Segments: []symtab.InputSegment{
		{Name: ".data.y", Data: []byte{3, 4, 5}, Live: true},
	}}
	outs, _ := Plan([]*symtab.Object{a, b}, Policy{MergeDataSegs: true})
	if len(outs) != 1 {
		t.Fatalf("expected segments from both objects to merge into one, got %d", len(outs))
	}
	if outs[0].Size != 5 {
		t.Errorf("expected merged size 5, got %d", outs[0].Size)
	}
	if len(outs[0].Inputs) != 2 {
		t.Errorf("expected 2 input segments merged, got %d", len(outs[0].Inputs))
	}
}

func TestPlan_ABIListOnePerContributingObject(t *testing.T) {
	a := &symtab.Object{Name: "a.o", ABI: `{"x":1}`, Segments: []symtab.InputSegment{
		{Name: ".data", Data: []byte{1}, Live: true},
		{Name: ".bss", Data: []byte{2}, Live: true},
	}}
	b := &symtab.Object{Name: "b.o", Segments: []symtab.InputSegment{
		{Name: ".data", Data: []byte{3}, Live: true},
	}}
	c := &symtab.Object{Name: "c.o", ABI: `{"y":2}`, Segments: []symtab.InputSegment{
		{Name: ".data", Data: []byte{4}, Live: false}, // not live, contributes nothing
	}}
	_, abis := Plan([]*symtab.Object{a, b, c}, Policy{})
	if len(abis) != 1 || abis[0] != a.ABI {
		t.Fatalf("expected exactly a.o's ABI (once, despite 2 live segments; b.o has none, c.o contributes no live segment), got %v", abis)
	}
}
