// Package segment implements the Segment Planner (C1): it groups input
// data segments contributed by object files into output segments under a
// canonical name, per the merge-policy rules the driver configures.
package segment

import (
	"strings"

	"github.com/eosio-wasm/wasm-ld/symtab"
)

// Policy controls how input-segment names canonicalize to output-segment
// names.
type Policy struct {
	IsPic            bool
	MergeDataSegs    bool
	PassiveSegments  bool // force every segment passive regardless of name
}

// Output is an output segment: an ordered list of input segments merged
// under one canonical name.
type Output struct {
	Name      string
	Align     uint32
	Inputs    []*symtab.InputSegment
	Passive   bool
	TLS       bool
	StartVA   uint64
	Size      uint64
	Index     uint32
}

// CanonicalName maps an input segment's name to its output-segment name
// per §4.1's ordered rule set.
func CanonicalName(name string, p Policy) string {
	if p.IsPic {
		return ".data"
	}
	if strings.HasPrefix(name, ".tdata") || strings.HasPrefix(name, ".tbss") {
		return ".tdata"
	}
	if p.MergeDataSegs {
		switch {
		case strings.HasPrefix(name, ".text."):
			return ".text"
		case strings.HasPrefix(name, ".data."):
			return ".data"
		case strings.HasPrefix(name, ".bss."):
			return ".bss"
		case strings.HasPrefix(name, ".rodata."):
			return ".rodata"
		}
	}
	return name
}

// Plan groups every live input segment across objs into output segments,
// in first-seen order, and collects the per-link ABI list (the non-empty
// ABI string of every object contributing at least one live segment).
//
// Dead (non-live) input segments are skipped entirely, per §4.1.
func Plan(objs []*symtab.Object, p Policy) ([]*Output, []string) {
	order := make([]string, 0, len(objs))
	byName := make(map[string]*Output)
	var abis []string

	for _, obj := range objs {
		contributed := false
		for i := range obj.Segments {
			in := &obj.Segments[i]
			if !in.Live {
				continue
			}
			contributed = true

			outName := CanonicalName(in.Name, p)
			out, ok := byName[outName]
			if !ok {
				out = &Output{Name: outName}
				byName[outName] = out
				order = append(order, outName)
			}
			if in.Align > out.Align {
				out.Align = in.Align
			}
			out.TLS = out.TLS || outName == ".tdata"
			out.Passive = out.Passive || p.PassiveSegments || outName == ".tdata"
			out.Inputs = append(out.Inputs, in)
			out.Size += uint64(in.Size())
		}
		if contributed && obj.ABI != "" {
			abis = append(abis, obj.ABI)
		}
	}

	outs := make([]*Output, len(order))
	for i, name := range order {
		outs[i] = byName[name]
		outs[i].Index = uint32(i)
	}
	return outs, abis
}
