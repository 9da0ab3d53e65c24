package section

import "strings"

// wellKnownCustomNames are linker-synthesized custom section names that
// never pass through from input objects -- the linker always
// regenerates them itself, per §4.9.
var wellKnownCustomNames = map[string]bool{
	"linking":         true,
	"name":            true,
	"producers":       true,
	"target_features": true,
}

// CustomSectionPolicy controls which input custom sections survive into
// the output, per §4.9.
type CustomSectionPolicy struct {
	StripDebug bool
	StripAll   bool
}

// isWellKnown reports whether name is one of the linker-synthesized
// reserved names (including any `reloc.*` section), which are never
// copied from inputs -- the linker emits its own.
func isWellKnown(name string) bool {
	if wellKnownCustomNames[name] {
		return true
	}
	return strings.HasPrefix(name, "reloc.")
}

// isDebugSection reports whether name is a DWARF debug section.
func isDebugSection(name string) bool {
	return strings.HasPrefix(name, ".debug_")
}

// GroupInputCustomSections groups custom sections contributed by input
// objects by name, in first-seen order, skipping well-known
// linker-synthesized names and (when the policy says so) `.debug_*`
// sections, per §4.9.
func GroupInputCustomSections(policy CustomSectionPolicy, sections []InputCustomSection) []Output {
	order := make([]string, 0, len(sections))
	byName := make(map[string][]byte)

	for _, s := range sections {
		if isWellKnown(s.Name) {
			continue
		}
		if (policy.StripDebug || policy.StripAll) && isDebugSection(s.Name) {
			continue
		}
		if _, ok := byName[s.Name]; !ok {
			order = append(order, s.Name)
		}
		byName[s.Name] = append(byName[s.Name], s.Data...)
	}

	outs := make([]Output, 0, len(order))
	for _, name := range order {
		outs = append(outs, Output{Name: name, Bytes: byName[name]})
	}
	return outs
}

// InputCustomSection is one custom section as contributed by an input
// object file, per §6's "custom sections" external-interface field.
type InputCustomSection struct {
	Name string
	Data []byte
}

// RelocEntry names one output section that carries at least one
// relocation, identified by the section it mirrors.
type RelocEntry struct {
	SectionID   byte
	CustomName  string // set only when SectionID == wasm.SectionCustom
	RelocCount  int
	RelocBytes  []byte
}

// relocSectionName computes the `reloc.*` mirror name for a section,
// per §4.9: `reloc.CODE` for the code section, `reloc.DATA` for the
// data section, `reloc.<custom>` for a named custom section.
func relocSectionName(e RelocEntry, codeID, dataID byte) string {
	switch e.SectionID {
	case codeID:
		return "reloc.CODE"
	case dataID:
		return "reloc.DATA"
	default:
		return "reloc." + e.CustomName
	}
}

// BuildRelocSections synthesizes the `reloc.*` mirror sections, one per
// entry with RelocCount > 0, per §4.9's relocatable/emit-relocs rule.
// emitRelocs gates whether this runs at all (the caller only invokes
// this when relocatable || emitRelocs is set, per §4.10's pipeline).
func BuildRelocSections(entries []RelocEntry, codeID, dataID byte) []Output {
	var outs []Output
	for _, e := range entries {
		if e.RelocCount == 0 {
			continue
		}
		outs = append(outs, Output{
			Name:  relocSectionName(e, codeID, dataID),
			Bytes: e.RelocBytes,
		})
	}
	return outs
}
