package symtab

// Relocation is a single relocation record against an input segment. The
// relocation types themselves (memory address, type index, function index,
// ...) mirror the upstream wasm-ld relocation encoding; this repo only
// carries enough of the shape to let C9 mirror reloc.* sections and let C6's
// __wasm_apply_relocs walk them, since applying relocations against real
// object bytes is out of scope (see spec §1).
type Relocation struct {
	Type   uint32
	Offset uint32
	Index  uint32
	Addend int64
}

// InputSegment is a contiguous chunk of input data (from .data/.text/.rodata/
// .bss and friends) contributed by one object file, before segment planning
// (C1) canonicalizes its name and merges it into an output segment.
type InputSegment struct {
	Name        string
	Data        []byte
	Align       uint32
	Live        bool
	Passive     bool
	TLS         bool
	Relocations []Relocation

	// StartSym/StopSym carry the names an object declared for its
	// boundary symbols. The linker core does not read them:
	// __start_<name>/__stop_<name> symbols are derived from output
	// segment names (section.StartStopSymbols).
	StartSym string
	StopSym  string
}

// Size returns the segment's byte length.
func (s *InputSegment) Size() uint32 {
	return uint32(len(s.Data))
}
