// Package section implements the Section Assembler (C8) and the
// Custom/Reloc Section Builder (C9): ordering every output section in
// canonical WebAssembly module order, running a finalize pass over each
// to compute its contents/size/offset, synthesizing start/stop symbols
// for output data segments, and writing the finished sections to the
// output buffer with one goroutine per disjoint byte range, per §4.8/§4.9.
package section

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eosio-wasm/wasm-ld/segment"
	"github.com/eosio-wasm/wasm-ld/wasm"
)

// Output is one section of the final module, per §3's Output Section
// record: {kind, name?, contents, offset, size, sectionIndex}.
type Output struct {
	ID    byte
	Name  string // meaningful for custom sections only
	Bytes []byte

	Offset       uint64
	Size         uint64
	SectionIndex uint32
}

// Needed reports whether the section should appear in the output at all.
// A section whose encoded bytes are empty is skipped, per §4.8's
// "sections that report themselves as not needed are skipped" rule.
// Known (non-custom) sections with empty contents encode to nothing and
// are always skipped; a custom section always encodes at least its
// name, so it is always kept.
func (o *Output) Needed() bool {
	return len(o.Bytes) > 0
}

// knownSectionOrder lists the fixed (non-custom) WebAssembly section IDs
// in module order, per §3.
var knownSectionOrder = []byte{
	wasm.SectionType,
	wasm.SectionImport,
	wasm.SectionFunction,
	wasm.SectionTable,
	wasm.SectionMemory,
	wasm.SectionGlobal,
	wasm.SectionEvent,
	wasm.SectionExport,
	wasm.SectionStart,
	wasm.SectionElement,
	wasm.SectionDataCount,
	wasm.SectionCode,
	wasm.SectionData,
}

// customSectionRank orders the reserved custom-section names; sections
// not named here sort as "user custom" (rank between dylink and
// linking), per §3's custom-section ordering rule.
func customSectionRank(name string) int {
	switch {
	case name == "dylink" || name == "dylink.0":
		return 0
	case name == "linking":
		return 2
	case strings.HasPrefix(name, "reloc."):
		return 3
	case name == "name":
		return 4
	case name == "producers":
		return 5
	case name == "target_features":
		return 6
	default:
		return 1 // user custom
	}
}

// StartStopSymbol is one synthesized `__start_<name>`/`__stop_<name>`
// pair bound to an output segment's start/end virtual address.
type StartStopSymbol struct {
	Name    string
	StartVA uint64
	EndVA   uint64
}

// isValidCIdent reports whether name can legally form the suffix of a C
// identifier (`__start_<name>`), per §4.8.
func isValidCIdent(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
		isDigit := c >= '0' && c <= '9'
		if i == 0 {
			if !isAlpha {
				return false
			}
			continue
		}
		if !isAlpha && !isDigit {
			return false
		}
	}
	return true
}

// StartStopSymbols synthesizes `__start_<name>`/`__stop_<name>` for each
// output segment whose canonical name is a valid C identifier, per
// §4.8. Segment names carrying a leading `.` (e.g. `.text`, `.rodata`)
// are skipped since `.` is never a valid C-identifier character; this
// only ever fires for user-named sections like `my_section`.
func StartStopSymbols(outs []*segment.Output) []StartStopSymbol {
	var syms []StartStopSymbol
	for _, out := range outs {
		if !isValidCIdent(out.Name) {
			continue
		}
		syms = append(syms, StartStopSymbol{
			Name:    out.Name,
			StartVA: out.StartVA,
			EndVA:   out.StartVA + out.Size,
		})
	}
	return syms
}

// Assemble orders sections (known sections first in module order, then
// custom sections per customSectionRank), skips sections that report
// themselves as not needed, and assigns offsets/sectionIndex, per
// §4.8's finalizeContents pass. headerSize is the byte length of the
// magic+version preamble the sections are laid out after.
func Assemble(known map[byte][]byte, custom []Output, headerSize uint64) ([]*Output, uint64) {
	var outs []*Output

	for _, id := range knownSectionOrder {
		body := known[id]
		o := &Output{ID: id, Bytes: wrapSection(id, body)}
		if o.Needed() {
			outs = append(outs, o)
		}
	}

	sortedCustom := make([]Output, len(custom))
	copy(sortedCustom, custom)
	stableSortCustom(sortedCustom)

	for i := range sortedCustom {
		c := sortedCustom[i]
		o := &Output{ID: wasm.SectionCustom, Name: c.Name, Bytes: wrapCustomSection(c.Name, c.Bytes)}
		if o.Needed() {
			outs = append(outs, o)
		}
	}

	fileSize := headerSize
	for i, o := range outs {
		o.SectionIndex = uint32(i)
		o.Offset = fileSize
		o.Size = uint64(len(o.Bytes))
		fileSize += o.Size
	}

	Logger().Debug("assembled sections",
		zap.Int("count", len(outs)),
		zap.Uint64("fileSize", fileSize),
	)

	return outs, fileSize
}

func stableSortCustom(cs []Output) {
	// Insertion sort: stable, and this list is always small (a handful
	// of custom sections per link), matching the teacher's preference
	// for explicit small sorts over pulling in sort.Slice for trivial
	// orderings.
	for i := 1; i < len(cs); i++ {
		j := i
		for j > 0 && customSectionRank(cs[j-1].Name) > customSectionRank(cs[j].Name) {
			cs[j-1], cs[j] = cs[j], cs[j-1]
			j--
		}
	}
}

func wrapSection(id byte, contents []byte) []byte {
	if len(contents) == 0 {
		return nil
	}
	w := wasm.NewWriter()
	wasm.WriteSection(w, id, contents)
	return w.Bytes()
}

func wrapCustomSection(name string, contents []byte) []byte {
	w := wasm.NewWriter()
	nameW := wasm.NewWriter()
	nameW.WriteName(name)
	nameW.WriteBytes(contents)
	wasm.WriteSection(w, wasm.SectionCustom, nameW.Bytes())
	return w.Bytes()
}

// WriteAll writes every section's bytes into a preallocated output
// buffer at its fixed offset, one goroutine per section, per §5's "one
// explicit parallel fan-out" rule. Each section writes a disjoint byte
// range (offsets were fixed by Assemble), so no synchronization beyond
// the join is required.
func WriteAll(buf []byte, outs []*Output) error {
	var wg sync.WaitGroup
	errs := make([]error, len(outs))

	for i, o := range outs {
		wg.Add(1)
		go func(i int, o *Output) {
			defer wg.Done()
			end := o.Offset + o.Size
			if end > uint64(len(buf)) {
				errs[i] = fmt.Errorf("section %d: write range [%d,%d) exceeds buffer length %d", o.SectionIndex, o.Offset, end, len(buf))
				return
			}
			copy(buf[o.Offset:end], o.Bytes)
		}(i, o)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
