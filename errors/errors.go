package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which pipeline component raised the error.
type Phase string

const (
	PhasePlan     Phase = "plan"     // segment planning (C1)
	PhaseLayout   Phase = "layout"   // memory layout (C2)
	PhaseIndex    Phase = "index"    // index assignment (C3)
	PhaseFeature  Phase = "feature"  // feature reconciliation (C4)
	PhaseType     Phase = "type"     // type/import/export calculation (C5)
	PhaseSynth    Phase = "synth"    // synthetic function emission (C6)
	PhaseDispatch Phase = "dispatch" // contract dispatcher emission (C7)
	PhaseSection  Phase = "section"  // section assembly (C8/C9)
	PhaseWrite    Phase = "write"    // writer driver / I/O (C10)
	PhaseABI      Phase = "abi"      // ABI merge emission
)

// Kind categorizes the error.
type Kind string

const (
	KindConfig          Kind = "config_error"    // misaligned sizes, oversubscribed memory
	KindFeatureConflict Kind = "feature_conflict" // feature constraint violated
	KindStructural      Kind = "structural"       // missing mandatory helper symbol
	KindInvariant       Kind = "invariant"        // internal bug-class assertion
	KindIO              Kind = "io"               // file open/commit failure
	KindABI             Kind = "abi_merge"        // ABI merge runtime failure
)

// Error is the structured error type used throughout the linker pipeline.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Object string // offending object-file name, if any
	Symbol string // offending symbol name, if any
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Object != "" {
		b.WriteString(" in ")
		b.WriteString(e.Object)
	}
	if e.Symbol != "" {
		b.WriteString(" (symbol ")
		b.WriteString(e.Symbol)
		b.WriteByte(')')
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error's Phase and Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New creates a new error builder.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

// Object sets the offending object-file name.
func (b *Builder) Object(name string) *Builder {
	b.err.Object = name
	return b
}

// Symbol sets the offending symbol name.
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	return &b.err
}

// MisalignedSize creates a config error for a value that fails an alignment
// requirement (e.g. zStackSize, initialMemory, maxMemory).
func MisalignedSize(phase Phase, field string, value, align uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConfig,
		Detail: fmt.Sprintf("%s (%d) must be a multiple of %d", field, value, align),
	}
}

// MemoryTooSmall creates a config error for memory that cannot fit the
// computed layout.
func MemoryTooSmall(phase Phase, field string, requested, required uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConfig,
		Detail: fmt.Sprintf("%s (%d bytes) is smaller than the required layout (%d bytes)", field, requested, required),
	}
}

// FeatureConflict creates an error naming the offending object file and the
// feature constraint it violates.
func FeatureConflict(object, feature, detail string) *Error {
	return &Error{
		Phase:  PhaseFeature,
		Kind:   KindFeatureConflict,
		Object: object,
		Detail: fmt.Sprintf("feature %q: %s", feature, detail),
	}
}

// MissingSymbol creates a structural error for a required helper symbol that
// was not found in the symbol table.
func MissingSymbol(phase Phase, symbol string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStructural,
		Symbol: symbol,
		Detail: "required symbol not found",
	}
}

// Invariant creates an internal bug-class error.
func Invariant(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvariant,
		Detail: detail,
	}
}

// IO creates an I/O failure error.
func IO(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseWrite,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// ABIMergeFailed creates a fatal ABI-merge runtime error (as opposed to a
// JSON parse failure, which degrades to a log warning per §7).
func ABIMergeFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseABI,
		Kind:   KindABI,
		Detail: "ABI merge failed",
		Cause:  cause,
	}
}
