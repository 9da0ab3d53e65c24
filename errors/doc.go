// Package errors provides the structured error type used across the linker
// pipeline.
//
// Errors are categorized by Phase (which pipeline component raised them) and
// Kind (what went wrong). The Error type carries enough context -- an object
// file name, a symbol name, a human detail, and an optional cause -- for the
// driver to print an actionable diagnostic without any component needing to
// format its own message string.
//
// Use the Builder for structured construction:
//
//	err := errors.New(errors.PhaseFeature, errors.KindFeatureConflict).
//		Object("b.o").
//		Detail("atomics disallowed but used by a.o").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MisalignedSize(errors.PhaseLayout, "zStackSize", 65537, 16)
//	err := errors.MissingSymbol(errors.PhaseDispatch, "current_time")
//
// All errors implement the standard error interface and support errors.Is.
package errors
