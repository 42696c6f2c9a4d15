// Package errors provides structured error types for the dynstruct library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the Go type involved, a detail message, the offending
// value and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLayout, errors.KindOverflow).
//		GoType("record.Record[Header,uint64]").
//		Value(count).
//		Detail("%d elements of %d bytes", count, size).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AllocationFailed(errors.PhaseConstruct, size, align, cause)
//	err := errors.LengthMismatch(errors.PhaseConstruct, want, got)
//
// All errors implement the standard error interface and support errors.Is/As.
// Construction paths treat allocation, overflow and length mismatch as fatal and
// panic with an *Error; recover it and use IsKind to inspect it.
package errors
