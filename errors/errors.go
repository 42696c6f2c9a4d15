package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLayout    Phase = "layout"    // size and offset computation
	PhaseConstruct Phase = "construct" // moving values into a block
	PhaseDestroy   Phase = "destroy"   // finalization and release
	PhaseView      Phase = "view"      // borrowing an existing slice
	PhaseAccess    Phase = "access"    // reading through a handle
	PhaseAlloc     Phase = "alloc"     // raw block acquisition
)

// Kind categorizes the error
type Kind string

const (
	KindOverflow       Kind = "overflow"
	KindAllocation     Kind = "allocation"
	KindInvalidInput   Kind = "invalid_input"
	KindLengthMismatch Kind = "length_mismatch"
	KindEmpty          Kind = "empty"
	KindReleased       Kind = "released"
	KindBorrowed       Kind = "borrowed"
	KindUnsupported    Kind = "unsupported"
	KindOutOfBounds    Kind = "out_of_bounds"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err, or any error it wraps, is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uintptr, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// Overflow creates an arithmetic overflow error
func Overflow(phase Phase, what string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Detail: fmt.Sprintf("%s overflows uintptr", what),
		Value:  value,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// LengthMismatch creates an error for a sequence that did not yield its declared length
func LengthMismatch(phase Phase, want, got int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLengthMismatch,
		Detail: fmt.Sprintf("sequence yielded %d elements, declared %d", got, want),
		Value:  got,
	}
}

// Empty creates an error for an input that has no header value
func Empty(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEmpty,
		GoType: goType,
		Detail: "no header value in empty input",
	}
}

// Released creates an error for use of a record after release
func Released(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindReleased,
		GoType: goType,
		Detail: "record already released",
	}
}

// Borrowed creates an error for releasing a record the caller does not own
func Borrowed(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBorrowed,
		GoType: goType,
		Detail: "record is a borrowed view",
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
