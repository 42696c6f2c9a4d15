package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLayout,
				Kind:   KindOverflow,
				GoType: "record.Record[int,int]",
				Detail: "element bytes overflow uintptr",
			},
			contains: []string{"[layout]", "overflow", "record.Record[int,int]", " - element bytes"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseView,
				Kind:  KindEmpty,
			},
			contains: []string{"[view]", "empty"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseAlloc,
				Kind:   KindAllocation,
				Detail: "arena full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[alloc]", "allocation", ": arena full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseConstruct,
		Kind:  KindAllocation,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see the cause through Unwrap")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase:  PhaseDestroy,
		Kind:   KindReleased,
		Detail: "twice",
	}

	if !err.Is(&Error{Phase: PhaseDestroy, Kind: KindReleased}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseView, Kind: KindReleased}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseDestroy, Kind: KindBorrowed}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseDestroy, Kind: KindReleased}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestIsKind(t *testing.T) {
	err := LengthMismatch(PhaseConstruct, 4, 3)
	wrapped := fmt.Errorf("collect: %w", err)

	if !IsKind(err, KindLengthMismatch) {
		t.Error("IsKind should match direct error")
	}
	if !IsKind(wrapped, KindLengthMismatch) {
		t.Error("IsKind should match wrapped error")
	}
	if IsKind(wrapped, KindOverflow) {
		t.Error("IsKind should not match a different kind")
	}
	if IsKind(errors.New("plain"), KindOverflow) {
		t.Error("IsKind should not match a plain error")
	}
	if IsKind(nil, KindOverflow) {
		t.Error("IsKind should not match nil")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseLayout, KindOverflow).
		GoType("uint64").
		Value(42).
		Cause(cause).
		Detail("%d elements of %d bytes", 42, 8).
		Build()

	if err.Phase != PhaseLayout {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseLayout)
	}
	if err.Kind != KindOverflow {
		t.Errorf("Kind = %v, want %v", err.Kind, KindOverflow)
	}
	if err.GoType != "uint64" {
		t.Errorf("GoType = %v, want 'uint64'", err.GoType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "42 elements of 8 bytes" {
		t.Errorf("Detail = %v, want '42 elements of 8 bytes'", err.Detail)
	}

	plain := New(PhaseView, KindEmpty).Detail("100%").Build()
	if plain.Detail != "100%" {
		t.Errorf("Detail without args should be kept verbatim, got %q", plain.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("AllocationFailed", func(t *testing.T) {
		cause := errors.New("out of pages")
		err := AllocationFailed(PhaseConstruct, 64, 8, cause)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "64 bytes (align 8)") {
			t.Errorf("Detail = %q", err.Detail)
		}
		if !errors.Is(err, cause) {
			t.Error("cause should be reachable")
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseLayout, "element bytes", 7)
		if err.Kind != KindOverflow || err.Value != 7 {
			t.Errorf("Kind=%v Value=%v", err.Kind, err.Value)
		}
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		err := LengthMismatch(PhaseConstruct, 5, 2)
		if err.Kind != KindLengthMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindLengthMismatch)
		}
		if err.Detail != "sequence yielded 2 elements, declared 5" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		err := Empty(PhaseView, "[]uint32")
		if err.Kind != KindEmpty || err.GoType != "[]uint32" {
			t.Errorf("Kind=%v GoType=%v", err.Kind, err.GoType)
		}
	})

	t.Run("Released", func(t *testing.T) {
		err := Released(PhaseDestroy, "T")
		if err.Kind != KindReleased {
			t.Errorf("Kind = %v, want %v", err.Kind, KindReleased)
		}
	})

	t.Run("Borrowed", func(t *testing.T) {
		err := Borrowed(PhaseDestroy, "T")
		if err.Kind != KindBorrowed {
			t.Errorf("Kind = %v, want %v", err.Kind, KindBorrowed)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseView, 10, 5)
		if err.Kind != KindOutOfBounds || err.Value != 10 {
			t.Errorf("Kind=%v Value=%v", err.Kind, err.Value)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseAlloc, "pointer shapes")
		if err.Kind != KindUnsupported || err.Detail != "pointer shapes" {
			t.Errorf("Kind=%v Detail=%v", err.Kind, err.Detail)
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		cause := errors.New("munmap")
		err := Wrap(PhaseAlloc, KindAllocation, cause, "release mapping")
		if !errors.Is(err, cause) || err.Detail != "release mapping" {
			t.Errorf("unexpected wrap result: %v", err)
		}
	})
}
