package abi

import (
	"reflect"
)

// Unsigned is the set of integer types offsets and sizes are computed in.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint | ~uintptr
}

// SafeMul returns a*b, or ok = false when the product wraps.
func SafeMul[T Unsigned](a, b T) (T, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}

// SafeAdd returns a+b, or ok = false when the sum wraps.
func SafeAdd[T Unsigned](a, b T) (T, bool) {
	c := a + b
	if c < a {
		return 0, false
	}
	return c, true
}

// AlignTo rounds offset up to a multiple of align. align must be zero or a
// power of two; zero leaves offset unchanged.
func AlignTo[T Unsigned](offset, align T) T {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// SafeAlignTo is AlignTo with ok = false when rounding up wraps.
func SafeAlignTo[T Unsigned](offset, align T) (T, bool) {
	if align == 0 {
		return offset, true
	}
	end, ok := SafeAdd(offset, align-1)
	if !ok {
		return 0, false
	}
	return end &^ (align - 1), true
}

// IsPow2 reports whether v is a non-zero power of two.
func IsPow2[T Unsigned](v T) bool {
	return v != 0 && v&(v-1) == 0
}

// TypeNameOf returns the name of T, including interface types.
func TypeNameOf[T any]() string {
	return reflect.TypeFor[T]().String()
}
