package dynstruct

import (
	"reflect"
	"unsafe"
)

// Allocator acquires and releases raw blocks for combined records.
type Allocator interface {
	// Alloc returns a block of at least size bytes aligned to align.
	// shape describes where the block will hold Go pointers; it is nil when
	// the stored values contain none. Implementations that cannot keep
	// pointers visible to the garbage collector must reject a non-nil shape.
	Alloc(size, align uintptr, shape reflect.Type) (unsafe.Pointer, error)

	// Free releases a block returned by Alloc. size and align are the values
	// the block was requested with.
	Free(ptr unsafe.Pointer, size, align uintptr)
}
