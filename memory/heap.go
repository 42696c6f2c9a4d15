package memory

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/dynstruct"
	"github.com/wippyai/dynstruct/errors"
	"github.com/wippyai/dynstruct/internal/abi"
)

var _ dynstruct.Allocator = (*Heap)(nil)

const wordAlign = unsafe.Alignof(uint64(0))

// Heap allocates blocks on the Go heap. Free is a no-op; a block is
// reclaimed by the garbage collector once nothing points into it.
type Heap struct{}

// NewHeap returns a heap allocator.
func NewHeap() *Heap {
	return &Heap{}
}

// Alloc returns a zeroed block. With a non-nil shape the block is a new value
// of that type, which must cover size and align. Without a shape the block is
// untyped word memory that the collector does not scan.
func (h *Heap) Alloc(size, align uintptr, shape reflect.Type) (unsafe.Pointer, error) {
	if err := checkRequest(size, align); err != nil {
		return nil, err
	}

	if shape != nil {
		if shape.Size() < size || uintptr(shape.Align()) < align {
			return nil, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
				GoType(shape.String()).
				Detail("shape of %d bytes (align %d) does not cover %d bytes (align %d)",
					shape.Size(), shape.Align(), size, align).
				Build()
		}
		return reflect.New(shape).UnsafePointer(), nil
	}

	return alignedWords(size, align), nil
}

// Free is a no-op.
func (h *Heap) Free(unsafe.Pointer, uintptr, uintptr) {}

// alignedWords allocates pointer-free memory of at least size bytes starting
// at a multiple of align.
func alignedWords(size, align uintptr) unsafe.Pointer {
	var pad uintptr
	if align > wordAlign {
		pad = align - 1
	}
	words := (size + pad + 7) / 8
	buf := make([]uint64, words)
	base := unsafe.Pointer(unsafe.SliceData(buf))
	addr := uintptr(base)
	return unsafe.Add(base, abi.AlignTo(addr, align)-addr)
}

func checkRequest(size, align uintptr) error {
	if size == 0 {
		return errors.InvalidInput(errors.PhaseAlloc, "zero-size block requested")
	}
	if !abi.IsPow2(align) {
		return errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Value(align).
			Detail("alignment %d is not a power of two", align).
			Build()
	}
	return nil
}
