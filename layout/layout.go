package layout

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/wippyai/dynstruct/errors"
	"github.com/wippyai/dynstruct/internal/abi"
)

// maxSize bounds block sizes to what a Go slice or array can index.
const maxSize = uintptr(math.MaxInt)

// Info is the memory footprint of one component type.
type Info struct {
	Size  uintptr
	Align uintptr
}

// Of returns the size and alignment of T.
func Of[T any]() Info {
	var z T
	return Info{Size: unsafe.Sizeof(z), Align: unsafe.Alignof(z)}
}

// Max returns a layout whose size and alignment are both as large as the
// largest among i and that.
func (i Info) Max(that Info) Info {
	return Info{Size: max(i.Size, that.Size), Align: max(i.Align, that.Align)}
}

// Valid reports whether the alignment is a power of two.
func (i Info) Valid() bool {
	return abi.IsPow2(i.Align)
}

// Combined is the layout of a header followed by Count elements.
type Combined struct {
	// Size is the number of bytes the block must provide.
	Size uintptr
	// Align is the alignment the block must satisfy.
	Align uintptr
	// ElemOffset is the byte offset of element 0.
	ElemOffset uintptr
	// ElemSize is the stride between consecutive elements.
	ElemSize uintptr
	// Count is the number of trailing elements.
	Count int
	// Degenerate is set when Size is zero. No block is needed, but the
	// header and Count elements still exist for finalization.
	Degenerate bool
}

// ElemAt returns the byte offset of element i. i may equal Count, giving the
// end of the trailing array.
func (c Combined) ElemAt(i int) uintptr {
	return c.ElemOffset + uintptr(i)*c.ElemSize
}

func (c Combined) String() string {
	if c.Degenerate {
		return fmt.Sprintf("degenerate(count=%d)", c.Count)
	}
	return fmt.Sprintf("size=%d align=%d elems@%d count=%d", c.Size, c.Align, c.ElemOffset, c.Count)
}

// Compute lays out a header followed by count elements.
//
// It fails with KindInvalidInput for a negative count or an alignment that is
// not a power of two, and with KindOverflow when the block would be too large
// to address.
func Compute(header, elem Info, count int) (Combined, error) {
	if count < 0 {
		return Combined{}, errors.New(errors.PhaseLayout, errors.KindInvalidInput).
			Value(count).
			Detail("negative element count %d", count).
			Build()
	}
	if !header.Valid() || !elem.Valid() {
		return Combined{}, errors.New(errors.PhaseLayout, errors.KindInvalidInput).
			Detail("alignments must be powers of two (header %d, element %d)", header.Align, elem.Align).
			Build()
	}

	offset, ok := abi.SafeAlignTo(header.Size, elem.Align)
	if !ok {
		return Combined{}, errors.Overflow(errors.PhaseLayout, "elements offset", header.Size)
	}
	tail, ok := abi.SafeMul(elem.Size, uintptr(count))
	if !ok {
		return Combined{}, errors.Overflow(errors.PhaseLayout, "element bytes", count)
	}
	size, ok := abi.SafeAdd(offset, tail)
	if !ok || size > maxSize {
		return Combined{}, errors.Overflow(errors.PhaseLayout, "block size", count)
	}

	return Combined{
		Size:       size,
		Align:      max(header.Align, elem.Align),
		ElemOffset: offset,
		ElemSize:   elem.Size,
		Count:      count,
		Degenerate: size == 0,
	}, nil
}
