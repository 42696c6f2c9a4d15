package record

import (
	"cmp"
	"fmt"
	"slices"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/dynstruct"
	"github.com/wippyai/dynstruct/errors"
	"github.com/wippyai/dynstruct/layout"
)

// Record is a header of type H followed by a trailing array of E, stored in
// one block. The element count is kept in the handle, not in the block.
//
// A Record returned by New, Collect or Type owns its block until Release.
// A Record returned by View borrows the caller's slice.
type Record[H, E any] struct {
	ptr      unsafe.Pointer
	n        int
	layout   layout.Combined
	alloc    dynstruct.Allocator
	hDrop    *dropGlue
	eDrop    *dropGlue
	borrowed bool
	released bool
	leak     *atomic.Bool
}

// Header returns the header in place.
func (r *Record[H, E]) Header() *H {
	r.mustLive()
	return (*H)(r.ptr)
}

// Elements returns the trailing array in place. The slice aliases the block
// and must not be used after Release.
func (r *Record[H, E]) Elements() []E {
	r.mustLive()
	return r.elems()
}

// At returns element i in place. It panics if i is out of range.
func (r *Record[H, E]) At(i int) *E {
	r.mustLive()
	if i < 0 || i >= r.n {
		panic(errors.OutOfBounds(errors.PhaseAccess, i, r.n))
	}
	return &r.elems()[i]
}

// Len returns the number of trailing elements.
func (r *Record[H, E]) Len() int {
	return r.n
}

// Layout returns the block layout.
func (r *Record[H, E]) Layout() layout.Combined {
	return r.layout
}

// Borrowed reports whether the record is a view over memory it does not own.
func (r *Record[H, E]) Borrowed() bool {
	return r.borrowed
}

// Released reports whether Release has been called.
func (r *Record[H, E]) Released() bool {
	return r.released
}

func (r *Record[H, E]) String() string {
	if r.released {
		return "record(released)"
	}
	return fmt.Sprintf("record{header: %+v, elements: %v}", *r.Header(), r.elems())
}

// Release finalizes the header and then each element in order, and returns
// the block to its allocator. Views cannot be released and report
// KindBorrowed; a second Release reports KindReleased. Neither runs any
// finalization.
//
// If a Drop panics, the remaining values are still finalized and the block
// is still freed before the panic continues.
func (r *Record[H, E]) Release() error {
	if r.borrowed {
		return errors.Borrowed(errors.PhaseDestroy, typeName[H, E]())
	}
	if r.released {
		return errors.Released(errors.PhaseDestroy, typeName[H, E]())
	}
	r.released = true
	if r.leak != nil {
		r.leak.Store(true)
	}

	h, elems := (*H)(r.ptr), r.elems()
	ptr, l, alloc := r.ptr, r.layout, r.alloc
	r.ptr = nil

	defer func() {
		var zero H
		*h = zero
		clear(elems)
		if alloc != nil {
			alloc.Free(ptr, l.Size, l.Align)
		}
		if ce := Logger().Check(zap.DebugLevel, "record released"); ce != nil {
			ce.Write(zap.String("type", typeName[H, E]()), zap.Int("count", l.Count))
		}
	}()
	dropAll(r.hDrop, r.eDrop, h, elems)
	return nil
}

func (r *Record[H, E]) elems() []E {
	if r.n == 0 || r.layout.ElemSize == 0 {
		return unsafe.Slice((*E)(unsafe.Pointer(&zeroBase)), r.n)
	}
	return unsafe.Slice((*E)(unsafe.Add(r.ptr, r.layout.ElemOffset)), r.n)
}

func (r *Record[H, E]) mustLive() {
	if r.released {
		panic(errors.Released(errors.PhaseAccess, typeName[H, E]()))
	}
}

// Equal reports whether a and b hold equal headers and equal element
// sequences.
func Equal[H, E comparable](a, b *Record[H, E]) bool {
	return *a.Header() == *b.Header() && slices.Equal(a.Elements(), b.Elements())
}

// Compare orders records by header, then by elements lexicographically.
func Compare[H, E cmp.Ordered](a, b *Record[H, E]) int {
	if c := cmp.Compare(*a.Header(), *b.Header()); c != 0 {
		return c
	}
	return slices.Compare(a.Elements(), b.Elements())
}
