package record

import (
	"iter"
	"reflect"
	"runtime"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/dynstruct/errors"
	"github.com/wippyai/dynstruct/internal/abi"
	"github.com/wippyai/dynstruct/layout"
)

// collectChunk bounds the buffer Collect reserves before the sequence has
// been counted.
const collectChunk = 256

// zeroBase is the address of every degenerate record. Nothing is ever
// written through it.
var zeroBase [0]uint64

// Type builds records of one header and element type. It computes the
// component layouts, pointer-ness and finalization strategy once, so it is
// the cheaper way to build many records of the same shape.
//
// A Type is safe for concurrent use when its allocator is.
type Type[H, E any] struct {
	header   layout.Info
	elem     layout.Info
	hType    reflect.Type
	eType    reflect.Type
	pointers bool
	hDrop    *dropGlue
	eDrop    *dropGlue
	cfg      config
}

// NewType returns a factory for Record[H, E].
func NewType[H, E any](opts ...Option) *Type[H, E] {
	hType, eType := reflect.TypeFor[H](), reflect.TypeFor[E]()
	return &Type[H, E]{
		header:   layout.Of[H](),
		elem:     layout.Of[E](),
		hType:    hType,
		eType:    eType,
		pointers: hasPointers(hType) || hasPointers(eType),
		hDrop:    dropGlueFor[H](),
		eDrop:    dropGlueFor[E](),
		cfg:      newConfig(opts),
	}
}

// Layout returns the block layout of a record with n elements.
func (t *Type[H, E]) Layout(n int) (layout.Combined, error) {
	l, err := layout.Compute(t.header, t.elem, n)
	if err != nil {
		return layout.Combined{}, withGoType(err, typeName[H, E]())
	}
	return l, nil
}

// New moves header and elements into a new record. elements is cleared on
// return. It panics with an *errors.Error if the layout overflows or the
// allocator fails.
func (t *Type[H, E]) New(header H, elements []E) *Record[H, E] {
	l, err := t.Layout(len(elements))
	if err != nil {
		panic(err)
	}
	r := t.place(l, header, elements)
	clear(elements)
	return r
}

// Collect builds a record from exactly n values drawn from seq. The values
// are counted before any memory is acquired; a sequence that yields fewer or
// more than n values panics with KindLengthMismatch.
func (t *Type[H, E]) Collect(header H, n int, seq iter.Seq[E]) *Record[H, E] {
	l, err := t.Layout(n)
	if err != nil {
		panic(err)
	}

	buf := make([]E, 0, min(n, collectChunk))
	for v := range seq {
		if len(buf) == n {
			panic(errors.New(errors.PhaseConstruct, errors.KindLengthMismatch).
				GoType(typeName[H, E]()).
				Value(n + 1).
				Detail("sequence yielded more than the declared %d elements", n).
				Build())
		}
		buf = append(buf, v)
	}
	if len(buf) != n {
		err := errors.LengthMismatch(errors.PhaseConstruct, n, len(buf))
		err.GoType = typeName[H, E]()
		panic(err)
	}

	r := t.place(l, header, buf)
	clear(buf)
	return r
}

func (t *Type[H, E]) place(l layout.Combined, header H, elements []E) *Record[H, E] {
	r := &Record[H, E]{
		n:      len(elements),
		layout: l,
		hDrop:  t.hDrop,
		eDrop:  t.eDrop,
	}

	if l.Degenerate {
		r.ptr = unsafe.Pointer(&zeroBase)
		if ce := Logger().Check(zap.DebugLevel, "degenerate record"); ce != nil {
			ce.Write(zap.String("type", typeName[H, E]()), zap.Int("count", l.Count))
		}
		return r
	}

	var shape reflect.Type
	if t.pointers {
		shape = shapeFor(t.hType, t.eType, shapeLen(l.Count, l.ElemOffset, l.ElemSize))
		if off := shape.Field(1).Offset; off != l.ElemOffset {
			panic(errors.New(errors.PhaseConstruct, errors.KindInvalidInput).
				GoType(shape.String()).
				Detail("element offset %d disagrees with computed %d", off, l.ElemOffset).
				Build())
		}
	}

	ptr, err := t.cfg.alloc.Alloc(l.Size, l.Align, shape)
	switch {
	case err != nil:
		panic(allocFailed(l, err))
	case ptr == nil:
		panic(allocFailed(l, errors.InvalidInput(errors.PhaseAlloc, "allocator returned nil")))
	case uintptr(ptr)%l.Align != 0:
		t.cfg.alloc.Free(ptr, l.Size, l.Align)
		panic(allocFailed(l, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Value(uintptr(ptr)).
			Detail("block at %#x is not aligned to %d", uintptr(ptr), l.Align).
			Build()))
	}

	r.ptr = ptr
	r.alloc = t.cfg.alloc
	*(*H)(ptr) = header
	copy(r.elems(), elements)

	if t.cfg.leakCheck {
		r.watch()
	}

	if ce := Logger().Check(zap.DebugLevel, "record allocated"); ce != nil {
		ce.Write(
			zap.String("type", typeName[H, E]()),
			zap.Int("count", l.Count),
			zap.Uintptr("size", l.Size),
			zap.Uintptr("align", l.Align),
			zap.Bool("typed", shape != nil))
	}
	return r
}

type leakInfo struct {
	released *atomic.Bool
	goType   string
	size     uintptr
}

// watch reports r if it is collected before Release.
func (r *Record[H, E]) watch() {
	r.leak = new(atomic.Bool)
	runtime.AddCleanup(r, func(info leakInfo) {
		if !info.released.Load() {
			Logger().Warn("record collected without Release",
				zap.String("type", info.goType),
				zap.Uintptr("size", info.size))
		}
	}, leakInfo{released: r.leak, goType: typeName[H, E](), size: r.layout.Size})
}

func allocFailed(l layout.Combined, cause error) *errors.Error {
	return errors.AllocationFailed(errors.PhaseConstruct, l.Size, l.Align, cause)
}

func withGoType(err error, goType string) error {
	if e, ok := err.(*errors.Error); ok && e.GoType == "" {
		e.GoType = goType
	}
	return err
}

func typeName[H, E any]() string {
	return abi.TypeNameOf[*Record[H, E]]()
}

// New moves header and elements into a new record allocated in one block.
// elements is cleared on return and header must be treated as consumed.
//
// It panics with an *errors.Error if the layout overflows or the allocator
// fails. When both H and E are zero-sized no allocator is called.
func New[H, E any](header H, elements []E, opts ...Option) *Record[H, E] {
	return NewType[H, E](opts...).New(header, elements)
}

// Collect builds a record from exactly n values drawn from seq.
// See Type.Collect.
func Collect[H, E any](header H, n int, seq iter.Seq[E], opts ...Option) *Record[H, E] {
	return NewType[H, E](opts...).Collect(header, n, seq)
}
