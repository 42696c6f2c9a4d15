package record

import (
	"reflect"
	"sync"
	"unsafe"
)

// Dropper is implemented by values that own resources which must be
// released together with the record holding them.
//
// Release calls Drop on the value in place, on the header first and then on
// each element in order. Both pointer and value receivers are honored.
//
// A struct or array that does not implement Dropper itself is finalized
// field by field: every Dropper stored inline in it, at any depth, is
// dropped in field and index order. A value that implements Dropper is
// responsible for its own fields. Values reached through slices or maps are
// not owned by the record and are left alone.
type Dropper interface {
	Drop()
}

var dropperType = reflect.TypeFor[Dropper]()

type dropMode uint8

const (
	dropAddr    dropMode = iota + 1 // *T implements Dropper
	dropPointee                     // T is a pointer implementing Dropper, skipped when nil
	dropDynamic                     // T may hold a Dropper at run time
	dropFields                      // T holds Droppers inline
)

// dropLeaf is one inline Dropper of a composite value.
type dropLeaf struct {
	off  uintptr
	typ  reflect.Type
	mode dropMode
}

// dropGlue is the finalization plan for one type. A nil plan means values
// of the type need no finalization.
type dropGlue struct {
	mode   dropMode
	leaves []dropLeaf
}

var glues sync.Map // reflect.Type -> *dropGlue

func dropGlueFor[T any]() *dropGlue {
	t := reflect.TypeFor[T]()
	if g, ok := glues.Load(t); ok {
		return g.(*dropGlue)
	}
	g, _ := glues.LoadOrStore(t, buildGlue(t))
	return g.(*dropGlue)
}

func buildGlue(t reflect.Type) *dropGlue {
	if m := leafMode(t); m != 0 {
		return &dropGlue{mode: m}
	}
	if leaves := collectLeaves(t, 0, nil); len(leaves) > 0 {
		return &dropGlue{mode: dropFields, leaves: leaves}
	}
	return nil
}

func leafMode(t reflect.Type) dropMode {
	switch {
	case reflect.PointerTo(t).Implements(dropperType):
		return dropAddr
	case t.Kind() == reflect.Pointer && t.Implements(dropperType):
		return dropPointee
	case t.Kind() == reflect.Interface || t.Implements(dropperType):
		return dropDynamic
	}
	return 0
}

// collectLeaves appends the inline Droppers of a t stored at off.
func collectLeaves(t reflect.Type, off uintptr, out []dropLeaf) []dropLeaf {
	if m := leafMode(t); m != 0 {
		return append(out, dropLeaf{off: off, typ: t, mode: m})
	}
	switch t.Kind() {
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			out = collectLeaves(f.Type, off+f.Offset, out)
		}
	case reflect.Array:
		elem := collectLeaves(t.Elem(), 0, nil)
		if len(elem) == 0 {
			break
		}
		stride := t.Elem().Size()
		for i := range t.Len() {
			for _, l := range elem {
				l.off += off + uintptr(i)*stride
				out = append(out, l)
			}
		}
	}
	return out
}

func (l dropLeaf) run(base unsafe.Pointer) {
	v := reflect.NewAt(l.typ, unsafe.Add(base, l.off))
	switch l.mode {
	case dropAddr:
		v.Interface().(Dropper).Drop()
	case dropPointee:
		if e := v.Elem(); !e.IsNil() {
			e.Interface().(Dropper).Drop()
		}
	case dropDynamic:
		if d, ok := v.Elem().Interface().(Dropper); ok {
			d.Drop()
		}
	}
}

// dropLeaves finalizes leaves in order. If a Drop panics, the leaves after
// it are still finalized before the panic continues.
func dropLeaves(leaves []dropLeaf, base unsafe.Pointer) {
	i := 0
	defer func() {
		if i < len(leaves) {
			dropLeaves(leaves[i+1:], base)
		}
	}()
	for ; i < len(leaves); i++ {
		leaves[i].run(base)
	}
}

func drop[T any](g *dropGlue, p *T) {
	if g == nil {
		return
	}
	switch g.mode {
	case dropAddr:
		any(p).(Dropper).Drop()
	case dropPointee:
		if *(*unsafe.Pointer)(unsafe.Pointer(p)) != nil {
			any(*p).(Dropper).Drop()
		}
	case dropDynamic:
		if d, ok := any(*p).(Dropper); ok {
			d.Drop()
		}
	case dropFields:
		dropLeaves(g.leaves, unsafe.Pointer(p))
	}
}

// dropSlice finalizes elems in order. If a Drop panics, the elements after it
// are still finalized before the panic continues.
func dropSlice[E any](g *dropGlue, elems []E) {
	if g == nil {
		return
	}
	i := 0
	defer func() {
		if i < len(elems) {
			dropSlice(g, elems[i+1:])
		}
	}()
	for ; i < len(elems); i++ {
		drop(g, &elems[i])
	}
}

// dropAll finalizes the header, then the elements, even if the header's
// Drop panics.
func dropAll[H, E any](hg, eg *dropGlue, h *H, elems []E) {
	defer dropSlice(eg, elems)
	drop(hg, h)
}
