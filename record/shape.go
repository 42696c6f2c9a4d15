package record

import (
	"math"
	"math/bits"
	"reflect"
	"sync"
)

type shapeKey struct {
	h, e reflect.Type
	n    int
}

// shapes caches block shapes. reflect keeps every type it builds for the
// life of the process, so shapes are only built for shapeLen capacities.
var shapes sync.Map // shapeKey -> reflect.Type

// shapeFor returns the cached shape for a block holding h followed by n
// values of e. n must come from shapeLen.
func shapeFor(h, e reflect.Type, n int) reflect.Type {
	key := shapeKey{h: h, e: e, n: n}
	if s, ok := shapes.Load(key); ok {
		return s.(reflect.Type)
	}
	s, _ := shapes.LoadOrStore(key, shapeOf(h, e, n))
	return s.(reflect.Type)
}

// shapeLen rounds count up to the next power of two so that at most one
// shape per bit width exists for a header and element type. It falls back to
// count when the rounded block would not be addressable.
func shapeLen(count int, elemOffset, elemSize uintptr) int {
	if count <= 1 {
		return count
	}
	shift := bits.Len(uint(count - 1))
	if shift >= bits.UintSize-1 {
		return count
	}
	n := 1 << shift
	if elemSize != 0 && uintptr(n) > (uintptr(math.MaxInt)-elemOffset)/elemSize {
		return count
	}
	return n
}

// shapeOf describes a block holding h followed by n values of e, in the form
// the garbage collector needs to scan it.
func shapeOf(h, e reflect.Type, n int) reflect.Type {
	return reflect.StructOf([]reflect.StructField{
		{Name: "Header", Type: h},
		{Name: "Elements", Type: reflect.ArrayOf(n, e)},
	})
}

// hasPointers reports whether values of t contain anything the garbage
// collector must trace.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		// pointers, unsafe pointers, strings, slices, maps, chans, funcs
		// and interfaces
		return true
	}
}
