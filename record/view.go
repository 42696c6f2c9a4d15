package record

import (
	"unsafe"

	"github.com/wippyai/dynstruct/errors"
	"github.com/wippyai/dynstruct/internal/abi"
	"github.com/wippyai/dynstruct/layout"
)

// View reinterprets values as a record whose header is values[0] and whose
// elements are values[1:]. Nothing is allocated or copied; the record reads
// and writes through to values and reports Borrowed.
//
// The layout matches a Record[T, T] built by New with len(values)-1
// elements. View fails with KindEmpty when values is empty.
func View[T any](values []T) (*Record[T, T], error) {
	if len(values) == 0 {
		return nil, errors.Empty(errors.PhaseView, abi.TypeNameOf[[]T]())
	}

	info := layout.Of[T]()
	l, err := layout.Compute(info, info, len(values)-1)
	if err != nil {
		return nil, err
	}

	glue := dropGlueFor[T]()
	return &Record[T, T]{
		ptr:      unsafe.Pointer(unsafe.SliceData(values)),
		n:        len(values) - 1,
		layout:   l,
		hDrop:    glue,
		eDrop:    glue,
		borrowed: true,
	}, nil
}
