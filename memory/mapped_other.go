//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package memory

import (
	"os"
	"reflect"
	"unsafe"

	"github.com/wippyai/dynstruct/errors"
)

// NewMapped returns an allocator that reports every request as unsupported
// on this platform.
func NewMapped() *Mapped {
	return &Mapped{pageSize: uintptr(os.Getpagesize())}
}

// Alloc always fails with KindUnsupported.
func (m *Mapped) Alloc(size, align uintptr, shape reflect.Type) (unsafe.Pointer, error) {
	return nil, errors.Unsupported(errors.PhaseAlloc, "anonymous mappings are not available on this platform")
}

// Free is a no-op.
func (m *Mapped) Free(unsafe.Pointer, uintptr, uintptr) {}
