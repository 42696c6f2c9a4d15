//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package memory

import (
	"reflect"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/dynstruct/errors"
	"github.com/wippyai/dynstruct/internal/abi"
)

// NewMapped returns an allocator backed by anonymous mappings.
func NewMapped() *Mapped {
	return &Mapped{pageSize: uintptr(unix.Getpagesize())}
}

// Alloc maps a fresh region of at least size bytes.
func (m *Mapped) Alloc(size, align uintptr, shape reflect.Type) (unsafe.Pointer, error) {
	if err := checkRequest(size, align); err != nil {
		return nil, err
	}
	if shape != nil {
		return nil, errors.New(errors.PhaseAlloc, errors.KindUnsupported).
			GoType(shape.String()).
			Detail("mapped memory cannot hold Go pointers").
			Build()
	}
	if align > m.pageSize {
		return nil, errors.New(errors.PhaseAlloc, errors.KindUnsupported).
			Value(align).
			Detail("alignment %d exceeds page size %d", align, m.pageSize).
			Build()
	}

	length, ok := abi.SafeAlignTo(size, m.pageSize)
	if !ok {
		return nil, errors.Overflow(errors.PhaseAlloc, "mapping length", size)
	}

	ptr, err := unix.MmapPtr(-1, 0, nil, length,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.AllocationFailed(errors.PhaseAlloc, size, align, err)
	}

	if ce := Logger().Check(zap.DebugLevel, "mapped block"); ce != nil {
		ce.Write(zap.Uintptr("size", size), zap.Uintptr("length", length))
	}
	return ptr, nil
}

// Free unmaps a block. A failed unmap is logged and otherwise ignored.
func (m *Mapped) Free(ptr unsafe.Pointer, size, align uintptr) {
	if ptr == nil {
		return
	}
	length := abi.AlignTo(size, m.pageSize)
	if err := unix.MunmapPtr(ptr, length); err != nil {
		Logger().Warn("munmap failed",
			zap.Uintptr("addr", uintptr(ptr)),
			zap.Uintptr("length", length),
			zap.Error(err))
	}
}
