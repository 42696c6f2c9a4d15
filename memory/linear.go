package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/dynstruct"
	"github.com/wippyai/dynstruct/errors"
	"github.com/wippyai/dynstruct/internal/abi"
	"github.com/wippyai/dynstruct/layout"
)

var _ dynstruct.Allocator = (*Linear)(nil)

const (
	// PageSize is the size of a WebAssembly page.
	PageSize = 65536

	// DefaultLinearPages is used when LinearConfig.Pages is zero (1 MiB).
	DefaultLinearPages = 16

	// MaxLinearPages keeps every guest offset representable as uint32.
	MaxLinearPages = 65535

	// linearReserved keeps guest address 0 out of reach so that a zero
	// offset never names a live block.
	linearReserved = 8
)

// LinearConfig holds configuration for linear memory creation
type LinearConfig struct {
	// Runtime hosts the memory module. When nil, a runtime is created and
	// closed together with the Linear allocator.
	Runtime wazero.Runtime

	// Name is the module instance name. Empty means anonymous, which
	// allows several arenas in one runtime.
	Name string

	// Pages is the fixed memory size in 64 KiB pages.
	// 0 means DefaultLinearPages.
	Pages uint32
}

// Linear allocates blocks inside a WebAssembly linear memory instantiated in
// wazero. Blocks are carved out with a bump pointer and each has a stable
// guest address (see Offset), so records built on the host can be handed to
// guest code by offset.
//
// The memory is created with equal minimum and maximum sizes and is never
// grown, which keeps host pointers into it valid for the allocator's life.
// Blocks are aligned on host addresses. Free reclaims space only when the
// freed block is the most recent live one; space freed out of order is
// reclaimed once every block after it is freed too.
type Linear struct {
	mu         sync.Mutex
	runtime    wazero.Runtime
	ownRuntime bool
	module     api.Module
	mem        api.Memory
	base       unsafe.Pointer
	size       uint32
	next       uint32
	blocks     []linearBlock
	closed     bool
}

type linearBlock struct {
	prev  uint32 // bump pointer before the block was carved
	start uint32
	freed bool
}

// NewLinear instantiates a fresh memory and returns an allocator over it.
func NewLinear(ctx context.Context, cfg *LinearConfig) (*Linear, error) {
	var c LinearConfig
	if cfg != nil {
		c = *cfg
	}
	if c.Pages == 0 {
		c.Pages = DefaultLinearPages
	}
	if c.Pages > MaxLinearPages {
		return nil, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Value(c.Pages).
			Detail("%d pages exceeds the limit of %d", c.Pages, MaxLinearPages).
			Build()
	}

	l := &Linear{runtime: c.Runtime}
	if l.runtime == nil {
		runtimeCfg := wazero.NewRuntimeConfig().WithMemoryLimitPages(c.Pages)
		l.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
		l.ownRuntime = true
	}

	mod, err := l.runtime.InstantiateWithConfig(ctx, buildMemoryModule(c.Pages),
		wazero.NewModuleConfig().WithName(c.Name))
	if err != nil {
		l.closeRuntime(ctx)
		return nil, fmt.Errorf("instantiate linear memory: %w", err)
	}

	mem := mod.ExportedMemory(LinearExportName)
	if mem == nil {
		_ = mod.Close(ctx)
		l.closeRuntime(ctx)
		return nil, fmt.Errorf("linear memory module has no %q export", LinearExportName)
	}
	size := mem.Size()
	buf, ok := mem.Read(0, size)
	if !ok || size == 0 {
		_ = mod.Close(ctx)
		l.closeRuntime(ctx)
		return nil, fmt.Errorf("linear memory of %d bytes is not readable", size)
	}

	l.module = mod
	l.mem = mem
	l.base = unsafe.Pointer(unsafe.SliceData(buf))
	l.size = size
	l.next = linearReserved

	Logger().Debug("linear memory instantiated",
		zap.Uint32("pages", c.Pages),
		zap.Uint32("bytes", size),
		zap.Bool("own_runtime", l.ownRuntime))
	return l, nil
}

// Alloc carves a block out of the linear memory. Shapes are rejected since
// the collector does not scan linear memory.
func (l *Linear) Alloc(size, align uintptr, shape reflect.Type) (unsafe.Pointer, error) {
	if err := checkRequest(size, align); err != nil {
		return nil, err
	}
	if shape != nil {
		return nil, errors.New(errors.PhaseAlloc, errors.KindUnsupported).
			GoType(shape.String()).
			Detail("linear memory cannot hold Go pointers").
			Build()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	off, err := l.carve(size, align)
	if err != nil {
		return nil, err
	}
	return unsafe.Add(l.base, off), nil
}

// Free returns a block to the allocator.
func (l *Linear) Free(ptr unsafe.Pointer, size, align uintptr) {
	off, ok := l.Offset(ptr)
	if !ok {
		Logger().Warn("free of pointer outside linear memory", zap.Uintptr("addr", uintptr(ptr)))
		return
	}
	l.FreeOffset(off)
}

// Reserve carves space for a record laid out by c, typically computed with
// a WITCalculator, and returns its guest offset. Degenerate layouts get
// offset 0 and consume nothing.
func (l *Linear) Reserve(c layout.Combined) (uint32, error) {
	if c.Degenerate {
		return 0, nil
	}
	if !abi.IsPow2(c.Align) {
		return 0, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Value(c.Align).
			Detail("alignment %d is not a power of two", c.Align).
			Build()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.carve(c.Size, c.Align)
}

// FreeOffset releases the block starting at guest offset off.
func (l *Linear) FreeOffset(off uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.blocks) - 1; i >= 0; i-- {
		if l.blocks[i].start == off && !l.blocks[i].freed {
			l.blocks[i].freed = true
			l.trim()
			return
		}
	}
	Logger().Warn("free of unknown linear block", zap.Uint32("offset", off))
}

// Offset returns the guest address of a host pointer into the memory.
func (l *Linear) Offset(ptr unsafe.Pointer) (uint32, bool) {
	start := uintptr(l.base)
	addr := uintptr(ptr)
	if addr < start || addr >= start+uintptr(l.size) {
		return 0, false
	}
	return uint32(addr - start), true
}

// Memory returns the guest view of the arena.
func (l *Linear) Memory() api.Memory {
	return l.mem
}

// Module returns the instantiated memory module.
func (l *Linear) Module() api.Module {
	return l.module
}

// Used returns the current bump offset in bytes.
func (l *Linear) Used() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}

// Cap returns the size of the memory in bytes.
func (l *Linear) Cap() uint32 {
	return l.size
}

// Close closes the memory module, and the runtime when the allocator
// created it. Pointers into the memory must not be used afterwards.
func (l *Linear) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.blocks = nil

	if err := l.module.Close(ctx); err != nil {
		return fmt.Errorf("close linear memory: %w", err)
	}
	if l.ownRuntime {
		if err := l.runtime.Close(ctx); err != nil {
			return fmt.Errorf("close linear runtime: %w", err)
		}
	}
	return nil
}

func (l *Linear) closeRuntime(ctx context.Context) {
	if l.ownRuntime {
		_ = l.runtime.Close(ctx)
	}
}

// carve must be called with l.mu held.
func (l *Linear) carve(size, align uintptr) (uint32, error) {
	if l.closed {
		return 0, errors.New(errors.PhaseAlloc, errors.KindAllocation).
			Detail("linear memory is closed").
			Build()
	}

	start := uintptr(l.base)
	addr, ok := abi.SafeAlignTo(start+uintptr(l.next), align)
	if !ok {
		return 0, errors.Overflow(errors.PhaseAlloc, "aligned address", l.next)
	}
	off := addr - start
	end, ok := abi.SafeAdd(off, size)
	if !ok || end > uintptr(l.size) {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, size, align,
			fmt.Errorf("linear memory exhausted: %d of %d bytes used", l.next, l.size))
	}

	l.blocks = append(l.blocks, linearBlock{prev: l.next, start: uint32(off)})
	l.next = uint32(end)

	if ce := Logger().Check(zap.DebugLevel, "linear block"); ce != nil {
		ce.Write(zap.Uint32("offset", uint32(off)), zap.Uintptr("size", size))
	}
	return uint32(off), nil
}

// trim pops freed blocks off the end and rolls the bump pointer back.
func (l *Linear) trim() {
	for n := len(l.blocks); n > 0 && l.blocks[n-1].freed; n = len(l.blocks) {
		l.next = l.blocks[n-1].prev
		l.blocks = l.blocks[:n-1]
	}
}
