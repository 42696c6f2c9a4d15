package memory

import "github.com/wippyai/dynstruct"

var _ dynstruct.Allocator = (*Mapped)(nil)

// Mapped allocates each block as its own anonymous private mapping outside
// the Go heap. The garbage collector never scans mapped memory, so blocks
// that would hold Go pointers are rejected.
//
// Blocks are rounded up to whole pages and are zero-filled by the kernel.
// Alignments above the page size are not supported.
type Mapped struct {
	pageSize uintptr
}

// PageSize returns the granularity of the mappings.
func (m *Mapped) PageSize() uintptr {
	return m.pageSize
}
