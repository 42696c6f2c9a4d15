package memory

import (
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/wippyai/dynstruct"
)

var _ dynstruct.Allocator = (*Counting)(nil)

// Stats is a snapshot of a Counting allocator.
type Stats struct {
	Allocs    int64 // successful Alloc calls
	Frees     int64 // Free calls
	Failures  int64 // Alloc calls that returned an error
	LiveBytes int64 // requested bytes not yet freed
	PeakBytes int64 // high-water mark of LiveBytes
}

// Live returns the number of blocks allocated and not yet freed.
func (s Stats) Live() int64 {
	return s.Allocs - s.Frees
}

// Counting wraps an allocator and records how it is used.
type Counting struct {
	next     dynstruct.Allocator
	allocs   atomic.Int64
	frees    atomic.Int64
	failures atomic.Int64
	live     atomic.Int64
	peak     atomic.Int64
}

// NewCounting wraps next. A nil next wraps a Heap.
func NewCounting(next dynstruct.Allocator) *Counting {
	if next == nil {
		next = NewHeap()
	}
	return &Counting{next: next}
}

// Alloc forwards to the wrapped allocator.
func (c *Counting) Alloc(size, align uintptr, shape reflect.Type) (unsafe.Pointer, error) {
	ptr, err := c.next.Alloc(size, align, shape)
	if err != nil {
		c.failures.Add(1)
		return nil, err
	}
	c.allocs.Add(1)

	live := c.live.Add(int64(size))
	for {
		peak := c.peak.Load()
		if live <= peak || c.peak.CompareAndSwap(peak, live) {
			break
		}
	}
	return ptr, nil
}

// Free forwards to the wrapped allocator.
func (c *Counting) Free(ptr unsafe.Pointer, size, align uintptr) {
	c.next.Free(ptr, size, align)
	c.frees.Add(1)
	c.live.Add(-int64(size))
}

// Stats returns the current counters.
func (c *Counting) Stats() Stats {
	return Stats{
		Allocs:    c.allocs.Load(),
		Frees:     c.frees.Load(),
		Failures:  c.failures.Load(),
		LiveBytes: c.live.Load(),
		PeakBytes: c.peak.Load(),
	}
}

// Reset zeroes all counters.
func (c *Counting) Reset() {
	c.allocs.Store(0)
	c.frees.Store(0)
	c.failures.Store(0)
	c.live.Store(0)
	c.peak.Store(0)
}
