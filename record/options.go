package record

import (
	"github.com/wippyai/dynstruct"
	"github.com/wippyai/dynstruct/memory"
)

var defaultAllocator dynstruct.Allocator = memory.NewHeap()

type config struct {
	alloc     dynstruct.Allocator
	leakCheck bool
}

// Option configures record construction.
type Option func(*config)

// WithAllocator sets the allocator blocks are requested from.
// The default allocates on the Go heap.
func WithAllocator(a dynstruct.Allocator) Option {
	return func(c *config) {
		if a != nil {
			c.alloc = a
		}
	}
}

// WithLeakCheck logs a warning when a record backed by an allocated block
// becomes unreachable without being released.
func WithLeakCheck() Option {
	return func(c *config) {
		c.leakCheck = true
	}
}

func newConfig(opts []Option) config {
	c := config{alloc: defaultAllocator}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
