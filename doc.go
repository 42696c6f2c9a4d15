// Package dynstruct allocates records made of a fixed-size header followed by
// a variable-length trailing array as one contiguous block.
//
// A record type such as
//
//	header { id u32, flags u8 }  +  elements []u64
//
// normally costs two allocations: the header and a separately allocated
// backing array. dynstruct places both in one block sized from the header and
// element layouts, keeps the element count in the handle instead of the block,
// and finalizes every value exactly once when the handle is released.
//
// # Architecture Overview
//
//	dynstruct/           Root package with the Allocator interface
//	├── layout/          Size, alignment and element offset calculation
//	├── record/          Owning handles: construction, views, release
//	├── memory/          Raw block allocators (Go heap, mmap, wasm linear memory)
//	├── errors/          Structured error types for debugging
//	├── internal/abi/    Overflow-checked arithmetic shared by the packages
//	└── examples/basic/  Runnable walkthrough
//
// # Quick Start
//
//	type Header struct {
//	    ID    uint32
//	    Flags uint8
//	}
//
//	rec := record.New(Header{ID: 7}, []uint64{1, 2, 3})
//	defer rec.Release()
//
//	fmt.Println(rec.Header().ID)  // 7
//	fmt.Println(rec.Elements())   // [1 2 3]
//
// Borrow an existing slice as a record whose header and elements share a type:
//
//	view, err := record.View([]uint32{10, 20, 30})
//	// view.Header() -> 10, view.Elements() -> [20 30]
//
// # Layout
//
// The trailing array starts at the header size rounded up to the element
// alignment. The block alignment is the larger of the two alignments:
//
//	header (8, align 8) + 3 x u8   -> offset 8,  size 11
//	header (1, align 1) + 3 x u64  -> offset 8,  size 32
//
// When both the header and the trailing array occupy zero bytes no allocator
// is consulted at all; the handle points at a shared immutable marker.
//
// # Finalization
//
// Values implementing record.Dropper have Drop called when the owning record
// is released: header first, then elements in index order.
//
// # Thread Safety
//
// Records are single-owner values. Independent records may be created and
// released concurrently; a single record must not be released from two
// goroutines.
package dynstruct
