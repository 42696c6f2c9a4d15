// Package memory provides raw block allocators for combined records.
//
// Every allocator implements dynstruct.Allocator and hands out one block per
// Alloc call:
//
//   - Heap: Go heap memory. Blocks that hold Go pointers are allocated with
//     the record's reflect shape so the garbage collector scans them. This is
//     the default allocator of the record package.
//   - Mapped: anonymous private mappings outside the Go heap. Only
//     pointer-free blocks are accepted.
//   - Linear: a fixed-size WebAssembly linear memory hosted by wazero. Blocks
//     are carved out with a bump pointer and have a guest address, so a guest
//     module can read records laid out by the host.
//   - Counting: wraps another allocator and keeps allocation statistics.
//
// Heap, Mapped and Counting are safe for concurrent use. Linear serializes
// allocations with a mutex.
package memory
