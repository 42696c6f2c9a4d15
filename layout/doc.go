// Package layout computes how a header and a trailing array share one block.
//
// Given the size and alignment of a header type and of an element type, and
// an element count, Compute returns the block size, the block alignment and
// the byte offset at which the trailing array begins.
//
// # Layout Rules
//
//   - Block alignment is the larger of the header and element alignments.
//   - The trailing array starts at the header size rounded up to the element
//     alignment; the gap is padding.
//   - Block size is that offset plus element size times count. It is not
//     rounded up to the block alignment.
//   - A block of size zero is reported as Degenerate: no memory needs to be
//     requested for it, although its header and elements still exist
//     logically.
//
// # Usage
//
//	l, err := layout.Compute(layout.Of[Header](), layout.Of[uint64](), 3)
//	// l.Size, l.Align, l.ElemOffset available
//
// Component layouts for Canonical ABI (WIT) types come from WITCalculator, so a
// record described only by WIT types can be laid out the same way:
//
//	calc := layout.NewWITCalculator()
//	l, err := calc.Combined(headerType, wit.U32{}, n)
package layout
