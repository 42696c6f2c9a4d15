// Package record builds combined records: a header value and a trailing
// array of elements stored together in one contiguous block.
//
// # Construction
//
// New moves a header and a slice of elements into a freshly allocated block.
// The block is requested from a dynstruct.Allocator exactly once; when both
// the header and the elements are zero-sized no allocator is called at all
// and the record points at a shared zero-size marker.
//
//	r := record.New(Header{ID: 7}, []uint64{1, 2, 3})
//	defer r.Release()
//
//	r.Header().ID    // 7
//	r.Elements()     // [1 2 3]
//
// Collect builds a record from an iterator that must yield exactly the
// declared number of elements. Type precomputes per-type information for
// code that builds many records of the same shape.
//
// # Ownership
//
// Construction moves values into the record: the source slice is cleared
// and the header argument must be treated as consumed. The record owns the
// block until Release, which finalizes the header and then every element in
// order, then returns the block to its allocator. Values finalize through
// the Dropper interface. A record is released at most once; later calls
// return an error.
//
// # Views
//
// View reinterprets an existing non-empty slice as a record whose header is
// the first value and whose elements are the rest. Views borrow the slice:
// they allocate nothing and cannot be released.
//
// # Errors
//
// Conditions the caller cannot recover from inside the call (layout
// overflow, allocation failure, an iterator that yields the wrong number of
// elements) panic with an *errors.Error. Misuse that can be reported, such as
// viewing an empty slice or releasing twice, returns an *errors.Error.
package record
