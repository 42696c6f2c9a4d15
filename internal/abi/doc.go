// Package abi provides internal arithmetic and type-naming helpers shared by
// the layout calculator, the record owner and the allocators.
//
// # Contents
//
//   - helpers.go: overflow-checked add/mul, alignment rounding, type names
//   - discriminant.go: Canonical ABI discriminant sizing for WIT layouts
//
// This package is internal to dynstruct.
package abi
