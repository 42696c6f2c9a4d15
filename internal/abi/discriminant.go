package abi

// DiscriminantSize returns the byte width of a variant or enum tag with numCases cases.
func DiscriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}
