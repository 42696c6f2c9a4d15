package memory

// LinearExportName is the export name of the memory in generated modules.
const LinearExportName = "memory"

// buildMemoryModule returns the binary of a module that defines and exports
// one memory of exactly pages pages. Minimum and maximum are equal so the
// memory can never grow and its backing buffer never moves.
func buildMemoryModule(pages uint32) []byte {
	var wasm []byte

	// Magic and version
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d)
	wasm = append(wasm, 0x01, 0x00, 0x00, 0x00)

	// Memory section: one memory with min and max limits
	var memSection []byte
	memSection = append(memSection, encodeULEB128(1)...)
	memSection = append(memSection, 0x01)
	memSection = append(memSection, encodeULEB128(pages)...)
	memSection = append(memSection, encodeULEB128(pages)...)
	wasm = append(wasm, 0x05)
	wasm = append(wasm, encodeULEB128(uint32(len(memSection)))...)
	wasm = append(wasm, memSection...)

	// Export section: memory 0
	var exportSection []byte
	exportSection = append(exportSection, encodeULEB128(1)...)
	exportSection = append(exportSection, encodeULEB128(uint32(len(LinearExportName)))...)
	exportSection = append(exportSection, LinearExportName...)
	exportSection = append(exportSection, 0x02)
	exportSection = append(exportSection, encodeULEB128(0)...)
	wasm = append(wasm, 0x07)
	wasm = append(wasm, encodeULEB128(uint32(len(exportSection)))...)
	wasm = append(wasm, exportSection...)

	return wasm
}

// encodeULEB128 encodes an unsigned value in LEB128 format.
func encodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}
