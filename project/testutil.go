package project

import "github.com/ivajon/symex/smt"

// NewForTest builds a minimal Image directly from a symbol table, with no
// loaded segments, for use by other packages' tests (state, executor, vm)
// that need an Image but not a real ELF file. Every address behaves as
// writable RAM, since InStaticRange only ever reports segments this
// constructor never populates.
func NewForTest(symbols map[string]uint64, ptrSize uint32, endianness smt.Endianness) *Image {
	return &Image{
		symbols:    symbols,
		ptrSize:    ptrSize,
		endianness: endianness,
	}
}
