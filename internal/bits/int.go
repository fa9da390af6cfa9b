package bits

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Uint reads width bits starting at bitIndex as an unsigned integer. The
// first bit read becomes the least significant bit of the result.
func (b *Buffer) Uint(bitIndex, width int) uint64 {
	b.checkRange(bitIndex, width, 64)
	var word [8]byte
	copyBits(word[:], 0, b.bytes, bitIndex, width)
	return binary.LittleEndian.Uint64(word[:])
}

// SetUint stores the low width bits of value starting at bitIndex.
func (b *Buffer) SetUint(value uint64, bitIndex, width int) {
	b.checkRange(bitIndex, width, 64)
	var word [8]byte
	binary.LittleEndian.PutUint64(word[:], value)
	copyBits(b.bytes, bitIndex, word[:], 0, width)
}

// ReadInt reads width bits starting at bitIndex as a T. width may not exceed
// the bit size of T.
func ReadInt[T constraints.Integer](b *Buffer, bitIndex, width int) T {
	checkWidth[T](width)
	return T(b.Uint(bitIndex, width))
}

// WriteInt stores the low width bits of value starting at bitIndex. width
// may not exceed the bit size of T.
func WriteInt[T constraints.Integer](b *Buffer, value T, bitIndex, width int) {
	checkWidth[T](width)
	b.SetUint(uint64(value), bitIndex, width)
}

// BitSize returns the width of T in bits.
func BitSize[T constraints.Integer]() int {
	var zero T
	return int(unsafe.Sizeof(zero)) * 8
}

func checkWidth[T constraints.Integer](width int) {
	if size := BitSize[T](); width > size {
		panic(fmt.Sprintf("bits: width %d exceeds %d-bit integer", width, size))
	}
}

func (b *Buffer) checkRange(bitIndex, width, maxWidth int) {
	if width < 0 || width > maxWidth {
		panic(fmt.Sprintf("bits: width %d outside [0,%d]", width, maxWidth))
	}
	if bitIndex < 0 || bitIndex+width > b.bitCount {
		panic(fmt.Sprintf("bits: range [%d,%d) outside [0,%d)", bitIndex, bitIndex+width, b.bitCount))
	}
}
