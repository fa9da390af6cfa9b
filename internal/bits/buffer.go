package bits

import (
	"bytes"
	"fmt"
	"math"
	mathbits "math/bits"
)

// Incompatible is returned by HammingDistance when the operands hold a
// different number of bits.
const Incompatible = math.MaxInt

// Buffer is a growable, bit-addressable byte buffer. Bit i lives in byte i/8
// at position i%8 (least significant bit first). The zero value is an empty
// buffer ready for use.
type Buffer struct {
	bytes    []byte
	bitCount int
}

func New(bitCount int) *Buffer {
	b := &Buffer{}
	b.SetBitCount(bitCount)
	return b
}

// SetBitCount resizes the buffer to hold bitCount bits and unsets all of them.
func (b *Buffer) SetBitCount(bitCount int) {
	b.Resize(bitCount)
	b.Clear()
}

// Resize changes the logical length of the buffer. Existing bits are kept,
// bits gained by growing read as zero and the backing storage never shrinks.
func (b *Buffer) Resize(bitCount int) {
	if bitCount < 0 {
		panic(fmt.Sprintf("bits: negative bit count %d", bitCount))
	}
	old := b.bitCount
	need := byteCount(bitCount)
	if need > len(b.bytes) {
		b.bytes = append(b.bytes, make([]byte, need-len(b.bytes))...)
	}
	if bitCount > old {
		clear(b.bytes[byteCount(old):need])
		if rem := old % 8; rem != 0 {
			b.bytes[old/8] &= lowMask(rem)
		}
	}
	b.bitCount = bitCount
}

// Clip shortens the buffer without touching the backing storage.
func (b *Buffer) Clip(bitCount int) {
	if bitCount < 0 || bitCount > b.bitCount {
		panic(fmt.Sprintf("bits: clip to %d outside [0,%d]", bitCount, b.bitCount))
	}
	b.bitCount = bitCount
}

func (b *Buffer) BitCount() int {
	return b.bitCount
}

// Clear unsets every bit, including any slack in the backing storage.
func (b *Buffer) Clear() {
	clear(b.bytes)
}

// Bytes returns a writable view of the bytes that hold the buffer's bits.
// Bits past BitCount in the final byte carry no meaning.
func (b *Buffer) Bytes() []byte {
	return b.bytes[:byteCount(b.bitCount)]
}

// CopyFrom makes b a deep copy of src.
func (b *Buffer) CopyFrom(src *Buffer) {
	b.Resize(src.bitCount)
	copy(b.bytes, src.Bytes())
}

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{}
	out.CopyFrom(b)
	return out
}

func (b *Buffer) Get(index int) bool {
	b.checkIndex(index)
	return b.bytes[index/8]&(1<<(index%8)) != 0
}

func (b *Buffer) Set(index int) {
	b.checkIndex(index)
	b.bytes[index/8] |= 1 << (index % 8)
}

func (b *Buffer) Unset(index int) {
	b.checkIndex(index)
	b.bytes[index/8] &^= 1 << (index % 8)
}

// Put sets or unsets the bit at index.
func (b *Buffer) Put(index int, value bool) {
	if value {
		b.Set(index)
	} else {
		b.Unset(index)
	}
}

func (b *Buffer) Flip(index int) {
	b.checkIndex(index)
	b.bytes[index/8] ^= 1 << (index % 8)
}

// OnesCount returns the number of set bits.
func (b *Buffer) OnesCount() int {
	count := 0
	full := b.bitCount / 8
	for _, v := range b.bytes[:full] {
		count += mathbits.OnesCount8(v)
	}
	if rem := b.bitCount % 8; rem != 0 {
		count += mathbits.OnesCount8(b.bytes[full] & lowMask(rem))
	}
	return count
}

// SubVector copies width bits starting at srcStart into dst starting at
// dstStart, growing dst when it is too short.
func (b *Buffer) SubVector(dst *Buffer, dstStart, srcStart, width int) {
	if width == 0 {
		return
	}
	if srcStart < 0 || width < 0 || srcStart+width > b.bitCount {
		panic(fmt.Sprintf("bits: source range [%d,%d) outside [0,%d)", srcStart, srcStart+width, b.bitCount))
	}
	if dstStart < 0 {
		panic(fmt.Sprintf("bits: negative destination offset %d", dstStart))
	}
	if dst.bitCount < dstStart+width {
		dst.Resize(dstStart + width)
	}
	copyBits(dst.bytes, dstStart, b.bytes, srcStart, width)
}

// HammingDistance counts the bits that differ between b and other. Buffers of
// different lengths are not comparable and yield Incompatible.
func (b *Buffer) HammingDistance(other *Buffer) int {
	if b.bitCount != other.bitCount {
		return Incompatible
	}
	distance := 0
	full := b.bitCount / 8
	for i := 0; i < full; i++ {
		distance += mathbits.OnesCount8(b.bytes[i] ^ other.bytes[i])
	}
	if rem := b.bitCount % 8; rem != 0 {
		distance += mathbits.OnesCount8((b.bytes[full] ^ other.bytes[full]) & lowMask(rem))
	}
	return distance
}

// EqualBits reports whether the first n bits of b and other match. Both
// buffers must hold at least n bits.
func (b *Buffer) EqualBits(other *Buffer, n int) bool {
	if n > b.bitCount || n > other.bitCount || n < 0 {
		panic(fmt.Sprintf("bits: cannot compare %d bits of buffers sized %d and %d", n, b.bitCount, other.bitCount))
	}
	full := n / 8
	if !bytes.Equal(b.bytes[:full], other.bytes[:full]) {
		return false
	}
	rem := n % 8
	if rem == 0 {
		return true
	}
	mask := lowMask(rem)
	return b.bytes[full]&mask == other.bytes[full]&mask
}

// Equal reports whether both buffers hold the same number of bits with the
// same values.
func (b *Buffer) Equal(other *Buffer) bool {
	return b.bitCount == other.bitCount && b.EqualBits(other, b.bitCount)
}

func (b *Buffer) checkIndex(index int) {
	if index < 0 || index >= b.bitCount {
		panic(fmt.Sprintf("bits: index %d out of range [0,%d)", index, b.bitCount))
	}
}

func byteCount(bitCount int) int {
	return (bitCount + 7) / 8
}

// lowMask returns a byte with the n lowest bits set, n in [0,8].
func lowMask(n int) byte {
	return byte(uint16(1)<<n - 1)
}
