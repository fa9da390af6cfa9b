package bits

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferSingleBitOps(t *testing.T) {
	b := New(10)
	b.Set(0)
	b.Set(9)
	assert.True(t, b.Get(0))
	assert.True(t, b.Get(9))
	assert.False(t, b.Get(5))

	b.Flip(5)
	assert.True(t, b.Get(5))
	b.Unset(5)
	assert.False(t, b.Get(5))
	assert.Equal(t, 2, b.OnesCount())
}

func TestBufferIndexOutOfRangePanics(t *testing.T) {
	b := New(8)
	assert.Panics(t, func() { b.Get(8) })
	assert.Panics(t, func() { b.Set(-1) })
	assert.Panics(t, func() { b.Flip(100) })
}

func TestBufferSetBitCountClears(t *testing.T) {
	b := New(16)
	b.SetUint(0xffff, 0, 16)
	b.SetBitCount(24)
	assert.Equal(t, 24, b.BitCount())
	assert.Equal(t, uint64(0), b.Uint(0, 24))
}

func TestBufferResizePreservesAndZeroesNewBits(t *testing.T) {
	b := New(12)
	for i := 0; i < 12; i++ {
		b.Set(i)
	}
	b.Resize(30)
	assert.Equal(t, uint64(0xfff), b.Uint(0, 30))

	b.Clip(4)
	b.Resize(12)
	assert.Equal(t, uint64(0xf), b.Uint(0, 12), "bits past a clip read as zero after growing")
}

func TestBufferUintRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	b := New(200)
	for width := 1; width <= 64; width++ {
		for trial := 0; trial < 20; trial++ {
			bitIndex := rng.Intn(200 - width + 1)
			value := rng.Uint64()
			if width < 64 {
				value &= 1<<width - 1
			}
			b.SetUint(value, bitIndex, width)
			require.Equalf(t, value, b.Uint(bitIndex, width), "width=%d index=%d", width, bitIndex)
		}
	}
}

func TestBufferSetUintPreservesNeighbours(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 500; trial++ {
		b := New(96)
		for i := range b.Bytes() {
			b.Bytes()[i] = byte(rng.Intn(256))
		}
		before := b.Clone()

		width := 1 + rng.Intn(64)
		bitIndex := rng.Intn(96 - width + 1)
		b.SetUint(rng.Uint64(), bitIndex, width)

		for i := 0; i < 96; i++ {
			if i >= bitIndex && i < bitIndex+width {
				continue
			}
			require.Equalf(t, before.Get(i), b.Get(i), "bit %d changed outside [%d,%d)", i, bitIndex, bitIndex+width)
		}
	}
}

func TestReadWriteIntGeneric(t *testing.T) {
	b := New(40)
	WriteInt[uint8](b, 0xab, 3, 8)
	assert.Equal(t, uint8(0xab), ReadInt[uint8](b, 3, 8))

	WriteInt[int16](b, -2, 20, 16)
	assert.Equal(t, int16(-2), ReadInt[int16](b, 20, 16))

	assert.Panics(t, func() { ReadInt[uint8](b, 0, 9) })
	assert.Equal(t, 32, BitSize[int32]())
}

func TestSubVectorGrowsDestination(t *testing.T) {
	src := New(20)
	src.SetUint(0b1011011, 5, 7)

	dst := New(3)
	dst.Set(0)
	src.SubVector(dst, 9, 5, 7)

	assert.Equal(t, 16, dst.BitCount())
	assert.True(t, dst.Get(0))
	assert.Equal(t, uint64(0b1011011), dst.Uint(9, 7))
	assert.Equal(t, uint64(0), dst.Uint(1, 8))
}

func TestSubVectorAlignedFastPath(t *testing.T) {
	src := New(32)
	src.SetUint(0xdeadbeef, 0, 32)
	dst := New(32)
	dst.SetUint(0xffffffff, 0, 32)

	src.SubVector(dst, 8, 8, 12)
	assert.Equal(t, uint64(0xfffdbeff), dst.Uint(0, 32))
}

func TestHammingDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for n := 0; n < 70; n++ {
		a := New(n)
		for i := range a.Bytes() {
			a.Bytes()[i] = byte(rng.Intn(256))
		}
		assert.Equal(t, 0, a.HammingDistance(a))
	}

	a := New(13)
	b := New(13)
	b.Set(0)
	b.Set(12)
	b.Bytes()[1] |= 0xe0 // past the last bit, ignored
	assert.Equal(t, 2, a.HammingDistance(b))

	assert.Equal(t, Incompatible, a.HammingDistance(New(14)))
}

func TestEqualBitsIgnoresSlack(t *testing.T) {
	a := New(11)
	b := New(11)
	a.SetUint(0x5a5, 0, 11)
	b.SetUint(0x5a5, 0, 11)
	b.Bytes()[1] |= 0xf8
	assert.True(t, a.EqualBits(b, 11))
	assert.True(t, a.Equal(b))

	b.Flip(3)
	assert.False(t, a.EqualBits(b, 11))
	assert.True(t, a.EqualBits(b, 3))
	assert.Panics(t, func() { a.EqualBits(b, 12) })
	assert.False(t, a.Equal(New(12)))
}

func TestCopyFromAndClone(t *testing.T) {
	a := New(21)
	a.SetUint(0x1abcde, 0, 21)
	b := New(3)
	b.CopyFrom(a)
	assert.True(t, a.Equal(b))

	c := a.Clone()
	c.Flip(0)
	assert.False(t, a.Equal(c))
}
