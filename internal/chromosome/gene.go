package chromosome

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"bitga/internal/bits"
)

// Coding selects how integer gene bits are interpreted.
type Coding int

const (
	// Gray treats gene bits as a reflected Gray code so adjacent values
	// differ by a single bit.
	Gray Coding = iota
	Binary
)

func (c Coding) String() string {
	switch c {
	case Gray:
		return "gray"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("coding(%d)", int(c))
	}
}

// DecodeInteger interprets a sized gene as a T in [min, max). When min equals
// max the gene is not read and min is returned.
func DecodeInteger[T constraints.Integer](c *Chromosome, gene int, min, max T, coding Coding) T {
	if min == max {
		return min
	}
	value := T(readGene[T](c, gene, coding))
	return value%(max-min) + min
}

// EncodeInteger stores value into a sized gene.
func EncodeInteger[T constraints.Integer](c *Chromosome, gene int, value T, coding Coding) {
	start, width := sizedGene[T](c, gene)
	raw := uint64(value) & localMax(width)
	if coding == Gray {
		raw = EncodeGray(raw)
	}
	c.SetUint(raw, start, width)
}

// DecodeFloat interprets a sized gene as a value scaled into [min, max].
func DecodeFloat[F constraints.Float](c *Chromosome, gene int, min, max F, coding Coding) F {
	width := c.layout.GeneBitWidth(gene)
	return ScaleToFloat(readGene[uint64](c, gene, coding), width, min, max)
}

// EncodeFloat stores value, scaled from [min, max], into a sized gene.
func EncodeFloat[F constraints.Float](c *Chromosome, gene int, value, min, max F, coding Coding) {
	width := c.layout.GeneBitWidth(gene)
	EncodeInteger[uint64](c, gene, ScaleFromFloat(value, width, min, max), coding)
}

// DecodeGray converts a Gray-coded value to plain binary.
func DecodeGray[T constraints.Unsigned](gray T) T {
	value := gray
	for gray >>= 1; gray != 0; gray >>= 1 {
		value ^= gray
	}
	return value
}

// EncodeGray converts a plain binary value to its Gray code.
func EncodeGray[T constraints.Unsigned](value T) T {
	return value ^ (value >> 1)
}

// ScaleToFloat maps the width-bit integer v linearly onto [min, max].
func ScaleToFloat[F constraints.Float](v uint64, width int, min, max F) F {
	factor := F(v) / F(localMax(width))
	return factor*(max-min) + min
}

// ScaleFromFloat maps value in [min, max] onto a width-bit integer. Values
// outside the range saturate.
func ScaleFromFloat[F constraints.Float](value F, width int, min, max F) uint64 {
	top := localMax(width)
	factor := float64((value - min) / (max - min))
	switch {
	case math.IsNaN(factor) || factor <= 0:
		return 0
	case factor >= 1:
		return top
	}
	scaled := factor * float64(top)
	if scaled >= float64(top) {
		return top
	}
	return uint64(scaled)
}

func localMax(width int) uint64 {
	if width <= 0 || width > 64 {
		panic(fmt.Sprintf("chromosome: gene width %d outside [1,64]", width))
	}
	return math.MaxUint64 >> (64 - width)
}

func readGene[T constraints.Integer](c *Chromosome, gene int, coding Coding) uint64 {
	start, width := sizedGene[T](c, gene)
	raw := c.Uint(start, width)
	if coding == Gray {
		raw = DecodeGray(raw)
	}
	return raw
}

func sizedGene[T constraints.Integer](c *Chromosome, gene int) (int, int) {
	if c.layout.IsBooleanGene(gene) {
		panic(fmt.Sprintf("chromosome: gene %d is a boolean gene", gene))
	}
	start := c.layout.GeneStartBitIndex(gene)
	width := c.layout.GeneBitWidth(gene)
	if size := bits.BitSize[T](); width > size {
		panic(fmt.Sprintf("chromosome: gene %d is %d bits wide, does not fit a %d-bit integer", gene, width, size))
	}
	return start, width
}
