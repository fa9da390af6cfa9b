package chromosome

import (
	"fmt"

	"bitga/internal/bits"
	"bitga/internal/genome"
	"bitga/internal/rng"
)

// Chromosome is the bit data of one genome layout instance. The layout is
// shared and must outlive every chromosome built against it.
type Chromosome struct {
	bits.Buffer
	layout *genome.Layout
}

func New(layout *genome.Layout) *Chromosome {
	c := &Chromosome{layout: layout}
	c.SetBitCount(layout.BitsRequired())
	return c
}

// FromBuffer builds a chromosome holding a copy of buf, which must be exactly
// layout.BitsRequired() bits long.
func FromBuffer(layout *genome.Layout, buf *bits.Buffer) (*Chromosome, error) {
	if buf.BitCount() != layout.BitsRequired() {
		return nil, fmt.Errorf("chromosome length mismatch: got=%d want=%d", buf.BitCount(), layout.BitsRequired())
	}
	c := &Chromosome{layout: layout}
	c.Buffer.CopyFrom(buf)
	return c, nil
}

func (c *Chromosome) Layout() *genome.Layout {
	return c.layout
}

// CopyFrom copies the bits of src. Both chromosomes are expected to share a
// layout.
func (c *Chromosome) CopyFrom(src *Chromosome) {
	c.Buffer.CopyFrom(&src.Buffer)
}

// Randomize fills every byte backing the chromosome with a random byte.
func (c *Chromosome) Randomize(r rng.Source) {
	data := c.Bytes()
	for i := range data {
		data[i] = r.Byte()
	}
}

func (c *Chromosome) DecodeBoolean(gene int) bool {
	return c.Get(c.layout.BooleanGeneBitIndex(gene))
}

func (c *Chromosome) EncodeBoolean(gene int, value bool) {
	c.Put(c.layout.BooleanGeneBitIndex(gene), value)
}

// RawGene returns the bytes backing a byte-aligned sized gene together with
// its width in bits. Writes through the slice change the chromosome.
func (c *Chromosome) RawGene(gene int) ([]byte, int) {
	if c.layout.IsBooleanGene(gene) {
		panic(fmt.Sprintf("chromosome: gene %d is a boolean gene", gene))
	}
	start := c.layout.GeneStartBitIndex(gene)
	width := c.layout.GeneBitWidth(gene)
	if start%8 != 0 || width%8 != 0 {
		panic(fmt.Sprintf("chromosome: gene %d is not byte aligned (start=%d width=%d)", gene, start, width))
	}
	return c.Bytes()[start/8 : (start+width)/8], width
}

// Bits exposes the underlying buffer, for helpers that take a *bits.Buffer.
func (c *Chromosome) Bits() *bits.Buffer {
	return &c.Buffer
}
