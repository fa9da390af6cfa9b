package genome

import (
	"errors"
	"fmt"
)

var ErrEmptyLayout = errors.New("genome layout has no genes")

// Layout describes where every gene of a chromosome lives. Sized genes are
// laid out in insertion order; boolean genes are single bits packed after the
// last sized gene. A Layout must not change once chromosomes are built from
// it.
type Layout struct {
	starts []int
	widths []int

	firstBooleanBitIndex int
	booleanCount         int
}

func New() *Layout {
	return &Layout{}
}

// AddGene appends a sized gene directly after the previous one and returns
// its gene index.
func (l *Layout) AddGene(width int) int {
	return l.addGene(width, false)
}

// AddByteAlignedGene appends a sized gene whose start and width are rounded
// up to whole bytes so it can be read with Chromosome.RawGene.
func (l *Layout) AddByteAlignedGene(width int) int {
	return l.addGene(width, true)
}

func (l *Layout) addGene(width int, byteAlign bool) int {
	if width <= 0 {
		panic(fmt.Sprintf("genome: gene width must be > 0, got %d", width))
	}

	start := 0
	if n := len(l.starts); n > 0 {
		start = l.starts[n-1] + l.widths[n-1]
	}
	if byteAlign {
		width = roundUpToByte(width)
		start = roundUpToByte(start)
	}

	l.starts = append(l.starts, start)
	l.widths = append(l.widths, width)
	l.firstBooleanBitIndex = start + width
	return len(l.starts) - 1
}

func (l *Layout) SetBooleanGeneCount(count int) {
	if count < 0 {
		panic(fmt.Sprintf("genome: negative boolean gene count %d", count))
	}
	l.booleanCount = count
}

// AddBooleanGenes appends count boolean genes and returns the gene index of
// the first one added.
func (l *Layout) AddBooleanGenes(count int) int {
	if count < 0 {
		panic(fmt.Sprintf("genome: negative boolean gene count %d", count))
	}
	first := l.GeneCount()
	l.booleanCount += count
	return first
}

func (l *Layout) BooleanGeneCount() int {
	return l.booleanCount
}

// SizedGeneCount is also the gene index of the first boolean gene.
func (l *Layout) SizedGeneCount() int {
	return len(l.starts)
}

func (l *Layout) FirstBooleanGeneIndex() int {
	return len(l.starts)
}

func (l *Layout) FirstBooleanGeneBitIndex() int {
	return l.firstBooleanBitIndex
}

func (l *Layout) GeneCount() int {
	return len(l.starts) + l.booleanCount
}

func (l *Layout) IsBooleanGene(gene int) bool {
	l.checkGene(gene)
	return gene >= len(l.starts)
}

// GeneStartBitIndex returns the recorded start offset of a gene. Boolean
// genes report firstBooleanBitIndex + sizedCount - gene, which is the offset
// table older encodings were written against; use BooleanGeneBitIndex for
// the bit a boolean gene is stored in.
func (l *Layout) GeneStartBitIndex(gene int) int {
	l.checkGene(gene)
	if gene >= len(l.starts) {
		return l.firstBooleanBitIndex + len(l.starts) - gene
	}
	return l.starts[gene]
}

func (l *Layout) GeneBitWidth(gene int) int {
	l.checkGene(gene)
	if gene >= len(l.widths) {
		return 1
	}
	return l.widths[gene]
}

// BooleanGeneBitIndex returns the bit holding a boolean gene.
func (l *Layout) BooleanGeneBitIndex(gene int) int {
	l.checkGene(gene)
	if gene < len(l.starts) {
		panic(fmt.Sprintf("genome: gene %d is a sized gene, not a boolean gene", gene))
	}
	return l.firstBooleanBitIndex + gene - len(l.starts)
}

// GeneBitRange returns the half-open bit range [start, end) occupied by a
// gene.
func (l *Layout) GeneBitRange(gene int) (int, int) {
	if l.IsBooleanGene(gene) {
		bit := l.BooleanGeneBitIndex(gene)
		return bit, bit + 1
	}
	return l.starts[gene], l.starts[gene] + l.widths[gene]
}

// BitsRequired is the number of bits a chromosome needs to hold every gene.
func (l *Layout) BitsRequired() int {
	if len(l.starts) == 0 {
		return l.booleanCount
	}
	n := len(l.starts) - 1
	return l.starts[n] + l.widths[n] + l.booleanCount
}

func (l *Layout) Validate() error {
	if l.GeneCount() == 0 {
		return ErrEmptyLayout
	}
	return nil
}

func (l *Layout) checkGene(gene int) {
	if gene < 0 || gene >= l.GeneCount() {
		panic(fmt.Sprintf("genome: gene index %d out of range [0,%d)", gene, l.GeneCount()))
	}
}

func roundUpToByte(n int) int {
	if gap := n % 8; gap != 0 {
		return n + 8 - gap
	}
	return n
}
