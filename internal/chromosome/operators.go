package chromosome

import (
	"fmt"
	"math"

	"bitga/internal/rng"
)

// UniformCrossover fills offspring with bits taken from parent1 or parent2.
//
// With ignoreGeneBoundaries set, one random mask byte is drawn per byte and
// each offspring bit comes from parent1 where the mask bit is set and from
// parent2 otherwise. Without it, a fair coin picks the parent of each whole
// gene.
func UniformCrossover(parent1, parent2, offspring *Chromosome, r rng.Source, ignoreGeneBoundaries bool) {
	checkParents(parent1, parent2)
	offspring.Resize(parent1.BitCount())

	if ignoreGeneBoundaries {
		p1 := parent1.Bytes()
		p2 := parent2.Bytes()
		out := offspring.Bytes()
		for i := range out {
			mask := r.Byte()
			out[i] = mask&p1[i] | ^mask&p2[i]
		}
		return
	}

	layout := parent1.layout
	for gene := 0; gene < layout.GeneCount(); gene++ {
		source := parent2
		if r.CoinFlip(0.5) {
			source = parent1
		}
		if layout.IsBooleanGene(gene) {
			bit := layout.BooleanGeneBitIndex(gene)
			offspring.Put(bit, source.Get(bit))
			continue
		}
		start := layout.GeneStartBitIndex(gene)
		source.SubVector(&offspring.Buffer, start, start, layout.GeneBitWidth(gene))
	}
}

// KPointCrossover cuts the parents at k random points and fills offspring
// with the resulting chunks, alternating between parent1 and parent2. With
// ignoreGeneBoundaries set the cut points fall anywhere in the bit string,
// otherwise only between genes.
func KPointCrossover(k int, parent1, parent2, offspring *Chromosome, r rng.Source, ignoreGeneBoundaries bool) {
	checkParents(parent1, parent2)
	if k < 0 {
		panic(fmt.Sprintf("chromosome: negative crossover point count %d", k))
	}
	bitCount := parent1.BitCount()
	offspring.Resize(bitCount)

	// Positions are bit indices or gene indices; span maps a position to the
	// bit offset where it begins.
	limit := bitCount
	span := func(pos int) int { return pos }
	if !ignoreGeneBoundaries {
		layout := parent1.layout
		limit = layout.GeneCount()
		span = func(pos int) int {
			if pos >= limit {
				return bitCount
			}
			start, _ := layout.GeneBitRange(pos)
			return start
		}
	}

	left := 0
	for i := 0; i <= k; i++ {
		right := limit
		if i < k {
			right = r.Int(left, limit)
		}

		source := parent1
		if i%2 == 1 {
			source = parent2
		}
		if left < limit {
			from, to := span(left), span(right)
			source.SubVector(&offspring.Buffer, from, from, to-from)
		}
		left = right
	}
}

// FlipMutate flips round(bitCount*rate) randomly chosen bits. Bits are drawn
// with replacement, so a bit picked twice ends up unchanged.
func FlipMutate(c *Chromosome, rate float64, r rng.Source) {
	bitCount := c.BitCount()
	if bitCount == 0 {
		return
	}
	flips := int(math.Round(float64(bitCount) * rate))
	for i := 0; i < flips; i++ {
		c.Flip(r.Int(0, bitCount-1))
	}
}

func checkParents(parent1, parent2 *Chromosome) {
	if parent1.BitCount() != parent2.BitCount() {
		panic(fmt.Sprintf("chromosome: parent lengths differ: %d vs %d", parent1.BitCount(), parent2.BitCount()))
	}
}
