package evo

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"bitga/internal/bits"
	"bitga/internal/genome"
	"bitga/internal/rng"
)

// Population is a sortable, selectable set of individuals sharing a layout.
// Ranked access (At and the selectors) is only valid after Sort or Evaluate.
type Population struct {
	layout      *genome.Layout
	individuals []*Individual
	order       []int
	sorted      bool
	evaluated   bool
	partialSums []float64
}

func NewPopulation(layout *genome.Layout) *Population {
	return &Population{layout: layout}
}

func (p *Population) Layout() *genome.Layout {
	return p.layout
}

func (p *Population) Len() int {
	return len(p.individuals)
}

// Individual returns the i-th individual in storage order.
func (p *Population) Individual(i int) *Individual {
	return p.individuals[i]
}

// At returns the individual with the given rank; rank 0 has the lowest score.
func (p *Population) At(rank int) *Individual {
	if !p.sorted {
		panic("evo: ranked access to an unsorted population")
	}
	return p.individuals[p.order[rank]]
}

// Best returns the lowest scoring individual.
func (p *Population) Best() *Individual {
	return p.At(0)
}

// Resize grows the population with new individuals, randomized when r is not
// nil, or truncates it.
func (p *Population) Resize(n int, r rng.Source) {
	if n < 0 {
		panic(fmt.Sprintf("evo: negative population size %d", n))
	}
	if n < len(p.individuals) {
		clear(p.individuals[n:])
		p.individuals = p.individuals[:n]
	}
	for len(p.individuals) < n {
		ind := NewIndividual(p.layout)
		if r != nil {
			ind.Randomize(r)
		}
		p.individuals = append(p.individuals, ind)
	}
	p.reset()
}

// Initialize replaces every individual with one built from the given
// buffers. Each buffer must be exactly BitsRequired bits long.
func (p *Population) Initialize(buffers []*bits.Buffer) error {
	want := p.layout.BitsRequired()
	for i, buf := range buffers {
		if buf == nil {
			return fmt.Errorf("initial chromosome %d is nil", i)
		}
		if buf.BitCount() != want {
			return fmt.Errorf("initial chromosome %d length mismatch: got=%d want=%d", i, buf.BitCount(), want)
		}
	}
	individuals := make([]*Individual, len(buffers))
	for i, buf := range buffers {
		ind := NewIndividual(p.layout)
		ind.Buffer.CopyFrom(buf)
		individuals[i] = ind
	}
	p.individuals = individuals
	p.reset()
	return nil
}

func (p *Population) reset() {
	p.sorted = false
	p.evaluated = false
	p.partialSums = p.partialSums[:0]
}

// Sort orders the population by ascending score. The rank permutation is
// reused while the population size stays the same.
func (p *Population) Sort() {
	n := len(p.individuals)
	if len(p.order) != n {
		p.order = make([]int, n)
		for i := range p.order {
			p.order[i] = i
		}
	}
	sort.SliceStable(p.order, func(a, b int) bool {
		return p.individuals[p.order[a]].Less(p.individuals[p.order[b]])
	})
	p.sorted = true
}

// Evaluate scores every individual, sorts the population and assigns each
// individual a fitness share so that fitness sums to 1 and lower scores get
// larger shares. With workers > 1 scoring runs concurrently.
func (p *Population) Evaluate(ctx context.Context, scorer Scorer, workers int) error {
	n := len(p.individuals)
	if n == 0 {
		panic("evo: evaluate on an empty population")
	}
	if scorer == nil {
		return ErrNoScorer
	}
	if err := p.score(ctx, scorer, workers); err != nil {
		return err
	}
	p.Sort()

	best := p.At(0).Score
	worst := p.At(n - 1).Score
	shift := 0.0
	if best < 0 {
		shift = -best
	}
	sum := 0.0
	for _, ind := range p.individuals {
		ind.Fitness = best + worst - ind.Score + shift
		sum += ind.Fitness
	}
	if sum > 0 && !math.IsInf(sum, 0) {
		for _, ind := range p.individuals {
			ind.Fitness /= sum
		}
	} else {
		// Equal scores, or scores that do not sum to a usable total.
		for _, ind := range p.individuals {
			ind.Fitness = 1 / float64(n)
		}
	}

	p.evaluated = true
	p.partialSums = p.partialSums[:0]
	return nil
}

func (p *Population) score(ctx context.Context, scorer Scorer, workers int) error {
	if workers <= 1 {
		for _, ind := range p.individuals {
			ind.Score = scorer.Score(ind)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, ind := range p.individuals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ind.Score = scorer.Score(ind)
			return nil
		})
	}
	return g.Wait()
}

// InitializePartialSums prepares roulette wheel selection by accumulating
// fitness in rank order.
func (p *Population) InitializePartialSums() {
	p.checkEvaluated("InitializePartialSums")
	n := len(p.individuals)
	sums := p.partialSums[:0]
	total := 0.0
	for rank := 0; rank < n; rank++ {
		total += p.At(rank).Fitness
		sums = append(sums, total)
	}
	for i := range sums {
		if total > 0 {
			sums[i] /= total
		} else {
			sums[i] = float64(i+1) / float64(n)
		}
	}
	p.partialSums = sums
}

func (p *Population) RankSelect() *Individual {
	p.checkEvaluated("RankSelect")
	return p.At(0)
}

func (p *Population) UniformSelect(r rng.Source) *Individual {
	p.checkEvaluated("UniformSelect")
	return p.At(r.Int(0, len(p.individuals)-1))
}

// RouletteWheelSelect picks an individual with probability proportional to
// its fitness. InitializePartialSums must have been called since the last
// Evaluate.
func (p *Population) RouletteWheelSelect(r rng.Source) *Individual {
	p.checkEvaluated("RouletteWheelSelect")
	if len(p.partialSums) != len(p.individuals) {
		panic("evo: roulette wheel selection before InitializePartialSums")
	}
	cutoff := r.Float(0, 1)
	rank := sort.Search(len(p.partialSums), func(i int) bool {
		return p.partialSums[i] > cutoff
	})
	if rank >= len(p.partialSums) {
		rank = len(p.partialSums) - 1
	}
	return p.At(rank)
}

// TournamentSelect draws k individuals uniformly and returns the fittest.
func (p *Population) TournamentSelect(k int, r rng.Source) *Individual {
	p.checkEvaluated("TournamentSelect")
	if k <= 0 {
		panic(fmt.Sprintf("evo: tournament size %d", k))
	}
	last := len(p.individuals) - 1
	best := p.At(r.Int(0, last))
	for i := 1; i < k; i++ {
		if candidate := p.At(r.Int(0, last)); candidate.Fitness > best.Fitness {
			best = candidate
		}
	}
	return best
}

// excludeInto turns view into a ranked, evaluated population holding every
// individual of p except skip. The view shares individuals with p.
func (p *Population) excludeInto(view *Population, skip *Individual) {
	p.checkEvaluated("exclude")
	view.layout = p.layout
	view.individuals = view.individuals[:0]
	for rank := range p.individuals {
		if ind := p.At(rank); ind != skip {
			view.individuals = append(view.individuals, ind)
		}
	}
	n := len(view.individuals)
	if cap(view.order) < n {
		view.order = make([]int, n)
	}
	view.order = view.order[:n]
	for i := range view.order {
		view.order[i] = i
	}
	view.sorted = true
	view.evaluated = true
	view.partialSums = view.partialSums[:0]
}

func (p *Population) checkEvaluated(op string) {
	if !p.evaluated || !p.sorted {
		panic(fmt.Sprintf("evo: %s before Evaluate", op))
	}
	if len(p.individuals) == 0 {
		panic(fmt.Sprintf("evo: %s on an empty population", op))
	}
}

func (p *Population) Scores() []float64 {
	scores := make([]float64, len(p.individuals))
	for i, ind := range p.individuals {
		scores[i] = ind.Score
	}
	return scores
}

func (p *Population) AverageScore() float64 {
	if len(p.individuals) == 0 {
		return 0
	}
	return stat.Mean(p.Scores(), nil)
}

func (p *Population) MinimumScore() float64 {
	if len(p.individuals) == 0 {
		return 0
	}
	return floats.Min(p.Scores())
}

// ScoreStandardDeviation is the sample standard deviation of the scores.
func (p *Population) ScoreStandardDeviation() float64 {
	if len(p.individuals) <= 1 {
		return 0
	}
	return stat.StdDev(p.Scores(), nil)
}

// Diversity is the mean pairwise Hamming distance divided by the chromosome
// length, in [0, 1].
func (p *Population) Diversity() float64 {
	n := len(p.individuals)
	bitCount := p.layout.BitsRequired()
	if n <= 1 || bitCount == 0 {
		return 0
	}
	distance := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			distance += p.individuals[i].HammingDistance(&p.individuals[j].Buffer)
		}
	}
	pairs := n * (n - 1) / 2
	return float64(distance) / (float64(bitCount) * float64(pairs))
}
