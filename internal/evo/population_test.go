package evo

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitga/internal/bits"
	"bitga/internal/genome"
	"bitga/internal/rng"
)

// scriptedSource replays fixed draws so selection paths can be checked
// exactly.
type scriptedSource struct {
	ints   []int
	floats []float64
}

func (s *scriptedSource) Int(min, max int) int {
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v < min || v > max {
		panic("scripted int out of range")
	}
	return v
}

func (s *scriptedSource) Float(min, max float64) float64 {
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedSource) CoinFlip(p float64) bool { return p >= 0.5 }
func (s *scriptedSource) Byte() byte              { return 0 }

var onesScorer = FitnessFunc(func(ind *Individual) float64 {
	return float64(ind.OnesCount())
})

var valueScorer = FitnessFunc(func(ind *Individual) float64 {
	return float64(ind.Uint(0, 8))
})

func byteLayout() *genome.Layout {
	l := genome.New()
	l.AddGene(8)
	return l
}

// valuePopulation holds one individual per value, in the given storage order.
func valuePopulation(t *testing.T, values ...uint64) *Population {
	t.Helper()
	l := byteLayout()
	buffers := make([]*bits.Buffer, len(values))
	for i, v := range values {
		buffers[i] = bits.New(8)
		buffers[i].SetUint(v, 0, 8)
	}
	p := NewPopulation(l)
	require.NoError(t, p.Initialize(buffers))
	return p
}

func randomPopulation(seed int64, size int) *Population {
	l := genome.New()
	l.AddGene(13)
	l.AddBooleanGenes(19)
	p := NewPopulation(l)
	p.Resize(size, rng.New(seed))
	return p
}

func TestEvaluateSortsAndNormalizes(t *testing.T) {
	p := randomPopulation(42, 30)
	require.NoError(t, p.Evaluate(context.Background(), onesScorer, 1))

	sum := 0.0
	for rank := 0; rank < p.Len(); rank++ {
		sum += p.At(rank).Fitness
		if rank > 0 {
			require.LessOrEqual(t, p.At(rank-1).Score, p.At(rank).Score)
			require.GreaterOrEqual(t, p.At(rank-1).Fitness, p.At(rank).Fitness)
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, p.MinimumScore(), p.Best().Score)
}

func TestEvaluateFitnessFormula(t *testing.T) {
	p := valuePopulation(t, 3, 1, 2)
	require.NoError(t, p.Evaluate(context.Background(), valueScorer, 1))

	// best+worst-score gives 3, 2, 1 for scores 1, 2, 3.
	assert.InDelta(t, 3.0/6, p.At(0).Fitness, 1e-12)
	assert.InDelta(t, 2.0/6, p.At(1).Fitness, 1e-12)
	assert.InDelta(t, 1.0/6, p.At(2).Fitness, 1e-12)
	assert.Equal(t, 1.0, p.At(0).Score)
	assert.Same(t, p.Individual(1), p.At(0))
}

func TestEvaluateEqualScoresShareFitness(t *testing.T) {
	p := valuePopulation(t, 0, 0, 0, 0)
	require.NoError(t, p.Evaluate(context.Background(), valueScorer, 1))
	for rank := 0; rank < p.Len(); rank++ {
		assert.InDelta(t, 0.25, p.At(rank).Fitness, 1e-12)
	}
}

func TestEvaluateNegativeScores(t *testing.T) {
	p := valuePopulation(t, 0, 5, 10)
	negative := FitnessFunc(func(ind *Individual) float64 {
		return float64(ind.Uint(0, 8)) - 20
	})
	require.NoError(t, p.Evaluate(context.Background(), negative, 1))

	sum := 0.0
	for rank := 0; rank < p.Len(); rank++ {
		require.GreaterOrEqual(t, p.At(rank).Fitness, 0.0)
		sum += p.At(rank).Fitness
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Greater(t, p.At(0).Fitness, p.At(1).Fitness)
}

func TestEvaluateParallelMatchesSequential(t *testing.T) {
	sequential := randomPopulation(7, 64)
	parallel := randomPopulation(7, 64)

	require.NoError(t, sequential.Evaluate(context.Background(), onesScorer, 1))
	require.NoError(t, parallel.Evaluate(context.Background(), onesScorer, 8))

	for rank := 0; rank < sequential.Len(); rank++ {
		require.Equal(t, sequential.At(rank).Score, parallel.At(rank).Score)
		require.Equal(t, sequential.At(rank).Fitness, parallel.At(rank).Fitness)
		require.True(t, sequential.At(rank).Equal(&parallel.At(rank).Buffer))
	}
}

func TestEvaluateHonoursCanceledContext(t *testing.T) {
	p := randomPopulation(1, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Evaluate(ctx, onesScorer, 4)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Panics(t, func() { p.RankSelect() })
}

func TestEvaluateRequiresScorer(t *testing.T) {
	p := randomPopulation(1, 4)
	assert.ErrorIs(t, p.Evaluate(context.Background(), nil, 1), ErrNoScorer)

	empty := NewPopulation(byteLayout())
	assert.Panics(t, func() { _ = empty.Evaluate(context.Background(), onesScorer, 1) })
}

func TestSelectionBeforeEvaluatePanics(t *testing.T) {
	p := randomPopulation(3, 8)
	r := rng.New(3)

	assert.Panics(t, func() { p.RankSelect() })
	assert.Panics(t, func() { p.UniformSelect(r) })
	assert.Panics(t, func() { p.TournamentSelect(2, r) })
	assert.Panics(t, func() { p.InitializePartialSums() })

	require.NoError(t, p.Evaluate(context.Background(), onesScorer, 1))
	assert.Panics(t, func() { p.RouletteWheelSelect(r) }, "partial sums not initialized")
	assert.Panics(t, func() { p.TournamentSelect(0, r) })
}

func TestRankSelectReturnsBest(t *testing.T) {
	p := valuePopulation(t, 9, 4, 7)
	require.NoError(t, p.Evaluate(context.Background(), valueScorer, 1))
	assert.Equal(t, 4.0, p.RankSelect().Score)
}

func TestRouletteWheelFavoursLowScores(t *testing.T) {
	p := valuePopulation(t, 0, 10, 20, 30)
	require.NoError(t, p.Evaluate(context.Background(), valueScorer, 1))
	p.InitializePartialSums()

	r := rng.New(42)
	counts := map[float64]int{}
	for i := 0; i < 6000; i++ {
		counts[p.RouletteWheelSelect(r).Score]++
	}
	// Fitness shares are 3/6, 2/6, 1/6 and 0.
	assert.Zero(t, counts[30])
	assert.InDelta(t, 3000, counts[0], 250)
	assert.InDelta(t, 2000, counts[10], 250)
	assert.InDelta(t, 1000, counts[20], 250)
}

func TestRouletteWheelClampsAtBoundary(t *testing.T) {
	p := valuePopulation(t, 1, 2, 3)
	require.NoError(t, p.Evaluate(context.Background(), valueScorer, 1))
	p.InitializePartialSums()

	r := &scriptedSource{floats: []float64{1.0, 0.0}}
	assert.Equal(t, 3.0, p.RouletteWheelSelect(r).Score)
	assert.Equal(t, 1.0, p.RouletteWheelSelect(r).Score)
}

func TestTournamentSelectPicksFittestEntrant(t *testing.T) {
	p := valuePopulation(t, 50, 10, 40, 20, 30)
	require.NoError(t, p.Evaluate(context.Background(), valueScorer, 1))

	r := &scriptedSource{ints: []int{4, 2, 3}}
	assert.Equal(t, 30.0, p.TournamentSelect(3, r).Score)

	r = &scriptedSource{ints: []int{1}}
	assert.Equal(t, 20.0, p.TournamentSelect(1, r).Score)
}

func TestUniformSelectCoversPopulation(t *testing.T) {
	p := valuePopulation(t, 1, 2, 3, 4)
	require.NoError(t, p.Evaluate(context.Background(), valueScorer, 1))

	r := rng.New(9)
	seen := map[float64]bool{}
	for i := 0; i < 200; i++ {
		seen[p.UniformSelect(r).Score] = true
	}
	assert.Len(t, seen, 4)
}

func TestExcludeIntoSkipsIndividual(t *testing.T) {
	p := valuePopulation(t, 5, 1, 3)
	require.NoError(t, p.Evaluate(context.Background(), valueScorer, 1))

	var view Population
	p.excludeInto(&view, p.Best())
	require.Equal(t, 2, view.Len())
	assert.Equal(t, 3.0, view.RankSelect().Score)

	view.InitializePartialSums()
	r := rng.New(1)
	for i := 0; i < 100; i++ {
		require.NotSame(t, p.Best(), view.RouletteWheelSelect(r))
	}
}

func TestDiversity(t *testing.T) {
	assert.Equal(t, 1.0, valuePopulation(t, 0x00, 0xff).Diversity())
	assert.Equal(t, 0.0, valuePopulation(t, 0x0f, 0x0f, 0x0f).Diversity())
	assert.Equal(t, 0.0, valuePopulation(t, 0x0f).Diversity())

	// Pairs: (0x00,0x0f)=4, (0x00,0xff)=8, (0x0f,0xff)=4 over 3 pairs of 8 bits.
	assert.InDelta(t, 16.0/24, valuePopulation(t, 0x00, 0x0f, 0xff).Diversity(), 1e-12)
}

func TestScoreStatistics(t *testing.T) {
	p := valuePopulation(t, 2, 4, 4, 4, 5, 5, 7, 9)
	require.NoError(t, p.Evaluate(context.Background(), valueScorer, 1))

	assert.InDelta(t, 5.0, p.AverageScore(), 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7), p.ScoreStandardDeviation(), 1e-12)
	assert.Equal(t, 2.0, p.MinimumScore())

	single := valuePopulation(t, 3)
	assert.Zero(t, single.ScoreStandardDeviation())
	assert.Zero(t, NewPopulation(byteLayout()).AverageScore())
}

func TestResizeAndInitialize(t *testing.T) {
	p := NewPopulation(byteLayout())
	p.Resize(5, rng.New(2))
	require.Equal(t, 5, p.Len())
	p.Resize(2, nil)
	require.Equal(t, 2, p.Len())

	err := p.Initialize([]*bits.Buffer{bits.New(8), bits.New(9)})
	require.Error(t, err)
	assert.Equal(t, 2, p.Len(), "a rejected initialize leaves the population alone")
}
