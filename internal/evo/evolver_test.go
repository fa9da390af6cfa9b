package evo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitga/internal/bits"
	"bitga/internal/genome"
	"bitga/internal/model"
	"bitga/internal/rng"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 20
	cfg.TotalGenerations = 5
	cfg.EliteCount = 1
	cfg.Seed = 42
	return cfg
}

func booleanLayout(n int) *genome.Layout {
	l := genome.New()
	l.AddBooleanGenes(n)
	return l
}

func newTestEvolver(t *testing.T, layout *genome.Layout, scorer Scorer, cfg Config, opts ...Option) *Evolver {
	t.Helper()
	e, err := NewEvolver(layout, scorer, cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, e.Initialize(context.Background()))
	return e
}

func TestNewEvolverValidation(t *testing.T) {
	layout := booleanLayout(8)

	_, err := NewEvolver(layout, nil, smallConfig())
	assert.ErrorIs(t, err, ErrNoScorer)

	_, err = NewEvolver(nil, onesScorer, smallConfig())
	assert.Error(t, err)

	_, err = NewEvolver(genome.New(), onesScorer, smallConfig())
	assert.ErrorIs(t, err, genome.ErrEmptyLayout)

	cfg := smallConfig()
	cfg.EliteCount = 15
	cfg.MutatedEliteCount = 6
	_, err = NewEvolver(layout, onesScorer, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStepRequiresInitialize(t *testing.T) {
	e, err := NewEvolver(booleanLayout(8), onesScorer, smallConfig())
	require.NoError(t, err)

	assert.ErrorIs(t, e.Step(context.Background()), ErrNotInitialized)
	assert.ErrorIs(t, e.Run(context.Background()), ErrNotInitialized)
	assert.Nil(t, e.BestIndividual())
	assert.Zero(t, e.AverageScore())
}

func TestStepLifecycle(t *testing.T) {
	e := newTestEvolver(t, booleanLayout(32), onesScorer, smallConfig())
	ctx := context.Background()

	assert.False(t, e.Evaluated())
	require.NoError(t, e.Step(ctx))
	assert.True(t, e.Evaluated())
	assert.Equal(t, 0, e.Generation())
	require.NotNil(t, e.BestIndividual())
	assert.Equal(t, e.MinimumScore(), e.Individual(0).Score)

	require.NoError(t, e.Step(ctx))
	assert.Equal(t, 1, e.Generation())
	assert.Equal(t, 20, e.Population().Len())
	assert.LessOrEqual(t, e.Individual(0).Score, e.Individual(19).Score)
}

func TestRunNotifiesEveryGeneration(t *testing.T) {
	var seen []model.GenerationStats
	observer := ObserverFunc(func(_ context.Context, stats model.GenerationStats) error {
		seen = append(seen, stats)
		return nil
	})
	e := newTestEvolver(t, booleanLayout(24), onesScorer, smallConfig(), WithObserver(observer))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 5, e.Generation())
	require.Len(t, seen, 6)
	for i, stats := range seen {
		assert.Equal(t, i, stats.Generation)
		assert.NotEmpty(t, stats.BestGenome)
	}
	assert.Zero(t, seen[0].MutationRate)
	assert.Equal(t, 0.05, seen[1].MutationRate)
	assert.Equal(t, e.MinimumScore(), seen[5].MinimumScore)
}

func TestObserverErrorStopsRun(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	observer := ObserverFunc(func(_ context.Context, stats model.GenerationStats) error {
		calls++
		if stats.Generation == 2 {
			return boom
		}
		return nil
	})
	e := newTestEvolver(t, booleanLayout(16), onesScorer, smallConfig(), WithObserver(observer))

	err := e.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	e := newTestEvolver(t, booleanLayout(16), onesScorer, smallConfig())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Step(ctx))
	cancel()

	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
	assert.Equal(t, 0, e.Generation())
}

func TestElitismNeverLosesBest(t *testing.T) {
	for _, selector := range []SelectorType{SelectorRank, SelectorUniform, SelectorRouletteWheel, SelectorTournament} {
		cfg := smallConfig()
		cfg.SelectorType = selector
		cfg.TotalGenerations = 30
		cfg.MutationRate = 0.2
		e := newTestEvolver(t, booleanLayout(40), onesScorer, cfg)
		ctx := context.Background()

		require.NoError(t, e.Step(ctx))
		best := e.MinimumScore()
		for e.Generation() < cfg.TotalGenerations {
			require.NoError(t, e.Step(ctx))
			require.LessOrEqualf(t, e.MinimumScore(), best, "selector %s generation %d", selector, e.Generation())
			best = e.MinimumScore()
		}
	}
}

func TestInitializeUsesSeeds(t *testing.T) {
	layout := booleanLayout(64)
	zero := bits.New(64)
	cfg := smallConfig()
	e, err := NewEvolver(layout, onesScorer, cfg)
	require.NoError(t, err)

	require.NoError(t, e.Initialize(context.Background(), zero))
	require.NoError(t, e.Step(context.Background()))
	assert.Equal(t, 0.0, e.MinimumScore())
	assert.Greater(t, e.AverageScore(), 10.0, "the rest of the population is random")

	err = e.Initialize(context.Background(), bits.New(63))
	assert.Error(t, err)
}

func TestMutatedElitesComeFromNextRanks(t *testing.T) {
	cfg := smallConfig()
	cfg.PopulationSize = 4
	cfg.EliteCount = 1
	cfg.MutatedEliteCount = 1
	cfg.MutatedEliteMutationRate = 0
	cfg.CrossoverRate = 0
	cfg.MutationRate = 0
	cfg.SelectorType = SelectorRank
	cfg.AllowSameParentCouples = true

	e, err := NewEvolver(byteLayout(), valueScorer, cfg)
	require.NoError(t, err)
	seeds := make([]*bits.Buffer, 4)
	for i, v := range []uint64{40, 10, 30, 20} {
		seeds[i] = bits.New(8)
		seeds[i].SetUint(v, 0, 8)
	}
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, seeds...))
	require.NoError(t, e.Step(ctx))
	require.NoError(t, e.Step(ctx))

	// One elite (10), one unmutated copy of rank 1 (20) and two clones of
	// the rank-selected best.
	assert.Equal(t, []float64{10, 10, 10, 20}, []float64{
		e.Individual(0).Score, e.Individual(1).Score, e.Individual(2).Score, e.Individual(3).Score,
	})
}

func TestSameParentCouplesExcluded(t *testing.T) {
	cfg := smallConfig()
	cfg.PopulationSize = 3
	cfg.SelectorType = SelectorRank
	cfg.AllowSameParentCouples = false
	e := newTestEvolver(t, byteLayout(), valueScorer, cfg)
	require.NoError(t, e.Step(context.Background()))

	p1, p2 := e.selectParents(e.Population())
	assert.NotSame(t, p1, p2)
	assert.Same(t, e.Population().At(1), p2)

	e.cfg.AllowSameParentCouples = true
	p1, p2 = e.selectParents(e.Population())
	assert.Same(t, p1, p2)
}

func TestMutationRateSchedules(t *testing.T) {
	layout := booleanLayout(16)
	ctx := context.Background()

	cfg := smallConfig()
	cfg.MutationRateSchedule = ScheduleConstant
	e := newTestEvolver(t, layout, onesScorer, cfg)
	assert.Equal(t, 0.05, e.CurrentMutationRate())

	cfg.MutationRateSchedule = ScheduleProportional
	cfg.ProportionalFlips = 2
	e = newTestEvolver(t, layout, onesScorer, cfg)
	assert.Equal(t, 0.125, e.CurrentMutationRate())

	cfg.MutationRateSchedule = ScheduleDeterministic
	cfg.TotalGenerations = 3
	e = newTestEvolver(t, layout, onesScorer, cfg)
	assert.Equal(t, 0.5, e.CurrentMutationRate())
	require.NoError(t, e.Step(ctx))
	require.NoError(t, e.Step(ctx))
	assert.InDelta(t, 1.0/9, e.CurrentMutationRate(), 1e-12)
	require.NoError(t, e.Step(ctx))
	assert.InDelta(t, 1.0/16, e.CurrentMutationRate(), 1e-12)

	cfg.TotalGenerations = 0
	e = newTestEvolver(t, layout, onesScorer, cfg)
	assert.Equal(t, 0.05, e.CurrentMutationRate())

	cfg.MutationRateSchedule = ScheduleSelfAdaptive
	cfg.TotalGenerations = 5
	e, err := NewEvolver(layout, onesScorer, cfg)
	require.NoError(t, err)
	same := make([]*bits.Buffer, cfg.PopulationSize)
	for i := range same {
		same[i] = bits.New(16)
	}
	require.NoError(t, e.Initialize(ctx, same...))
	assert.Equal(t, 0.05, e.CurrentMutationRate(), "no diversity measure before evaluation")
	require.NoError(t, e.Step(ctx))
	assert.Equal(t, 0.20, e.CurrentMutationRate())
}

func TestInvalidDispatchPanics(t *testing.T) {
	e := newTestEvolver(t, booleanLayout(8), onesScorer, smallConfig())
	require.NoError(t, e.Step(context.Background()))

	e.cfg.SelectorType = SelectorType(42)
	assert.Panics(t, func() { _ = e.Step(context.Background()) })

	e.cfg.MutationRateSchedule = MutationRateSchedule(-1)
	assert.Panics(t, func() { e.CurrentMutationRate() })
}

func TestParallelEvaluationIsDeterministic(t *testing.T) {
	run := func(workers int) []float64 {
		cfg := smallConfig()
		cfg.Workers = workers
		cfg.TotalGenerations = 10
		e := newTestEvolver(t, booleanLayout(48), onesScorer, cfg)
		require.NoError(t, e.Run(context.Background()))
		return e.Population().Scores()
	}
	assert.Equal(t, run(1), run(4))
}

func TestWithRandomOverridesSeed(t *testing.T) {
	a := newTestEvolver(t, booleanLayout(32), onesScorer, smallConfig(), WithRandom(rng.New(7)))
	b := newTestEvolver(t, booleanLayout(32), onesScorer, smallConfig(), WithRandom(rng.New(7)))
	c := newTestEvolver(t, booleanLayout(32), onesScorer, smallConfig())

	for i := 0; i < a.Population().Len(); i++ {
		require.True(t, a.Population().Individual(i).Equal(&b.Population().Individual(i).Buffer))
	}
	differs := false
	for i := 0; i < a.Population().Len(); i++ {
		if !a.Population().Individual(i).Equal(&c.Population().Individual(i).Buffer) {
			differs = true
		}
	}
	assert.True(t, differs)
}

// Boolean genes scored by Hamming distance to a fixed random target must
// reach a perfect match.
func TestConvergesOnTargetMatch(t *testing.T) {
	if testing.Short() {
		t.Skip("long-running convergence run")
	}
	layout := booleanLayout(2000)
	r := rng.New(1234)
	target := bits.New(layout.BitsRequired())
	for i := 0; i < target.BitCount(); i++ {
		target.Put(i, r.CoinFlip(0.5))
	}
	scorer := FitnessFunc(func(ind *Individual) float64 {
		return float64(ind.HammingDistance(target))
	})

	cfg := DefaultConfig()
	cfg.PopulationSize = 100
	cfg.TotalGenerations = 10000
	cfg.EliteCount = 1
	cfg.SelectorType = SelectorTournament
	cfg.TournamentSize = 5
	cfg.CrossoverType = CrossoverUniform
	cfg.CrossoverRate = 0.99
	cfg.IgnoreGeneBoundaries = false
	cfg.MutationRateSchedule = ScheduleProportional
	cfg.ProportionalFlips = 1
	cfg.Seed = 42

	e := newTestEvolver(t, layout, scorer, cfg)
	ctx := context.Background()
	require.NoError(t, e.Step(ctx))
	for e.MinimumScore() > 0 && e.Generation() < cfg.TotalGenerations {
		require.NoError(t, e.Step(ctx))
	}
	assert.Zero(t, e.MinimumScore(), "stopped at generation %d", e.Generation())
}
