package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"bitga/internal/bits"
	"bitga/internal/chromosome"
	"bitga/internal/genome"
	"bitga/internal/model"
	"bitga/internal/rng"
)

var (
	ErrNotInitialized = errors.New("evolver is not initialized")
	ErrNoScorer       = errors.New("scorer is required")
)

// Observer is notified after every evaluated generation.
type Observer interface {
	ObserveGeneration(ctx context.Context, stats model.GenerationStats) error
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ctx context.Context, stats model.GenerationStats) error

func (f ObserverFunc) ObserveGeneration(ctx context.Context, stats model.GenerationStats) error {
	return f(ctx, stats)
}

type Option func(*Evolver)

// WithRandom replaces the random source seeded from Config.Seed.
func WithRandom(r rng.Source) Option {
	return func(e *Evolver) {
		if r != nil {
			e.rng = r
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Evolver) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Evolver) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// Evolver runs a generational genetic algorithm over chromosomes of a single
// layout. It keeps two populations and alternates between them, so breeding
// never allocates individuals. An Evolver is not safe for concurrent use.
type Evolver struct {
	layout    *genome.Layout
	scorer    Scorer
	cfg       Config
	rng       rng.Source
	logger    *slog.Logger
	observers []Observer

	current  *Population
	previous *Population
	others   Population

	generation  int
	initialized bool
	evaluated   bool
	lastRate    float64
}

func NewEvolver(layout *genome.Layout, scorer Scorer, cfg Config, opts ...Option) (*Evolver, error) {
	if layout == nil {
		return nil, fmt.Errorf("genome layout is required")
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if scorer == nil {
		return nil, ErrNoScorer
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	e := &Evolver{
		layout: layout,
		scorer: scorer,
		cfg:    cfg,
		rng:    rng.New(cfg.Seed),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Evolver) Config() Config {
	return e.cfg
}

func (e *Evolver) Layout() *genome.Layout {
	return e.layout
}

// Initialize resets the generation counter and fills the population, first
// from seeds and then with random chromosomes. Seeds beyond the population
// size are ignored.
func (e *Evolver) Initialize(ctx context.Context, seeds ...*bits.Buffer) error {
	if len(seeds) > e.cfg.PopulationSize {
		seeds = seeds[:e.cfg.PopulationSize]
	}
	current := NewPopulation(e.layout)
	if err := current.Initialize(seeds); err != nil {
		return fmt.Errorf("initialize population: %w", err)
	}
	current.Resize(e.cfg.PopulationSize, e.rng)

	previous := NewPopulation(e.layout)
	previous.Resize(e.cfg.PopulationSize, nil)

	e.current = current
	e.previous = previous
	e.generation = 0
	e.lastRate = 0
	e.initialized = true
	e.evaluated = false

	e.logger.InfoContext(ctx, "evolver initialized",
		"population_size", e.cfg.PopulationSize,
		"seeds", len(seeds),
		"bits", e.layout.BitsRequired(),
		"selector", e.cfg.SelectorType.String(),
		"crossover", e.cfg.CrossoverType.String(),
		"schedule", e.cfg.MutationRateSchedule.String(),
	)
	return nil
}

// Step advances the evolver by one generation. The first call after
// Initialize evaluates the initial population as generation 0; every later
// call breeds and evaluates the next generation.
func (e *Evolver) Step(ctx context.Context) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !e.evaluated {
		if err := e.current.Evaluate(ctx, e.scorer, e.cfg.Workers); err != nil {
			return fmt.Errorf("evaluate generation 0: %w", err)
		}
		e.evaluated = true
		return e.notify(ctx)
	}

	rate := e.CurrentMutationRate()
	e.current, e.previous = e.previous, e.current
	e.breed(rate)

	if err := e.current.Evaluate(ctx, e.scorer, e.cfg.Workers); err != nil {
		// The previous generation is untouched; restore it.
		e.current, e.previous = e.previous, e.current
		return fmt.Errorf("evaluate generation %d: %w", e.generation+1, err)
	}
	e.generation++
	e.lastRate = rate
	return e.notify(ctx)
}

// Run steps until TotalGenerations generations have been bred.
func (e *Evolver) Run(ctx context.Context) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if !e.evaluated {
		if err := e.Step(ctx); err != nil {
			return err
		}
	}
	for e.generation < e.cfg.TotalGenerations {
		if err := e.Step(ctx); err != nil {
			return err
		}
	}
	e.logger.InfoContext(ctx, "evolver run finished",
		"generation", e.generation,
		"minimum_score", e.MinimumScore(),
		"average_score", e.AverageScore(),
	)
	return nil
}

func (e *Evolver) breed(rate float64) {
	prev, next := e.previous, e.current
	if e.cfg.SelectorType == SelectorRouletteWheel {
		prev.InitializePartialSums()
	}

	i := 0
	for ; i < e.cfg.EliteCount; i++ {
		next.Individual(i).CopyFrom(prev.At(i))
	}
	for end := i + e.cfg.MutatedEliteCount; i < end; i++ {
		ind := next.Individual(i)
		ind.CopyFrom(prev.At(i))
		e.mutate(ind, e.cfg.MutatedEliteMutationRate)
	}
	for ; i < next.Len(); i++ {
		offspring := next.Individual(i)
		parent1, parent2 := e.selectParents(prev)
		if e.rng.CoinFlip(e.cfg.CrossoverRate) {
			e.crossover(parent1, parent2, offspring)
		} else {
			offspring.CopyFrom(parent1)
		}
		e.mutate(offspring, rate)
	}
}

func (e *Evolver) selectParents(pop *Population) (*Individual, *Individual) {
	first := e.selectOne(pop)
	if e.cfg.AllowSameParentCouples || pop.Len() < 2 {
		return first, e.selectOne(pop)
	}
	pop.excludeInto(&e.others, first)
	if e.cfg.SelectorType == SelectorRouletteWheel {
		e.others.InitializePartialSums()
	}
	return first, e.selectOne(&e.others)
}

func (e *Evolver) selectOne(pop *Population) *Individual {
	switch e.cfg.SelectorType {
	case SelectorRank:
		return pop.RankSelect()
	case SelectorUniform:
		return pop.UniformSelect(e.rng)
	case SelectorRouletteWheel:
		return pop.RouletteWheelSelect(e.rng)
	case SelectorTournament:
		return pop.TournamentSelect(e.cfg.TournamentSize, e.rng)
	default:
		panic(fmt.Sprintf("evo: unsupported %s", e.cfg.SelectorType))
	}
}

func (e *Evolver) crossover(parent1, parent2, offspring *Individual) {
	p1, p2, out := &parent1.Chromosome, &parent2.Chromosome, &offspring.Chromosome
	ignore := e.cfg.IgnoreGeneBoundaries
	switch e.cfg.CrossoverType {
	case CrossoverOnePoint:
		chromosome.KPointCrossover(1, p1, p2, out, e.rng, ignore)
	case CrossoverTwoPoint:
		chromosome.KPointCrossover(2, p1, p2, out, e.rng, ignore)
	case CrossoverKPoint:
		chromosome.KPointCrossover(e.cfg.CrossoverPoints, p1, p2, out, e.rng, ignore)
	case CrossoverUniform:
		chromosome.UniformCrossover(p1, p2, out, e.rng, ignore)
	default:
		panic(fmt.Sprintf("evo: unsupported %s", e.cfg.CrossoverType))
	}
}

func (e *Evolver) mutate(ind *Individual, rate float64) {
	switch e.cfg.MutatorType {
	case MutatorFlip:
		chromosome.FlipMutate(&ind.Chromosome, rate, e.rng)
	default:
		panic(fmt.Sprintf("evo: unsupported %s", e.cfg.MutatorType))
	}
}

// CurrentMutationRate is the rate the next Step applies to offspring.
func (e *Evolver) CurrentMutationRate() float64 {
	switch e.cfg.MutationRateSchedule {
	case ScheduleConstant:
		return e.cfg.MutationRate
	case ScheduleDeterministic:
		return e.deterministicRate()
	case ScheduleSelfAdaptive:
		if e.evaluated && e.current.Diversity() < e.cfg.SelfAdaptiveDiversityFloor {
			return e.cfg.SelfAdaptiveMutationRate
		}
		return e.cfg.MutationRate
	case ScheduleProportional:
		bitCount := e.layout.BitsRequired()
		if bitCount == 0 {
			panic("evo: proportional mutation rate for an empty genome")
		}
		return math.Min(1, e.cfg.ProportionalFlips/float64(bitCount))
	default:
		panic(fmt.Sprintf("evo: unsupported %s", e.cfg.MutationRateSchedule))
	}
}

// deterministicRate is 1/(2 + (n-2)/(T-1) * g) for n bits, T total
// generations and generation g, so the rate starts at 0.5 and reaches 1/n at
// the last generation.
func (e *Evolver) deterministicRate() float64 {
	total := e.cfg.TotalGenerations
	g := e.generation
	if total == 0 || g > total {
		return e.cfg.MutationRate
	}
	if total == 1 {
		return 0.5
	}
	n := float64(e.layout.BitsRequired())
	rate := 1 / (2 + ((n-2)/float64(total-1))*float64(g))
	return math.Max(0, math.Min(1, rate))
}

func (e *Evolver) notify(ctx context.Context) error {
	if len(e.observers) == 0 && !e.logger.Enabled(ctx, slog.LevelDebug) {
		return nil
	}
	stats := e.Stats()
	e.logger.DebugContext(ctx, "generation evaluated",
		"generation", stats.Generation,
		"minimum_score", stats.MinimumScore,
		"average_score", stats.AverageScore,
		"score_stddev", stats.ScoreStdDev,
		"diversity", stats.Diversity,
		"mutation_rate", stats.MutationRate,
	)
	for _, o := range e.observers {
		if err := o.ObserveGeneration(ctx, stats); err != nil {
			return fmt.Errorf("observe generation %d: %w", stats.Generation, err)
		}
	}
	return nil
}

// Stats summarizes the current generation. It is empty before the first
// Step.
func (e *Evolver) Stats() model.GenerationStats {
	if !e.evaluated {
		return model.GenerationStats{Generation: e.generation}
	}
	return model.GenerationStats{
		Generation:   e.generation,
		MinimumScore: e.MinimumScore(),
		AverageScore: e.AverageScore(),
		ScoreStdDev:  e.ScoreStandardDeviation(),
		Diversity:    e.PopulationDiversity(),
		MutationRate: e.lastRate,
		BestGenome:   e.BestIndividual().HexString(),
	}
}

func (e *Evolver) Generation() int {
	return e.generation
}

// Evaluated reports whether the current population has been scored.
func (e *Evolver) Evaluated() bool {
	return e.evaluated
}

// Population returns the current generation. It is nil before Initialize.
func (e *Evolver) Population() *Population {
	return e.current
}

// BestIndividual returns the lowest scoring individual of the current
// generation, or nil before the first Step.
func (e *Evolver) BestIndividual() *Individual {
	if !e.evaluated {
		return nil
	}
	return e.current.Best()
}

// Individual returns the individual ranked i in the current generation.
func (e *Evolver) Individual(i int) *Individual {
	if !e.evaluated {
		return nil
	}
	return e.current.At(i)
}

func (e *Evolver) MinimumScore() float64 {
	if !e.evaluated {
		return 0
	}
	return e.current.Best().Score
}

func (e *Evolver) AverageScore() float64 {
	if e.current == nil {
		return 0
	}
	return e.current.AverageScore()
}

func (e *Evolver) ScoreStandardDeviation() float64 {
	if e.current == nil {
		return 0
	}
	return e.current.ScoreStandardDeviation()
}

func (e *Evolver) PopulationDiversity() float64 {
	if e.current == nil {
		return 0
	}
	return e.current.Diversity()
}
