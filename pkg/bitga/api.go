// Package bitga is the public entry point for embedding the bit-genome
// genetic algorithm: describe a genome layout, supply a Scorer, and run an
// Evolver, optionally recording run history and exporting metrics.
package bitga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/constraints"

	"bitga/internal/bits"
	"bitga/internal/chromosome"
	"bitga/internal/evo"
	"bitga/internal/genome"
	"bitga/internal/metrics"
	"bitga/internal/model"
	"bitga/internal/rng"
	"bitga/internal/stats"
	"bitga/internal/storage"
)

const (
	defaultDBPath     = "bitga.db"
	defaultExportsDir = "exports"
)

type (
	Layout          = genome.Layout
	Buffer          = bits.Buffer
	Chromosome      = chromosome.Chromosome
	Coding          = chromosome.Coding
	Individual      = evo.Individual
	Population      = evo.Population
	Scorer          = evo.Scorer
	FitnessFunc     = evo.FitnessFunc
	Observer        = evo.Observer
	ObserverFunc    = evo.ObserverFunc
	Option          = evo.Option
	Config          = evo.Config
	Evolver         = evo.Evolver
	GenerationStats = model.GenerationStats
	RunRecord       = model.Run
	RunStatus       = model.RunStatus
	RandomSource    = rng.Source
)

const (
	Gray   = chromosome.Gray
	Binary = chromosome.Binary

	CrossoverOnePoint = evo.CrossoverOnePoint
	CrossoverTwoPoint = evo.CrossoverTwoPoint
	CrossoverKPoint   = evo.CrossoverKPoint
	CrossoverUniform  = evo.CrossoverUniform

	MutatorFlip = evo.MutatorFlip

	SelectorRank          = evo.SelectorRank
	SelectorUniform       = evo.SelectorUniform
	SelectorRouletteWheel = evo.SelectorRouletteWheel
	SelectorTournament    = evo.SelectorTournament

	ScheduleConstant      = evo.ScheduleConstant
	ScheduleDeterministic = evo.ScheduleDeterministic
	ScheduleSelfAdaptive  = evo.ScheduleSelfAdaptive
	ScheduleProportional  = evo.ScheduleProportional

	RunRunning   = model.RunRunning
	RunCompleted = model.RunCompleted
	RunFailed    = model.RunFailed
	RunCanceled  = model.RunCanceled
)

var (
	ErrNotInitialized = evo.ErrNotInitialized
	ErrNoScorer       = evo.ErrNoScorer
	ErrInvalidConfig  = evo.ErrInvalidConfig
	ErrRunNotFound    = storage.ErrRunNotFound
)

func NewLayout() *Layout {
	return genome.New()
}

func NewBuffer(bitCount int) *Buffer {
	return bits.New(bitCount)
}

func ParseHex(s string) (*Buffer, error) {
	return bits.ParseHex(s)
}

func ParseBinary(s string) (*Buffer, error) {
	return bits.ParseBinary(s)
}

func NewChromosome(layout *Layout) *Chromosome {
	return chromosome.New(layout)
}

func DefaultConfig() Config {
	return evo.DefaultConfig()
}

func NewRandom(seed int64) RandomSource {
	return rng.New(seed)
}

func NewEvolver(layout *Layout, scorer Scorer, cfg Config, opts ...Option) (*Evolver, error) {
	return evo.NewEvolver(layout, scorer, cfg, opts...)
}

func WithRandom(r RandomSource) Option      { return evo.WithRandom(r) }
func WithLogger(logger *slog.Logger) Option { return evo.WithLogger(logger) }
func WithObserver(o Observer) Option        { return evo.WithObserver(o) }

func DecodeInteger[T constraints.Integer](c *Chromosome, gene int, min, max T, coding Coding) T {
	return chromosome.DecodeInteger(c, gene, min, max, coding)
}

func EncodeInteger[T constraints.Integer](c *Chromosome, gene int, value T, coding Coding) {
	chromosome.EncodeInteger(c, gene, value, coding)
}

func DecodeFloat[F constraints.Float](c *Chromosome, gene int, min, max F, coding Coding) F {
	return chromosome.DecodeFloat(c, gene, min, max, coding)
}

func EncodeFloat[F constraints.Float](c *Chromosome, gene int, value, min, max F, coding Coding) {
	chromosome.EncodeFloat(c, gene, value, min, max, coding)
}

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
	// Registerer receives the evolver metrics. Nil disables metrics.
	Registerer       prometheus.Registerer
	MetricsNamespace string
}

// Client runs evolvers against a run-history store.
type Client struct {
	store     storage.Store
	logger    *slog.Logger
	collector *metrics.Collector

	mu    sync.Mutex
	ready bool
}

type RunRequest struct {
	Name      string
	Layout    *Layout
	Scorer    Scorer
	Config    Config
	Seeds     []*Buffer
	Observers []Observer
}

type RunSummary struct {
	RunID             string
	Generations       int
	BestScore         float64
	BestGenome        string
	ScoreHistory      []float64
	FinalDiversity    float64
	FinalMutationRate float64
}

type RunsRequest struct {
	Limit int
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
	Summary   stats.Summary
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" && storeKind == "sqlite" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	c := &Client{store: store, logger: logger}
	if opts.Registerer != nil {
		collector, err := metrics.NewCollector(opts.Registerer, opts.MetricsNamespace)
		if err != nil {
			_ = storage.CloseIfSupported(store)
			return nil, err
		}
		c.collector = collector
	}
	return c, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.ready = true
	return nil
}

// Run evolves req.Config.TotalGenerations generations, recording every
// generation in the store.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Layout == nil {
		return RunSummary{}, errors.New("run requires a genome layout")
	}
	if req.Scorer == nil {
		return RunSummary{}, ErrNoScorer
	}
	if err := req.Config.Validate(); err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	recorder, err := storage.NewRecorder(ctx, c.store, model.Run{
		Name:             req.Name,
		Seed:             req.Config.Seed,
		PopulationSize:   req.Config.PopulationSize,
		TotalGenerations: req.Config.TotalGenerations,
		BitsRequired:     req.Layout.BitsRequired(),
		Selector:         req.Config.SelectorType.String(),
		Crossover:        req.Config.CrossoverType.String(),
		Schedule:         req.Config.MutationRateSchedule.String(),
	})
	if err != nil {
		return RunSummary{}, err
	}

	var summary RunSummary
	summary.RunID = recorder.RunID()
	history := evo.ObserverFunc(func(_ context.Context, stats model.GenerationStats) error {
		summary.ScoreHistory = append(summary.ScoreHistory, stats.MinimumScore)
		summary.FinalDiversity = stats.Diversity
		summary.FinalMutationRate = stats.MutationRate
		return nil
	})

	opts := []evo.Option{
		evo.WithLogger(c.logger.With("run_id", recorder.RunID())),
		evo.WithObserver(recorder),
		evo.WithObserver(history),
	}
	if c.collector != nil {
		opts = append(opts, evo.WithObserver(c.collector))
	}
	for _, o := range req.Observers {
		opts = append(opts, evo.WithObserver(o))
	}

	runErr := evolve(ctx, req, opts)
	run, err := recorder.Finish(ctx, runErr)
	if runErr != nil {
		return summary, fmt.Errorf("run %s: %w", summary.RunID, runErr)
	}
	if err != nil {
		return summary, err
	}
	summary.Generations = run.Generations
	summary.BestScore = run.BestScore
	summary.BestGenome = run.BestGenome
	return summary, nil
}

func evolve(ctx context.Context, req RunRequest, opts []evo.Option) error {
	evolver, err := evo.NewEvolver(req.Layout, req.Scorer, req.Config, opts...)
	if err != nil {
		return err
	}
	if err := evolver.Initialize(ctx, req.Seeds...); err != nil {
		return err
	}
	return evolver.Run(ctx)
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunRecord, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, min(req.Limit, len(runs)))
	for i := len(runs) - 1; i >= 0 && len(out) < req.Limit; i-- {
		out = append(out, runs[i])
	}
	return out, nil
}

// History returns the per-generation statistics of one run. With Limit > 0
// only the last Limit generations are returned.
func (c *Client) History(ctx context.Context, req HistoryRequest) ([]GenerationStats, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return nil, errors.New("history requires run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	generations, ok, err := c.store.GetGenerations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if req.Limit > 0 && len(generations) > req.Limit {
		generations = generations[len(generations)-req.Limit:]
	}
	return generations, nil
}

// Export writes the run summary and generation history of one run under
// OutDir/<run id>.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = defaultExportsDir
	}

	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	generations, _, err := c.store.GetGenerations(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}

	dir, err := stats.WriteRunArtifacts(req.OutDir, stats.RunArtifacts{Run: run, Generations: generations})
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{
		RunID:     runID,
		Directory: filepath.Clean(dir),
		Summary:   stats.Summarize(runID, generations),
	}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if err := c.ensureStore(ctx); err != nil {
		return "", err
	}
	if !latest {
		return runID, nil
	}
	runs, err := c.Runs(ctx, RunsRequest{Limit: 1})
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}
