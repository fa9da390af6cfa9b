package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"bitga/internal/config"
	"bitga/internal/evo"
	"bitga/internal/logging"
	"bitga/internal/metrics"
	"bitga/internal/rng"
	"bitga/pkg/bitga"
)

type runFlags struct {
	store       storeFlags
	name        string
	population  int
	generations int
	seed        int64
	randomSeed  bool
	targetSeed  int64
	workers     int
	bits        int
	target      string
	selector    string
	crossover   string
	schedule    string
	metricsAddr string
	logLevel    string
}

func newRunCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve chromosomes towards a target bit string",
		Long: "run evolves a population whose score is the Hamming distance to a target\n" +
			"bit string and records every generation in the run store.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTargetMatch(cmd, f)
		},
	}
	f.store.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "target-match", "run name")
	flags.IntVar(&f.population, "pop", 0, "population size")
	flags.IntVar(&f.generations, "gens", 0, "generation count")
	flags.Int64Var(&f.seed, "seed", 0, "rng seed")
	flags.BoolVar(&f.randomSeed, "random-seed", false, "seed from the clock; the chosen seed is printed and stored with the run")
	flags.Int64Var(&f.targetSeed, "target-seed", 0, "seed for the random target (derived from the rng seed when unset)")
	flags.IntVar(&f.workers, "workers", 0, "scoring worker count")
	flags.IntVar(&f.bits, "bits", 0, "boolean gene count; replaces the configured genome")
	flags.StringVar(&f.target, "target", "", "target chromosome in hex (random when empty)")
	flags.StringVar(&f.selector, "selector", "", "parent selector: rank|uniform|roulette_wheel|tournament")
	flags.StringVar(&f.crossover, "crossover", "", "crossover: one_point|two_point|k_point|uniform")
	flags.StringVar(&f.schedule, "schedule", "", "mutation rate schedule: constant|deterministic|self_adaptive|proportional")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	flags.StringVar(&f.logLevel, "log-level", "", "log level: debug|info|warn|error")
	return cmd
}

func loadRunConfig(cmd *cobra.Command, f runFlags) (config.File, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if f.randomSeed && changed("seed") {
		return cfg, errors.New("--seed and --random-seed are mutually exclusive")
	}
	if f.target != "" && changed("target-seed") {
		return cfg, errors.New("--target and --target-seed are mutually exclusive")
	}
	if f.store.kind != "" {
		cfg.Store.Kind = f.store.kind
	}
	if f.store.path != "" {
		cfg.Store.Path = f.store.path
	}
	if changed("pop") {
		cfg.Evolver.PopulationSize = f.population
	}
	if changed("gens") {
		cfg.Evolver.TotalGenerations = f.generations
	}
	if changed("seed") {
		cfg.Evolver.Seed = f.seed
	}
	if f.randomSeed {
		cfg.Evolver.Seed = rng.NewTimeSeeded().Int63()
	}
	if changed("workers") {
		cfg.Evolver.Workers = f.workers
	}
	if changed("bits") {
		cfg.Genome = config.GenomeConfig{BooleanGenes: f.bits}
	}
	if changed("selector") {
		if cfg.Evolver.SelectorType, err = evo.ParseSelectorType(f.selector); err != nil {
			return cfg, err
		}
	}
	if changed("crossover") {
		if cfg.Evolver.CrossoverType, err = evo.ParseCrossoverType(f.crossover); err != nil {
			return cfg, err
		}
	}
	if changed("schedule") {
		if cfg.Evolver.MutationRateSchedule, err = evo.ParseMutationRateSchedule(f.schedule); err != nil {
			return cfg, err
		}
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = f.metricsAddr
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, cfg.Validate()
}

func runTargetMatch(cmd *cobra.Command, f runFlags) error {
	ctx := cmd.Context()
	cfg, err := loadRunConfig(cmd, f)
	if err != nil {
		return err
	}

	logCfg := cfg.Log
	logCfg.Output = cmd.ErrOrStderr()
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}

	layout, err := cfg.Genome.Layout()
	if err != nil {
		return err
	}
	targetSeed := deriveTargetSeed(cfg.Evolver.Seed)
	if cmd.Flags().Changed("target-seed") {
		targetSeed = f.targetSeed
	}
	target, err := targetChromosome(layout, f.target, targetSeed)
	if err != nil {
		return err
	}

	opts := bitga.Options{
		StoreKind:        cfg.Store.Kind,
		DBPath:           cfg.Store.Path,
		Logger:           logger,
		MetricsNamespace: cfg.Metrics.Namespace,
	}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		stop, err := serveMetrics(ctx, cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
		opts.Registerer = reg
	}

	client, err := bitga.New(opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	scorer := bitga.FitnessFunc(func(ind *bitga.Individual) float64 {
		return float64(ind.HammingDistance(target))
	})

	started := time.Now()
	summary, err := client.Run(ctx, bitga.RunRequest{
		Name:   f.name,
		Layout: layout,
		Scorer: scorer,
		Config: cfg.Evolver,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run_id=%s seed=%d generations=%s bits=%s store=%s elapsed=%s\n",
		summary.RunID,
		cfg.Evolver.Seed,
		humanize.Comma(int64(summary.Generations)),
		humanize.Comma(int64(layout.BitsRequired())),
		cfg.Store.Kind,
		time.Since(started).Round(time.Millisecond),
	)
	fmt.Fprintf(out, "best_distance=%s diversity=%.4f mutation_rate=%.4f\n",
		humanize.Ftoa(summary.BestScore), summary.FinalDiversity, summary.FinalMutationRate)
	fmt.Fprintf(out, "target=%s\nbest=%s\n", target.HexString(), summary.BestGenome)
	return nil
}

// targetSeedSalt keeps the default target stream apart from the evolver's
// stream for the same seed.
const targetSeedSalt int64 = 0x5bd1e995

func deriveTargetSeed(seed int64) int64 {
	return seed ^ targetSeedSalt
}

func targetChromosome(layout *bitga.Layout, hex string, seed int64) (*bitga.Buffer, error) {
	if hex == "" {
		c := bitga.NewChromosome(layout)
		c.Randomize(bitga.NewRandom(seed))
		return c.Bits(), nil
	}
	target, err := bitga.ParseHex(hex)
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}
	want := layout.BitsRequired()
	if got := target.BitCount(); got < want || got-want >= 8 {
		return nil, fmt.Errorf("target has %d bits, genome needs %d", got, want)
	}
	clipped := bitga.NewBuffer(want)
	target.SubVector(clipped, 0, 0, want)
	return clipped, nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "metrics server stopped", "error", err)
		}
	}()
	logger.InfoContext(ctx, "serving metrics", "addr", ln.Addr().String())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}
