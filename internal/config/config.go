package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"bitga/internal/evo"
	"bitga/internal/genome"
	"bitga/internal/logging"
	"bitga/internal/storage"
)

const EnvPrefix = "BITGA_"

// File is the on-disk configuration of a bitgactl run.
type File struct {
	Evolver evo.Config     `yaml:"evolver"`
	Genome  GenomeConfig   `yaml:"genome"`
	Store   StoreConfig    `yaml:"store"`
	Log     logging.Config `yaml:"log"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

type GenomeConfig struct {
	Genes        []GeneConfig `yaml:"genes" validate:"dive"`
	BooleanGenes int          `yaml:"boolean_genes" validate:"gte=0"`
}

type GeneConfig struct {
	Width       int  `yaml:"width" validate:"gte=1"`
	ByteAligned bool `yaml:"byte_aligned"`
}

type StoreConfig struct {
	Kind string `yaml:"kind" validate:"oneof=memory sqlite badger"`
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr" validate:"required_if=Enabled true"`
	Namespace string `yaml:"namespace"`
}

func Default() File {
	return File{
		Evolver: evo.DefaultConfig(),
		Genome:  GenomeConfig{BooleanGenes: 64},
		Store:   StoreConfig{Kind: storage.DefaultStoreKind(), Path: "bitga.db"},
		Log:     logging.DefaultConfig(),
		Metrics: MetricsConfig{Addr: ":9464", Namespace: "bitga"},
	}
}

// Load reads path over the defaults, applies BITGA_* environment overrides
// and validates the result. An empty path loads the defaults.
func Load(path string) (File, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var validate = validator.New()

func (f File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := f.Evolver.Validate(); err != nil {
		return err
	}
	if f.Genome.BooleanGenes == 0 && len(f.Genome.Genes) == 0 {
		return fmt.Errorf("invalid config: %w", genome.ErrEmptyLayout)
	}
	return nil
}

// Layout builds the genome layout described by the configuration.
func (g GenomeConfig) Layout() (*genome.Layout, error) {
	layout := genome.New()
	for i, gene := range g.Genes {
		if gene.Width <= 0 {
			return nil, fmt.Errorf("gene %d: width must be > 0, got %d", i, gene.Width)
		}
		if gene.ByteAligned {
			layout.AddByteAlignedGene(gene.Width)
		} else {
			layout.AddGene(gene.Width)
		}
	}
	if g.BooleanGenes < 0 {
		return nil, fmt.Errorf("boolean gene count must be >= 0, got %d", g.BooleanGenes)
	}
	layout.SetBooleanGeneCount(g.BooleanGenes)
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return layout, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *File, lookup lookupFunc) error {
	env := envReader{lookup: lookup}

	env.setInt("POPULATION_SIZE", &cfg.Evolver.PopulationSize)
	env.setInt("GENERATIONS", &cfg.Evolver.TotalGenerations)
	env.setInt("ELITE_COUNT", &cfg.Evolver.EliteCount)
	env.setInt("WORKERS", &cfg.Evolver.Workers)
	env.setInt64("SEED", &cfg.Evolver.Seed)
	env.setFloat("MUTATION_RATE", &cfg.Evolver.MutationRate)
	env.setFloat("CROSSOVER_RATE", &cfg.Evolver.CrossoverRate)
	env.setText("SELECTOR", &cfg.Evolver.SelectorType)
	env.setText("CROSSOVER", &cfg.Evolver.CrossoverType)
	env.setText("SCHEDULE", &cfg.Evolver.MutationRateSchedule)
	env.setInt("BOOLEAN_GENES", &cfg.Genome.BooleanGenes)
	env.setString("STORE", &cfg.Store.Kind)
	env.setString("STORE_PATH", &cfg.Store.Path)
	env.setString("LOG_LEVEL", &cfg.Log.Level)
	env.setString("LOG_FORMAT", &cfg.Log.Format)
	env.setBool("METRICS_ENABLED", &cfg.Metrics.Enabled)
	env.setString("METRICS_ADDR", &cfg.Metrics.Addr)

	return errors.Join(env.errs...)
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(name string, err error) {
	e.errs = append(e.errs, fmt.Errorf("env %s%s: %w", EnvPrefix, name, err))
}

func (e *envReader) setString(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) setInt(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setInt64(name string, dst *int64) {
	if v, ok := e.get(name); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setFloat(name string, dst *float64) {
	if v, ok := e.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) setBool(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = b
	}
}

type textValue interface {
	UnmarshalText([]byte) error
}

func (e *envReader) setText(name string, dst textValue) {
	if v, ok := e.get(name); ok {
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			e.fail(name, err)
		}
	}
}
