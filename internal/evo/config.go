package evo

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid evolver config")

// CrossoverType selects the recombination operator.
type CrossoverType int

const (
	CrossoverOnePoint CrossoverType = iota
	CrossoverTwoPoint
	CrossoverKPoint
	CrossoverUniform
)

var crossoverNames = []string{"one_point", "two_point", "k_point", "uniform"}

func (t CrossoverType) String() string { return enumString("crossover", int(t), crossoverNames) }
func (t CrossoverType) Valid() bool    { return validEnum(int(t), crossoverNames) }

func (t CrossoverType) MarshalText() ([]byte, error) {
	return marshalEnum("crossover", int(t), crossoverNames)
}

func (t *CrossoverType) UnmarshalText(text []byte) error {
	v, err := ParseCrossoverType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func ParseCrossoverType(s string) (CrossoverType, error) {
	v, err := parseEnum("crossover", s, crossoverNames)
	return CrossoverType(v), err
}

// MutatorType selects the mutation operator.
type MutatorType int

const (
	MutatorFlip MutatorType = iota
)

var mutatorNames = []string{"flip"}

func (t MutatorType) String() string { return enumString("mutator", int(t), mutatorNames) }
func (t MutatorType) Valid() bool    { return validEnum(int(t), mutatorNames) }

func (t MutatorType) MarshalText() ([]byte, error) {
	return marshalEnum("mutator", int(t), mutatorNames)
}

func (t *MutatorType) UnmarshalText(text []byte) error {
	v, err := ParseMutatorType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func ParseMutatorType(s string) (MutatorType, error) {
	v, err := parseEnum("mutator", s, mutatorNames)
	return MutatorType(v), err
}

// SelectorType selects how parents are drawn from the previous generation.
type SelectorType int

const (
	SelectorRank SelectorType = iota
	SelectorUniform
	SelectorRouletteWheel
	SelectorTournament
)

var selectorNames = []string{"rank", "uniform", "roulette_wheel", "tournament"}

func (t SelectorType) String() string { return enumString("selector", int(t), selectorNames) }
func (t SelectorType) Valid() bool    { return validEnum(int(t), selectorNames) }

func (t SelectorType) MarshalText() ([]byte, error) {
	return marshalEnum("selector", int(t), selectorNames)
}

func (t *SelectorType) UnmarshalText(text []byte) error {
	v, err := ParseSelectorType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func ParseSelectorType(s string) (SelectorType, error) {
	v, err := parseEnum("selector", s, selectorNames)
	return SelectorType(v), err
}

// MutationRateSchedule controls how the offspring mutation rate changes over
// a run.
type MutationRateSchedule int

const (
	// ScheduleConstant always uses Config.MutationRate.
	ScheduleConstant MutationRateSchedule = iota
	// ScheduleDeterministic decays from 0.5 towards 1/bits as the run
	// approaches TotalGenerations.
	ScheduleDeterministic
	// ScheduleSelfAdaptive switches to SelfAdaptiveMutationRate while the
	// population diversity is below SelfAdaptiveDiversityFloor.
	ScheduleSelfAdaptive
	// ScheduleProportional flips ProportionalFlips bits per individual on
	// average.
	ScheduleProportional
)

var scheduleNames = []string{"constant", "deterministic", "self_adaptive", "proportional"}

func (s MutationRateSchedule) String() string { return enumString("schedule", int(s), scheduleNames) }
func (s MutationRateSchedule) Valid() bool    { return validEnum(int(s), scheduleNames) }

func (s MutationRateSchedule) MarshalText() ([]byte, error) {
	return marshalEnum("schedule", int(s), scheduleNames)
}

func (s *MutationRateSchedule) UnmarshalText(text []byte) error {
	v, err := ParseMutationRateSchedule(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseMutationRateSchedule(s string) (MutationRateSchedule, error) {
	v, err := parseEnum("schedule", s, scheduleNames)
	return MutationRateSchedule(v), err
}

func enumString(kind string, v int, names []string) string {
	if !validEnum(v, names) {
		return fmt.Sprintf("%s(%d)", kind, v)
	}
	return names[v]
}

func validEnum(v int, names []string) bool {
	return v >= 0 && v < len(names)
}

func marshalEnum(kind string, v int, names []string) ([]byte, error) {
	if !validEnum(v, names) {
		return nil, fmt.Errorf("invalid %s value: %d", kind, v)
	}
	return []byte(names[v]), nil
}

// parseEnum accepts the canonical snake_case name as well as dashed or
// unseparated spellings ("roulette-wheel", "RouletteWheel").
func parseEnum(kind, s string, names []string) (int, error) {
	key := normalizeEnum(s)
	for i, name := range names {
		if normalizeEnum(name) == key {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unsupported %s: %q (want one of %s)", kind, s, strings.Join(names, ", "))
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// Config holds the evolver parameters. The yaml and validate tags are used by
// internal/config; Validate performs the same checks for programmatic use.
type Config struct {
	PopulationSize             int                  `yaml:"population_size" validate:"gte=1"`
	TotalGenerations           int                  `yaml:"total_generations" validate:"gte=0"`
	EliteCount                 int                  `yaml:"elite_count" validate:"gte=0"`
	MutatedEliteCount          int                  `yaml:"mutated_elite_count" validate:"gte=0"`
	MutatedEliteMutationRate   float64              `yaml:"mutated_elite_mutation_rate" validate:"gte=0,lte=1"`
	MutationRate               float64              `yaml:"mutation_rate" validate:"gte=0,lte=1"`
	MutationRateSchedule       MutationRateSchedule `yaml:"mutation_rate_schedule"`
	ProportionalFlips          float64              `yaml:"proportional_flips" validate:"gte=0"`
	SelfAdaptiveDiversityFloor float64              `yaml:"self_adaptive_diversity_floor" validate:"gte=0,lte=1"`
	SelfAdaptiveMutationRate   float64              `yaml:"self_adaptive_mutation_rate" validate:"gte=0,lte=1"`
	CrossoverRate              float64              `yaml:"crossover_rate" validate:"gte=0,lte=1"`
	CrossoverType              CrossoverType        `yaml:"crossover_type"`
	CrossoverPoints            int                  `yaml:"crossover_points" validate:"gte=0"`
	IgnoreGeneBoundaries       bool                 `yaml:"ignore_gene_boundaries"`
	MutatorType                MutatorType          `yaml:"mutator_type"`
	SelectorType               SelectorType         `yaml:"selector_type"`
	TournamentSize             int                  `yaml:"tournament_size" validate:"gte=1"`
	AllowSameParentCouples     bool                 `yaml:"allow_same_parent_couples"`
	Workers                    int                  `yaml:"workers" validate:"gte=0"`
	Seed                       int64                `yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		PopulationSize:             100,
		TotalGenerations:           100,
		MutationRate:               0.05,
		MutationRateSchedule:       ScheduleConstant,
		ProportionalFlips:          1,
		SelfAdaptiveDiversityFloor: 0.25,
		SelfAdaptiveMutationRate:   0.20,
		CrossoverRate:              0.9,
		CrossoverType:              CrossoverTwoPoint,
		CrossoverPoints:            2,
		IgnoreGeneBoundaries:       true,
		MutatorType:                MutatorFlip,
		SelectorType:               SelectorRouletteWheel,
		TournamentSize:             2,
		Workers:                    1,
	}
}

func (c Config) Validate() error {
	if c.PopulationSize <= 0 {
		return fmt.Errorf("%w: population size must be > 0", ErrInvalidConfig)
	}
	if c.TotalGenerations < 0 {
		return fmt.Errorf("%w: total generations must be >= 0", ErrInvalidConfig)
	}
	if c.EliteCount < 0 || c.MutatedEliteCount < 0 {
		return fmt.Errorf("%w: elite counts must be >= 0", ErrInvalidConfig)
	}
	if c.EliteCount+c.MutatedEliteCount > c.PopulationSize {
		return fmt.Errorf("%w: elite count %d + mutated elite count %d exceeds population size %d",
			ErrInvalidConfig, c.EliteCount, c.MutatedEliteCount, c.PopulationSize)
	}
	rates := []struct {
		name  string
		value float64
	}{
		{"mutation rate", c.MutationRate},
		{"mutated elite mutation rate", c.MutatedEliteMutationRate},
		{"crossover rate", c.CrossoverRate},
		{"self-adaptive diversity floor", c.SelfAdaptiveDiversityFloor},
		{"self-adaptive mutation rate", c.SelfAdaptiveMutationRate},
	}
	for _, rate := range rates {
		if !(rate.value >= 0 && rate.value <= 1) {
			return fmt.Errorf("%w: %s must be in [0, 1]: %v", ErrInvalidConfig, rate.name, rate.value)
		}
	}
	if c.ProportionalFlips < 0 {
		return fmt.Errorf("%w: proportional flips must be >= 0", ErrInvalidConfig)
	}
	if !c.MutationRateSchedule.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.MutationRateSchedule)
	}
	if !c.CrossoverType.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.CrossoverType)
	}
	if c.CrossoverType == CrossoverKPoint && c.CrossoverPoints <= 0 {
		return fmt.Errorf("%w: k-point crossover requires crossover points > 0", ErrInvalidConfig)
	}
	if !c.MutatorType.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.MutatorType)
	}
	if !c.SelectorType.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.SelectorType)
	}
	if c.SelectorType == SelectorTournament && c.TournamentSize <= 0 {
		return fmt.Errorf("%w: tournament size must be > 0", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	}
	return nil
}
