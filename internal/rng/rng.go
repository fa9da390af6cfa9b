package rng

import (
	"math/rand"
	"time"
)

// Source is the random capability consumed by the genetic operators.
// Implementations are sequential and not safe for concurrent use.
type Source interface {
	// Int returns a uniformly distributed integer in [min, max].
	Int(min, max int) int
	// Float returns a uniformly distributed float in [min, max).
	Float(min, max float64) float64
	// CoinFlip returns true with the given probability.
	CoinFlip(probability float64) bool
	Byte() byte
}

// Rand adapts math/rand to Source.
type Rand struct {
	r *rand.Rand
}

func New(seed int64) *Rand {
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

// NewTimeSeeded seeds from the wall clock. Runs that must be reproducible
// should use New with a fixed seed instead.
func NewTimeSeeded() *Rand {
	return New(time.Now().UnixNano())
}

func (s *Rand) Int(min, max int) int {
	if max < min {
		panic("rng: max must be >= min")
	}
	return min + s.r.Intn(max-min+1)
}

func (s *Rand) Float(min, max float64) float64 {
	return min + s.r.Float64()*(max-min)
}

func (s *Rand) CoinFlip(probability float64) bool {
	if probability <= 0 {
		return false
	}
	if probability >= 1 {
		return true
	}
	return s.r.Float64() < probability
}

// Int63 returns a non-negative 63-bit integer, used to draw fresh seeds.
func (s *Rand) Int63() int64 {
	return s.r.Int63()
}

func (s *Rand) Byte() byte {
	return byte(s.r.Uint32())
}
