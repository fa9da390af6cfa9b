package evo

import (
	"bitga/internal/chromosome"
	"bitga/internal/genome"
)

// Individual is a chromosome together with its raw score, where lower is
// better, and its normalized selection fitness.
type Individual struct {
	chromosome.Chromosome
	Score   float64
	Fitness float64
}

func NewIndividual(layout *genome.Layout) *Individual {
	return &Individual{Chromosome: *chromosome.New(layout)}
}

func (i *Individual) Less(other *Individual) bool {
	return i.Score < other.Score
}

// CopyFrom makes i a copy of src, bits, score and fitness.
func (i *Individual) CopyFrom(src *Individual) {
	i.Chromosome.CopyFrom(&src.Chromosome)
	i.Score = src.Score
	i.Fitness = src.Fitness
}

// Scorer computes the raw score of an individual. Scorers used with more than
// one evaluation worker must be safe for concurrent use.
type Scorer interface {
	Score(ind *Individual) float64
}

// FitnessFunc adapts a plain function to Scorer.
type FitnessFunc func(ind *Individual) float64

func (f FitnessFunc) Score(ind *Individual) float64 {
	return f(ind)
}
