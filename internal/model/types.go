package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunStatus is the lifecycle state of a stored run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// Run summarizes one evolver run in the run-history store.
type Run struct {
	VersionedRecord
	ID               string    `json:"id"`
	Name             string    `json:"name,omitempty"`
	Seed             int64     `json:"seed"`
	PopulationSize   int       `json:"population_size"`
	TotalGenerations int       `json:"total_generations"`
	BitsRequired     int       `json:"bits_required"`
	Selector         string    `json:"selector"`
	Crossover        string    `json:"crossover"`
	Schedule         string    `json:"schedule"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Generations      int       `json:"generations"`
	BestScore        float64   `json:"best_score"`
	BestGenome       string    `json:"best_genome,omitempty"`
	Status           RunStatus `json:"status,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// Finished reports whether the run has been closed out, successfully or not.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Completed reports whether the run bred all of its generations.
func (r Run) Completed() bool {
	return r.Status == RunCompleted
}

// GenerationStats is the population summary taken after a generation has
// been evaluated. BestGenome holds the hex form of the best chromosome.
type GenerationStats struct {
	VersionedRecord
	RunID        string  `json:"run_id,omitempty"`
	Generation   int     `json:"generation"`
	MinimumScore float64 `json:"minimum_score"`
	AverageScore float64 `json:"average_score"`
	ScoreStdDev  float64 `json:"score_stddev"`
	Diversity    float64 `json:"diversity"`
	MutationRate float64 `json:"mutation_rate"`
	BestGenome   string  `json:"best_genome,omitempty"`
}
