package storage

import (
	"context"
	"errors"

	"bitga/internal/model"
)

var (
	ErrNotInitialized = errors.New("store is not initialized")
	ErrRunNotFound    = errors.New("run not found")
)

// Store persists run history: one summary per evolver run and the statistics
// of every evaluated generation of that run.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	// ListRuns returns every run ordered by start time, then ID.
	ListRuns(ctx context.Context) ([]model.Run, error)
	// AppendGeneration records stats for a saved run. Recording the same
	// generation twice keeps the latest stats.
	AppendGeneration(ctx context.Context, runID string, stats model.GenerationStats) error
	GetGenerations(ctx context.Context, runID string) ([]model.GenerationStats, bool, error)
}
