package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitga/internal/model"
)

// Recorder writes the generations of one evolver run into a Store. It
// satisfies the evolver's Observer interface.
type Recorder struct {
	store Store
	now   func() time.Time

	mu  sync.Mutex
	run model.Run
}

// NewRecorder saves run as started and returns a recorder for it. A missing
// run ID is filled with NewRunID.
func NewRecorder(ctx context.Context, store Store, run model.Run) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	r := &Recorder{store: store, now: time.Now}
	if run.ID == "" {
		run.ID = NewRunID()
	}
	run.VersionedRecord = CurrentVersion()
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now().UTC()
	}
	run.FinishedAt = time.Time{}
	run.Status = model.RunRunning
	run.Error = ""
	if err := store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save run %s: %w", run.ID, err)
	}
	r.run = run
	return r, nil
}

func (r *Recorder) RunID() string {
	return r.run.ID
}

// Run returns the run summary as recorded so far.
func (r *Recorder) Run() model.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run
}

func (r *Recorder) ObserveGeneration(ctx context.Context, stats model.GenerationStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats.VersionedRecord = CurrentVersion()
	stats.RunID = r.run.ID
	if err := r.store.AppendGeneration(ctx, r.run.ID, stats); err != nil {
		return err
	}
	r.run.Generations = stats.Generation
	if stats.Generation == 0 || stats.MinimumScore < r.run.BestScore {
		r.run.BestScore = stats.MinimumScore
		r.run.BestGenome = stats.BestGenome
	}
	return nil
}

// Finish stamps the run as finished and saves the final summary. runErr is
// the error the evolver stopped with; a nil error marks the run completed.
// The summary is saved even when ctx is canceled.
func (r *Recorder) Finish(ctx context.Context, runErr error) (model.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.run.FinishedAt = r.now().UTC()
	r.run.Status = finishStatus(runErr)
	r.run.Error = ""
	if runErr != nil {
		r.run.Error = runErr.Error()
	}
	if err := r.store.SaveRun(context.WithoutCancel(ctx), r.run); err != nil {
		return model.Run{}, fmt.Errorf("save run %s: %w", r.run.ID, err)
	}
	return r.run, nil
}

func finishStatus(runErr error) model.RunStatus {
	switch {
	case runErr == nil:
		return model.RunCompleted
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		return model.RunCanceled
	default:
		return model.RunFailed
	}
}
