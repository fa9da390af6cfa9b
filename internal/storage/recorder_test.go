package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"bitga/internal/model"
)

func TestRecorderTracksRun(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	recorder, err := NewRecorder(ctx, store, model.Run{Name: "demo", PopulationSize: 10})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if !strings.HasPrefix(recorder.RunID(), "run-") {
		t.Fatalf("unexpected run id: %s", recorder.RunID())
	}
	clock := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	recorder.now = func() time.Time { return clock }

	saved, ok, err := store.GetRun(ctx, recorder.RunID())
	if err != nil || !ok {
		t.Fatalf("expected saved run, ok=%t err=%v", ok, err)
	}
	if saved.Finished() || saved.Status != model.RunRunning || saved.StartedAt.IsZero() || saved.SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("unexpected started run: %+v", saved)
	}

	for _, stats := range []model.GenerationStats{
		{Generation: 0, MinimumScore: 8, BestGenome: "08"},
		{Generation: 1, MinimumScore: 5, BestGenome: "05"},
		{Generation: 2, MinimumScore: 5, BestGenome: "15"},
	} {
		if err := recorder.ObserveGeneration(ctx, stats); err != nil {
			t.Fatalf("observe generation %d: %v", stats.Generation, err)
		}
	}

	run, err := recorder.Finish(ctx, nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if run.Generations != 2 || run.BestScore != 5 || run.BestGenome != "05" || run.Status != model.RunCompleted {
		t.Fatalf("unexpected run summary: %+v", run)
	}
	if !run.FinishedAt.Equal(clock) {
		t.Fatalf("unexpected finish time: %s", run.FinishedAt)
	}

	history, ok, err := store.GetGenerations(ctx, run.ID)
	if err != nil || !ok {
		t.Fatalf("get generations: ok=%t err=%v", ok, err)
	}
	if len(history) != 3 || history[2].SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestRecorderFinishStatus(t *testing.T) {
	cases := []struct {
		name   string
		runErr error
		want   model.RunStatus
	}{
		{name: "completed", want: model.RunCompleted},
		{name: "failed", runErr: errors.New("scorer exploded"), want: model.RunFailed},
		{name: "canceled", runErr: fmt.Errorf("evaluate generation 4: %w", context.Canceled), want: model.RunCanceled},
		{name: "deadline", runErr: context.DeadlineExceeded, want: model.RunCanceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMemoryStore()
			if err := store.Init(context.Background()); err != nil {
				t.Fatalf("init: %v", err)
			}
			recorder, err := NewRecorder(context.Background(), store, model.Run{})
			if err != nil {
				t.Fatalf("new recorder: %v", err)
			}

			// A canceled context must not stop the final summary being saved.
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if _, err := recorder.Finish(ctx, tc.runErr); err != nil {
				t.Fatalf("finish: %v", err)
			}
			saved, ok, err := store.GetRun(context.Background(), recorder.RunID())
			if err != nil || !ok {
				t.Fatalf("get run: ok=%t err=%v", ok, err)
			}
			if saved.Status != tc.want || !saved.Finished() {
				t.Fatalf("unexpected status %q finished=%t", saved.Status, saved.Finished())
			}
			if (tc.runErr == nil) != (saved.Error == "") {
				t.Fatalf("unexpected error text %q", saved.Error)
			}
		})
	}
}

func TestRecorderKeepsGivenRunID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	recorder, err := NewRecorder(ctx, store, model.Run{ID: "fixed"})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if recorder.RunID() != "fixed" {
		t.Fatalf("unexpected run id: %s", recorder.RunID())
	}

	if _, err := NewRecorder(ctx, nil, model.Run{}); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestNewRunIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewRunID()
		if seen[id] {
			t.Fatalf("duplicate run id %s", id)
		}
		seen[id] = true
	}
}
