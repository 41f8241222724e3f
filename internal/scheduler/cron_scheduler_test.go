package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestAddTaskRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := s.AddTask("bad", "not a schedule", func(context.Context) error { return nil }); err == nil {
		t.Fatal("AddTask accepted an invalid spec")
	}
	if len(s.tasks) != 0 {
		t.Errorf("tasks = %d, want 0", len(s.tasks))
	}
}

func TestAddTaskReplacesByName(t *testing.T) {
	s := NewCronScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	noop := func(context.Context) error { return nil }
	if err := s.AddTask("sweep", "@every 1m", noop); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if err := s.AddTask("sweep", "@every 5m", noop); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}
	s.RemoveTask("sweep")
	if got := len(s.cron.Entries()); got != 0 {
		t.Errorf("entries = %d after remove, want 0", got)
	}
}

func TestWrapperRunsTask(t *testing.T) {
	var ran bool
	w := &cronTaskWrapper{
		name:   "t",
		task:   func(context.Context) error { ran = true; return errors.New("boom") },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: NewCronScheduler(slog.New(slog.NewTextHandler(io.Discard, nil))).tracer,
	}
	w.Run()
	if !ran {
		t.Errorf("task did not run")
	}
}

func TestStartStopsWithContext(t *testing.T) {
	s := NewCronScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start err = %v, want context.Canceled", err)
	}
}
