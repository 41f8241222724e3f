package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Task is periodic maintenance work.
type Task = func(ctx context.Context) error

// CronScheduler runs named maintenance tasks on cron schedules. A run is
// skipped while the previous run of the same task is still going.
type CronScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	tracer trace.Tracer

	mu    sync.Mutex
	tasks map[string]cron.EntryID
}

func NewCronScheduler(logger *slog.Logger) *CronScheduler {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return &CronScheduler{
		cron:   c,
		logger: logger.With("component", "cron-scheduler"),
		tracer: otel.Tracer("swipework-scheduler"),
		tasks:  make(map[string]cron.EntryID),
	}
}

// Start runs the scheduler until ctx is done and waits for running tasks.
func (s *CronScheduler) Start(ctx context.Context) error {
	s.logger.Info("cron scheduler started")
	s.cron.Start()
	<-ctx.Done()
	s.logger.Info("cron scheduler stopping...")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("cron scheduler stopped")
	return ctx.Err()
}

// AddTask schedules task under name, replacing a task of the same name.
func (s *CronScheduler) AddTask(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.tasks[name]; ok {
		s.cron.Remove(entryID)
	}

	wrapper := &cronTaskWrapper{
		name:   name,
		task:   task,
		logger: s.logger.With("task", name),
		tracer: s.tracer,
	}
	entryID, err := s.cron.AddJob(spec, wrapper)
	if err != nil {
		s.logger.Error("failed to add task to cron", "task", name, "error", err)
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}

	s.tasks[name] = entryID
	s.logger.Info("added task to scheduler", "task", name, "schedule", spec)
	return nil
}

// RemoveTask unschedules a task.
func (s *CronScheduler) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.tasks[name]; ok {
		s.cron.Remove(entryID)
		delete(s.tasks, name)
		s.logger.Info("removed task from scheduler", "task", name)
	}
}

type cronTaskWrapper struct {
	name   string
	task   Task
	logger *slog.Logger
	tracer trace.Tracer
}

// Run is called by the cron library.
func (w *cronTaskWrapper) Run() {
	ctx, span := w.tracer.Start(context.Background(), "scheduler.RunTask",
		trace.WithAttributes(attribute.String("task.name", w.name)))
	defer span.End()

	if err := w.task(ctx); err != nil {
		w.logger.Error("task failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "task failed")
	}
}
