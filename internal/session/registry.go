package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"swipework/internal/domain"
	"swipework/internal/feed"
	"swipework/internal/metrics"
)

// SweepTaskName is the scheduler task that closes idle sessions.
const SweepTaskName = "session-sweep"

// Session is one user's hosted feed.
type Session struct {
	View   *feed.View
	Alerts *feed.AlertQueue

	lastUsed time.Time
}

// TaskScheduler runs periodic tasks.
type TaskScheduler interface {
	AddTask(name, spec string, task func(ctx context.Context) error) error
}

// Registry hosts a feed view per user and closes views left idle.
type Registry struct {
	store  domain.JobStore
	users  domain.UserRepository
	opts   feed.Options
	idle   time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(store domain.JobStore, users domain.UserRepository, opts feed.Options, idle time.Duration, logger *slog.Logger) *Registry {
	if opts.Users == nil {
		opts.Users = users
	}
	return &Registry{
		store:    store,
		users:    users,
		opts:     opts,
		idle:     idle,
		now:      time.Now,
		logger:   logger.With("component", "session-registry"),
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the user's session, opening one with a first page and
// live sync when none exists.
func (r *Registry) Acquire(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	r.mu.Lock()
	if s, ok := r.sessions[userID]; ok {
		s.lastUsed = r.now()
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	user, err := r.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	alerts := feed.NewAlertQueue(0)
	opts := r.opts
	opts.Alerts = alerts
	s := &Session{View: feed.NewView(r.store, *user, opts), Alerts: alerts, lastUsed: r.now()}

	r.mu.Lock()
	if existing, ok := r.sessions[userID]; ok {
		existing.lastUsed = r.now()
		r.mu.Unlock()
		s.View.Close()
		return existing, nil
	}
	r.sessions[userID] = s
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()
	r.logger.Info("session opened", "user_id", userID)

	// a failed first page leaves the error state on the view; the session is still usable
	if err := s.View.Open(ctx, true); err != nil {
		r.logger.Warn("first page failed", "user_id", userID, "error", err)
	}
	return s, nil
}

// Reseed reloads the user's profile into an open session.
func (r *Registry) Reseed(ctx context.Context, userID string) error {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	user, err := r.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return s.View.SetUser(ctx, *user)
}

// Sweep closes sessions unused for longer than the idle timeout.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idle)
	var idle []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.lastUsed.Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.View.Close()
		metrics.ActiveSessions.Dec()
	}
	if len(idle) > 0 {
		r.logger.Info("closed idle sessions", "count", len(idle))
	}
	return len(idle)
}

// ScheduleSweep registers Sweep with the scheduler.
func (r *Registry) ScheduleSweep(s TaskScheduler, spec string) error {
	return s.AddTask(SweepTaskName, spec, func(context.Context) error {
		r.Sweep()
		return nil
	})
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.View.Close()
		metrics.ActiveSessions.Dec()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
