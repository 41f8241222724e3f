package feed

import (
	"fmt"
	"log/slog"
	"sync"

	"swipework/internal/domain"
	"swipework/internal/metrics"
)

// LiveSync keeps a standing subscription on the newest postings and merges
// every change batch into a List. It is independent of the list's query.
type LiveSync struct {
	store  domain.JobStore
	list   *List
	window domain.Window
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	gen       uint64
	attempt   uint64
	failed    uint64
	enabled   bool
	unsub     func()
	stopRetry func() bool
}

func NewLiveSync(store domain.JobStore, list *List, opts Options) *LiveSync {
	opts = opts.withDefaults()
	return &LiveSync{
		store:  store,
		list:   list,
		window: LiveWindow(opts.RealtimeWindow),
		opts:   opts,
		logger: opts.Logger.With("component", "feed-live"),
	}
}

// Enabled reports whether live sync is on.
func (s *LiveSync) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Start opens the subscription. A failed subscribe is retried after the
// retry backoff for as long as live sync stays enabled.
func (s *LiveSync) Start() error {
	s.mu.Lock()
	if s.enabled {
		s.mu.Unlock()
		return nil
	}
	s.enabled = true
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	return s.subscribe(gen)
}

// Stop tears the subscription down. No change is merged after Stop returns.
func (s *LiveSync) Stop() {
	s.mu.Lock()
	s.enabled = false
	s.gen++
	unsub := s.unsub
	s.unsub = nil
	if s.stopRetry != nil {
		s.stopRetry()
		s.stopRetry = nil
	}
	s.mu.Unlock()

	if unsub != nil {
		unsub()
		metrics.LiveSubscriptions.Dec()
		s.logger.Info("live subscription closed")
	}
}

func (s *LiveSync) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled && s.gen == gen
}

// subscribe opens one attempt. The store may report an error for the
// attempt before Subscribe returns; that attempt is then released here and
// the retry scheduled by fail stands.
func (s *LiveSync) subscribe(gen uint64) error {
	s.mu.Lock()
	s.attempt++
	attempt := s.attempt
	s.mu.Unlock()

	onChanges := func(changes []domain.Change) {
		if !s.current(gen) {
			return
		}
		s.list.ApplyDelta(changes...)
	}
	onError := func(err error) {
		s.fail(gen, attempt, err)
	}

	unsub, err := s.store.Subscribe(s.list.ctx, s.window, onChanges, onError)

	s.mu.Lock()
	if !s.enabled || s.gen != gen {
		s.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		return nil
	}
	if err != nil {
		if s.failed != attempt {
			s.failed = attempt
			s.scheduleLocked(gen)
		}
		s.mu.Unlock()
		metrics.SubscriptionErrors.Inc()
		s.logger.Warn("failed to open live subscription", "error", err, "backoff", s.opts.RetryBackoff)
		return fmt.Errorf("failed to subscribe to jobs: %w", err)
	}
	if s.failed == attempt {
		s.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		return nil
	}
	s.unsub = unsub
	s.mu.Unlock()

	metrics.LiveSubscriptions.Inc()
	s.logger.Info("live subscription opened", "window", s.window.Limit)
	return nil
}

// fail runs on the subscription's own goroutine, so the dead subscription
// is released asynchronously.
func (s *LiveSync) fail(gen, attempt uint64, err error) {
	metrics.SubscriptionErrors.Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.gen != gen || s.attempt != attempt || s.failed == attempt {
		return
	}
	s.failed = attempt
	s.logger.Warn("live subscription failed", "error", err, "backoff", s.opts.RetryBackoff)
	if dead := s.unsub; dead != nil {
		s.unsub = nil
		metrics.LiveSubscriptions.Dec()
		go dead()
	}
	s.scheduleLocked(gen)
}

func (s *LiveSync) scheduleLocked(gen uint64) {
	if s.list.ctx.Err() != nil {
		return
	}
	s.stopRetry = s.opts.Clock.AfterFunc(s.opts.RetryBackoff, func() {
		s.mu.Lock()
		ok := s.enabled && s.gen == gen
		s.stopRetry = nil
		s.mu.Unlock()
		if ok {
			_ = s.subscribe(gen)
		}
	})
}
