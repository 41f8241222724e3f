package feed

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"swipework/internal/domain"
)

type updateCall struct {
	id  string
	ops []domain.UpdateOp
}

// fakeStore serves listings in slice order and ignores query filters.
type fakeStore struct {
	mu        sync.Mutex
	listings  []*domain.JobListing
	queries   []domain.Query
	queryErrs []error
	onQuery   func(q domain.Query)

	updates   []updateCall
	updateErr error
	started   chan string
	release   chan struct{}

	subs         []*fakeSub
	subscribeErr error
	// earlyErr is reported through onError by the next Subscribe before it returns.
	earlyErr error
}

type fakeSub struct {
	mu        sync.Mutex
	window    domain.Window
	onChanges func([]domain.Change)
	onError   func(error)
	closed    bool
}

func (s *fakeSub) emit(changes ...domain.Change) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.onChanges(changes)
	}
}

func (s *fakeSub) fail(err error) {
	s.onError(err)
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (f *fakeStore) Query(ctx context.Context, q domain.Query) (domain.Page, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	var err error
	if len(f.queryErrs) > 0 {
		err = f.queryErrs[0]
		f.queryErrs = f.queryErrs[1:]
	}
	hook := f.onQuery
	f.onQuery = nil
	listings := slices.Clone(f.listings)
	f.mu.Unlock()

	if hook != nil {
		hook(q)
	}
	if err != nil {
		return domain.Page{}, err
	}

	start := 0
	if q.StartAfter != nil {
		start = slices.IndexFunc(listings, func(l *domain.JobListing) bool { return l.ID == q.StartAfter.LastID }) + 1
	}
	end := min(start+q.Limit, len(listings))
	page := domain.Page{Listings: listings[start:end]}
	if len(page.Listings) > 0 {
		last := page.Listings[len(page.Listings)-1]
		page.Cursor = &domain.Cursor{LastID: last.ID, LastValue: last.PostedAt}
	}
	return page, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*domain.JobListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.listings {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, domain.ErrJobNotFound
}

func (f *fakeStore) Create(ctx context.Context, l *domain.JobListing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings = append([]*domain.JobListing{l}, f.listings...)
	return nil
}

func (f *fakeStore) Update(ctx context.Context, id string, ops ...domain.UpdateOp) error {
	f.mu.Lock()
	f.updates = append(f.updates, updateCall{id: id, ops: ops})
	err := f.updateErr
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- id
	}
	if release != nil {
		<-release
	}
	return err
}

func (f *fakeStore) Subscribe(ctx context.Context, w domain.Window, onChanges func([]domain.Change), onError func(error)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub := &fakeSub{window: w, onChanges: onChanges, onError: onError}
	f.subs = append(f.subs, sub)
	if f.earlyErr != nil {
		err := f.earlyErr
		f.earlyErr = nil
		onError(err)
	}
	return func() {
		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()
	}, nil
}

func (f *fakeStore) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeStore) lastQuery() domain.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeStore) updateCalls() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.updates)
}

func (f *fakeStore) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

func (f *fakeStore) subCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeStore) openSubs() int {
	f.mu.Lock()
	subs := slices.Clone(f.subs)
	f.mu.Unlock()
	n := 0
	for _, s := range subs {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

// fakeClock fires timers only from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if t.fired || t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

type fakeApplications struct {
	mu   sync.Mutex
	apps []*domain.Application
	err  error
}

func (f *fakeApplications) Save(ctx context.Context, a *domain.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.apps = append(f.apps, a)
	return nil
}

func (f *fakeApplications) ListByUser(ctx context.Context, userID string) ([]*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Application
	for _, a := range f.apps {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, f.err
}

func (f *fakeApplications) ListByJob(ctx context.Context, jobID string) ([]*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Application
	for _, a := range f.apps {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, f.err
}

func (f *fakeApplications) UpdateStatus(ctx context.Context, userID, jobID string, status domain.ApplicationStatus) (*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.apps {
		if a.UserID == userID && a.JobID == jobID {
			a.Status = status
			return a, nil
		}
	}
	return nil, domain.ErrApplicationNotFound
}

type fakeUsers struct {
	mu    sync.Mutex
	saved []domain.User
	err   error
}

func (f *fakeUsers) Get(ctx context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.saved) - 1; i >= 0; i-- {
		if f.saved[i].ID == id {
			u := f.saved[i]
			return &u, nil
		}
	}
	return &domain.User{ID: id}, nil
}

func (f *fakeUsers) Save(ctx context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *u)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []*domain.Notification
}

func (f *fakeNotifier) Publish(ctx context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func makeListings(n int) []*domain.JobListing {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.JobListing, n)
	for i := range out {
		out[i] = &domain.JobListing{
			ID:       fmt.Sprintf("job-%02d", i),
			Title:    fmt.Sprintf("Job %d", i),
			Company:  "Acme",
			PostedAt: base.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func newTestList(store *fakeStore, clock *fakeClock, alerts AlertSink) *List {
	return NewList(store, domain.User{ID: "u1"}, Options{Clock: clock, Alerts: alerts})
}

func ids(items []domain.ViewJob) []string {
	out := make([]string, len(items))
	for i, v := range items {
		out[i] = v.ID
	}
	return out
}
