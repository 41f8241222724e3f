package feed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"swipework/internal/domain"
	"swipework/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is a snapshot of a List.
type State struct {
	Items       []domain.ViewJob `json:"items"`
	HasMore     bool             `json:"hasMore"`
	Loading     bool             `json:"loading"`
	LoadingMore bool             `json:"loadingMore"`
	Error       string           `json:"error,omitempty"`
	Applying    string           `json:"applying,omitempty"`
}

// List is the paginated, cached, live-updated job list of one user.
//
// All state is guarded by mu; store calls run without it. Every cold fetch
// bumps seq, and any result carrying an older seq is dropped.
type List struct {
	store  domain.JobStore
	cache  *Cache
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	user        domain.User
	items       []domain.ViewJob
	cursor      *domain.Cursor
	cursorKey   string
	hasMore     bool
	loading     bool
	loadingMore bool
	errMsg      string
	seq         uint64
	stopRetry   func() bool
	applying    string
	saving      map[string]bool
}

func NewList(store domain.JobStore, user domain.User, opts Options) *List {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &List{
		store:  store,
		cache:  NewCache(opts.CacheTTL, opts.Clock),
		opts:   opts,
		logger: opts.Logger.With("component", "feed-list", "user_id", user.ID),
		tracer: otel.Tracer("swipework-feed"),
		ctx:    ctx,
		cancel: cancel,
		user:   user,
		saving: make(map[string]bool),
	}
}

// State returns a copy of the current list state.
func (l *List) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Items:       slices.Clone(l.items),
		HasMore:     l.hasMore,
		Loading:     l.loading,
		LoadingMore: l.loadingMore,
		Error:       l.errMsg,
		Applying:    l.applying,
	}
}

// Item returns the loaded job with the given id.
func (l *List) Item(id string) (domain.ViewJob, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexLocked(id); i >= 0 {
		return l.items[i], true
	}
	return domain.ViewJob{}, false
}

func (l *List) User() domain.User {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.user
}

// Fetch replaces the list with the first page of key. With useCache a
// fresh cache entry is used instead of querying the store. On failure the
// list is emptied, the error state is set and one retry without the cache
// is scheduled.
func (l *List) Fetch(ctx context.Context, key domain.QueryKey, useCache bool) error {
	return l.fetch(ctx, key, useCache, true)
}

func (l *List) fetch(ctx context.Context, key domain.QueryKey, useCache, retry bool) error {
	hash := key.Hash()

	l.mu.Lock()
	l.cancelRetryLocked()
	l.seq++
	seq := l.seq
	l.loadingMore = false
	if useCache {
		if items, cursor, hasMore, ok := l.cache.lookup(hash); ok {
			l.items, l.cursor, l.cursorKey, l.hasMore = items, cursor, hash, hasMore
			l.loading = false
			l.errMsg = ""
			l.mu.Unlock()
			metrics.FeedFetchTotal.WithLabelValues("cache", "cold", "success").Inc()
			return nil
		}
	}
	l.loading = true
	l.errMsg = ""
	l.cursor, l.cursorKey, l.hasMore = nil, hash, false
	user := l.user
	l.mu.Unlock()

	ctx, span := l.tracer.Start(ctx, "feed.Fetch", trace.WithAttributes(
		attribute.String("feed.tab", string(key.Tab)),
		attribute.String("feed.sort", string(key.Sort)),
		attribute.Bool("feed.use_cache", useCache),
	))
	defer span.End()

	page, err := l.store.Query(ctx, BuildQuery(key, user.ID, l.opts.PageSize, l.opts.Clock.Now()))

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		span.SetAttributes(attribute.Bool("feed.superseded", true))
		return nil
	}
	l.loading = false
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query jobs")
		metrics.FeedFetchTotal.WithLabelValues("remote", "cold", "error").Inc()
		l.items = nil
		l.failLocked(err, retry, func(ctx context.Context) error {
			return l.fetch(ctx, key, false, false)
		})
		return fmt.Errorf("failed to fetch jobs: %w", err)
	}

	l.items = l.deriveLocked(page.Listings, key.Search)
	l.cursor = page.Cursor
	l.hasMore = len(page.Listings) == l.opts.PageSize
	l.cache.store(hash, l.items, l.cursor, l.hasMore)
	metrics.FeedFetchTotal.WithLabelValues("remote", "cold", "success").Inc()
	span.SetAttributes(attribute.Int("feed.items", len(l.items)), attribute.Bool("feed.has_more", l.hasMore))
	return nil
}

// LoadMore appends the next page of key. It does nothing when there is no
// next page or a load is in flight, and fails with ErrStaleCursor when the
// current cursor was produced for another key.
func (l *List) LoadMore(ctx context.Context, key domain.QueryKey) error {
	return l.loadMore(ctx, key, true)
}

func (l *List) loadMore(ctx context.Context, key domain.QueryKey, retry bool) error {
	hash := key.Hash()

	l.mu.Lock()
	if !l.hasMore || l.loading || l.loadingMore {
		l.mu.Unlock()
		return nil
	}
	if l.cursor == nil || l.cursorKey != hash {
		l.mu.Unlock()
		return ErrStaleCursor
	}
	l.loadingMore = true
	l.errMsg = ""
	seq, cursor, user := l.seq, l.cursor, l.user
	l.mu.Unlock()

	ctx, span := l.tracer.Start(ctx, "feed.LoadMore", trace.WithAttributes(
		attribute.String("feed.cursor", cursor.LastID),
	))
	defer span.End()

	q := BuildQuery(key, user.ID, l.opts.PageSize, l.opts.Clock.Now())
	q.StartAfter = cursor
	page, err := l.store.Query(ctx, q)

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		return nil
	}
	l.loadingMore = false
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query next page")
		metrics.FeedFetchTotal.WithLabelValues("remote", "continuation", "error").Inc()
		l.failLocked(err, retry, func(ctx context.Context) error {
			return l.loadMore(ctx, key, false)
		})
		return fmt.Errorf("failed to load more jobs: %w", err)
	}

	for _, v := range l.deriveLocked(page.Listings, key.Search) {
		if l.indexLocked(v.ID) < 0 {
			l.items = append(l.items, v)
		}
	}
	if page.Cursor != nil {
		l.cursor = page.Cursor
	}
	l.hasMore = len(page.Listings) == l.opts.PageSize
	metrics.FeedFetchTotal.WithLabelValues("remote", "continuation", "success").Inc()
	return nil
}

// ApplyDelta merges live changes in order: added items are prepended unless
// already present, modified items are replaced in place, removed items are
// dropped. Changes for unknown items other than additions are ignored.
func (l *List) ApplyDelta(changes ...domain.Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range changes {
		idx := l.indexLocked(c.ID)
		switch c.Type {
		case domain.ChangeAdded:
			if idx >= 0 || c.Listing == nil {
				continue
			}
			l.items = append([]domain.ViewJob{domain.NewViewJob(c.Listing, l.user)}, l.items...)
		case domain.ChangeModified:
			if idx < 0 || c.Listing == nil {
				continue
			}
			l.items[idx] = domain.NewViewJob(c.Listing, l.user)
		case domain.ChangeRemoved:
			if idx < 0 {
				continue
			}
			l.items = slices.Delete(l.items, idx, idx+1)
		default:
			continue
		}
		metrics.DeltasApplied.WithLabelValues(string(c.Type)).Inc()
	}
}

// Reset switches the list to another user, dropping items, cursor, cache
// and any pending retry.
func (l *List) Reset(user domain.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelRetryLocked()
	l.seq++
	l.user = user
	l.items = nil
	l.cursor, l.cursorKey, l.hasMore = nil, "", false
	l.loading, l.loadingMore = false, false
	l.errMsg = ""
	l.cache.Purge()
	l.logger = l.opts.Logger.With("component", "feed-list", "user_id", user.ID)
}

// Close cancels pending retries. In-flight store calls finish but their
// results are discarded.
func (l *List) Close() {
	l.cancel()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelRetryLocked()
	l.seq++
}

func (l *List) failLocked(err error, retry bool, again func(context.Context) error) {
	l.errMsg = LoadErrorMessage
	if !retry || domain.IsPermission(err) || l.ctx.Err() != nil {
		l.logger.Error("failed to load jobs", "error", err, "retry", false)
		return
	}
	l.logger.Warn("failed to load jobs, retrying", "error", err, "backoff", l.opts.RetryBackoff)
	seq := l.seq
	l.stopRetry = l.opts.Clock.AfterFunc(l.opts.RetryBackoff, func() {
		l.mu.Lock()
		stale := seq != l.seq
		l.stopRetry = nil
		l.mu.Unlock()
		if stale || l.ctx.Err() != nil {
			return
		}
		if err := again(l.ctx); err != nil {
			l.logger.Error("retry failed", "error", err)
		}
	})
}

func (l *List) cancelRetryLocked() {
	if l.stopRetry != nil {
		l.stopRetry()
		l.stopRetry = nil
	}
}

func (l *List) deriveLocked(listings []*domain.JobListing, search string) []domain.ViewJob {
	out := make([]domain.ViewJob, 0, len(listings))
	for _, j := range listings {
		if j == nil || !MatchesSearch(j, search) {
			continue
		}
		out = append(out, domain.NewViewJob(j, l.user))
	}
	return out
}

func (l *List) indexLocked(id string) int {
	return slices.IndexFunc(l.items, func(v domain.ViewJob) bool { return v.ID == id })
}
