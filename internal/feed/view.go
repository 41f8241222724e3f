package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"swipework/internal/domain"
)

// ViewState is what the presentation layer renders.
type ViewState struct {
	Key      domain.QueryKey  `json:"key"`
	Items    []domain.ViewJob `json:"items"`
	HasMore  bool             `json:"hasMore"`
	Loading  bool             `json:"loading"`
	More     bool             `json:"loadingMore"`
	Error    string           `json:"error,omitempty"`
	Applying string           `json:"applying,omitempty"`
	Realtime bool             `json:"realtime"`
}

// Stats summarises the user's applications.
type Stats struct {
	TotalApplications int     `json:"totalApplications"`
	Interviews        int     `json:"interviews"`
	Offers            int     `json:"offers"`
	SuccessRate       float64 `json:"successRate"`
	AppliedInView     int     `json:"appliedInView"`
	SavedInView       int     `json:"savedInView"`
}

// View is one user's feed: the list, its live sync and the current query
// controls.
type View struct {
	list   *List
	live   *LiveSync
	apps   domain.ApplicationRepository
	logger *slog.Logger

	// ctl orders key changes with their fetches, so the list always ends
	// on the page of the last key set.
	ctl sync.Mutex

	mu       sync.Mutex
	key      domain.QueryKey
	realtime bool
	closed   bool
}

func NewView(store domain.JobStore, user domain.User, opts Options) *View {
	opts = opts.withDefaults()
	list := NewList(store, user, opts)
	return &View{
		list:   list,
		live:   NewLiveSync(store, list, opts),
		apps:   opts.Applications,
		logger: opts.Logger.With("component", "feed-view"),
		key:    domain.DefaultQueryKey(),
	}
}

// Open loads the first page and, if realtime is set, starts live sync.
func (v *View) Open(ctx context.Context, realtime bool) error {
	if err := v.ToggleRealtime(realtime); err != nil {
		v.logger.Warn("live sync unavailable", "error", err)
	}
	return v.Refresh(ctx)
}

func (v *View) Key() domain.QueryKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.key
}

// State returns the list filtered by the active tab.
func (v *View) State() ViewState {
	v.mu.Lock()
	key, realtime := v.key, v.realtime
	v.mu.Unlock()

	s := v.list.State()
	return ViewState{
		Key:      key,
		Items:    VisibleInTab(s.Items, key.Tab),
		HasMore:  s.HasMore,
		Loading:  s.Loading,
		More:     s.LoadingMore,
		Error:    s.Error,
		Applying: s.Applying,
		Realtime: realtime,
	}
}

func (v *View) SetSearchQuery(ctx context.Context, text string) error {
	return v.update(ctx, func(k *domain.QueryKey) error {
		k.Search = text
		return nil
	})
}

func (v *View) SetFilters(ctx context.Context, f domain.FilterSet) error {
	return v.update(ctx, func(k *domain.QueryKey) error {
		if f.SalaryRange == [2]float64{} {
			f.SalaryRange = [2]float64{domain.DefaultSalaryMin, domain.DefaultSalaryMax}
		}
		if f.SalaryRange[0] > f.SalaryRange[1] {
			return fmt.Errorf("%w: salary range %v", ErrInvalidKey, f.SalaryRange)
		}
		if f.DatePosted == "" {
			f.DatePosted = domain.PostedAny
		}
		k.Filters = f
		return nil
	})
}

func (v *View) SetActiveTab(ctx context.Context, tab domain.Tab) error {
	return v.update(ctx, func(k *domain.QueryKey) error {
		switch tab {
		case domain.TabAll, domain.TabApplied, domain.TabSaved, domain.TabRemote, domain.TabTrending:
			k.Tab = tab
			return nil
		}
		return fmt.Errorf("%w: tab %q", ErrInvalidKey, tab)
	})
}

func (v *View) SetSortOrder(ctx context.Context, order domain.SortOrder) error {
	return v.update(ctx, func(k *domain.QueryKey) error {
		switch order {
		case domain.SortRecent, domain.SortSalary, domain.SortRelevance, domain.SortDistance:
			k.Sort = order
			return nil
		}
		return fmt.Errorf("%w: sort order %q", ErrInvalidKey, order)
	})
}

func (v *View) update(ctx context.Context, change func(*domain.QueryKey) error) error {
	v.ctl.Lock()
	defer v.ctl.Unlock()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	key := v.key
	if err := change(&key); err != nil {
		v.mu.Unlock()
		return err
	}
	v.key = key
	v.mu.Unlock()
	return v.list.Fetch(ctx, key, true)
}

// Refresh reloads the first page bypassing the cache.
func (v *View) Refresh(ctx context.Context) error {
	v.ctl.Lock()
	defer v.ctl.Unlock()

	key, err := v.openKey()
	if err != nil {
		return err
	}
	return v.list.Fetch(ctx, key, false)
}

func (v *View) LoadMore(ctx context.Context) error {
	key, err := v.openKey()
	if err != nil {
		return err
	}
	return v.list.LoadMore(ctx, key)
}

// ToggleRealtime turns live sync on or off.
func (v *View) ToggleRealtime(enabled bool) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.realtime = enabled
	v.mu.Unlock()

	if !enabled {
		v.live.Stop()
		return nil
	}
	return v.live.Start()
}

// SetUser switches the view to another user: the subscription is torn
// down, cache and list are cleared and the first page is reloaded.
func (v *View) SetUser(ctx context.Context, u domain.User) error {
	v.ctl.Lock()
	defer v.ctl.Unlock()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	key, realtime := v.key, v.realtime
	v.mu.Unlock()

	v.live.Stop()
	v.list.Reset(u)
	if realtime {
		if err := v.live.Start(); err != nil {
			v.logger.Warn("live sync unavailable", "user_id", u.ID, "error", err)
		}
	}
	return v.list.Fetch(ctx, key, false)
}

func (v *View) User() domain.User { return v.list.User() }

func (v *View) Apply(ctx context.Context, jobID string) MutationResult {
	if v.isClosed() {
		return MutationResult{Kind: KindApply, JobID: jobID, Outcome: OutcomeRejected, Err: ErrClosed}
	}
	return v.list.Apply(ctx, jobID)
}

func (v *View) ToggleSave(ctx context.Context, jobID string) MutationResult {
	if v.isClosed() {
		return MutationResult{Kind: KindSave, JobID: jobID, Outcome: OutcomeRejected, Err: ErrClosed}
	}
	return v.list.ToggleSave(ctx, jobID)
}

// Details returns a loaded job.
func (v *View) Details(jobID string) (domain.ViewJob, bool) {
	return v.list.Item(jobID)
}

// Stats counts the user's applications. Without an application
// repository only the loaded list is counted.
func (v *View) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	for _, item := range v.list.State().Items {
		if item.HasApplied {
			st.AppliedInView++
		}
		if item.Saved {
			st.SavedInView++
		}
	}
	if v.apps == nil {
		return st, nil
	}

	apps, err := v.apps.ListByUser(ctx, v.list.User().ID)
	if err != nil {
		return st, fmt.Errorf("failed to list applications: %w", err)
	}
	st.TotalApplications = len(apps)
	for _, a := range apps {
		switch a.Status {
		case domain.ApplicationStatusInterview:
			st.Interviews++
		case domain.ApplicationStatusOffered:
			st.Offers++
		}
	}
	if st.TotalApplications > 0 {
		st.SuccessRate = float64(st.Offers) / float64(st.TotalApplications) * 100
	}
	return st, nil
}

// Close stops live sync and pending retries. Later calls fail with ErrClosed.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.live.Stop()
	v.list.Close()
}

func (v *View) openKey() (domain.QueryKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return domain.QueryKey{}, ErrClosed
	}
	return v.key, nil
}

func (v *View) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
