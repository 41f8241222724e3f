package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"swipework/internal/domain"
)

func newTestView(store *fakeStore, opts Options) *View {
	if opts.Clock == nil {
		opts.Clock = newFakeClock()
	}
	return NewView(store, domain.User{ID: "u1"}, opts)
}

func TestViewControlsRefetch(t *testing.T) {
	store := &fakeStore{listings: makeListings(3)}
	v := newTestView(store, Options{})
	ctx := context.Background()

	if err := v.Open(ctx, false); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := v.SetActiveTab(ctx, domain.TabApplied); err != nil {
		t.Fatalf("SetActiveTab failed: %v", err)
	}
	q := store.lastQuery()
	if len(q.Filters) != 1 || q.Filters[0].Field != "applicants" || q.Filters[0].Value != "u1" {
		t.Errorf("filters = %+v, want applicants array-contains u1", q.Filters)
	}

	if err := v.SetSortOrder(ctx, domain.SortDistance); err != nil {
		t.Fatalf("SetSortOrder failed: %v", err)
	}
	if q := store.lastQuery(); q.OrderBy != "distance" || q.Descending {
		t.Errorf("order = %s desc=%v, want distance asc", q.OrderBy, q.Descending)
	}

	if err := v.SetActiveTab(ctx, "archived"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("SetActiveTab(archived) err = %v, want ErrInvalidKey", err)
	}
	if err := v.SetSortOrder(ctx, "alphabetical"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("SetSortOrder(alphabetical) err = %v, want ErrInvalidKey", err)
	}
	if got := v.Key().Sort; got != domain.SortDistance {
		t.Errorf("sort = %s after invalid change, want distance", got)
	}
}

func TestViewStateFiltersByTab(t *testing.T) {
	listings := makeListings(3)
	listings[0].SavedBy = []string{"u1"}
	listings[2].Remote = true
	store := &fakeStore{listings: listings}
	v := newTestView(store, Options{})
	ctx := context.Background()

	if err := v.Open(ctx, false); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := v.SetActiveTab(ctx, domain.TabSaved); err != nil {
		t.Fatalf("SetActiveTab failed: %v", err)
	}
	// the fake ignores filters, so the local tab filter does the work
	if got := ids(v.State().Items); len(got) != 1 || got[0] != "job-00" {
		t.Errorf("saved ids = %v, want [job-00]", got)
	}
	if err := v.SetActiveTab(ctx, domain.TabRemote); err != nil {
		t.Fatalf("SetActiveTab failed: %v", err)
	}
	if got := ids(v.State().Items); len(got) != 1 || got[0] != "job-02" {
		t.Errorf("remote ids = %v, want [job-02]", got)
	}
}

func TestViewSetUserResets(t *testing.T) {
	store := &fakeStore{listings: makeListings(3)}
	v := newTestView(store, Options{})
	ctx := context.Background()

	if err := v.Open(ctx, true); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if store.subCount() != 1 {
		t.Fatalf("subscriptions = %d, want 1", store.subCount())
	}

	if err := v.SetUser(ctx, domain.User{ID: "u2"}); err != nil {
		t.Fatalf("SetUser failed: %v", err)
	}
	if !store.sub(0).isClosed() {
		t.Errorf("old subscription still open")
	}
	if store.subCount() != 2 {
		t.Errorf("subscriptions = %d, want 2", store.subCount())
	}
	if got := v.User().ID; got != "u2" {
		t.Errorf("user = %s, want u2", got)
	}
	if got := store.queryCount(); got != 2 {
		t.Errorf("queries = %d, want 2", got)
	}

	// cache was purged: a cached fetch has to query again
	if err := v.SetSearchQuery(ctx, ""); err != nil {
		t.Fatalf("SetSearchQuery failed: %v", err)
	}
	if got := store.queryCount(); got != 2 {
		t.Errorf("queries = %d, want 2 (fresh cache entry of u2)", got)
	}
	v.Close()
}

func TestViewRealtimeToggle(t *testing.T) {
	store := &fakeStore{}
	v := newTestView(store, Options{})

	if err := v.ToggleRealtime(true); err != nil {
		t.Fatalf("ToggleRealtime failed: %v", err)
	}
	if !v.State().Realtime {
		t.Errorf("realtime = false, want true")
	}
	if err := v.ToggleRealtime(false); err != nil {
		t.Fatalf("ToggleRealtime failed: %v", err)
	}
	if !store.sub(0).isClosed() {
		t.Errorf("subscription still open after disabling")
	}
}

func TestViewClose(t *testing.T) {
	store := &fakeStore{listings: makeListings(1)}
	v := newTestView(store, Options{})
	ctx := context.Background()
	if err := v.Open(ctx, true); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	v.Close()
	v.Close()

	if !store.sub(0).isClosed() {
		t.Errorf("subscription still open after Close")
	}
	if err := v.Refresh(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Refresh err = %v, want ErrClosed", err)
	}
	if res := v.Apply(ctx, "job-00"); !errors.Is(res.Err, ErrClosed) {
		t.Errorf("Apply err = %v, want ErrClosed", res.Err)
	}
}

func TestViewStats(t *testing.T) {
	listings := makeListings(2)
	listings[0].Applicants = []string{"u1"}
	listings[1].SavedBy = []string{"u1"}
	store := &fakeStore{listings: listings}
	apps := &fakeApplications{apps: []*domain.Application{
		{UserID: "u1", JobID: "a", Status: domain.ApplicationStatusApplied},
		{UserID: "u1", JobID: "b", Status: domain.ApplicationStatusInterview},
		{UserID: "u1", JobID: "c", Status: domain.ApplicationStatusOffered},
		{UserID: "u1", JobID: "d", Status: domain.ApplicationStatusRejected},
		{UserID: "u1", JobID: "f", Status: domain.ApplicationStatusAccepted},
		{UserID: "u2", JobID: "e", Status: domain.ApplicationStatusOffered},
	}}
	v := newTestView(store, Options{Applications: apps})
	ctx := context.Background()
	if err := v.Open(ctx, false); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	st, err := v.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalApplications != 5 || st.Interviews != 1 || st.Offers != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.SuccessRate != 20 {
		t.Errorf("successRate = %v, want 20", st.SuccessRate)
	}
	if st.AppliedInView != 1 || st.SavedInView != 1 {
		t.Errorf("in view applied = %d saved = %d, want 1 1", st.AppliedInView, st.SavedInView)
	}
}

func TestConcurrentControlsEndOnLastKey(t *testing.T) {
	store := &fakeStore{listings: makeListings(30)}
	v := newTestView(store, Options{})
	ctx := context.Background()
	if err := v.Open(ctx, false); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	store.mu.Lock()
	store.onQuery = func(domain.Query) {
		close(entered)
		<-release
	}
	store.mu.Unlock()

	done := make(chan error, 2)
	go func() { done <- v.SetSortOrder(ctx, domain.SortSalary) }()
	<-entered
	go func() { done <- v.SetSortOrder(ctx, domain.SortRelevance) }()

	time.Sleep(20 * time.Millisecond)
	if n := store.queryCount(); n != 2 {
		t.Errorf("queries = %d while the first control is in flight, want 2", n)
	}
	close(release)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("SetSortOrder failed: %v", err)
		}
	}

	if v.Key().Sort != domain.SortRelevance {
		t.Errorf("sort = %s, want relevance", v.Key().Sort)
	}
	if err := v.LoadMore(ctx); err != nil {
		t.Errorf("LoadMore after concurrent controls: %v", err)
	}
	if got := len(v.State().Items); got != 24 {
		t.Errorf("items = %d, want 24", got)
	}
}
