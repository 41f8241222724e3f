package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"swipework/internal/domain"
)

type recordedAlerts struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordedAlerts) Alert(a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recordedAlerts) last() Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.alerts) == 0 {
		return Alert{}
	}
	return r.alerts[len(r.alerts)-1]
}

func loadedList(t *testing.T, store *fakeStore, opts Options) *List {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = newFakeClock()
	}
	l := NewList(store, domain.User{ID: "u1", ResumeURL: "https://cv.example/u1"}, opts)
	if err := l.Fetch(context.Background(), domain.DefaultQueryKey(), true); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	return l
}

func TestApplyIsOptimisticAndSerialized(t *testing.T) {
	listings := makeListings(3)
	listings[0].ApplicantCount = 4
	listings[0].CreatedBy = "employer-1"
	store := &fakeStore{
		listings: listings,
		started:  make(chan string, 1),
		release:  make(chan struct{}),
	}
	apps := &fakeApplications{}
	notifier := &fakeNotifier{}
	alerts := &recordedAlerts{}
	l := loadedList(t, store, Options{Applications: apps, Notifier: notifier, Alerts: alerts})

	done := make(chan MutationResult, 1)
	go func() { done <- l.Apply(context.Background(), "job-00") }()
	<-store.started

	item, _ := l.Item("job-00")
	if !item.HasApplied || item.ApplicantCount != 5 {
		t.Errorf("pending hasApplied = %v count = %d, want true 5", item.HasApplied, item.ApplicantCount)
	}
	if got := l.State().Applying; got != "job-00" {
		t.Errorf("applying = %q, want job-00", got)
	}

	second := l.Apply(context.Background(), "job-01")
	if second.Outcome != OutcomeRejected || !errors.Is(second.Err, ErrApplyInFlight) {
		t.Errorf("second apply = %+v, want rejected ErrApplyInFlight", second)
	}
	other, _ := l.Item("job-01")
	if other.HasApplied || other.ApplicantCount != 0 {
		t.Errorf("rejected apply changed job-01: %+v", other)
	}

	close(store.release)
	res := <-done
	if res.Outcome != OutcomeCommitted || res.Err != nil {
		t.Fatalf("apply = %+v, want committed", res)
	}
	if got := l.State().Applying; got != "" {
		t.Errorf("applying = %q after commit, want empty", got)
	}
	if got := len(store.updateCalls()); got != 1 {
		t.Errorf("updates = %d, want 1", got)
	}
	if len(apps.apps) != 1 || apps.apps[0].ID != "u1_job-00" || apps.apps[0].ResumeURL != "https://cv.example/u1" {
		t.Errorf("application records = %+v", apps.apps)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].UserID != "employer-1" {
		t.Errorf("notifications = %+v, want one to employer-1", notifier.sent)
	}
	if a := alerts.last(); a.Level != AlertSuccess {
		t.Errorf("alert = %+v, want success", a)
	}
}

func TestApplySendsAtomicOps(t *testing.T) {
	store := &fakeStore{listings: makeListings(1)}
	l := loadedList(t, store, Options{})

	if res := l.Apply(context.Background(), "job-00"); res.Outcome != OutcomeCommitted {
		t.Fatalf("apply = %+v, want committed", res)
	}
	calls := store.updateCalls()
	if len(calls) != 1 {
		t.Fatalf("updates = %d, want 1", len(calls))
	}
	want := []domain.UpdateOp{
		domain.ArrayUnion("applicants", "u1"),
		domain.Increment("applicantCount", 1),
		domain.Set("applicationStatuses.u1", "applied"),
	}
	got := calls[0].ops
	if len(got) != len(want) {
		t.Fatalf("ops = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ops[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	listings := makeListings(2)
	listings[1].ApplicantCount = 7
	store := &fakeStore{listings: listings, updateErr: errors.New("unavailable")}
	apps := &fakeApplications{}
	alerts := &recordedAlerts{}
	l := loadedList(t, store, Options{Applications: apps, Alerts: alerts})

	res := l.Apply(context.Background(), "job-01")
	if res.Outcome != OutcomeRolledBack || res.Err == nil {
		t.Fatalf("apply = %+v, want rolled back", res)
	}
	item, _ := l.Item("job-01")
	if item.HasApplied || item.ApplicantCount != 7 {
		t.Errorf("after rollback hasApplied = %v count = %d, want false 7", item.HasApplied, item.ApplicantCount)
	}
	if got := l.State().Applying; got != "" {
		t.Errorf("applying = %q after rollback, want empty", got)
	}
	if len(apps.apps) != 0 {
		t.Errorf("application recorded for failed apply")
	}
	if a := alerts.last(); a.Level != AlertError || a.Message != "Failed to submit application. Please try again." {
		t.Errorf("alert = %+v", a)
	}

	store.mu.Lock()
	store.updateErr = nil
	store.mu.Unlock()
	if res := l.Apply(context.Background(), "job-01"); res.Outcome != OutcomeCommitted {
		t.Errorf("apply after rollback = %+v, want committed", res)
	}
}

func TestApplyRejections(t *testing.T) {
	listings := makeListings(1)
	listings[0].Applicants = []string{"u1"}
	store := &fakeStore{listings: listings}
	l := loadedList(t, store, Options{})

	if res := l.Apply(context.Background(), "missing"); !errors.Is(res.Err, domain.ErrJobNotFound) {
		t.Errorf("apply missing = %+v, want ErrJobNotFound", res)
	}
	if res := l.Apply(context.Background(), "job-00"); !errors.Is(res.Err, ErrAlreadyApplied) {
		t.Errorf("apply again = %+v, want ErrAlreadyApplied", res)
	}
	if got := len(store.updateCalls()); got != 0 {
		t.Errorf("updates = %d, want 0", got)
	}
}

func TestApplyBestEffortSideRecords(t *testing.T) {
	listings := makeListings(1)
	listings[0].CreatedBy = "employer"
	store := &fakeStore{listings: listings}
	apps := &fakeApplications{err: errors.New("disk full")}
	l := loadedList(t, store, Options{Applications: apps})

	if res := l.Apply(context.Background(), "job-00"); res.Outcome != OutcomeCommitted {
		t.Errorf("apply = %+v, want committed despite record failure", res)
	}
	item, _ := l.Item("job-00")
	if !item.HasApplied {
		t.Errorf("hasApplied = false, want true")
	}
}

func TestToggleSaveTwice(t *testing.T) {
	store := &fakeStore{listings: makeListings(1)}
	alerts := &recordedAlerts{}
	l := loadedList(t, store, Options{Alerts: alerts})
	ctx := context.Background()

	first := l.ToggleSave(ctx, "job-00")
	if first.Kind != KindSave || first.Outcome != OutcomeCommitted {
		t.Fatalf("first toggle = %+v, want committed save", first)
	}
	if a := alerts.last(); a.Message != "Job saved successfully!" {
		t.Errorf("alert = %q", a.Message)
	}
	second := l.ToggleSave(ctx, "job-00")
	if second.Kind != KindUnsave || second.Outcome != OutcomeCommitted {
		t.Fatalf("second toggle = %+v, want committed unsave", second)
	}
	if a := alerts.last(); a.Message != "Job removed from saved" {
		t.Errorf("alert = %q", a.Message)
	}

	calls := store.updateCalls()
	if len(calls) != 2 {
		t.Fatalf("updates = %d, want 2", len(calls))
	}
	if calls[0].ops[0] != domain.ArrayUnion("savedBy", "u1") {
		t.Errorf("first op = %+v, want array-union savedBy", calls[0].ops[0])
	}
	if calls[1].ops[0] != domain.ArrayRemove("savedBy", "u1") {
		t.Errorf("second op = %+v, want array-remove savedBy", calls[1].ops[0])
	}
	item, _ := l.Item("job-00")
	if item.Saved || item.SaveCount != 0 {
		t.Errorf("saved = %v saveCount = %d, want false 0", item.Saved, item.SaveCount)
	}
}

func TestToggleSaveRollsBack(t *testing.T) {
	listings := makeListings(1)
	listings[0].SavedBy = []string{"u1"}
	store := &fakeStore{listings: listings, updateErr: errors.New("timeout")}
	alerts := &recordedAlerts{}
	l := loadedList(t, store, Options{Alerts: alerts})

	res := l.ToggleSave(context.Background(), "job-00")
	if res.Kind != KindUnsave || res.Outcome != OutcomeRolledBack {
		t.Fatalf("toggle = %+v, want rolled back unsave", res)
	}
	item, _ := l.Item("job-00")
	if !item.Saved || item.SaveCount != 1 {
		t.Errorf("saved = %v saveCount = %d, want true 1", item.Saved, item.SaveCount)
	}
	if a := alerts.last(); a.Level != AlertError {
		t.Errorf("alert = %+v, want error", a)
	}
}

func TestToggleSaveIsNotSerializedAcrossJobs(t *testing.T) {
	store := &fakeStore{
		listings: makeListings(2),
		started:  make(chan string, 2),
		release:  make(chan struct{}),
	}
	l := loadedList(t, store, Options{})

	done := make(chan MutationResult, 3)
	go func() { done <- l.ToggleSave(context.Background(), "job-00") }()
	<-store.started
	go func() { done <- l.ToggleSave(context.Background(), "job-01") }()
	<-store.started

	if res := l.ToggleSave(context.Background(), "job-00"); !errors.Is(res.Err, ErrSaveInFlight) {
		t.Errorf("same-job toggle = %+v, want ErrSaveInFlight", res)
	}
	close(store.release)
	for i := 0; i < 2; i++ {
		if res := <-done; res.Outcome != OutcomeCommitted {
			t.Errorf("toggle %s = %+v, want committed", res.JobID, res)
		}
	}
}

func TestUnsaveOfProfileSavedJobSticks(t *testing.T) {
	store := &fakeStore{listings: makeListings(2)}
	users := &fakeUsers{}
	l := NewList(store, domain.User{ID: "u1", SavedJobs: []string{"job-00", "job-01"}}, Options{Clock: newFakeClock(), Users: users})
	ctx := context.Background()
	if err := l.Fetch(ctx, domain.DefaultQueryKey(), true); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if item, _ := l.Item("job-00"); !item.Saved {
		t.Fatalf("saved = false for a job in the profile")
	}

	res := l.ToggleSave(ctx, "job-00")
	if res.Kind != KindUnsave || res.Outcome != OutcomeCommitted {
		t.Fatalf("toggle = %+v, want committed unsave", res)
	}
	if len(users.saved) != 1 || len(users.saved[0].SavedJobs) != 1 || users.saved[0].SavedJobs[0] != "job-01" {
		t.Errorf("persisted profiles = %+v, want savedJobs [job-01]", users.saved)
	}

	if err := l.Fetch(ctx, domain.DefaultQueryKey(), false); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if item, _ := l.Item("job-00"); item.Saved {
		t.Errorf("saved = true after refresh, want false")
	}
	if item, _ := l.Item("job-01"); !item.Saved {
		t.Errorf("job-01 lost its saved flag")
	}
}

func TestUnsaveRollsBackWhenProfileWriteFails(t *testing.T) {
	store := &fakeStore{listings: makeListings(1)}
	users := &fakeUsers{err: errors.New("unavailable")}
	alerts := &recordedAlerts{}
	l := NewList(store, domain.User{ID: "u1", SavedJobs: []string{"job-00"}}, Options{Clock: newFakeClock(), Users: users, Alerts: alerts})
	ctx := context.Background()
	if err := l.Fetch(ctx, domain.DefaultQueryKey(), true); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	res := l.ToggleSave(ctx, "job-00")
	if res.Kind != KindUnsave || res.Outcome != OutcomeRolledBack {
		t.Fatalf("toggle = %+v, want rolled back unsave", res)
	}
	if item, _ := l.Item("job-00"); !item.Saved {
		t.Errorf("saved = false after failed profile write, want true")
	}
	if a := alerts.last(); a.Level != AlertError {
		t.Errorf("alert = %+v, want error", a)
	}

	if err := l.Fetch(ctx, domain.DefaultQueryKey(), false); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if item, _ := l.Item("job-00"); !item.Saved {
		t.Errorf("saved = false after refresh, want true")
	}
}
