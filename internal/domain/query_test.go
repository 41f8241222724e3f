package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestQueryKeyHash(t *testing.T) {
	base := DefaultQueryKey()
	if base.Hash() != DefaultQueryKey().Hash() {
		t.Fatal("equal keys hash differently")
	}

	a := base
	a.Filters.Location = []string{"Berlin", "Austin"}
	b := base
	b.Filters.Location = []string{"Austin", "Berlin"}
	if a.Hash() != b.Hash() {
		t.Errorf("filter order changed the hash")
	}
	if a.Filters.Location[0] != "Berlin" {
		t.Errorf("Hash reordered the caller's filters")
	}

	variants := []func(*QueryKey){
		func(k *QueryKey) { k.Tab = TabSaved },
		func(k *QueryKey) { k.Search = "go" },
		func(k *QueryKey) { k.Sort = SortSalary },
		func(k *QueryKey) { k.Filters.RemoteOnly = true },
		func(k *QueryKey) { k.Filters.SalaryRange = [2]float64{1000, 200000} },
	}
	for i, change := range variants {
		k := base
		change(&k)
		if k.Hash() == base.Hash() {
			t.Errorf("variant %d hashes like the default key", i)
		}
	}
}

func TestNewViewJob(t *testing.T) {
	l := &JobListing{ID: "j1", Applicants: []string{"x"}, SavedBy: []string{"x", "y"}}
	v := NewViewJob(l, User{ID: "u", AppliedJobs: []string{"j1"}})
	if !v.HasApplied {
		t.Errorf("hasApplied = false for job in the user's applied list")
	}
	if v.Saved {
		t.Errorf("saved = true for a user not in savedBy")
	}
	if v.ApplicationStatus != "applied" || v.SaveCount != 2 {
		t.Errorf("status = %s saveCount = %d, want applied 2", v.ApplicationStatus, v.SaveCount)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err        error
		permission bool
	}{
		{errors.New("rpc error: code = Unavailable desc = connection refused"), false},
		{fmt.Errorf("query: %w", ErrPermissionDenied), true},
		{errors.New("etcdserver: permission denied"), true},
		{fmt.Errorf("update: %w", ErrConflict), false},
		{errors.New("invalid document"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsPermission(tt.err); got != tt.permission {
			t.Errorf("IsPermission(%v) = %v, want %v", tt.err, got, tt.permission)
		}
	}
}

func TestPublishersJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	ps := Publishers{
		publisherFunc(func(*Notification) error { calls++; return nil }),
		publisherFunc(func(*Notification) error { calls++; return boom }),
	}
	err := ps.Publish(context.Background(), &Notification{})
	if !errors.Is(err, boom) || calls != 2 {
		t.Errorf("Publish err = %v calls = %d, want boom 2", err, calls)
	}
}

type publisherFunc func(*Notification) error

func (f publisherFunc) Publish(_ context.Context, n *Notification) error { return f(n) }
