package feed

import (
	"testing"
	"time"

	"swipework/internal/domain"
)

func findFilter(q domain.Query, field string) (domain.Filter, bool) {
	for _, f := range q.Filters {
		if f.Field == field {
			return f, true
		}
	}
	return domain.Filter{}, false
}

func TestBuildQueryTabs(t *testing.T) {
	now := time.Now()
	tests := []struct {
		tab   domain.Tab
		field string
		op    domain.FilterOp
		value any
	}{
		{domain.TabApplied, "applicants", domain.OpArrayContains, "u1"},
		{domain.TabSaved, "savedBy", domain.OpArrayContains, "u1"},
		{domain.TabRemote, "remote", domain.OpEqual, true},
		{domain.TabTrending, "trending", domain.OpEqual, true},
	}
	for _, tt := range tests {
		key := domain.DefaultQueryKey()
		key.Tab = tt.tab
		q := BuildQuery(key, "u1", 12, now)
		f, ok := findFilter(q, tt.field)
		if !ok {
			t.Errorf("tab %s: no filter on %s", tt.tab, tt.field)
			continue
		}
		if f.Op != tt.op || f.Value != tt.value {
			t.Errorf("tab %s: filter = %+v, want %s %v", tt.tab, f, tt.op, tt.value)
		}
	}

	q := BuildQuery(domain.DefaultQueryKey(), "u1", 12, now)
	if len(q.Filters) != 0 {
		t.Errorf("default key filters = %+v, want none", q.Filters)
	}
	if q.Limit != 12 || q.OrderBy != "postedAt" || !q.Descending {
		t.Errorf("default query = %+v", q)
	}
}

func TestBuildQuerySortOrders(t *testing.T) {
	tests := []struct {
		sort  domain.SortOrder
		field string
		desc  bool
	}{
		{domain.SortRecent, "postedAt", true},
		{domain.SortSalary, "salary.max", true},
		{domain.SortRelevance, "relevanceScore", true},
		{domain.SortDistance, "distance", false},
	}
	for _, tt := range tests {
		key := domain.DefaultQueryKey()
		key.Sort = tt.sort
		q := BuildQuery(key, "u1", 12, time.Now())
		if q.OrderBy != tt.field || q.Descending != tt.desc {
			t.Errorf("sort %s: order = %s desc=%v, want %s desc=%v", tt.sort, q.OrderBy, q.Descending, tt.field, tt.desc)
		}
	}
}

func TestBuildQueryFilters(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	key := domain.DefaultQueryKey()
	key.Search = "golang"
	key.Filters.RemoteOnly = true
	key.Filters.JobType = []string{"full-time"}
	key.Filters.Location = []string{"Berlin", "Remote"}
	key.Filters.Skills = []string{"go"}
	key.Filters.SalaryRange = [2]float64{50000, 120000}
	key.Filters.DatePosted = domain.PostedWeek

	q := BuildQuery(key, "u1", 12, now)
	if f, ok := findFilter(q, "remote"); !ok || f.Value != true {
		t.Errorf("remote filter = %+v %v", f, ok)
	}
	if f, ok := findFilter(q, "type"); !ok || f.Op != domain.OpIn {
		t.Errorf("type filter = %+v %v", f, ok)
	}
	if f, ok := findFilter(q, "location"); !ok || len(f.Value.([]string)) != 2 {
		t.Errorf("location filter = %+v %v", f, ok)
	}
	if f, ok := findFilter(q, "skills"); !ok || f.Op != domain.OpArrayContainsAny {
		t.Errorf("skills filter = %+v %v", f, ok)
	}
	if f, ok := findFilter(q, "salary.max"); !ok || f.Value != 50000.0 {
		t.Errorf("salary.max filter = %+v %v", f, ok)
	}
	if f, ok := findFilter(q, "postedAt"); !ok || !f.Value.(time.Time).Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("postedAt filter = %+v %v", f, ok)
	}
	for _, f := range q.Filters {
		if s, ok := f.Value.(string); ok && s == "golang" {
			t.Errorf("search text leaked into filter %+v", f)
		}
	}
}

func TestMatchesSearch(t *testing.T) {
	j := &domain.JobListing{
		Title:       "Backend Engineer",
		Company:     "Initech",
		Description: "Payments platform",
		Skills:      []string{"PostgreSQL"},
	}
	for _, text := range []string{"", "  ", "backend", "INITECH", "payments", "postgres"} {
		if !MatchesSearch(j, text) {
			t.Errorf("MatchesSearch(%q) = false, want true", text)
		}
	}
	if MatchesSearch(j, "frontend") {
		t.Errorf("MatchesSearch(frontend) = true, want false")
	}
}

func TestVisibleInTab(t *testing.T) {
	items := []domain.ViewJob{
		{JobListing: domain.JobListing{ID: "a", Remote: true}},
		{JobListing: domain.JobListing{ID: "b"}, HasApplied: true},
		{JobListing: domain.JobListing{ID: "c"}, Saved: true},
	}
	tests := map[domain.Tab]string{
		domain.TabRemote:  "a",
		domain.TabApplied: "b",
		domain.TabSaved:   "c",
	}
	for tab, want := range tests {
		got := VisibleInTab(items, tab)
		if len(got) != 1 || got[0].ID != want {
			t.Errorf("tab %s = %v, want [%s]", tab, ids(got), want)
		}
	}
	if got := VisibleInTab(items, domain.TabAll); len(got) != 3 {
		t.Errorf("tab all = %d items, want 3", len(got))
	}
}
