package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Tab selects a subset of the feed.
type Tab string

const (
	TabAll      Tab = "all"
	TabApplied  Tab = "applied"
	TabSaved    Tab = "saved"
	TabRemote   Tab = "remote"
	TabTrending Tab = "trending"
)

// SortOrder selects the remote ordering of the feed.
type SortOrder string

const (
	SortRecent    SortOrder = "recent"
	SortSalary    SortOrder = "salary"
	SortRelevance SortOrder = "relevance"
	SortDistance  SortOrder = "distance"
)

// DatePosted buckets the age of a posting.
type DatePosted string

const (
	PostedAny   DatePosted = "any"
	PostedDay   DatePosted = "24h"
	PostedWeek  DatePosted = "week"
	PostedMonth DatePosted = "month"
)

const (
	DefaultSalaryMin = 0
	DefaultSalaryMax = 200000
)

// FilterSet is the user-selected narrowing of the feed.
type FilterSet struct {
	Location    []string   `json:"location"`
	JobType     []string   `json:"jobType"`
	Experience  []string   `json:"experience"`
	SalaryRange [2]float64 `json:"salaryRange"`
	RemoteOnly  bool       `json:"remote"`
	Skills      []string   `json:"skills"`
	Company     []string   `json:"company"`
	DatePosted  DatePosted `json:"datePosted"`
	CompanySize []string   `json:"companySize"`
	Benefits    []string   `json:"benefits"`
}

// DefaultFilters returns a filter set that narrows nothing.
func DefaultFilters() FilterSet {
	return FilterSet{
		SalaryRange: [2]float64{DefaultSalaryMin, DefaultSalaryMax},
		DatePosted:  PostedAny,
	}
}

// HasSalaryRange reports whether the salary range differs from the default.
func (f FilterSet) HasSalaryRange() bool {
	return f.SalaryRange != [2]float64{DefaultSalaryMin, DefaultSalaryMax} && f.SalaryRange != [2]float64{}
}

// QueryKey identifies a query for caching and cursor validity.
type QueryKey struct {
	Tab     Tab       `json:"tab"`
	Search  string    `json:"search"`
	Filters FilterSet `json:"filters"`
	Sort    SortOrder `json:"sort"`
}

// DefaultQueryKey is the key a fresh view starts with.
func DefaultQueryKey() QueryKey {
	return QueryKey{Tab: TabAll, Filters: DefaultFilters(), Sort: SortRecent}
}

// Hash returns a canonical string for the key. Keys that differ in any
// component hash differently; list order inside filters is ignored.
func (k QueryKey) Hash() string {
	norm := k
	norm.Filters = k.Filters.sorted()
	b, err := json.Marshal(norm)
	if err != nil {
		// only plain data in the struct, cannot fail
		return fmt.Sprintf("%v", norm)
	}
	return string(b)
}

func (f FilterSet) sorted() FilterSet {
	out := f
	for _, p := range []*[]string{&out.Location, &out.JobType, &out.Experience, &out.Skills, &out.Company, &out.CompanySize, &out.Benefits} {
		if len(*p) == 0 {
			*p = nil
			continue
		}
		c := slices.Clone(*p)
		slices.Sort(c)
		*p = c
	}
	if out.DatePosted == "" {
		out.DatePosted = PostedAny
	}
	return out
}

// FilterOp is a comparison understood by the document store.
type FilterOp string

const (
	OpEqual            FilterOp = "=="
	OpIn               FilterOp = "in"
	OpArrayContains    FilterOp = "array-contains"
	OpArrayContainsAny FilterOp = "array-contains-any"
	OpGreaterOrEqual   FilterOp = ">="
	OpLessOrEqual      FilterOp = "<="
)

// Filter is a single predicate on a (dotted) document field.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Cursor marks the last document of a page. It is opaque to callers.
type Cursor struct {
	LastID    string `json:"lastId"`
	LastValue any    `json:"lastValue"`
}

// Query is a filtered, ordered, limited read of the job collection.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
	StartAfter *Cursor
}

// Page is one result of a Query. Cursor is nil for an empty page.
type Page struct {
	Listings []*JobListing
	Cursor   *Cursor
}

// Window is the ordered slice of the collection watched by a subscription.
type Window struct {
	OrderBy    string
	Descending bool
	Limit      int
}
