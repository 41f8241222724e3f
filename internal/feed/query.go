package feed

import (
	"strings"
	"time"

	"swipework/internal/domain"
)

// Document fields used by queries and update ops.
const (
	fieldApplicants     = "applicants"
	fieldSavedBy        = "savedBy"
	fieldApplicantCount = "applicantCount"
	fieldStatuses       = "applicationStatuses"
	fieldRemote         = "remote"
	fieldTrending       = "trending"
	fieldPostedAt       = "postedAt"
	fieldSalaryMax      = "salary.max"
	fieldSalaryMin      = "salary.min"
	fieldRelevance      = "relevanceScore"
	fieldDistance       = "distance"
)

// BuildQuery translates a key into a store query for userID. The search
// text never reaches the store; it is matched locally on the results.
func BuildQuery(key domain.QueryKey, userID string, limit int, now time.Time) domain.Query {
	q := domain.Query{Limit: limit}

	switch key.Tab {
	case domain.TabApplied:
		q.Filters = append(q.Filters, domain.Filter{Field: fieldApplicants, Op: domain.OpArrayContains, Value: userID})
	case domain.TabSaved:
		q.Filters = append(q.Filters, domain.Filter{Field: fieldSavedBy, Op: domain.OpArrayContains, Value: userID})
	case domain.TabRemote:
		q.Filters = append(q.Filters, domain.Filter{Field: fieldRemote, Op: domain.OpEqual, Value: true})
	case domain.TabTrending:
		q.Filters = append(q.Filters, domain.Filter{Field: fieldTrending, Op: domain.OpEqual, Value: true})
	}

	f := key.Filters
	if f.RemoteOnly && key.Tab != domain.TabRemote {
		q.Filters = append(q.Filters, domain.Filter{Field: fieldRemote, Op: domain.OpEqual, Value: true})
	}
	in := func(field string, values []string) {
		if len(values) > 0 {
			q.Filters = append(q.Filters, domain.Filter{Field: field, Op: domain.OpIn, Value: values})
		}
	}
	in("type", f.JobType)
	in("location", f.Location)
	in("experienceLevel", f.Experience)
	in("company", f.Company)
	in("companySize", f.CompanySize)
	if len(f.Skills) > 0 {
		q.Filters = append(q.Filters, domain.Filter{Field: "skills", Op: domain.OpArrayContainsAny, Value: f.Skills})
	}
	if len(f.Benefits) > 0 {
		q.Filters = append(q.Filters, domain.Filter{Field: "benefits", Op: domain.OpArrayContainsAny, Value: f.Benefits})
	}
	if f.HasSalaryRange() {
		q.Filters = append(q.Filters,
			domain.Filter{Field: fieldSalaryMax, Op: domain.OpGreaterOrEqual, Value: f.SalaryRange[0]},
			domain.Filter{Field: fieldSalaryMin, Op: domain.OpLessOrEqual, Value: f.SalaryRange[1]},
		)
	}
	if since, ok := postedSince(f.DatePosted, now); ok {
		q.Filters = append(q.Filters, domain.Filter{Field: fieldPostedAt, Op: domain.OpGreaterOrEqual, Value: since})
	}

	switch key.Sort {
	case domain.SortSalary:
		q.OrderBy, q.Descending = fieldSalaryMax, true
	case domain.SortRelevance:
		q.OrderBy, q.Descending = fieldRelevance, true
	case domain.SortDistance:
		q.OrderBy, q.Descending = fieldDistance, false
	default:
		q.OrderBy, q.Descending = fieldPostedAt, true
	}
	return q
}

func postedSince(d domain.DatePosted, now time.Time) (time.Time, bool) {
	switch d {
	case domain.PostedDay:
		return now.Add(-24 * time.Hour), true
	case domain.PostedWeek:
		return now.AddDate(0, 0, -7), true
	case domain.PostedMonth:
		return now.AddDate(0, -1, 0), true
	}
	return time.Time{}, false
}

// LiveWindow is the window watched by live sync: the newest postings.
func LiveWindow(limit int) domain.Window {
	return domain.Window{OrderBy: fieldPostedAt, Descending: true, Limit: limit}
}

// MatchesSearch reports whether text occurs, case-insensitively, in the
// title, company, description or any skill of j. Empty text matches all.
func MatchesSearch(j *domain.JobListing, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(j.Title), needle) ||
		strings.Contains(strings.ToLower(j.Company), needle) ||
		strings.Contains(strings.ToLower(j.Description), needle) {
		return true
	}
	for _, s := range j.Skills {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// VisibleInTab applies the local tab filter to an already loaded list.
func VisibleInTab(items []domain.ViewJob, tab domain.Tab) []domain.ViewJob {
	keep := func(v *domain.ViewJob) bool {
		switch tab {
		case domain.TabApplied:
			return v.HasApplied
		case domain.TabSaved:
			return v.Saved
		case domain.TabRemote:
			return v.Remote
		}
		return true
	}
	out := make([]domain.ViewJob, 0, len(items))
	for i := range items {
		if keep(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}
