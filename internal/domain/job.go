package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Salary is the advertised pay band of a posting.
type Salary struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency,omitempty"`
	Period   string  `json:"period,omitempty"` // hourly, monthly, yearly
}

// JobListing is a job posting as stored in the remote document store.
// The JSON field names are the document field names used by queries and update ops.
type JobListing struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
	Salary          *Salary   `json:"salary,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	JobType         string    `json:"type,omitempty"`
	ExperienceLevel string    `json:"experienceLevel,omitempty"`
	CompanySize     string    `json:"companySize,omitempty"`
	Benefits        []string  `json:"benefits,omitempty"`
	Remote          bool      `json:"remote"`
	Trending        bool      `json:"trending"`
	RelevanceScore  float64   `json:"relevanceScore"`
	Distance        float64   `json:"distance"`
	PostedAt        time.Time `json:"postedAt"`
	CreatedBy       string    `json:"createdBy,omitempty"`

	Applicants          []string          `json:"applicants,omitempty"`
	SavedBy             []string          `json:"savedBy,omitempty"`
	ApplicantCount      int               `json:"applicantCount"`
	ApplicationStatuses map[string]string `json:"applicationStatuses,omitempty"`
}

// Validate checks the fields an employer must provide when posting.
func (j *JobListing) Validate() error {
	if strings.TrimSpace(j.Title) == "" {
		return fmt.Errorf("job title cannot be empty")
	}
	if strings.TrimSpace(j.Company) == "" {
		return fmt.Errorf("job company cannot be empty")
	}
	if j.Salary != nil && j.Salary.Max > 0 && j.Salary.Min > j.Salary.Max {
		return fmt.Errorf("salary min %.0f exceeds max %.0f", j.Salary.Min, j.Salary.Max)
	}
	return nil
}

// ViewJob is a listing enriched with flags relative to the current user.
type ViewJob struct {
	JobListing
	HasApplied        bool   `json:"hasApplied"`
	Saved             bool   `json:"saved"`
	ApplicationStatus string `json:"applicationStatus"`
	SaveCount         int    `json:"saveCount"`
}

// NewViewJob derives the per-user view of a listing.
func NewViewJob(l *JobListing, u User) ViewJob {
	v := ViewJob{
		JobListing:        *l,
		HasApplied:        slices.Contains(l.Applicants, u.ID) || slices.Contains(u.AppliedJobs, l.ID),
		Saved:             slices.Contains(l.SavedBy, u.ID) || slices.Contains(u.SavedJobs, l.ID),
		ApplicationStatus: string(ApplicationStatusApplied),
		SaveCount:         len(l.SavedBy),
	}
	if status, ok := l.ApplicationStatuses[u.ID]; ok && status != "" {
		v.ApplicationStatus = status
	}
	return v
}
