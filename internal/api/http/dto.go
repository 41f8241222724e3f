package http

import (
	"swipework/internal/domain"
)

// SearchRequest sets the client-side search text.
type SearchRequest struct {
	Query string `json:"query" validate:"max=200"`
}

// FiltersRequest replaces the whole filter set. A zero salary range means
// no salary narrowing.
type FiltersRequest struct {
	Location    []string   `json:"location" validate:"max=20,dive,min=1,max=100"`
	JobType     []string   `json:"jobType" validate:"max=10,dive,min=1,max=50"`
	Experience  []string   `json:"experience" validate:"max=10,dive,min=1,max=50"`
	SalaryRange [2]float64 `json:"salaryRange" validate:"dive,gte=0"`
	RemoteOnly  bool       `json:"remote"`
	Skills      []string   `json:"skills" validate:"max=30,dive,min=1,max=50"`
	Company     []string   `json:"company" validate:"max=20,dive,min=1,max=100"`
	DatePosted  string     `json:"datePosted" validate:"omitempty,oneof=any 24h week month"`
	CompanySize []string   `json:"companySize" validate:"max=10,dive,min=1,max=50"`
	Benefits    []string   `json:"benefits" validate:"max=20,dive,min=1,max=100"`
}

func (r *FiltersRequest) ToDomainFilters() domain.FilterSet {
	return domain.FilterSet{
		Location:    r.Location,
		JobType:     r.JobType,
		Experience:  r.Experience,
		SalaryRange: r.SalaryRange,
		RemoteOnly:  r.RemoteOnly,
		Skills:      r.Skills,
		Company:     r.Company,
		DatePosted:  domain.DatePosted(r.DatePosted),
		CompanySize: r.CompanySize,
		Benefits:    r.Benefits,
	}
}

type TabRequest struct {
	Tab string `json:"tab" validate:"required,oneof=all applied saved remote trending"`
}

type SortRequest struct {
	Sort string `json:"sort" validate:"required,oneof=recent salary relevance distance"`
}

type RealtimeRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type SalaryRequest struct {
	Min      float64 `json:"min" validate:"gte=0"`
	Max      float64 `json:"max" validate:"gtefield=Min"`
	Currency string  `json:"currency" validate:"omitempty,len=3"`
	Period   string  `json:"period" validate:"omitempty,oneof=hourly monthly yearly"`
}

// PostJobRequest is the Data Transfer Object for posting a listing.
type PostJobRequest struct {
	Title           string         `json:"title" validate:"required,min=1,max=200"`
	Company         string         `json:"company" validate:"required,min=1,max=200"`
	Location        string         `json:"location" validate:"max=200"`
	Description     string         `json:"description" validate:"max=10000"`
	Salary          *SalaryRequest `json:"salary,omitempty" validate:"omitempty"`
	Skills          []string       `json:"skills" validate:"max=30,dive,min=1,max=50"`
	JobType         string         `json:"type" validate:"max=50"`
	ExperienceLevel string         `json:"experienceLevel" validate:"max=50"`
	CompanySize     string         `json:"companySize" validate:"max=50"`
	Benefits        []string       `json:"benefits" validate:"max=20,dive,min=1,max=100"`
	Remote          bool           `json:"remote"`
	Distance        float64        `json:"distance" validate:"gte=0"`
}

// ToDomainListing converts a PostJobRequest DTO to a domain.JobListing.
func (r *PostJobRequest) ToDomainListing() *domain.JobListing {
	l := &domain.JobListing{
		Title:           r.Title,
		Company:         r.Company,
		Location:        r.Location,
		Description:     r.Description,
		Skills:          r.Skills,
		JobType:         r.JobType,
		ExperienceLevel: r.ExperienceLevel,
		CompanySize:     r.CompanySize,
		Benefits:        r.Benefits,
		Remote:          r.Remote,
		Distance:        r.Distance,
	}
	if r.Salary != nil {
		l.Salary = &domain.Salary{
			Min:      r.Salary.Min,
			Max:      r.Salary.Max,
			Currency: r.Salary.Currency,
			Period:   r.Salary.Period,
		}
	}
	return l
}

// ProfileRequest replaces the caller's profile.
type ProfileRequest struct {
	DisplayName string   `json:"displayName" validate:"max=100"`
	ResumeURL   string   `json:"resumeUrl" validate:"omitempty,url"`
	AppliedJobs []string `json:"appliedJobs" validate:"max=1000,dive,min=1"`
	SavedJobs   []string `json:"savedJobs" validate:"max=1000,dive,min=1"`
}

func (r *ProfileRequest) ToDomainUser(id string) *domain.User {
	return &domain.User{
		ID:          id,
		DisplayName: r.DisplayName,
		ResumeURL:   r.ResumeURL,
		AppliedJobs: r.AppliedJobs,
		SavedJobs:   r.SavedJobs,
	}
}

// ApplicationStatusRequest moves an application to another hiring stage.
type ApplicationStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=reviewed interview offered accepted rejected"`
}
