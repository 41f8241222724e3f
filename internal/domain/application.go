package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrApplicationNotFound is returned when no application links the user and the job.
var ErrApplicationNotFound = errors.New("application not found")

// ApplicationStatus is the hiring stage of an application.
type ApplicationStatus string

const (
	ApplicationStatusApplied   ApplicationStatus = "applied"
	ApplicationStatusReviewed  ApplicationStatus = "reviewed"
	ApplicationStatusInterview ApplicationStatus = "interview"
	ApplicationStatusOffered   ApplicationStatus = "offered"
	ApplicationStatusAccepted  ApplicationStatus = "accepted"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
)

// Valid reports whether s is a known hiring stage.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusApplied, ApplicationStatusReviewed, ApplicationStatusInterview,
		ApplicationStatusOffered, ApplicationStatusAccepted, ApplicationStatusRejected:
		return true
	}
	return false
}

// Application records that a user applied to a job.
type Application struct {
	ID          string            `json:"id"` // {userId}_{jobId}
	UserID      string            `json:"userId"`
	JobID       string            `json:"jobId"`
	Status      ApplicationStatus `json:"status"`
	ResumeURL   string            `json:"resumeUrl,omitempty"`
	CoverLetter string            `json:"coverLetter,omitempty"`
	AppliedAt   time.Time         `json:"appliedAt"`
}

// ApplicationID returns the identifier of the application of user to job.
func ApplicationID(userID, jobID string) string {
	return userID + "_" + jobID
}

// Validate checks if the application record is valid.
func (a *Application) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("application user ID cannot be empty")
	}
	if a.JobID == "" {
		return fmt.Errorf("application job ID cannot be empty")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("invalid application status %q", a.Status)
	}
	return nil
}

// ApplicationRepository persists application records.
type ApplicationRepository interface {
	Save(ctx context.Context, app *Application) error
	// ListByUser returns the user's applications, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Application, error)
	// ListByJob returns the applications to a job, newest first.
	ListByJob(ctx context.Context, jobID string) ([]*Application, error)
	// UpdateStatus moves the application of userID to jobID to status.
	UpdateStatus(ctx context.Context, userID, jobID string, status ApplicationStatus) (*Application, error)
}
