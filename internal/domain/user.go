package domain

import "context"

// User is the identity and profile of the person browsing the feed.
type User struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName,omitempty"`
	ResumeURL   string   `json:"resumeUrl,omitempty"`
	AppliedJobs []string `json:"appliedJobs,omitempty"`
	SavedJobs   []string `json:"savedJobs,omitempty"`
}

// UserRepository stores user profiles. Get returns a bare profile for unknown users.
type UserRepository interface {
	Get(ctx context.Context, id string) (*User, error)
	Save(ctx context.Context, u *User) error
}
