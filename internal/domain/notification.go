package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotificationNotFound is returned when the user has no notification with the id.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationJobMatch    NotificationType = "job_match"
	NotificationApplication NotificationType = "application"
	NotificationMessage     NotificationType = "message"
	NotificationReview      NotificationType = "review"
	NotificationPayment     NotificationType = "payment"
)

// Notification is a message addressed to one user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	ActionURL string           `json:"actionUrl,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NotificationPublisher delivers a notification to its recipient.
type NotificationPublisher interface {
	Publish(ctx context.Context, n *Notification) error
}

// NotificationRepository persists notifications for later listing.
type NotificationRepository interface {
	NotificationPublisher
	ListByUser(ctx context.Context, userID string, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// Publishers fans a notification out to several publishers.
type Publishers []NotificationPublisher

func (ps Publishers) Publish(ctx context.Context, n *Notification) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
