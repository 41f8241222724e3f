package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"swipework/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultNotificationLimit = 50

// Reseeder pushes a reloaded profile into the user's open feed.
type Reseeder interface {
	Reseed(ctx context.Context, userID string) error
}

// ProfileService reads and writes user profiles and lists notifications.
type ProfileService struct {
	users         domain.UserRepository
	notifications domain.NotificationRepository
	feeds         Reseeder
	logger        *slog.Logger
	tracer        trace.Tracer
}

func NewProfileService(users domain.UserRepository, notifications domain.NotificationRepository, feeds Reseeder, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		users:         users,
		notifications: notifications,
		feeds:         feeds,
		logger:        logger.With("component", "profile-service"),
		tracer:        otel.Tracer("swipework-usecase"),
	}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get profile from repository")
	}
	return u, err
}

// Save stores the profile and re-seeds the user's open feed with it.
func (s *ProfileService) Save(ctx context.Context, u *domain.User) error {
	ctx, span := s.tracer.Start(ctx, "service.SaveProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", u.ID))

	if u.ID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if err := s.users.Save(ctx, u); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save profile to repository")
		return err
	}

	if s.feeds != nil {
		// the profile is stored; a failed reseed only leaves the open feed stale
		if err := s.feeds.Reseed(ctx, u.ID); err != nil {
			span.RecordError(err)
			s.logger.Warn("failed to reseed feed", "user_id", u.ID, "error", err)
		}
	}
	return nil
}

// Notifications lists the user's newest notifications.
func (s *ProfileService) Notifications(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListNotifications")
	defer span.End()
	if limit <= 0 || limit > defaultNotificationLimit {
		limit = defaultNotificationLimit
	}
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("limit", limit))

	if s.notifications == nil {
		return nil, nil
	}
	list, err := s.notifications.ListByUser(ctx, userID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list notifications from repository")
	}
	return list, err
}

// MarkRead flags one of the user's notifications as read.
func (s *ProfileService) MarkRead(ctx context.Context, userID, id string) error {
	ctx, span := s.tracer.Start(ctx, "service.MarkNotificationRead")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("notification.id", id))

	if s.notifications == nil {
		return domain.ErrNotificationNotFound
	}
	if err := s.notifications.MarkRead(ctx, userID, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to mark notification read")
		return err
	}
	return nil
}

// MarkAllRead flags every unread notification among the newest ones and
// returns how many were changed.
func (s *ProfileService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	list, err := s.Notifications(ctx, userID, defaultNotificationLimit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, note := range list {
		if note.Read {
			continue
		}
		if err := s.MarkRead(ctx, userID, note.ID); err != nil {
			return n, fmt.Errorf("failed to mark notification %s read: %w", note.ID, err)
		}
		n++
	}
	return n, nil
}
