package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"swipework/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxEmployerPostings = 100

// EmployerPosting is one of an employer's listings with its applications.
type EmployerPosting struct {
	Listing      *domain.JobListing    `json:"listing"`
	Applications []*domain.Application `json:"applications"`
}

// EmployerService lets employers review the applications to their postings.
type EmployerService struct {
	store    domain.JobStore
	apps     domain.ApplicationRepository
	notifier domain.NotificationPublisher
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewEmployerService(store domain.JobStore, apps domain.ApplicationRepository, notifier domain.NotificationPublisher, logger *slog.Logger) *EmployerService {
	return &EmployerService{
		store:    store,
		apps:     apps,
		notifier: notifier,
		logger:   logger.With("component", "employer-service"),
		tracer:   otel.Tracer("swipework-usecase"),
		now:      time.Now,
	}
}

// Postings lists the employer's newest listings with their applicants.
func (s *EmployerService) Postings(ctx context.Context, employerID string) ([]EmployerPosting, error) {
	ctx, span := s.tracer.Start(ctx, "service.EmployerPostings")
	defer span.End()
	span.SetAttributes(attribute.String("employer.id", employerID))

	if employerID == "" {
		return nil, fmt.Errorf("employer id cannot be empty")
	}
	page, err := s.store.Query(ctx, domain.Query{
		Filters:    []domain.Filter{{Field: "createdBy", Op: domain.OpEqual, Value: employerID}},
		OrderBy:    "postedAt",
		Descending: true,
		Limit:      maxEmployerPostings,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query employer postings")
		return nil, fmt.Errorf("failed to list postings of %s: %w", employerID, err)
	}

	out := make([]EmployerPosting, 0, len(page.Listings))
	for _, l := range page.Listings {
		if l.CreatedBy != employerID {
			continue
		}
		apps, err := s.apps.ListByJob(ctx, l.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to list applications")
			return nil, fmt.Errorf("failed to list applications to %s: %w", l.ID, err)
		}
		if apps == nil {
			apps = []*domain.Application{}
		}
		out = append(out, EmployerPosting{Listing: l, Applications: apps})
	}
	span.SetAttributes(attribute.Int("postings", len(out)))
	return out, nil
}

// SetApplicationStatus moves an application to the employer's own job to
// status. The listing's status map is updated so the applicant's feed shows
// the new stage, and the applicant is notified. Both are best effort.
func (s *EmployerService) SetApplicationStatus(ctx context.Context, employerID, jobID, applicantID string, status domain.ApplicationStatus) (*domain.Application, error) {
	ctx, span := s.tracer.Start(ctx, "service.SetApplicationStatus", trace.WithAttributes(
		attribute.String("employer.id", employerID),
		attribute.String("job.id", jobID),
		attribute.String("application.status", string(status)),
	))
	defer span.End()

	if !status.Valid() {
		return nil, fmt.Errorf("invalid application status %q", status)
	}
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if job.CreatedBy != employerID {
		span.SetStatus(codes.Error, "job belongs to another employer")
		return nil, fmt.Errorf("job %s is not posted by %s: %w", jobID, employerID, domain.ErrPermissionDenied)
	}

	app, err := s.apps.UpdateStatus(ctx, applicantID, jobID, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update application")
		return nil, err
	}

	if err := s.store.Update(ctx, jobID, domain.Set("applicationStatuses."+applicantID, string(status))); err != nil {
		s.logger.Warn("failed to mirror application status on listing", "job_id", jobID, "user_id", applicantID, "error", err)
	}
	if s.notifier != nil {
		n := &domain.Notification{
			ID:        uuid.New().String(),
			UserID:    applicantID,
			Type:      domain.NotificationApplication,
			Title:     "Application Update",
			Message:   fmt.Sprintf("Your application to %s is now %s", job.Title, status),
			ActionURL: "/jobs/" + jobID,
			CreatedAt: s.now().UTC(),
		}
		if err := s.notifier.Publish(ctx, n); err != nil {
			s.logger.Warn("failed to notify applicant", "job_id", jobID, "user_id", applicantID, "error", err)
		}
	}
	s.logger.Info("application status updated", "job_id", jobID, "user_id", applicantID, "status", status)
	return app, nil
}
