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

// PostingService handles the employer side of listings.
type PostingService struct {
	store  domain.JobStore
	logger *slog.Logger
	tracer trace.Tracer
}

func NewPostingService(store domain.JobStore, logger *slog.Logger) *PostingService {
	return &PostingService{
		store:  store,
		logger: logger.With("component", "posting-service"),
		tracer: otel.Tracer("swipework-usecase"),
	}
}

// Post validates and stores a new listing on behalf of employerID. Open
// feeds pick it up through their live subscription.
func (s *PostingService) Post(ctx context.Context, employerID string, listing *domain.JobListing) error {
	ctx, span := s.tracer.Start(ctx, "service.Post")
	defer span.End()
	span.SetAttributes(attribute.String("employer.id", employerID))

	if employerID == "" {
		return fmt.Errorf("employer id cannot be empty")
	}
	if err := listing.Validate(); err != nil {
		return err
	}

	listing.CreatedBy = employerID
	listing.Applicants = nil
	listing.SavedBy = nil
	listing.ApplicantCount = 0
	listing.ApplicationStatuses = nil

	if err := s.store.Create(ctx, listing); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create listing in store")
		return err
	}
	span.SetAttributes(attribute.String("job.id", listing.ID))
	s.logger.Info("listing posted", "job_id", listing.ID, "employer_id", employerID)
	return nil
}

// Get loads one listing from the store.
func (s *PostingService) Get(ctx context.Context, id string) (*domain.JobListing, error) {
	ctx, span := s.tracer.Start(ctx, "service.Get")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", id))

	listing, err := s.store.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get listing from store")
	}
	return listing, err
}
