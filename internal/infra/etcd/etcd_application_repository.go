package etcd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"

	"swipework/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ApplicationsDir = "/swipework/applications/"
)

type etcdApplicationRepository struct {
	client *clientv3.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdApplicationRepository creates a new repository for application records backed by etcd.
func NewEtcdApplicationRepository(client *clientv3.Client, logger *slog.Logger) domain.ApplicationRepository {
	return &etcdApplicationRepository{
		client: client,
		logger: logger,
		tracer: otel.Tracer("swipework-etcd-application-repo"),
	}
}

// Save persists an application record.
// The key is structured as /swipework/applications/{userID}/{jobID}.
func (r *etcdApplicationRepository) Save(ctx context.Context, app *domain.Application) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.SaveApplication")
	defer span.End()

	if err := app.Validate(); err != nil {
		return err
	}
	if app.ID == "" {
		app.ID = domain.ApplicationID(app.UserID, app.JobID)
	}
	appJSON, err := json.Marshal(app)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal application")
		return fmt.Errorf("failed to marshal application %s to JSON: %w", app.ID, err)
	}

	key := path.Join(ApplicationsDir, app.UserID, app.JobID)
	span.SetAttributes(
		attribute.String("application.id", app.ID),
		attribute.String("job.id", app.JobID),
		attribute.String("etcd.key", key),
	)

	if _, err := r.client.Put(ctx, key, string(appJSON)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put application to etcd")
		return fmt.Errorf("failed to save application %s to etcd: %w", app.ID, err)
	}
	return nil
}

// ListByUser retrieves the user's applications, newest first.
func (r *etcdApplicationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Application, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListApplications")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	prefix := path.Join(ApplicationsDir, userID) + "/"
	resp, err := r.client.Get(ctx, prefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortDescend),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list applications from etcd")
		return nil, fmt.Errorf("failed to list applications for user %s from etcd: %w", userID, err)
	}

	apps := make([]*domain.Application, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var app domain.Application
		if err := json.Unmarshal(kv.Value, &app); err != nil {
			r.logger.Warn("failed to unmarshal application from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		apps = append(apps, &app)
	}
	span.SetAttributes(attribute.Int("records_returned", len(apps)))
	return apps, nil
}

// ListByJob scans all applications for the ones to jobID, newest first.
func (r *etcdApplicationRepository) ListByJob(ctx context.Context, jobID string) ([]*domain.Application, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListJobApplications")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	resp, err := r.client.Get(ctx, ApplicationsDir, clientv3.WithPrefix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list applications from etcd")
		return nil, fmt.Errorf("failed to list applications for job %s from etcd: %w", jobID, err)
	}

	var apps []*domain.Application
	for _, kv := range resp.Kvs {
		if path.Base(string(kv.Key)) != jobID {
			continue
		}
		var app domain.Application
		if err := json.Unmarshal(kv.Value, &app); err != nil {
			r.logger.Warn("failed to unmarshal application from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		apps = append(apps, &app)
	}
	slices.SortFunc(apps, func(a, b *domain.Application) int { return b.AppliedAt.Compare(a.AppliedAt) })
	span.SetAttributes(attribute.Int("records_returned", len(apps)))
	return apps, nil
}

// UpdateStatus rewrites the status of one application with a compare-and-swap.
func (r *etcdApplicationRepository) UpdateStatus(ctx context.Context, userID, jobID string, status domain.ApplicationStatus) (*domain.Application, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.UpdateApplicationStatus")
	defer span.End()
	key := path.Join(ApplicationsDir, userID, jobID)
	span.SetAttributes(
		attribute.String("etcd.key", key),
		attribute.String("application.status", string(status)),
	)

	if !status.Valid() {
		return nil, fmt.Errorf("invalid application status %q", status)
	}
	var app domain.Application
	_, err := compareAndSwap(ctx, r.client, key, func(raw []byte) ([]byte, error) {
		app = domain.Application{}
		if err := json.Unmarshal(raw, &app); err != nil {
			return nil, fmt.Errorf("failed to unmarshal application: %w", err)
		}
		app.Status = status
		return json.Marshal(app)
	})
	if errors.Is(err, errKeyMissing) {
		return nil, domain.ErrApplicationNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update application in etcd")
		return nil, fmt.Errorf("failed to update application %s: %w", domain.ApplicationID(userID, jobID), err)
	}
	return &app, nil
}
