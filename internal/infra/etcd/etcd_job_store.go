package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"swipework/internal/domain"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	JobsDir = "/swipework/jobs/"

	maxUpdateAttempts = 5
)

type etcdJobStore struct {
	client *clientv3.Client
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewEtcdJobStore creates a job store backed by etcd. Each listing is a
// JSON document under JobsDir.
func NewEtcdJobStore(client *clientv3.Client, logger *slog.Logger) domain.JobStore {
	return &etcdJobStore{
		client: client,
		logger: logger.With("component", "etcd-job-store"),
		tracer: otel.Tracer("swipework-etcd-store"),
		now:    time.Now,
	}
}

func jobKey(id string) string {
	return path.Join(JobsDir, id)
}

// Query reads the collection and filters, orders and pages it locally.
func (s *etcdJobStore) Query(ctx context.Context, q domain.Query) (domain.Page, error) {
	ctx, span := s.tracer.Start(ctx, "repo.etcd.QueryJobs", trace.WithAttributes(
		attribute.String("query.order_by", q.OrderBy),
		attribute.Int("query.filters", len(q.Filters)),
		attribute.Int("query.limit", q.Limit),
		attribute.Bool("query.continuation", q.StartAfter != nil),
	))
	defer span.End()

	docs, _, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list jobs from etcd")
		return domain.Page{}, err
	}
	page := selectPage(docs, q)
	span.SetAttributes(attribute.Int("etcd.kv_count", len(docs)), attribute.Int("query.results", len(page.Listings)))
	return page, nil
}

// load decodes every job document and returns the read revision.
func (s *etcdJobStore) load(ctx context.Context) ([]*document, int64, error) {
	resp, err := s.client.Get(ctx, JobsDir, clientv3.WithPrefix())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs from etcd: %w", err)
	}
	docs := make([]*document, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		d, err := decodeDocument(string(kv.Key), kv.Value, kv.ModRevision)
		if err != nil {
			s.logger.Warn("failed to decode job from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		docs = append(docs, d)
	}
	return docs, resp.Header.Revision, nil
}

func (s *etcdJobStore) Get(ctx context.Context, id string) (*domain.JobListing, error) {
	ctx, span := s.tracer.Start(ctx, "repo.etcd.GetJob")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", id))

	resp, err := s.client.Get(ctx, jobKey(id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get job from etcd")
		return nil, fmt.Errorf("failed to get job %s from etcd: %w", id, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, domain.ErrJobNotFound
	}

	var listing domain.JobListing
	if err := json.Unmarshal(resp.Kvs[0].Value, &listing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s from JSON: %w", id, err)
	}
	return &listing, nil
}

// Create stores a new listing, assigning an id and posting time when unset.
func (s *etcdJobStore) Create(ctx context.Context, listing *domain.JobListing) error {
	ctx, span := s.tracer.Start(ctx, "repo.etcd.CreateJob")
	defer span.End()

	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	if listing.PostedAt.IsZero() {
		listing.PostedAt = s.now().UTC()
	}
	key := jobKey(listing.ID)
	span.SetAttributes(attribute.String("job.id", listing.ID), attribute.String("etcd.key", key))

	b, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal job to JSON: %w", err)
	}

	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(b))).
		Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put job to etcd")
		return fmt.Errorf("failed to save job %s to etcd: %w", listing.ID, err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("job %s already exists", listing.ID)
	}
	return nil
}

// Update applies ops with a compare-and-swap on the document's revision,
// retrying when another writer got in first.
func (s *etcdJobStore) Update(ctx context.Context, id string, ops ...domain.UpdateOp) error {
	ctx, span := s.tracer.Start(ctx, "repo.etcd.UpdateJob")
	defer span.End()
	key := jobKey(id)
	span.SetAttributes(attribute.String("job.id", id), attribute.Int("update.ops", len(ops)))

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		resp, err := s.client.Get(ctx, key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read job for update")
			return fmt.Errorf("failed to read job %s: %w", id, err)
		}
		if len(resp.Kvs) == 0 {
			return domain.ErrJobNotFound
		}
		kv := resp.Kvs[0]

		var data map[string]any
		if err := json.Unmarshal(kv.Value, &data); err != nil {
			return fmt.Errorf("failed to unmarshal job %s from JSON: %w", id, err)
		}
		if err := applyOps(data, ops); err != nil {
			return fmt.Errorf("failed to update job %s: %w", id, err)
		}
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal job %s: %w", id, err)
		}
		var check domain.JobListing
		if err := json.Unmarshal(b, &check); err != nil {
			return fmt.Errorf("update would corrupt job %s: %w", id, err)
		}

		txn, err := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", kv.ModRevision)).
			Then(clientv3.OpPut(key, string(b))).
			Commit()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to commit job update")
			return fmt.Errorf("failed to update job %s in etcd: %w", id, err)
		}
		if txn.Succeeded {
			span.SetAttributes(attribute.Int("update.attempts", attempt))
			return nil
		}
		s.logger.Debug("job update lost a race, retrying", "job_id", id, "attempt", attempt)
	}
	span.SetStatus(codes.Error, "too many update conflicts")
	return fmt.Errorf("failed to update job %s: %w", id, domain.ErrConflict)
}
