package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"swipework/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const UsersDir = "/swipework/users/"

type etcdUserRepository struct {
	client *clientv3.Client
	logger *slog.Logger
	tracer trace.Tracer
}

func NewEtcdUserRepository(client *clientv3.Client, logger *slog.Logger) domain.UserRepository {
	return &etcdUserRepository{
		client: client,
		logger: logger,
		tracer: otel.Tracer("swipework-etcd-user-repo"),
	}
}

// Get returns the stored profile, or a bare profile if none exists.
func (r *etcdUserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.GetUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	resp, err := r.client.Get(ctx, path.Join(UsersDir, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get user from etcd")
		return nil, fmt.Errorf("failed to get user %s from etcd: %w", id, err)
	}
	if len(resp.Kvs) == 0 {
		return &domain.User{ID: id}, nil
	}

	var u domain.User
	if err := json.Unmarshal(resp.Kvs[0].Value, &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user %s from JSON: %w", id, err)
	}
	u.ID = id
	return &u, nil
}

func (r *etcdUserRepository) Save(ctx context.Context, u *domain.User) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.SaveUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", u.ID))

	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user to JSON: %w", err)
	}
	if _, err := r.client.Put(ctx, path.Join(UsersDir, u.ID), string(b)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put user to etcd")
		return fmt.Errorf("failed to save user %s to etcd: %w", u.ID, err)
	}
	return nil
}
