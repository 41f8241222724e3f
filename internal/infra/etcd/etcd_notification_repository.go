package etcd

import (
	"context"
	"encoding/json"
	"errors"
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

const NotificationsDir = "/swipework/notifications/"

type etcdNotificationRepository struct {
	client *clientv3.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdNotificationRepository stores notifications under
// /swipework/notifications/{userID}/{id}.
func NewEtcdNotificationRepository(client *clientv3.Client, logger *slog.Logger) domain.NotificationRepository {
	return &etcdNotificationRepository{
		client: client,
		logger: logger,
		tracer: otel.Tracer("swipework-etcd-notification-repo"),
	}
}

func (r *etcdNotificationRepository) Publish(ctx context.Context, n *domain.Notification) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.SaveNotification")
	defer span.End()

	if n.UserID == "" {
		return fmt.Errorf("notification recipient cannot be empty")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	span.SetAttributes(attribute.String("notification.id", n.ID), attribute.String("notification.type", string(n.Type)))

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification to JSON: %w", err)
	}
	if _, err := r.client.Put(ctx, path.Join(NotificationsDir, n.UserID, n.ID), string(b)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put notification to etcd")
		return fmt.Errorf("failed to save notification %s to etcd: %w", n.ID, err)
	}
	return nil
}

// ListByUser returns the newest notifications of a user.
func (r *etcdNotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListNotifications")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("limit", limit))

	opts := []clientv3.OpOption{
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortDescend),
	}
	if limit > 0 {
		opts = append(opts, clientv3.WithLimit(int64(limit)))
	}
	resp, err := r.client.Get(ctx, path.Join(NotificationsDir, userID)+"/", opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list notifications from etcd")
		return nil, fmt.Errorf("failed to list notifications for user %s from etcd: %w", userID, err)
	}

	out := make([]*domain.Notification, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var n domain.Notification
		if err := json.Unmarshal(kv.Value, &n); err != nil {
			r.logger.Warn("failed to unmarshal notification from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		out = append(out, &n)
	}
	return out, nil
}

// MarkRead flags one notification of the user as read.
func (r *etcdNotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.MarkNotificationRead")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("notification.id", id))

	if userID == "" || id == "" {
		return domain.ErrNotificationNotFound
	}
	_, err := compareAndSwap(ctx, r.client, path.Join(NotificationsDir, userID, id), func(raw []byte) ([]byte, error) {
		var n domain.Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		n.Read = true
		return json.Marshal(n)
	})
	if errors.Is(err, errKeyMissing) {
		return domain.ErrNotificationNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update notification in etcd")
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	return nil
}
