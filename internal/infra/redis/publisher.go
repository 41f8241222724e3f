package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"swipework/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

// NotificationChannel is the pub/sub channel notifications are fanned out on.
const NotificationChannel = "swipework:notifications"

// NewClient creates and verifies a Redis client connection.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// Publisher pushes notifications to subscribers of NotificationChannel,
// e.g. a gateway forwarding them over SSE.
type Publisher struct {
	rdb     goredis.UniversalClient
	channel string
	logger  *slog.Logger
}

func NewPublisher(rdb goredis.UniversalClient, logger *slog.Logger) *Publisher {
	return &Publisher{
		rdb:     rdb,
		channel: NotificationChannel,
		logger:  logger.With("component", "redis-publisher"),
	}
}

func (p *Publisher) Publish(ctx context.Context, n *domain.Notification) error {
	event, err := json.Marshal(map[string]any{
		"type":         "NOTIFICATION",
		"userId":       n.UserID,
		"notification": n,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, event).Err(); err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	p.logger.Debug("notification published", "user_id", n.UserID, "type", n.Type)
	return nil
}
