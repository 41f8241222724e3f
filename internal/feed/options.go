package feed

import (
	"log/slog"
	"time"

	"swipework/internal/domain"
)

const (
	DefaultPageSize       = 12
	DefaultRetryBackoff   = 3 * time.Second
	DefaultRealtimeWindow = 50
)

// Options configures a feed. Zero values take the defaults.
type Options struct {
	PageSize       int
	CacheTTL       time.Duration
	RetryBackoff   time.Duration
	RealtimeWindow int

	Clock  Clock
	Logger *slog.Logger
	Alerts AlertSink

	// Applications and Notifier receive the side records of a committed
	// application. Either may be nil.
	Applications domain.ApplicationRepository
	Notifier     domain.NotificationPublisher

	// Users persists the profile when an unsave drops a job from its
	// saved list. Without it the change stays with the list.
	Users domain.UserRepository
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.RealtimeWindow <= 0 {
		o.RealtimeWindow = DefaultRealtimeWindow
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Alerts == nil {
		o.Alerts = AlertFunc(func(Alert) {})
	}
	return o
}
