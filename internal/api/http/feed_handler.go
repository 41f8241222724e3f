package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"swipework/internal/domain"
	"swipework/internal/feed"
	"swipework/internal/session"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Sessions hands out the caller's hosted feed.
type Sessions interface {
	Acquire(ctx context.Context, userID string) (*session.Session, error)
}

// FeedResponse is the rendered feed plus the alerts raised since the last response.
type FeedResponse struct {
	feed.ViewState
	Alerts []feed.Alert `json:"alerts,omitempty"`
}

// FeedHandler serves the caller's feed and its controls.
type FeedHandler struct {
	sessions Sessions
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewFeedHandler(sessions Sessions, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		sessions: sessions,
		logger:   logger.With("component", "feed-handler"),
		validate: validator.New(),
		tracer:   otel.Tracer("swipework-api"),
	}
}

// RegisterRoutes registers feed routes to the http.ServeMux.
func (h *FeedHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/feed", instrument(h.tracer, "/feed", h.handleFeed))
	mux.Handle("/feed/", instrument(h.tracer, "/feed/{action}", h.handleFeedAction))
}

// acquire resolves the caller's session or writes the error response.
func acquire(w http.ResponseWriter, r *http.Request, sessions Sessions, logger *slog.Logger) (*session.Session, bool) {
	uid, ok := userID(w, r)
	if !ok {
		return nil, false
	}
	s, err := sessions.Acquire(r.Context(), uid)
	if err != nil {
		logger.Error("error opening feed session", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	return s, true
}

func (h *FeedHandler) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	h.writeFeed(w, s, nil)
}

// handleFeedAction is a general dispatcher for /feed/ path
func (h *FeedHandler) handleFeedAction(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/feed/"), "/")

	if action == "stats" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleStats(w, r)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var control func(ctx context.Context, v *feed.View) error
	switch action {
	case "search":
		var req SearchRequest
		if !decodeAndValidate(w, r, h.validate, &req) {
			return
		}
		control = func(ctx context.Context, v *feed.View) error { return v.SetSearchQuery(ctx, req.Query) }
	case "filters":
		var req FiltersRequest
		if !decodeAndValidate(w, r, h.validate, &req) {
			return
		}
		control = func(ctx context.Context, v *feed.View) error { return v.SetFilters(ctx, req.ToDomainFilters()) }
	case "tab":
		var req TabRequest
		if !decodeAndValidate(w, r, h.validate, &req) {
			return
		}
		control = func(ctx context.Context, v *feed.View) error { return v.SetActiveTab(ctx, domain.Tab(req.Tab)) }
	case "sort":
		var req SortRequest
		if !decodeAndValidate(w, r, h.validate, &req) {
			return
		}
		control = func(ctx context.Context, v *feed.View) error {
			return v.SetSortOrder(ctx, domain.SortOrder(req.Sort))
		}
	case "realtime":
		var req RealtimeRequest
		if !decodeAndValidate(w, r, h.validate, &req) {
			return
		}
		control = func(ctx context.Context, v *feed.View) error { return v.ToggleRealtime(*req.Enabled) }
	case "more":
		control = func(ctx context.Context, v *feed.View) error { return v.LoadMore(ctx) }
	case "refresh":
		control = func(ctx context.Context, v *feed.View) error { return v.Refresh(ctx) }
	default:
		http.NotFound(w, r)
		return
	}

	s, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	ctx, span := h.tracer.Start(r.Context(), "handler.FeedControl", trace.WithAttributes(
		attribute.String("feed.action", action),
	))
	defer span.End()

	err := control(ctx, s.View)
	if err != nil {
		span.RecordError(err)
		h.logger.Warn("feed control failed", "action", action, "error", err)
	}
	h.writeFeed(w, s, err)
}

// writeFeed renders the feed. Load failures still render the state so the
// client shows the error message and the emptied list.
func (h *FeedHandler) writeFeed(w http.ResponseWriter, s *session.Session, err error) {
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, feed.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, feed.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, feed.ErrStaleCursor):
		status = http.StatusConflict
	default:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, FeedResponse{ViewState: s.View.State(), Alerts: s.Alerts.Drain()})
}

func (h *FeedHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	s, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	ctx, span := h.tracer.Start(r.Context(), "handler.FeedStats")
	defer span.End()

	stats, err := s.View.Stats(ctx)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("error computing feed stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
