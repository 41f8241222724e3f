package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"swipework/internal/domain"
	"swipework/internal/usecase"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AccountHandler serves the caller's profile and notifications.
type AccountHandler struct {
	profiles *usecase.ProfileService
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewAccountHandler(profiles *usecase.ProfileService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		profiles: profiles,
		logger:   logger.With("component", "account-handler"),
		validate: validator.New(),
		tracer:   otel.Tracer("swipework-api"),
	}
}

func (h *AccountHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/profile", instrument(h.tracer, "/profile", h.handleProfile))
	mux.Handle("/notifications", instrument(h.tracer, "/notifications", h.handleNotifications))
	mux.Handle("/notifications/", instrument(h.tracer, "/notifications/{id}/read", h.handleMarkRead))
}

func (h *AccountHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		u, err := h.profiles.Get(r.Context(), uid)
		if err != nil {
			h.logger.Error("error getting profile", "user_id", uid, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, u)
	case http.MethodPut:
		ctx, span := h.tracer.Start(r.Context(), "handler.SaveProfile")
		defer span.End()

		var req ProfileRequest
		if !decodeAndValidate(w, r, h.validate, &req) {
			span.SetStatus(codes.Error, "Invalid request")
			return
		}
		u := req.ToDomainUser(uid)
		if err := h.profiles.Save(ctx, u); err != nil {
			span.SetStatus(codes.Error, "Failed to save profile in service")
			span.RecordError(err)
			h.logger.Error("error saving profile", "user_id", uid, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, u)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AccountHandler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.profiles.Notifications(r.Context(), uid, limit)
	if err != nil {
		h.logger.Error("error listing notifications", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if list == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleMarkRead serves POST /notifications/{id}/read and POST /notifications/read-all.
func (h *AccountHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/notifications/"), "/"), "/")
	all := len(parts) == 1 && parts[0] == "read-all"
	if !all && (len(parts) != 2 || parts[0] == "" || parts[1] != "read") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if all {
		n, err := h.profiles.MarkAllRead(r.Context(), uid)
		if err != nil {
			h.logger.Error("error marking notifications read", "user_id", uid, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"marked": n})
		return
	}

	err := h.profiles.MarkRead(r.Context(), uid, parts[0])
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("error marking notification read", "user_id", uid, "notification_id", parts[0], "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
