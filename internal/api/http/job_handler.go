package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"swipework/internal/domain"
	"swipework/internal/feed"
	"swipework/internal/usecase"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MutationResponse reports an apply or save together with the job as the
// feed now shows it.
type MutationResponse struct {
	feed.MutationResult
	Error  string          `json:"error,omitempty"`
	Job    *domain.ViewJob `json:"job,omitempty"`
	Alerts []feed.Alert    `json:"alerts,omitempty"`
}

// JobHandler serves job details, applications, saves and employer posts.
type JobHandler struct {
	sessions Sessions
	postings *usecase.PostingService
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewJobHandler(sessions Sessions, postings *usecase.PostingService, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		sessions: sessions,
		postings: postings,
		logger:   logger.With("component", "job-handler"),
		validate: validator.New(),
		tracer:   otel.Tracer("swipework-api"),
	}
}

// RegisterRoutes registers job-related routes to the http.ServeMux.
func (h *JobHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/jobs", instrument(h.tracer, "/jobs", h.handlePostJob))
	mux.Handle("/jobs/", instrument(h.tracer, "/jobs/{id}", h.handleJobs))
}

// handleJobs is a general dispatcher for /jobs/ path
func (h *JobHandler) handleJobs(w http.ResponseWriter, r *http.Request) {
	// e.g. /jobs/job-1/apply -> ["jobs", "job-1", "apply"]
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	var jobID, action string
	if len(pathParts) > 1 {
		jobID = pathParts[1]
	}
	if len(pathParts) > 2 {
		action = pathParts[2]
	}
	if jobID == "" {
		h.handlePostJob(w, r)
		return
	}

	switch {
	case r.Method == http.MethodGet && action == "":
		h.handleGetJob(w, r, jobID)
	case r.Method == http.MethodPost && (action == "apply" || action == "save"):
		h.handleMutation(w, r, jobID, action)
	case action == "" || action == "apply" || action == "save":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

// handleGetJob returns the job as the caller's feed shows it, falling back
// to the store for jobs not loaded in the feed.
func (h *JobHandler) handleGetJob(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	if job, found := s.View.Details(id); found {
		writeJSON(w, http.StatusOK, job)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "handler.GetJob")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", id))

	listing, err := h.postings.Get(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to get job from service")
		span.RecordError(err)
		h.logger.Warn("error getting job", "job_id", id, "error", err)
		if errors.Is(err, domain.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, domain.NewViewJob(listing, s.View.User()))
}

func (h *JobHandler) handleMutation(w http.ResponseWriter, r *http.Request, id, action string) {
	s, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}

	var res feed.MutationResult
	if action == "apply" {
		res = s.View.Apply(r.Context(), id)
	} else {
		res = s.View.ToggleSave(r.Context(), id)
	}

	resp := MutationResponse{MutationResult: res, Alerts: s.Alerts.Drain()}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	if job, found := s.View.Details(id); found {
		resp.Job = &job
	}
	writeJSON(w, mutationStatus(res), resp)
}

func mutationStatus(res feed.MutationResult) int {
	switch res.Outcome {
	case feed.OutcomeCommitted:
		return http.StatusOK
	case feed.OutcomeRolledBack:
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(res.Err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(res.Err, feed.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusConflict
	}
}

// handlePostJob now uses DTO and validation
func (h *JobHandler) handlePostJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "handler.PostJob")
	defer span.End()

	var req PostJobRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		span.SetStatus(codes.Error, "Invalid request")
		return
	}

	listing := req.ToDomainListing()
	if err := h.postings.Post(ctx, uid, listing); err != nil {
		span.SetStatus(codes.Error, "Failed to post job in service")
		span.RecordError(err)
		h.logger.Error("error posting job", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}
