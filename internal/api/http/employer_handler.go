package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"swipework/internal/domain"
	"swipework/internal/usecase"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EmployerHandler serves an employer's postings and their applications.
type EmployerHandler struct {
	employers *usecase.EmployerService
	logger    *slog.Logger
	validate  *validator.Validate
	tracer    trace.Tracer
}

func NewEmployerHandler(employers *usecase.EmployerService, logger *slog.Logger) *EmployerHandler {
	return &EmployerHandler{
		employers: employers,
		logger:    logger.With("component", "employer-handler"),
		validate:  validator.New(),
		tracer:    otel.Tracer("swipework-api"),
	}
}

func (h *EmployerHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/employer/jobs", instrument(h.tracer, "/employer/jobs", h.handlePostings))
	mux.Handle("/employer/jobs/", instrument(h.tracer, "/employer/jobs/{id}/applications/{userId}", h.handleApplication))
}

func (h *EmployerHandler) handlePostings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	postings, err := h.employers.Postings(r.Context(), uid)
	if err != nil {
		h.logger.Error("error listing employer postings", "employer_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, postings)
}

// handleApplication serves PUT /employer/jobs/{id}/applications/{userId}.
func (h *EmployerHandler) handleApplication(w http.ResponseWriter, r *http.Request) {
	// e.g. /employer/jobs/job-1/applications/u1 -> ["employer", "jobs", "job-1", "applications", "u1"]
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 5 || parts[3] != "applications" || parts[2] == "" || parts[4] == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	jobID, applicantID := parts[2], parts[4]

	ctx, span := h.tracer.Start(r.Context(), "handler.SetApplicationStatus", trace.WithAttributes(
		attribute.String("job.id", jobID),
	))
	defer span.End()

	var req ApplicationStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		span.SetStatus(codes.Error, "Invalid request")
		return
	}
	app, err := h.employers.SetApplicationStatus(ctx, uid, jobID, applicantID, domain.ApplicationStatus(req.Status))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, app)
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "Job is posted by another employer")
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrApplicationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update application in service")
		h.logger.Error("error updating application status", "job_id", jobID, "user_id", applicantID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
