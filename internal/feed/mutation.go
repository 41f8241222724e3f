package feed

import (
	"context"
	"fmt"
	"slices"

	"swipework/internal/domain"
	"swipework/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type MutationKind string

const (
	KindApply  MutationKind = "apply"
	KindSave   MutationKind = "save"
	KindUnsave MutationKind = "unsave"
)

type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeRejected   Outcome = "rejected"
)

// MutationResult reports how an optimistic mutation ended. Err is set for
// rolled back and rejected mutations.
type MutationResult struct {
	Kind    MutationKind `json:"kind"`
	JobID   string       `json:"jobId"`
	Outcome Outcome      `json:"outcome"`
	Err     error        `json:"-"`
}

func (l *List) result(kind MutationKind, jobID string, outcome Outcome, err error) MutationResult {
	metrics.MutationsTotal.WithLabelValues(string(kind), string(outcome)).Inc()
	return MutationResult{Kind: kind, JobID: jobID, Outcome: outcome, Err: err}
}

// Apply submits an application for the current user. Only one application
// may be pending per list; a second call while one is pending is rejected
// without touching any state. The job is marked applied before the store
// write and reverted if the write fails.
func (l *List) Apply(ctx context.Context, jobID string) MutationResult {
	l.mu.Lock()
	if l.applying != "" {
		l.mu.Unlock()
		return l.result(KindApply, jobID, OutcomeRejected, ErrApplyInFlight)
	}
	idx := l.indexLocked(jobID)
	if idx < 0 {
		l.mu.Unlock()
		return l.result(KindApply, jobID, OutcomeRejected, domain.ErrJobNotFound)
	}
	if l.items[idx].HasApplied {
		l.mu.Unlock()
		return l.result(KindApply, jobID, OutcomeRejected, ErrAlreadyApplied)
	}
	l.applying = jobID
	l.items[idx].HasApplied = true
	l.items[idx].ApplicantCount++
	l.items[idx].ApplicationStatus = string(domain.ApplicationStatusApplied)
	user, job, logger := l.user, l.items[idx].JobListing, l.logger
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.applying = ""
		l.mu.Unlock()
	}()

	ctx, span := l.tracer.Start(ctx, "feed.Apply", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.String("user.id", user.ID),
	))
	defer span.End()

	err := l.store.Update(ctx, jobID,
		domain.ArrayUnion(fieldApplicants, user.ID),
		domain.Increment(fieldApplicantCount, 1),
		domain.Set(fieldStatuses+"."+user.ID, string(domain.ApplicationStatusApplied)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit application")
		l.mu.Lock()
		if i := l.indexLocked(jobID); i >= 0 && l.items[i].HasApplied {
			l.items[i].HasApplied = false
			l.items[i].ApplicantCount = max(l.items[i].ApplicantCount-1, 0)
		}
		l.mu.Unlock()
		logger.Error("failed to submit application", "job_id", jobID, "error", err)
		l.alert(AlertError, jobID, "Failed to submit application. Please try again.")
		return l.result(KindApply, jobID, OutcomeRolledBack, fmt.Errorf("failed to apply to job %s: %w", jobID, err))
	}

	l.recordApplication(ctx, user, &job)
	logger.Info("application submitted", "job_id", jobID)
	l.alert(AlertSuccess, jobID, "Application submitted successfully!")
	return l.result(KindApply, jobID, OutcomeCommitted, nil)
}

// recordApplication writes the application record and tells the poster.
// Both are best effort: the application itself is already committed.
func (l *List) recordApplication(ctx context.Context, user domain.User, job *domain.JobListing) {
	now := l.opts.Clock.Now()
	if l.opts.Applications != nil {
		app := &domain.Application{
			ID:        domain.ApplicationID(user.ID, job.ID),
			UserID:    user.ID,
			JobID:     job.ID,
			Status:    domain.ApplicationStatusApplied,
			ResumeURL: user.ResumeURL,
			AppliedAt: now,
		}
		if err := l.opts.Applications.Save(ctx, app); err != nil {
			l.opts.Logger.Warn("failed to record application", "job_id", job.ID, "user_id", user.ID, "error", err)
		}
	}
	if l.opts.Notifier != nil && job.CreatedBy != "" && job.CreatedBy != user.ID {
		n := &domain.Notification{
			ID:        uuid.New().String(),
			UserID:    job.CreatedBy,
			Type:      domain.NotificationApplication,
			Title:     "New Application",
			Message:   fmt.Sprintf("A candidate applied to %s", job.Title),
			ActionURL: "/jobs/" + job.ID,
			CreatedAt: now,
		}
		if err := l.opts.Notifier.Publish(ctx, n); err != nil {
			l.opts.Logger.Warn("failed to notify job poster", "job_id", job.ID, "error", err)
		}
	}
}

// ToggleSave saves the job if it is not saved and unsaves it otherwise,
// reading the flag at call time. The flag flips immediately and is
// restored if the store write fails.
func (l *List) ToggleSave(ctx context.Context, jobID string) MutationResult {
	l.mu.Lock()
	idx := l.indexLocked(jobID)
	if idx < 0 {
		l.mu.Unlock()
		return l.result(KindSave, jobID, OutcomeRejected, domain.ErrJobNotFound)
	}
	was := l.items[idx].Saved
	kind := KindSave
	if was {
		kind = KindUnsave
	}
	if l.saving[jobID] {
		l.mu.Unlock()
		return l.result(kind, jobID, OutcomeRejected, ErrSaveInFlight)
	}
	l.saving[jobID] = true
	flipSaved(&l.items[idx], !was)
	user, logger := l.user, l.logger
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.saving, jobID)
		l.mu.Unlock()
	}()

	ctx, span := l.tracer.Start(ctx, "feed.ToggleSave", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.String("mutation.kind", string(kind)),
	))
	defer span.End()

	op := domain.ArrayUnion(fieldSavedBy, user.ID)
	if was {
		op = domain.ArrayRemove(fieldSavedBy, user.ID)
	}
	if err := l.store.Update(ctx, jobID, op); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update saved state")
		l.mu.Lock()
		if i := l.indexLocked(jobID); i >= 0 && l.items[i].Saved != was {
			flipSaved(&l.items[i], was)
		}
		l.mu.Unlock()
		logger.Error("failed to update saved state", "job_id", jobID, "kind", kind, "error", err)
		l.alert(AlertError, jobID, "Failed to save job. Please try again.")
		return l.result(kind, jobID, OutcomeRolledBack, fmt.Errorf("failed to %s job %s: %w", kind, jobID, err))
	}

	if was {
		if err := l.forgetSavedJob(ctx, jobID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to update profile")
			l.mu.Lock()
			if i := l.indexLocked(jobID); i >= 0 {
				l.items[i].Saved = true
			}
			l.mu.Unlock()
			logger.Error("failed to remove job from profile", "job_id", jobID, "error", err)
			l.alert(AlertError, jobID, "Failed to save job. Please try again.")
			return l.result(kind, jobID, OutcomeRolledBack, fmt.Errorf("failed to %s job %s: %w", kind, jobID, err))
		}
		l.alert(AlertInfo, jobID, "Job removed from saved")
	} else {
		l.alert(AlertSuccess, jobID, "Job saved successfully!")
	}
	return l.result(kind, jobID, OutcomeCommitted, nil)
}

// forgetSavedJob drops jobID from the profile's saved list, which marks a
// job saved on its own, and persists the profile.
func (l *List) forgetSavedJob(ctx context.Context, jobID string) error {
	l.mu.Lock()
	if !slices.Contains(l.user.SavedJobs, jobID) {
		l.mu.Unlock()
		return nil
	}
	l.user.SavedJobs = slices.DeleteFunc(slices.Clone(l.user.SavedJobs), func(id string) bool { return id == jobID })
	user := l.user
	l.mu.Unlock()

	if l.opts.Users == nil {
		return nil
	}
	if err := l.opts.Users.Save(ctx, &user); err != nil {
		l.mu.Lock()
		if l.user.ID == user.ID && !slices.Contains(l.user.SavedJobs, jobID) {
			l.user.SavedJobs = append(slices.Clone(l.user.SavedJobs), jobID)
		}
		l.mu.Unlock()
		return fmt.Errorf("failed to save profile of %s: %w", user.ID, err)
	}
	return nil
}

func flipSaved(v *domain.ViewJob, saved bool) {
	v.Saved = saved
	if saved {
		v.SaveCount++
	} else {
		v.SaveCount = max(v.SaveCount-1, 0)
	}
}

func (l *List) alert(level AlertLevel, jobID, msg string) {
	l.opts.Alerts.Alert(Alert{Level: level, Message: msg, JobID: jobID, At: l.opts.Clock.Now()})
}
