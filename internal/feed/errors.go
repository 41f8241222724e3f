package feed

import "errors"

// LoadErrorMessage is shown when a page cannot be loaded.
const LoadErrorMessage = "Failed to load jobs. Please try again."

var (
	ErrApplyInFlight  = errors.New("another application is being submitted")
	ErrAlreadyApplied = errors.New("already applied to this job")
	ErrSaveInFlight   = errors.New("save already pending for this job")
	// ErrStaleCursor is returned by LoadMore when the stored cursor belongs to another query.
	ErrStaleCursor = errors.New("cursor belongs to a different query")
	ErrClosed      = errors.New("feed view closed")
	ErrInvalidKey  = errors.New("invalid feed control value")
)
