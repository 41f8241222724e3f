package domain

import (
	"errors"
	"strings"
)

var (
	// ErrJobNotFound is a sentinel error returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrConflict is returned when an atomic update lost too many races.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrPermissionDenied is returned when the store refuses the caller.
	ErrPermissionDenied = errors.New("permission denied")
)

// IsPermission reports whether err means the caller may not perform the
// operation. Retrying such an error cannot succeed.
func IsPermission(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden")
}
