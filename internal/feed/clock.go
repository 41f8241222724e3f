package feed

import "time"

// Clock abstracts time so expiry and retry scheduling can be driven in tests.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f after d. The returned func cancels it and reports
	// whether f was stopped before running.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type systemClock struct{}

// SystemClock is the wall clock.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
