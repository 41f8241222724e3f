package feed

import (
	"sync"
	"time"
)

type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertSuccess AlertLevel = "success"
	AlertError   AlertLevel = "error"
)

// Alert is a short user-facing notice.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Message string     `json:"message"`
	JobID   string     `json:"jobId,omitempty"`
	At      time.Time  `json:"at"`
}

// AlertSink receives user-facing notices.
type AlertSink interface {
	Alert(a Alert)
}

// AlertFunc adapts a function to AlertSink.
type AlertFunc func(Alert)

func (f AlertFunc) Alert(a Alert) { f(a) }

// AlertQueue keeps the most recent alerts until they are drained.
type AlertQueue struct {
	mu     sync.Mutex
	max    int
	alerts []Alert
}

func NewAlertQueue(max int) *AlertQueue {
	if max <= 0 {
		max = 20
	}
	return &AlertQueue{max: max}
}

func (q *AlertQueue) Alert(a Alert) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.alerts = append(q.alerts, a)
	if over := len(q.alerts) - q.max; over > 0 {
		q.alerts = q.alerts[over:]
	}
}

// Drain returns and forgets the queued alerts, oldest first.
func (q *AlertQueue) Drain() []Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.alerts
	q.alerts = nil
	return out
}
