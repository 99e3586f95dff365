package eventbus

import (
	"time"
)

// DefaultSubject is the subject completion events are published on.
const DefaultSubject = "countryseed.seeded"

// SeededEvent describes a finished seed run.
type SeededEvent struct {
	RunID         string    `json:"run_id"`
	Backend       string    `json:"backend"`
	Collection    string    `json:"collection"`
	Total         int       `json:"total"`
	MiddleEastern int       `json:"middle_eastern"`
	Other         int       `json:"other"`
	States        int       `json:"states"`
	TraceID       string    `json:"trace_id,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// WithTraceID adds a trace ID to the event
func (e *SeededEvent) WithTraceID(traceID string) *SeededEvent {
	e.TraceID = traceID
	return e
}
