// Package webhook delivers signed run-lifecycle events over HTTP.
package webhook

import (
	"time"

	"github.com/google/uuid"
)

// Event is the JSON envelope POSTed to a callback URL.
type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	RunID   string         `json:"runId"`
	Subject string         `json:"subject,omitempty"` // job ID for per-job events
	Time    time.Time      `json:"time"`
	Data    map[string]any `json:"data,omitempty"`
}

// New creates an event with a generated ID and the current UTC timestamp.
func New(eventType, runID, subject string, data map[string]any) *Event {
	return &Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		RunID:   runID,
		Subject: subject,
		Time:    time.Now().UTC(),
		Data:    data,
	}
}
