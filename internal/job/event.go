package job

import (
	"slices"

	"simdispatch/pkg/webhook"
)

// Event types for run lifecycle callbacks
const (
	EventTypeRunStart    = "simdispatch.run.start"
	EventTypeJobStart    = "simdispatch.job.start"
	EventTypeJobExit     = "simdispatch.job.exit"
	EventTypeRunComplete = "simdispatch.run.complete"
)

// Callback configures webhook delivery of run and job events. Events lists
// the types to deliver; empty means all.
type Callback struct {
	URL    string   `yaml:"url"`
	Key    string   `yaml:"key"`
	Events []string `yaml:"events"`
}

// FilteredEvents returns true if the event type should be sent based on the
// filter. An empty filter allows all events.
func FilteredEvents(eventType string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	return slices.Contains(filter, eventType)
}

// EventBuilder builds webhook events for one run.
type EventBuilder struct {
	runID string
}

// NewEventBuilder creates an EventBuilder scoped to a run.
func NewEventBuilder(runID string) *EventBuilder {
	return &EventBuilder{runID: runID}
}

// BuildRunStart creates a run start event.
func (b *EventBuilder) BuildRunStart(jobCount, workerCount int) *webhook.Event {
	return webhook.New(EventTypeRunStart, b.runID, "", map[string]any{
		"jobs":    jobCount,
		"workers": workerCount,
	})
}

// BuildJobStart creates a job dispatch event.
func (b *EventBuilder) BuildJobStart(jobID, workerID string) *webhook.Event {
	return webhook.New(EventTypeJobStart, b.runID, jobID, map[string]any{
		"workerId": workerID,
	})
}

// BuildJobExit creates a job completion event from an outcome.
func (b *EventBuilder) BuildJobExit(o Outcome) *webhook.Event {
	data := map[string]any{
		"workerId":        o.WorkerID,
		"success":         o.Success,
		"durationSeconds": o.Duration.Seconds(),
	}
	if o.Success {
		data["artifact"] = o.ArtifactPath
	} else {
		data["category"] = string(o.Category)
		data["error"] = o.Err
	}
	return webhook.New(EventTypeJobExit, b.runID, o.JobID, data)
}

// BuildRunComplete creates a run completion event summarizing the ledger.
func (b *EventBuilder) BuildRunComplete(ledger Ledger) *webhook.Event {
	return webhook.New(EventTypeRunComplete, b.runID, "", map[string]any{
		"jobs":           len(ledger),
		"succeeded":      ledger.Succeeded(),
		"failed":         len(ledger.Failures()),
		"silentFailures": len(ledger.SilentFailures()),
	})
}
