// Package events defines the records written to the verification report.
package events

import (
	"time"

	"github.com/google/uuid"
)

// LogEvent represents a single report record in JSONL format.
type LogEvent struct {
	Timestamp string                 `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	EventType string                 `json:"event_type"`
	Data      map[string]interface{} `json:"data"`
}

// NewLogEvent creates a new LogEvent with the current timestamp.
func NewLogEvent(runID, eventType string, data map[string]interface{}) *LogEvent {
	return &LogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     runID,
		EventType: eventType,
		Data:      data,
	}
}

// NewRunID returns a fresh identifier for one verification run.
func NewRunID() string {
	return uuid.New().String()
}

// Event type constants for run lifecycle records.
const (
	EventRunStart  = "run.start"
	EventRunResult = "run.result"
)

// Event type constants for page diagnostics.
const (
	EventPageDiagnostic = "page.diagnostic"
)

// NewRunStartEvent creates a run.start event.
func NewRunStartEvent(runID, target, driver, version string) *LogEvent {
	return NewLogEvent(runID, EventRunStart, map[string]interface{}{
		"target":  target,
		"driver":  driver,
		"version": version,
	})
}

// NewRunResultEvent creates a run.result event.
// errText and screenshotErr are omitted when empty.
func NewRunResultEvent(runID, outcome, screenshot string, duration time.Duration, errText, screenshotErr string) *LogEvent {
	data := map[string]interface{}{
		"outcome":     outcome,
		"screenshot":  screenshot,
		"duration_ms": duration.Milliseconds(),
	}
	if errText != "" {
		data["error"] = errText
	}
	if screenshotErr != "" {
		data["screenshot_error"] = screenshotErr
	}
	return NewLogEvent(runID, EventRunResult, data)
}

// NewDiagnosticEvent creates a page.diagnostic event.
func NewDiagnosticEvent(runID, kind, text, url string) *LogEvent {
	data := map[string]interface{}{
		"kind": kind,
		"text": text,
	}
	if url != "" {
		data["url"] = url
	}
	return NewLogEvent(runID, EventPageDiagnostic, data)
}
