package models

import "time"

// Pipeline event types published to websocket subscribers.
const (
	EventSpike         = "spike"
	EventAlertCreated  = "alert_created"
	EventAlertExtended = "alert_extended"
	EventReport        = "report_initialized"
	EventRunCompleted  = "run_completed"
)

// PipelineEvent is a single happening inside a pipeline run, streamed to
// connected websocket clients.
type PipelineEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}
