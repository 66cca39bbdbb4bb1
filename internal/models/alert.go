package models

import "time"

// Alert is one archived alert row. An alert is created when a spike first
// reaches a user, accumulates readings and sensors while active, and is
// rolled into a Report after it closes.
type Alert struct {
	AlertIndex    int       `json:"alert_index"`
	StartTime     time.Time `json:"start_time"`
	MaxReading    float64   `json:"max_reading"`
	SensorIndices []int     `json:"sensor_indices"`
}

// Report summarizes the cached alerts of one user at the moment the last
// of them closed. CachedAlerts keeps the alert indices the report was
// built from.
type Report struct {
	ReportID        string    `json:"report_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	MaxReading      float64   `json:"max_reading"`
	SensorIndices   []int     `json:"sensor_indices"`
	CachedAlerts    []int     `json:"cached_alerts"`
}

// Subscription mirrors one row of the subscriptions table. The alert
// arrays drive the per-user lifecycle: both empty means the user is idle
// and eligible for a brand-new alert.
type Subscription struct {
	RecordID     int        `json:"record_id"`
	Subscribed   bool       `json:"subscribed"`
	ActiveAlerts []int      `json:"active_alerts"`
	CachedAlerts []int      `json:"cached_alerts"`
	MessagesSent int        `json:"messages_sent"`
	LastMessaged *time.Time `json:"last_messaged,omitempty"`
}
