package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"airalert-service/internal/models"
)

// ErrNoCachedAlerts is returned when a report is requested for a user
// with nothing to report. Aggregating over zero alerts would produce
// null extrema, so the operation refuses instead.
var ErrNoCachedAlerts = errors.New("user has no cached alerts")

// InitializeReport rolls a user's cached alerts into one report row and
// clears the cache, all inside a single transaction so a failed run
// leaves the user untouched. Returns the report's duration in minutes
// and its peak reading for message composition.
func (d *DB) InitializeReport(ctx context.Context, recordID int, reportID string, now time.Time) (int, float64, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin report transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var cachedAlerts []int
	err = tx.QueryRow(ctx,
		`SELECT cached_alerts FROM subscriptions WHERE record_id = $1`,
		recordID,
	).Scan(&cachedAlerts)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read cached alerts for user %d: %w", recordID, err)
	}
	if len(cachedAlerts) == 0 {
		return 0, 0, fmt.Errorf("user %d: %w", recordID, ErrNoCachedAlerts)
	}

	rows, err := tx.Query(ctx,
		`SELECT alert_index, start_time, max_reading, sensor_indices
         FROM alerts WHERE alert_index = ANY($1)`,
		cachedAlerts,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load cached alerts for user %d: %w", recordID, err)
	}
	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.AlertIndex, &a.StartTime, &a.MaxReading, &a.SensorIndices); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("failed to scan cached alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to read cached alerts: %w", err)
	}
	if len(alerts) == 0 {
		return 0, 0, fmt.Errorf("user %d cached alerts reference no alert rows: %w", recordID, ErrNoCachedAlerts)
	}

	report := aggregateReport(alerts, now)
	report.ReportID = reportID
	report.CachedAlerts = cachedAlerts

	_, err = tx.Exec(ctx,
		`INSERT INTO reports (report_id, start_time, duration_minutes, max_reading, sensor_indices, cached_alerts)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		report.ReportID, report.StartTime, report.DurationMinutes,
		report.MaxReading, report.SensorIndices, report.CachedAlerts,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to insert report %s: %w", reportID, err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE subscriptions SET cached_alerts = '{}' WHERE record_id = $1`,
		recordID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to clear cached alerts for user %d: %w", recordID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit report %s: %w", reportID, err)
	}
	return report.DurationMinutes, report.MaxReading, nil
}

// aggregateReport summarizes a non-empty alert set: earliest start time,
// whole minutes elapsed from it to now (never negative), peak reading,
// and the sorted deduplicated union of contributing sensors.
func aggregateReport(alerts []models.Alert, now time.Time) models.Report {
	start := alerts[0].StartTime
	maxReading := alerts[0].MaxReading
	sensorSet := make(map[int]struct{})

	for _, a := range alerts {
		if a.StartTime.Before(start) {
			start = a.StartTime
		}
		if a.MaxReading > maxReading {
			maxReading = a.MaxReading
		}
		for _, s := range a.SensorIndices {
			sensorSet[s] = struct{}{}
		}
	}

	minutes := int(now.Sub(start).Minutes())
	if minutes < 0 {
		minutes = 0
	}

	sensors := make([]int, 0, len(sensorSet))
	for s := range sensorSet {
		sensors = append(sensors, s)
	}
	sort.Ints(sensors)

	return models.Report{
		StartTime:       start,
		DurationMinutes: minutes,
		MaxReading:      maxReading,
		SensorIndices:   sensors,
	}
}

// ListRecentReports returns the newest reports, most recent first.
func (d *DB) ListRecentReports(ctx context.Context, limit int) ([]models.Report, error) {
	query := `
        SELECT report_id, start_time, duration_minutes, max_reading, sensor_indices, cached_alerts
        FROM reports
        ORDER BY start_time DESC
        LIMIT $1`
	rows, err := d.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var r models.Report
		if err := rows.Scan(&r.ReportID, &r.StartTime, &r.DurationMinutes, &r.MaxReading, &r.SensorIndices, &r.CachedAlerts); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reports: %w", err)
	}
	return reports, nil
}
