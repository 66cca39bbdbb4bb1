package db

import (
	"context"
	"fmt"
	"time"

	"airalert-service/internal/models"
)

// CreateAlert inserts a new alert row and returns its index.
func (d *DB) CreateAlert(ctx context.Context, startTime time.Time, maxReading float64, sensorIndices []int) (int, error) {
	query := `
        INSERT INTO alerts (start_time, max_reading, sensor_indices)
        VALUES ($1, $2, $3)
        RETURNING alert_index`
	var alertIndex int
	err := d.Pool.QueryRow(ctx, query, startTime, maxReading, sensorIndices).Scan(&alertIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to create alert: %w", err)
	}
	return alertIndex, nil
}

// ExtendActiveAlerts folds a new spike into every active alert of the
// given users: the peak reading is raised when the new reading is higher
// and the sensor joins sensor_indices if it is not already there.
func (d *DB) ExtendActiveAlerts(ctx context.Context, recordIDs []int, sensorIndex int, reading float64) error {
	if len(recordIDs) == 0 {
		return nil
	}
	query := `
        UPDATE alerts
        SET max_reading = GREATEST(max_reading, $1),
            sensor_indices = CASE
                WHEN $2 = ANY(sensor_indices) THEN sensor_indices
                ELSE array_append(sensor_indices, $2)
            END
        WHERE alert_index IN (
            SELECT unnest(active_alerts) FROM subscriptions WHERE record_id = ANY($3)
        )`
	if _, err := d.Pool.Exec(ctx, query, reading, sensorIndex, recordIDs); err != nil {
		return fmt.Errorf("failed to extend active alerts: %w", err)
	}
	return nil
}

// ListAlertsByIndices loads the alert rows for the given indices.
func (d *DB) ListAlertsByIndices(ctx context.Context, alertIndices []int) ([]models.Alert, error) {
	if len(alertIndices) == 0 {
		return nil, nil
	}
	query := `
        SELECT alert_index, start_time, max_reading, sensor_indices
        FROM alerts
        WHERE alert_index = ANY($1)
        ORDER BY start_time`
	rows, err := d.Pool.Query(ctx, query, alertIndices)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.AlertIndex, &a.StartTime, &a.MaxReading, &a.SensorIndices); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}
	return alerts, nil
}

// ListActiveAlerts returns every alert currently open for at least one
// user, for the operational API.
func (d *DB) ListActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	query := `
        SELECT DISTINCT a.alert_index, a.start_time, a.max_reading, a.sensor_indices
        FROM alerts a
        WHERE a.alert_index IN (SELECT unnest(active_alerts) FROM subscriptions)
        ORDER BY a.start_time DESC`
	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.AlertIndex, &a.StartTime, &a.MaxReading, &a.SensorIndices); err != nil {
			return nil, fmt.Errorf("failed to scan active alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read active alerts: %w", err)
	}
	return alerts, nil
}
