package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"airalert-service/internal/models"
)

// projectionSRID is the planar, meters-based coordinate system the
// distance predicate runs in (UTM zone 15N). Geographic coordinates
// would make the meter threshold meaningless.
const projectionSRID = 26915

// UsersNearbySensor returns the record ids of subscribed users whose
// location is within distanceMeters of the sensor's location. An unknown
// sensor index yields an empty result, not an error.
func (d *DB) UsersNearbySensor(ctx context.Context, sensorIndex int, distanceMeters float64) ([]int, error) {
	query := `
        WITH sensor AS (
            SELECT geometry FROM sensors WHERE sensor_index = $1
        )
        SELECT u.record_id
        FROM subscriptions u, sensor s
        WHERE u.subscribed = TRUE
          AND ST_DWithin(ST_Transform(u.geometry, $2), ST_Transform(s.geometry, $2), $3)
        ORDER BY u.record_id`
	rows, err := d.Pool.Query(ctx, query, sensorIndex, projectionSRID, distanceMeters)
	if err != nil {
		return nil, fmt.Errorf("failed to query users near sensor %d: %w", sensorIndex, err)
	}
	defer rows.Close()

	return scanRecordIDs(rows)
}

// UsersEligibleForNewAlert narrows candidates to users with no active and
// no cached alerts. These are the users a brand-new alert record is
// created for; everyone else is already being tracked.
func (d *DB) UsersEligibleForNewAlert(ctx context.Context, candidateIDs []int) ([]int, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}
	query := `
        SELECT record_id
        FROM subscriptions
        WHERE active_alerts = '{}' AND cached_alerts = '{}' AND record_id = ANY($1)
        ORDER BY record_id`
	rows, err := d.Pool.Query(ctx, query, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query users eligible for new alert: %w", err)
	}
	defer rows.Close()

	return scanRecordIDs(rows)
}

// UsersReportable returns users whose alerts have all closed but not yet
// been rolled into a report: cached alerts outstanding, nothing active.
func (d *DB) UsersReportable(ctx context.Context) ([]int, error) {
	query := `
        SELECT record_id
        FROM subscriptions
        WHERE cached_alerts <> '{}' AND active_alerts = '{}'
        ORDER BY record_id`
	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reportable users: %w", err)
	}
	defer rows.Close()

	return scanRecordIDs(rows)
}

// AppendActiveAlert attaches a newly created alert to each user's
// active_alerts set.
func (d *DB) AppendActiveAlert(ctx context.Context, recordIDs []int, alertIndex int) error {
	if len(recordIDs) == 0 {
		return nil
	}
	query := `
        UPDATE subscriptions
        SET active_alerts = array_append(active_alerts, $1)
        WHERE record_id = ANY($2)`
	if _, err := d.Pool.Exec(ctx, query, alertIndex, recordIDs); err != nil {
		return fmt.Errorf("failed to append active alert %d: %w", alertIndex, err)
	}
	return nil
}

// CacheAlert moves an alert from a user's active set to the cached set
// when the alert closes. A no-op if the alert is not active for the user.
func (d *DB) CacheAlert(ctx context.Context, recordID, alertIndex int) error {
	query := `
        UPDATE subscriptions
        SET active_alerts = array_remove(active_alerts, $1),
            cached_alerts = array_append(cached_alerts, $1)
        WHERE record_id = $2 AND $1 = ANY(active_alerts)`
	if _, err := d.Pool.Exec(ctx, query, alertIndex, recordID); err != nil {
		return fmt.Errorf("failed to cache alert %d for user %d: %w", alertIndex, recordID, err)
	}
	return nil
}

// RecordMessagesSent increments messages_sent and stamps last_messaged
// for every user in the batch in one statement. Callers guarantee each
// record id appears at most once per batch.
func (d *DB) RecordMessagesSent(ctx context.Context, recordIDs []int, sentAt time.Time) error {
	if len(recordIDs) == 0 {
		return nil
	}
	query := `
        UPDATE subscriptions
        SET messages_sent = messages_sent + 1, last_messaged = $1
        WHERE record_id = ANY($2)`
	if _, err := d.Pool.Exec(ctx, query, sentAt, recordIDs); err != nil {
		return fmt.Errorf("failed to record messages sent: %w", err)
	}
	return nil
}

// GetSubscription returns one user's subscription row.
func (d *DB) GetSubscription(ctx context.Context, recordID int) (models.Subscription, error) {
	query := `
        SELECT record_id, subscribed, active_alerts, cached_alerts, messages_sent, last_messaged
        FROM subscriptions
        WHERE record_id = $1`
	var sub models.Subscription
	err := d.Pool.QueryRow(ctx, query, recordID).Scan(
		&sub.RecordID,
		&sub.Subscribed,
		&sub.ActiveAlerts,
		&sub.CachedAlerts,
		&sub.MessagesSent,
		&sub.LastMessaged,
	)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("failed to get subscription %d: %w", recordID, err)
	}
	return sub, nil
}

func scanRecordIDs(rows pgx.Rows) ([]int, error) {
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan record id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read record ids: %w", err)
	}
	return ids, nil
}
