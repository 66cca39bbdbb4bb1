package db

import (
	"context"
	"fmt"
)

// ListSensorIndices returns the indices of every registered sensor. The
// sensors table is read-only to this service; rows are maintained by the
// station import job.
func (d *DB) ListSensorIndices(ctx context.Context) ([]int, error) {
	rows, err := d.Pool.Query(ctx, `SELECT sensor_index FROM sensors ORDER BY sensor_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensor indices: %w", err)
	}
	defer rows.Close()

	var indices []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("failed to scan sensor index: %w", err)
		}
		indices = append(indices, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sensor indices: %w", err)
	}
	return indices, nil
}
