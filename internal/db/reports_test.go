package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"airalert-service/internal/models"
)

func TestAggregateReport(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	start := now.Add(-45 * time.Minute)

	t.Run("scenario: two cached alerts", func(t *testing.T) {
		alerts := []models.Alert{
			{AlertIndex: 1, StartTime: start.Add(10 * time.Minute), MaxReading: 60, SensorIndices: []int{142, 88}},
			{AlertIndex: 2, StartTime: start, MaxReading: 90, SensorIndices: []int{88, 7}},
		}

		report := aggregateReport(alerts, now)

		assert.Equal(t, start, report.StartTime)
		assert.Equal(t, 45, report.DurationMinutes)
		assert.Equal(t, 90.0, report.MaxReading)
		assert.Equal(t, []int{7, 88, 142}, report.SensorIndices)
	})

	t.Run("duration is floored to whole minutes", func(t *testing.T) {
		alerts := []models.Alert{
			{AlertIndex: 1, StartTime: now.Add(-90 * time.Second), MaxReading: 50, SensorIndices: []int{1}},
		}
		report := aggregateReport(alerts, now)
		assert.Equal(t, 1, report.DurationMinutes)
	})

	t.Run("duration never goes negative", func(t *testing.T) {
		alerts := []models.Alert{
			{AlertIndex: 1, StartTime: now.Add(30 * time.Second), MaxReading: 50, SensorIndices: []int{1}},
		}
		report := aggregateReport(alerts, now)
		assert.Equal(t, 0, report.DurationMinutes)
	})

	t.Run("single alert passes through", func(t *testing.T) {
		alerts := []models.Alert{
			{AlertIndex: 9, StartTime: start, MaxReading: 41.5, SensorIndices: []int{3, 3, 2}},
		}
		report := aggregateReport(alerts, now)
		assert.Equal(t, start, report.StartTime)
		assert.Equal(t, 41.5, report.MaxReading)
		assert.Equal(t, []int{2, 3}, report.SensorIndices)
	})
}
