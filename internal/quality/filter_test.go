package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airalert-service/internal/models"
)

func record(sensor int, pm25 float64, flags models.ChannelFlags, state models.ChannelState, lastSeen time.Time) models.RawTelemetry {
	return models.RawTelemetry{
		SensorIndex:  sensor,
		PM25:         &pm25,
		ChannelFlags: &flags,
		ChannelState: &state,
		LastSeen:     &lastSeen,
	}
}

func TestPartition(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-5 * time.Minute)
	stale := now.Add(-61 * time.Minute)

	tests := []struct {
		name        string
		raw         []models.RawTelemetry
		wantClean   []int
		wantFlagged []int
	}{
		{
			name: "healthy record is clean",
			raw: []models.RawTelemetry{
				record(1, 40, models.FlagsNormal, models.StateBothOn, fresh),
			},
			wantClean: []int{1},
		},
		{
			name: "downgraded channel is flagged",
			raw: []models.RawTelemetry{
				record(2, 5, models.FlagsADowngraded, models.StateBothOn, fresh),
			},
			wantFlagged: []int{2},
		},
		{
			name: "no-PM state is flagged even with a high reading",
			raw: []models.RawTelemetry{
				record(3, 500, models.FlagsNormal, models.StateNoPM, fresh),
			},
			wantFlagged: []int{3},
		},
		{
			name: "stale last_seen is flagged",
			raw: []models.RawTelemetry{
				record(4, 40, models.FlagsNormal, models.StateBothOn, stale),
			},
			wantFlagged: []int{4},
		},
		{
			name: "last_seen exactly at cutoff is clean",
			raw: []models.RawTelemetry{
				record(5, 40, models.FlagsNormal, models.StateBothOn, now.Add(-60*time.Minute)),
			},
			wantClean: []int{5},
		},
		{
			name: "reading at sanity ceiling is unusable and flagged",
			raw: []models.RawTelemetry{
				record(6, 1000, models.FlagsNormal, models.StateBothOn, fresh),
			},
			wantFlagged: []int{6},
		},
		{
			name: "null reading is unusable and flagged",
			raw: []models.RawTelemetry{
				{
					SensorIndex:  7,
					ChannelFlags: channelFlagsPtr(models.FlagsNormal),
					ChannelState: channelStatePtr(models.StateBothOn),
					LastSeen:     &fresh,
				},
			},
			wantFlagged: []int{7},
		},
		{
			name: "null last_seen is unusable and flagged",
			raw: []models.RawTelemetry{
				{
					SensorIndex:  8,
					PM25:         float64Ptr(12),
					ChannelFlags: channelFlagsPtr(models.FlagsNormal),
					ChannelState: channelStatePtr(models.StateBothOn),
				},
			},
			wantFlagged: []int{8},
		},
		{
			name: "mixed input partitions cleanly",
			raw: []models.RawTelemetry{
				record(1, 40, models.FlagsNormal, models.StateBothOn, fresh),
				record(2, 5, models.FlagsADowngraded, models.StateBothOn, fresh),
				record(3, 12, models.FlagsNormal, models.StateBothOn, fresh),
				record(4, 1200, models.FlagsNormal, models.StateBothOn, fresh),
			},
			wantClean:   []int{1, 3},
			wantFlagged: []int{2, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clean, flagged := Partition(tt.raw, now)

			cleanIDs := make([]int, 0, len(clean))
			for _, c := range clean {
				cleanIDs = append(cleanIDs, c.SensorIndex)
			}
			assert.Equal(t, tt.wantClean, nilIfEmpty(cleanIDs))
			assert.Equal(t, tt.wantFlagged, flagged)

			// Clean and flagged together cover all input, disjointly.
			assert.Len(t, append(cleanIDs, flagged...), len(tt.raw))
			for _, f := range flagged {
				assert.NotContains(t, cleanIDs, f)
			}
		})
	}
}

func TestPartition_CleanCarriesFieldValues(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	seen := now.Add(-time.Minute)

	clean, flagged := Partition([]models.RawTelemetry{
		record(17, 42.5, models.FlagsNormal, models.StateBothOn, seen),
	}, now)

	require.Len(t, clean, 1)
	assert.Empty(t, flagged)
	assert.Equal(t, 17, clean[0].SensorIndex)
	assert.Equal(t, 42.5, clean[0].PM25)
	assert.Equal(t, seen, clean[0].LastSeen)
}

func TestExtractSpikes(t *testing.T) {
	now := time.Now()
	clean, _ := Partition([]models.RawTelemetry{
		record(1, 40, models.FlagsNormal, models.StateBothOn, now),
		record(2, 34.9, models.FlagsNormal, models.StateBothOn, now),
		record(3, 35, models.FlagsNormal, models.StateBothOn, now),
	}, now)

	t.Run("threshold keeps readings at or above it", func(t *testing.T) {
		spikes := ExtractSpikes(clean, 35)
		assert.Equal(t, []models.SpikeEvent{
			{SensorIndex: 1, PM25: 40},
			{SensorIndex: 3, PM25: 35},
		}, spikes)
	})

	t.Run("zero threshold returns every clean record", func(t *testing.T) {
		spikes := ExtractSpikes(clean, 0)
		assert.Len(t, spikes, len(clean))
	})

	t.Run("threshold above max returns nothing", func(t *testing.T) {
		assert.Empty(t, ExtractSpikes(clean, 41))
	})

	t.Run("empty input returns nothing", func(t *testing.T) {
		assert.Empty(t, ExtractSpikes(nil, 35))
	})
}

// TestEndToEndScenario covers the two-sensor case: sensor 1 healthy and
// spiking, sensor 2 downgraded.
func TestEndToEndScenario(t *testing.T) {
	now := time.Now()
	raw := []models.RawTelemetry{
		record(1, 40, models.FlagsNormal, models.StateBothOn, now),
		record(2, 5, models.FlagsADowngraded, models.StateBothOn, now),
	}

	clean, flagged := Partition(raw, now)
	spikes := ExtractSpikes(clean, 35)

	assert.Equal(t, []models.SpikeEvent{{SensorIndex: 1, PM25: 40}}, spikes)
	assert.Equal(t, []int{2}, flagged)
}

func float64Ptr(v float64) *float64 { return &v }

func channelFlagsPtr(v models.ChannelFlags) *models.ChannelFlags { return &v }

func channelStatePtr(v models.ChannelState) *models.ChannelState { return &v }

func nilIfEmpty(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	return ids
}
