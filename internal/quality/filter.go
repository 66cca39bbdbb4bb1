// Package quality classifies raw telemetry into records that can drive
// alerting and records that cannot.
package quality

import (
	"time"

	"airalert-service/internal/models"
)

const (
	// maxSaneReading is the unit-specific ceiling above which a PM2.5
	// value is treated as an instrument error rather than a reading.
	maxSaneReading = 1000.0

	// stalenessWindow is how far behind now a sensor's last_seen may be
	// before its reading no longer counts.
	stalenessWindow = 60 * time.Minute
)

// Partition splits raw telemetry into the clean set and the flagged
// sensor-index list. A record is clean when its channels report healthy
// (flags Normal, state not NoPM), it reported within the staleness
// window, no field is null, and the reading is below the sanity ceiling.
// Every raw sensor index that is not in the clean set is flagged, so the
// two outputs together cover the whole input.
func Partition(raw []models.RawTelemetry, now time.Time) ([]models.CleanTelemetry, []int) {
	clean := make([]models.CleanTelemetry, 0, len(raw))
	var flagged []int

	cutoff := now.Add(-stalenessWindow)
	for _, r := range raw {
		if !usable(r) || flaggedByRule(r, cutoff) {
			flagged = append(flagged, r.SensorIndex)
			continue
		}
		clean = append(clean, models.CleanTelemetry{
			SensorIndex:  r.SensorIndex,
			PM25:         *r.PM25,
			ChannelFlags: *r.ChannelFlags,
			ChannelState: *r.ChannelState,
			LastSeen:     *r.LastSeen,
		})
	}
	return clean, flagged
}

// usable reports whether the record has all fields present and a reading
// below the sanity ceiling. Unusable records never reach spike detection.
func usable(r models.RawTelemetry) bool {
	if r.PM25 == nil || r.ChannelFlags == nil || r.ChannelState == nil || r.LastSeen == nil {
		return false
	}
	return *r.PM25 < maxSaneReading
}

// flaggedByRule applies the channel-health and staleness rules. Any match
// flags the record regardless of its reading.
func flaggedByRule(r models.RawTelemetry, cutoff time.Time) bool {
	return *r.ChannelFlags != models.FlagsNormal ||
		*r.ChannelState == models.StateNoPM ||
		r.LastSeen.Before(cutoff)
}

// ExtractSpikes returns the clean records whose reading meets or exceeds
// the threshold, in input order. No qualifying rows is not an error.
func ExtractSpikes(clean []models.CleanTelemetry, threshold float64) []models.SpikeEvent {
	var spikes []models.SpikeEvent
	for _, c := range clean {
		if c.PM25 >= threshold {
			spikes = append(spikes, models.SpikeEvent{SensorIndex: c.SensorIndex, PM25: c.PM25})
		}
	}
	return spikes
}
