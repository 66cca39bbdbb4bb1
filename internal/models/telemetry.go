package models

import "time"

// ChannelFlags is the sensor's self-reported downgrade state.
// 0 = Normal, 1 = A Downgraded, 2 = B Downgraded, 3 = Both Downgraded.
type ChannelFlags int

const (
	FlagsNormal         ChannelFlags = 0
	FlagsADowngraded    ChannelFlags = 1
	FlagsBDowngraded    ChannelFlags = 2
	FlagsBothDowngraded ChannelFlags = 3
)

// ChannelState reports which particulate channels are powered.
// 0 = No PM, 1 = A On, 2 = B On, 3 = Both On.
type ChannelState int

const (
	StateNoPM   ChannelState = 0
	StateAOn    ChannelState = 1
	StateBOn    ChannelState = 2
	StateBothOn ChannelState = 3
)

// RawTelemetry is one row of the telemetry API response. Fields other
// than the sensor index are pointers because the provider returns null
// for sensors that have not reported a value.
type RawTelemetry struct {
	SensorIndex  int           `json:"sensor_index"`
	PM25         *float64      `json:"pm25"`
	ChannelFlags *ChannelFlags `json:"channel_flags"`
	ChannelState *ChannelState `json:"channel_state"`
	LastSeen     *time.Time    `json:"last_seen"`
}

// CleanTelemetry is a record that passed the quality filter: all fields
// present, channels healthy, reading within the sane range.
type CleanTelemetry struct {
	SensorIndex  int          `json:"sensor_index"`
	PM25         float64      `json:"pm25"`
	ChannelFlags ChannelFlags `json:"channel_flags"`
	ChannelState ChannelState `json:"channel_state"`
	LastSeen     time.Time    `json:"last_seen"`
}

// SpikeEvent is a clean reading at or above the spike threshold.
type SpikeEvent struct {
	SensorIndex int     `json:"sensor_index"`
	PM25        float64 `json:"pm25"`
}
