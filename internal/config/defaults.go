package config

import "time"

// Central place for all application-wide timing constants and other defaults.
// Changing a value here immediately affects all components that import
// github.com/mnordin/composite-hass/internal/config.

const (
	// Operation time-outs (to avoid blocking goroutines)
	MQTTTimeout = 5 * time.Second // MQTT publish/subscribe

	// Per-tracker update queue depth. Source updates beyond this while a
	// tracker is mid-update are handled strictly in order, one at a time.
	TrackerQueueDepth = 16
)
