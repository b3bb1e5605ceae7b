package config

import (
	"fmt"
	"strings"
)

// Config holds the daemon-level options for composite-hass. The tracker and
// zone definitions live in a separate YAML file (see file.go) so they can be
// reloaded without restarting the daemon.
type Config struct {
	// MQTT Configuration
	MQTTUrl         string `json:"mqtt_url"`         // MQTT URL (supports both WebSocket and standard MQTT)
	DiscoveryPrefix string `json:"discovery_prefix"` // Home Assistant discovery prefix
	SourcePrefix    string `json:"source_prefix"`    // Topic prefix the source entity states arrive on

	// Bridge Configuration
	ClientID     string `json:"client_id"`     // MQTT client identifier
	TrackersFile string `json:"trackers_file"` // Path to the trackers/zones YAML file
	StorePath    string `json:"store_path"`    // Path to the state restore database ("" disables restore)

	// Application Configuration
	Verbose bool `json:"verbose"` // Enable verbose logging
}

// GetDefaultConfig returns a configuration with sensible defaults.
func GetDefaultConfig() *Config {
	return &Config{
		DiscoveryPrefix: "homeassistant",
		SourcePrefix:    "composite/source",
		ClientID:        "composite-hass",
		TrackersFile:    "trackers.yaml",
		StorePath:       "composite-hass.db",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if c.TrackersFile == "" {
		return fmt.Errorf("trackers file is required")
	}

	if c.MQTTUrl == "" {
		return fmt.Errorf("MQTT URL is required")
	}
	// Support both WebSocket and standard MQTT protocols.
	if !strings.HasPrefix(c.MQTTUrl, "ws://") &&
		!strings.HasPrefix(c.MQTTUrl, "wss://") &&
		!strings.HasPrefix(c.MQTTUrl, "mqtt://") &&
		!strings.HasPrefix(c.MQTTUrl, "mqtts://") {
		return fmt.Errorf("MQTT URL must use supported protocol (ws://, wss://, mqtt://, or mqtts://)")
	}

	return nil
}

// HasStore returns true if state restore is enabled.
func (c *Config) HasStore() bool {
	return c.StorePath != ""
}
