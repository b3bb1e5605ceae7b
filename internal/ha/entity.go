package ha

import (
	"strings"
	"time"
)

// Well-known entity domains.
const (
	DomainBinarySensor  = "binary_sensor"
	DomainDeviceTracker = "device_tracker"
	DomainSensor        = "sensor"
)

// Well-known state values.
const (
	StateHome        = "home"
	StateNotHome     = "not_home"
	StateOn          = "on"
	StateOff         = "off"
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// Attribute keys found on Home Assistant entity states. Several of them have
// historic aliases (e.g. "lat" next to "latitude") that real trackers still
// emit, so consumers should check the alias lists below.
const (
	AttrSourceType      = "source_type"
	AttrLatitude        = "latitude"
	AttrLongitude       = "longitude"
	AttrLat             = "lat"
	AttrLon             = "lon"
	AttrGPSAccuracy     = "gps_accuracy"
	AttrAcc             = "acc"
	AttrBatteryLevel    = "battery_level"
	AttrBattery         = "battery"
	AttrBatteryCharging = "battery_charging"
	AttrCharging        = "charging"
	AttrLastSeen        = "last_seen"
	AttrLastTimestamp   = "last_timestamp"
	AttrEntityPicture   = "entity_picture"
)

// Source types reported by device trackers.
const (
	SourceTypeGPS         = "gps"
	SourceTypeRouter      = "router"
	SourceTypeBluetooth   = "bluetooth"
	SourceTypeBluetoothLE = "bluetooth_le"
)

// Entity is the JSON shape Home Assistant exposes for a single entity state,
// as delivered on the source state topics this bridge subscribes to.
type Entity struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Domain returns the entity's domain, i.e. the part of the entity ID before
// the first dot. An ID without a dot has no domain.
func (e *Entity) Domain() string {
	if i := strings.IndexByte(e.EntityID, '.'); i > 0 {
		return e.EntityID[:i]
	}
	return ""
}

// Usable reports whether the state carries information at all. Unknown and
// unavailable states are produced while the upstream integration is starting
// or offline and must not feed the fusion engine.
func (e *Entity) Usable() bool {
	return e != nil && e.State != "" && e.State != StateUnknown && e.State != StateUnavailable
}
