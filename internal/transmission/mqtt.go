package transmission

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mnordin/composite-hass/internal/mqtt"
	"github.com/mnordin/composite-hass/internal/speed"
	"github.com/mnordin/composite-hass/internal/tracker"
	"github.com/sirupsen/logrus"
)

// MQTTTransmitter publishes composite trackers and their derived speed
// sensors to Home Assistant via MQTT discovery.
type MQTTTransmitter struct {
	client          *mqtt.Client
	discoveryPrefix string
	unit            speed.Unit
	logger          *logrus.Logger
	published       map[string]bool // tracks published discovery configs
}

// HADiscoveryConfig represents Home Assistant MQTT discovery configuration.
type HADiscoveryConfig struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	StateTopic          string   `json:"state_topic"`
	JSONAttributesTopic string   `json:"json_attributes_topic,omitempty"`
	DeviceClass         string   `json:"device_class,omitempty"`
	UnitOfMeasurement   string   `json:"unit_of_measurement,omitempty"`
	StateClass          string   `json:"state_class,omitempty"`
	Icon                string   `json:"icon,omitempty"`
	Device              HADevice `json:"device"`
	AvailabilityTopic   string   `json:"availability_topic"`
}

// HADevice represents the device information for Home Assistant.
type HADevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

// trackerAttributes is the device_tracker JSON attributes payload: the
// composite read model minus the state label itself.
type trackerAttributes struct {
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	GPSAccuracy     *float64 `json:"gps_accuracy,omitempty"`
	SourceType      string   `json:"source_type,omitempty"`
	BatteryLevel    *int     `json:"battery_level,omitempty"`
	BatteryCharging *bool    `json:"battery_charging,omitempty"`
	EntityPicture   string   `json:"entity_picture,omitempty"`
	Entities        []string `json:"entities,omitempty"`
	LastEntityID    string   `json:"last_entity_id,omitempty"`
	LastSeen        string   `json:"last_seen,omitempty"`
}

// speedAttributes is the speed sensor's JSON attributes payload.
type speedAttributes struct {
	Angle     *int    `json:"angle"`
	Direction *string `json:"direction"`
}

// NewMQTTTransmitter creates a new MQTT transmitter.
func NewMQTTTransmitter(client *mqtt.Client, discoveryPrefix string, unit speed.Unit, logger *logrus.Logger) *MQTTTransmitter {
	return &MQTTTransmitter{
		client:          client,
		discoveryPrefix: discoveryPrefix,
		unit:            unit,
		logger:          logger,
		published:       make(map[string]bool),
	}
}

func (t *MQTTTransmitter) device(trackerID, name string) HADevice {
	return HADevice{
		Identifiers:  []string{fmt.Sprintf("composite_%s", trackerID)},
		Name:         name,
		Model:        "Composite Tracker",
		Manufacturer: "composite-hass",
	}
}

// publishDiscovery publishes the device_tracker and speed sensor discovery
// configs for one tracker, once per tracker set.
func (t *MQTTTransmitter) publishDiscovery(trackerID, name string) error {
	if t.published[trackerID] {
		return nil
	}
	device := t.device(trackerID, name)
	availability := t.client.GetAvailabilityTopic()

	trackerCfg := HADiscoveryConfig{
		Name:                name,
		UniqueID:            fmt.Sprintf("composite_%s", trackerID),
		StateTopic:          t.client.GetStateTopic(trackerID),
		JSONAttributesTopic: t.client.GetAttributesTopic(trackerID),
		Device:              device,
		AvailabilityTopic:   availability,
	}
	topic := t.client.GetDiscoveryTopic(t.discoveryPrefix, "device_tracker", trackerID, "tracker")
	if err := t.publishConfigRaw(topic, trackerCfg); err != nil {
		return fmt.Errorf("failed to publish tracker discovery config: %w", err)
	}

	speedCfg := HADiscoveryConfig{
		Name:                name + " Speed",
		UniqueID:            fmt.Sprintf("composite_%s_speed", trackerID),
		StateTopic:          t.client.GetSpeedTopic(trackerID),
		JSONAttributesTopic: t.client.GetSpeedAttributesTopic(trackerID),
		DeviceClass:         "speed",
		UnitOfMeasurement:   t.unit.Label(),
		StateClass:          "measurement",
		Icon:                "mdi:car-speed-limiter",
		Device:              device,
		AvailabilityTopic:   availability,
	}
	topic = t.client.GetDiscoveryTopic(t.discoveryPrefix, "sensor", trackerID, "speed")
	if err := t.publishConfigRaw(topic, speedCfg); err != nil {
		return fmt.Errorf("failed to publish speed discovery config: %w", err)
	}

	t.logger.WithField("tracker", trackerID).Info("Published discovery configs")
	t.published[trackerID] = true
	return nil
}

// publishConfigRaw publishes a raw configuration object.
func (t *MQTTTransmitter) publishConfigRaw(topic string, config interface{}) error {
	payload, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal discovery config: %w", err)
	}

	if err := t.client.Publish(topic, payload, true); err != nil {
		return fmt.Errorf("failed to publish discovery config to %s: %w", topic, err)
	}

	return nil
}

// TransmitState publishes a tracker's composite state and attributes.
func (t *MQTTTransmitter) TransmitState(trackerID, name string, st tracker.State) error {
	if !t.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	if err := t.publishDiscovery(trackerID, name); err != nil {
		// Log but don't block the state publication.
		t.logger.WithError(err).Error("Failed to publish Home Assistant discovery configs")
	}

	if err := t.client.Publish(t.client.GetStateTopic(trackerID), []byte(st.State), true); err != nil {
		return fmt.Errorf("failed to publish tracker state: %w", err)
	}

	attrs := trackerAttributes{
		Latitude:        st.Latitude,
		Longitude:       st.Longitude,
		GPSAccuracy:     st.GPSAccuracy,
		SourceType:      st.SourceType,
		BatteryLevel:    st.BatteryLevel,
		BatteryCharging: st.BatteryCharging,
		EntityPicture:   st.EntityPicture,
		Entities:        st.Entities,
		LastEntityID:    st.LastEntityID,
	}
	if st.LastSeen != nil {
		attrs.LastSeen = st.LastSeen.Format(time.RFC3339)
	}
	payload, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal tracker attributes: %w", err)
	}
	if err := t.client.Publish(t.client.GetAttributesTopic(trackerID), payload, true); err != nil {
		return fmt.Errorf("failed to publish tracker attributes: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"tracker": trackerID,
		"state":   st.State,
	}).Debug("Published composite state")
	return nil
}

// TransmitSpeed publishes the derived speed sensor. A reading without a speed
// publishes an empty state, which Home Assistant renders as unknown.
func (t *MQTTTransmitter) TransmitSpeed(trackerID, name string, r speed.Reading) error {
	if !t.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	if err := t.publishDiscovery(trackerID, name); err != nil {
		t.logger.WithError(err).Error("Failed to publish Home Assistant discovery configs")
	}

	state := ""
	if r.Speed != nil {
		state = fmt.Sprintf("%.1f", *r.Speed)
	}
	if err := t.client.Publish(t.client.GetSpeedTopic(trackerID), []byte(state), true); err != nil {
		return fmt.Errorf("failed to publish speed state: %w", err)
	}

	payload, err := json.Marshal(speedAttributes{Angle: r.Angle, Direction: r.Direction})
	if err != nil {
		return fmt.Errorf("failed to marshal speed attributes: %w", err)
	}
	if err := t.client.Publish(t.client.GetSpeedAttributesTopic(trackerID), payload, true); err != nil {
		return fmt.Errorf("failed to publish speed attributes: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"tracker": trackerID,
		"speed":   state,
	}).Debug("Published speed reading")
	return nil
}

// TransmitAvailability publishes bridge availability.
func (t *MQTTTransmitter) TransmitAvailability(online bool) error {
	return t.client.PublishAvailability(online)
}
