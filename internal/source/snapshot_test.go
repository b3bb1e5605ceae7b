package source

import (
	"testing"

	"github.com/mnordin/composite-hass/internal/ha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyGPS(t *testing.T) {
	e := &ha.Entity{
		EntityID: "device_tracker.phone_gps",
		State:    "not_home",
		Attributes: map[string]any{
			"source_type":   "gps",
			"latitude":      59.3293,
			"longitude":     18.0686,
			"gps_accuracy":  12.0,
			"battery_level": 88.0,
		},
	}

	snap, err := Classify(e)
	require.NoError(t, err)
	assert.Equal(t, KindGPS, snap.Kind)
	assert.Equal(t, ha.SourceTypeGPS, snap.SourceType)
	require.NotNil(t, snap.GPS)
	assert.Equal(t, 59.3293, snap.GPS.Latitude)
	assert.Equal(t, 18.0686, snap.GPS.Longitude)
	assert.Equal(t, 12.0, snap.GPS.Accuracy)
	require.NotNil(t, snap.BatteryLevel)
	assert.Equal(t, 88, *snap.BatteryLevel)
}

func TestClassifyGPSAliasesAndStrings(t *testing.T) {
	// Older trackers use lat/lon/acc and ship numbers as strings.
	e := &ha.Entity{
		EntityID: "device_tracker.old_phone",
		State:    "not_home",
		Attributes: map[string]any{
			"lat": "59.3293",
			"lon": "18.0686",
			"acc": "25",
		},
	}

	snap, err := Classify(e)
	require.NoError(t, err)
	assert.Equal(t, KindGPS, snap.Kind)
	assert.Equal(t, 25.0, snap.GPS.Accuracy)
}

func TestClassifyGPSWinsOverDomain(t *testing.T) {
	// A complete fix makes the update GPS even on a binary_sensor entity.
	e := &ha.Entity{
		EntityID: "binary_sensor.car_at_home",
		State:    "on",
		Attributes: map[string]any{
			"latitude":     59.0,
			"longitude":    18.0,
			"gps_accuracy": 10.0,
		},
	}

	snap, err := Classify(e)
	require.NoError(t, err)
	assert.Equal(t, KindGPS, snap.Kind)
}

func TestClassifyBinary(t *testing.T) {
	for state, want := range map[string]string{
		ha.StateOn:  ha.StateHome,
		ha.StateOff: ha.StateNotHome,
	} {
		e := &ha.Entity{
			EntityID:   "binary_sensor.bed_occupied",
			State:      state,
			Attributes: map[string]any{},
		}
		snap, err := Classify(e)
		require.NoError(t, err)
		assert.Equal(t, KindBinary, snap.Kind)
		assert.Equal(t, want, snap.State)
		assert.Equal(t, ha.DomainBinarySensor, snap.SourceType)
	}
}

func TestClassifyOtherTracker(t *testing.T) {
	for _, st := range []string{"router", "bluetooth", "bluetooth_le"} {
		e := &ha.Entity{
			EntityID: "device_tracker.phone_wifi",
			State:    "home",
			Attributes: map[string]any{
				"source_type": st,
			},
		}
		snap, err := Classify(e)
		require.NoError(t, err)
		assert.Equal(t, KindOther, snap.Kind)
		assert.Equal(t, st, snap.SourceType)
		assert.Nil(t, snap.GPS)
	}
}

func TestClassifyUnsupported(t *testing.T) {
	e := &ha.Entity{
		EntityID:   "sensor.temperature",
		State:      "21.5",
		Attributes: map[string]any{},
	}

	_, err := Classify(e)
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestClassifyInvalidGeometry(t *testing.T) {
	// Claims gps but the fix is incomplete.
	e := &ha.Entity{
		EntityID: "device_tracker.broken",
		State:    "not_home",
		Attributes: map[string]any{
			"source_type": "gps",
			"latitude":    59.0,
			"longitude":   18.0,
		},
	}
	_, err := Classify(e)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	// Out-of-range coordinates are equally invalid.
	e.Attributes["gps_accuracy"] = 10.0
	e.Attributes["latitude"] = 123.0
	_, err = Classify(e)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestClassifyPartialFixOnPresenceSource(t *testing.T) {
	// A router source with a stray accuracy attribute but no coordinates
	// still classifies as a presence tracker, without GPS data.
	e := &ha.Entity{
		EntityID: "device_tracker.phone_wifi",
		State:    "home",
		Attributes: map[string]any{
			"source_type":  "router",
			"gps_accuracy": 50.0,
		},
	}

	snap, err := Classify(e)
	require.NoError(t, err)
	assert.Equal(t, KindOther, snap.Kind)
	assert.Nil(t, snap.GPS)
}

func TestClassifyChargingVariants(t *testing.T) {
	cases := map[any]bool{
		true:   true,
		"on":   true,
		"off":  false,
		"true": true,
	}
	for raw, want := range cases {
		e := &ha.Entity{
			EntityID: "binary_sensor.phone_home",
			State:    "on",
			Attributes: map[string]any{
				"battery_charging": raw,
			},
		}
		snap, err := Classify(e)
		require.NoError(t, err)
		require.NotNil(t, snap.BatteryCharging, "raw %v", raw)
		assert.Equal(t, want, *snap.BatteryCharging, "raw %v", raw)
	}
}
