package source

import (
	"errors"
	"fmt"

	"github.com/mnordin/composite-hass/internal/ha"
)

// Classification failures. Both are recovered by the caller with a diagnostic;
// neither ever mutates composite state.
var (
	// ErrUnsupportedSource marks an update whose originating entity cannot
	// be classified as gps, binary presence or another tracker type.
	ErrUnsupportedSource = errors.New("unsupported source type")

	// ErrInvalidGeometry marks a would-be GPS update with an incomplete or
	// non-numeric fix.
	ErrInvalidGeometry = errors.New("incomplete gps data")
)

// Kind is the normalized classification of a source update.
type Kind string

const (
	KindGPS    Kind = "gps"
	KindBinary Kind = "binary"
	KindOther  Kind = "other"
)

// Fix is one GPS position with its reported accuracy radius in meters.
type Fix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Snapshot is the parsed view of one raw source update. It is recomputed per
// update and never stored.
type Snapshot struct {
	EntityID   string
	Kind       Kind
	SourceType string // as reported upstream; "gps" for GPS-kind updates
	State      string // normalized: binary sensors map to home/not_home

	GPS             *Fix
	BatteryLevel    *int
	BatteryCharging *bool
	EntityPicture   string
}

// Classify inspects a raw entity state and produces the normalized snapshot
// the acceptance engine operates on. Rules, first match wins:
//
//  1. a complete fix (latitude, longitude and accuracy) makes the update GPS
//     regardless of the entity's own source_type,
//  2. a binary_sensor entity is a binary presence source,
//  3. a source_type of bluetooth, bluetooth_le or router is another tracker,
//  4. everything else is unsupported.
func Classify(e *ha.Entity) (*Snapshot, error) {
	attrs := Attrs(e.Attributes)

	snap := &Snapshot{
		EntityID:   e.EntityID,
		State:      e.State,
		SourceType: stringOr(attrs, ha.AttrSourceType),
	}

	if lvl, ok := attrs.Int(ha.AttrBatteryLevel, ha.AttrBattery); ok {
		snap.BatteryLevel = &lvl
	}
	if charging, ok := attrs.Bool(ha.AttrBatteryCharging, ha.AttrCharging); ok {
		snap.BatteryCharging = &charging
	}
	if pic, ok := attrs.String(ha.AttrEntityPicture); ok {
		snap.EntityPicture = pic
	}

	gps, gpsErr := parseFix(attrs)
	snap.GPS = gps

	switch {
	case gps != nil:
		snap.Kind = KindGPS
		snap.SourceType = ha.SourceTypeGPS
		return snap, nil

	case e.Domain() == ha.DomainBinarySensor:
		snap.Kind = KindBinary
		snap.SourceType = ha.DomainBinarySensor
		// Presence sensors report on/off; the composite speaks home/not_home.
		if e.State == ha.StateOn {
			snap.State = ha.StateHome
		} else {
			snap.State = ha.StateNotHome
		}
		return snap, nil

	case snap.SourceType == ha.SourceTypeBluetooth,
		snap.SourceType == ha.SourceTypeBluetoothLE,
		snap.SourceType == ha.SourceTypeRouter:
		snap.Kind = KindOther
		return snap, nil

	case snap.SourceType == ha.SourceTypeGPS:
		// Claims to be GPS but the fix didn't parse.
		if gpsErr == nil {
			gpsErr = ErrInvalidGeometry
		}
		return nil, gpsErr

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, snap.SourceType)
	}
}

// parseFix extracts a complete fix, or nil when the attributes carry no GPS
// data at all. A half-present fix is reported as invalid geometry.
func parseFix(attrs Attrs) (*Fix, error) {
	lat, latOK := attrs.Float(ha.AttrLatitude, ha.AttrLat)
	lon, lonOK := attrs.Float(ha.AttrLongitude, ha.AttrLon)
	acc, accOK := attrs.Float(ha.AttrGPSAccuracy, ha.AttrAcc)

	if !latOK && !lonOK && !accOK {
		return nil, nil
	}
	if !latOK || !lonOK || !accOK {
		return nil, ErrInvalidGeometry
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 || acc < 0 {
		return nil, ErrInvalidGeometry
	}
	return &Fix{Latitude: lat, Longitude: lon, Accuracy: acc}, nil
}

func stringOr(attrs Attrs, key string) string {
	s, _ := attrs.String(key)
	return s
}
