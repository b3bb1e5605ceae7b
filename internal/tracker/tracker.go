// Package tracker implements the state-fusion core: per-update source
// classification, GPS movement filtering, state acceptance and attribute
// merging for one composite tracker instance.
package tracker

import (
	"time"

	"github.com/mnordin/composite-hass/internal/config"
	"github.com/mnordin/composite-hass/internal/geo"
	"github.com/mnordin/composite-hass/internal/ha"
	"github.com/mnordin/composite-hass/internal/source"
	"github.com/mnordin/composite-hass/internal/speed"
	"github.com/mnordin/composite-hass/internal/zones"
	"github.com/sirupsen/logrus"
)

// StateDriving is the display state used when the composite is moving above
// the configured driving speed outside every zone.
const StateDriving = "driving"

// State is the fused read model of one composite tracker. It is what gets
// published to Home Assistant and persisted for restore.
type State struct {
	State           string     `json:"state"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	GPSAccuracy     *float64   `json:"gps_accuracy,omitempty"`
	SourceType      string     `json:"source_type,omitempty"`
	BatteryLevel    *int       `json:"battery_level,omitempty"`
	BatteryCharging *bool      `json:"battery_charging,omitempty"`
	EntityPicture   string     `json:"entity_picture,omitempty"`
	Entities        []string   `json:"entities,omitempty"`
	LastEntityID    string     `json:"last_entity_id,omitempty"`
	LastSeen        *time.Time `json:"last_seen,omitempty"`
}

// Result is the outcome of processing one source update.
type Result struct {
	// Accepted is true when the update changed the composite state or
	// position. Battery attributes may change even on rejected updates.
	Accepted bool
	// State is a copy of the composite state after the update.
	State State
	// Speed carries the derived sensor reading when PublishSpeed is set.
	Speed        speed.Reading
	PublishSpeed bool
}

// Tracker fuses the updates of its configured source entities into one
// composite state. All methods must be called from a single goroutine; each
// update runs to completion before the next (there is no locking by design).
type Tracker struct {
	cfg    config.TrackerConfig
	zones  *zones.Locator
	calc   *speed.Calculator
	logger *logrus.Entry
	tz     *time.Location

	entities    map[string]*entityData
	contributed []string // source IDs that have contributed, first-seen order

	state State
	// locationName is the explicit location label of the current state, set
	// when the state did not come from a zone lookup of a GPS fix.
	locationName string
	// prevSeen is the last_seen of the most recent accepted update. Zero
	// until the first live acceptance; restored state does not count.
	prevSeen time.Time
}

// New builds a tracker from its configuration. The unit system governs the
// derived speed sensor and the driving threshold comparison.
func New(cfg config.TrackerConfig, unit speed.Unit, loc *zones.Locator, tz *time.Location, logger *logrus.Logger) *Tracker {
	if tz == nil {
		tz = time.Local
	}
	entry := logger.WithField("tracker", cfg.ID)

	t := &Tracker{
		cfg:      cfg,
		zones:    loc,
		calc:     speed.NewCalculator(unit, entry),
		logger:   entry,
		tz:       tz,
		entities: make(map[string]*entityData, len(cfg.Sources)),
		state:    State{State: ha.StateUnknown, EntityPicture: cfg.EntityPicture},
	}
	for _, s := range cfg.Sources {
		t.entities[s.Entity] = &entityData{
			id:         s.Entity,
			allStates:  s.AllStates,
			usePicture: s.UsePicture,
		}
	}
	return t
}

// ID returns the tracker's object ID.
func (t *Tracker) ID() string { return t.cfg.ID }

// Name returns the tracker's display name.
func (t *Tracker) Name() string { return t.cfg.Name }

// Watches reports whether the entity is one of this tracker's sources.
func (t *Tracker) Watches(entityID string) bool {
	_, ok := t.entities[entityID]
	return ok
}

// State returns a copy of the current composite state.
func (t *Tracker) State() State {
	st := t.state
	st.Entities = append([]string(nil), t.state.Entities...)
	return st
}

// Restore seeds the composite state from a persisted copy. It must be called
// before the first live update and never feeds the speed calculator: position
// history starts fresh after a restart.
func (t *Tracker) Restore(st State) {
	if !t.prevSeen.IsZero() {
		return
	}
	// An explicit configured picture wins over whatever was persisted.
	if t.cfg.EntityPicture != "" {
		st.EntityPicture = t.cfg.EntityPicture
	}
	// Drop sources that are no longer configured.
	var entities []string
	for _, id := range st.Entities {
		if _, ok := t.entities[id]; ok {
			entities = append(entities, id)
		}
	}
	st.Entities = entities
	t.contributed = append([]string(nil), entities...)
	if st.SourceType != ha.SourceTypeGPS && st.Latitude == nil {
		t.locationName = st.State
	}
	t.state = st
	t.logger.WithField("state", st.State).Debug("Restored composite state")
}

// Process runs one source update through the full pipeline: classify, filter,
// accept or reject, merge attributes, and derive speed. It is the only method
// that mutates composite state.
func (t *Tracker) Process(e *ha.Entity) Result {
	res := t.process(e)
	res.State = t.State()
	return res
}

func (t *Tracker) process(e *ha.Entity) Result {
	if !e.Usable() {
		return Result{}
	}
	ent := t.entities[e.EntityID]
	if ent == nil {
		t.logger.WithField("entity_id", e.EntityID).Debug("Update for unwatched entity")
		return Result{}
	}

	attrs := source.Attrs(e.Attributes)
	seen := source.ResolveLastSeen(attrs, e.LastUpdated, t.tz)
	if !ent.seen.IsZero() && seen.Before(ent.seen) {
		ent.bad(t.logger, "last_seen went backwards")
		return Result{}
	}

	snap, err := source.Classify(e)
	if err != nil {
		ent.bad(t.logger, err.Error())
		return Result{}
	}

	if ent.usePicture {
		t.state.EntityPicture = snap.EntityPicture
	}

	// The merger runs for every classified update, accepted or not.
	defer t.mergeAttributes(snap)

	var fix *source.Fix
	locationName := ""
	sourceType := snap.SourceType

	switch snap.Kind {
	case source.KindGPS:
		// Identical fix with identical last_seen is a repeat, not news.
		if !ent.seen.IsZero() && seen.Equal(ent.seen) && ent.fix != nil && *ent.fix == *snap.GPS {
			return Result{}
		}
		prevFix := ent.fix
		t.markContributed(ent, seen, snap)

		if t.cfg.RequireMovement && prevFix != nil {
			dist := geo.HaversineMeters(
				snap.GPS.Latitude, snap.GPS.Longitude,
				prevFix.Latitude, prevFix.Longitude,
			)
			if dist <= snap.GPS.Accuracy+prevFix.Accuracy {
				t.logger.WithFields(logrus.Fields{
					"source":   e.EntityID,
					"distance": dist,
				}).Debug("Skipping update: not enough movement")
				return Result{}
			}
		}
		fix = snap.GPS

	default:
		t.markContributed(ent, seen, snap)
		if !t.useNonGPSData(ent, snap.State) {
			return Result{}
		}

		homeWithGPS := t.locationName == "" &&
			t.state.State == ha.StateHome &&
			t.state.Latitude != nil && t.state.Longitude != nil
		if t.locationName == "" && t.state.State == ha.StateHome && !homeWithGPS {
			t.logger.Warn("Unexpectedly home without GPS data")
		}

		// Classification promotes any update with a complete fix to GPS
		// kind, so snap.GPS is always nil here.
		switch {
		case snap.State == ha.StateHome && homeWithGPS:
			// Keep the known home position; corroborated by this source.
			acc := 0.0
			if t.state.GPSAccuracy != nil {
				acc = *t.state.GPSAccuracy
			}
			fix = &source.Fix{Latitude: *t.state.Latitude, Longitude: *t.state.Longitude, Accuracy: acc}
			sourceType = ha.SourceTypeGPS
		case snap.State == ha.StateHome && t.zones.Home() != nil:
			h := t.zones.Home()
			fix = &source.Fix{Latitude: h.Latitude, Longitude: h.Longitude}
			sourceType = ha.SourceTypeGPS
		default:
			locationName = snap.State
		}
	}

	// Never move composite time backward.
	if !t.prevSeen.IsZero() && !seen.After(t.prevSeen) {
		t.logger.WithFields(logrus.Fields{
			"source":    e.EntityID,
			"last_seen": seen,
			"previous":  t.prevSeen,
		}).Debug("Skipping update: last_seen not newer than previous update")
		return Result{}
	}

	t.logger.WithField("source", e.EntityID).Debug("Updating composite state")
	reading, publish := t.applyState(e.EntityID, seen, locationName, fix, sourceType)
	return Result{Accepted: true, Speed: reading, PublishSpeed: publish}
}

// applyState adopts the accepted update into the composite state and derives
// the speed sensor reading.
func (t *Tracker) applyState(entityID string, seen time.Time, locationName string, fix *source.Fix, sourceType string) (speed.Reading, bool) {
	t.state.SourceType = sourceType
	t.locationName = locationName

	if fix != nil {
		lat, lon, acc := fix.Latitude, fix.Longitude, fix.Accuracy
		t.state.Latitude = &lat
		t.state.Longitude = &lon
		t.state.GPSAccuracy = &acc
		t.state.State = t.zones.StateFor(lat, lon)
	} else {
		t.state.Latitude = nil
		t.state.Longitude = nil
		t.state.GPSAccuracy = nil
		t.state.State = locationName
	}

	t.state.Entities = append([]string(nil), t.contributed...)
	t.state.LastEntityID = entityID
	rounded := seen.Round(time.Second)
	t.state.LastSeen = &rounded
	t.prevSeen = seen

	if fix == nil {
		// The composite no longer has a position; speed is undefined.
		t.calc.Reset()
		return speed.Reading{}, true
	}

	reading, publish := t.calc.Observe(fix.Latitude, fix.Longitude, seen, entityID)
	if publish &&
		reading.Speed != nil &&
		t.cfg.DrivingSpeed != nil &&
		*reading.Speed >= *t.cfg.DrivingSpeed &&
		t.state.State == ha.StateNotHome {
		t.state.State = StateDriving
	}
	return reading, publish
}

// useNonGPSData decides whether a non-GPS state may update the composite.
// Home is always eligible, as is everything from an all_states source. An
// away state otherwise only counts when no GPS source has ever contributed
// and every contributing non-GPS source is simultaneously away.
func (t *Tracker) useNonGPSData(ent *entityData, state string) bool {
	if state == ha.StateHome || ent.allStates {
		return true
	}
	for _, e := range t.entities {
		if e.sourceType == ha.SourceTypeGPS {
			return false
		}
	}
	for _, e := range t.entities {
		if e.sourceType == "" {
			continue
		}
		if e.state == ha.StateHome {
			return false
		}
	}
	return true
}

// mergeAttributes applies the battery attributes of the snapshot regardless
// of acceptance. Last write wins across all sources.
func (t *Tracker) mergeAttributes(snap *source.Snapshot) {
	if snap.BatteryLevel != nil {
		lvl := *snap.BatteryLevel
		t.state.BatteryLevel = &lvl
	}
	if snap.BatteryCharging != nil {
		charging := *snap.BatteryCharging
		t.state.BatteryCharging = &charging
	}
}

// markContributed records a good update and keeps the first-seen ordered
// entities collection.
func (t *Tracker) markContributed(ent *entityData, seen time.Time, snap *source.Snapshot) {
	first := ent.sourceType == ""
	ent.good(seen, snap)
	if !first {
		return
	}
	for _, id := range t.contributed {
		if id == ent.id {
			return
		}
	}
	t.contributed = append(t.contributed, ent.id)
}
