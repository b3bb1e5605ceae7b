// Package speed derives a scalar speed, a movement angle and a compass
// direction from the sequence of GPS positions a composite tracker accepts.
package speed

import (
	"math"
	"time"

	"github.com/mnordin/composite-hass/internal/geo"
	"github.com/sirupsen/logrus"
)

const (
	// minInterval is the smallest elapsed time between two fixes that
	// yields a meaningful speed. Jitter between rapid-fire updates would
	// otherwise produce wild readings.
	minInterval = 5 * time.Second

	// crossEntityFactor stretches minInterval when the two fixes come from
	// different source entities, whose clocks and accuracies differ.
	crossEntityFactor = 3

	// minAngleSpeed is the speed in m/s below which the computed angle is
	// noise and is withheld.
	minAngleSpeed = 1.0
)

// Reading is one derived sensor value. A zero Reading (nil Speed) publishes
// the sensor as unknown rather than zero.
type Reading struct {
	Speed     *float64 // in the calculator's unit system
	Angle     *int     // degrees, 0-360
	Direction *string  // 16-point compass
}

type record struct {
	lat, lon float64
	seen     time.Time
	entityID string
}

// Calculator keeps the last two accepted fixes of one composite tracker and
// turns them into Readings. It is owned by the tracker's update handler and
// needs no locking.
type Calculator struct {
	unit   Unit
	prev   *record
	logger *logrus.Entry
}

// NewCalculator returns a calculator publishing in the given unit system.
func NewCalculator(unit Unit, logger *logrus.Entry) *Calculator {
	return &Calculator{unit: unit, logger: logger}
}

// Unit returns the unit system readings are expressed in.
func (c *Calculator) Unit() Unit { return c.unit }

// Observe records a newly accepted fix and returns the resulting reading.
// The boolean is false when the sensor should not be republished at all
// (elapsed time below the minimum); an empty Reading with ok=true publishes
// the sensor as unknown.
func (c *Calculator) Observe(lat, lon float64, seen time.Time, entityID string) (Reading, bool) {
	prev := c.prev
	c.prev = &record{lat: lat, lon: lon, seen: seen, entityID: entityID}

	if prev == nil {
		return Reading{}, true
	}

	elapsed := seen.Sub(prev.seen)
	if elapsed <= 0 {
		return Reading{}, true
	}
	min := minInterval
	if prev.entityID != entityID {
		min *= crossEntityFactor
	}
	if elapsed < min {
		c.logger.WithFields(logrus.Fields{
			"elapsed": elapsed,
			"minimum": min,
		}).Debug("Withholding speed: time delta too small")
		return Reading{}, false
	}

	meters := geo.HaversineMeters(prev.lat, prev.lon, lat, lon)
	ms := meters / elapsed.Seconds()

	value := math.Round(c.unit.FromMS(ms)*10) / 10
	reading := Reading{Speed: &value}

	if ms > minAngleSpeed {
		angle := int(math.Round(geo.InitialBearing(prev.lat, prev.lon, lat, lon))) % 360
		dir := geo.CompassPoint(float64(angle))
		reading.Angle = &angle
		reading.Direction = &dir
	}
	return reading, true
}

// Reset discards the position history, e.g. when the composite adopts a
// non-GPS location or the tracker set is rebuilt on reload.
func (c *Calculator) Reset() { c.prev = nil }
