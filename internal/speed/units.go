package speed

// Unit selects the display unit system for speeds. The driving-speed
// threshold and the published sensor value always use the same unit.
type Unit string

const (
	Metric   Unit = "metric"   // km/h
	Imperial Unit = "imperial" // mph
)

const (
	msToKmh = 3.6
	msToMph = 2.236936
)

// FromMS converts meters/second into the unit's speed value.
func (u Unit) FromMS(ms float64) float64 {
	if u == Imperial {
		return ms * msToMph
	}
	return ms * msToKmh
}

// Label returns the unit string published in the sensor's discovery config.
func (u Unit) Label() string {
	if u == Imperial {
		return "mph"
	}
	return "km/h"
}

// Valid reports whether u is a known unit system.
func (u Unit) Valid() bool { return u == Metric || u == Imperial }
