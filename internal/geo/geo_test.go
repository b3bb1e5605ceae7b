package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMeters(t *testing.T) {
	// One degree of latitude is ~111.2 km on a 6371 km sphere.
	d := HaversineMeters(0, 0, 1, 0)
	assert.InDelta(t, 111194.9, d, 556) // 0.5% formula tolerance

	// Zero distance.
	assert.Equal(t, 0.0, HaversineMeters(59.3, 18.0, 59.3, 18.0))

	// Symmetry.
	assert.InDelta(t,
		HaversineMeters(59.3, 18.0, 59.4, 18.2),
		HaversineMeters(59.4, 18.2, 59.3, 18.0),
		1e-6)
}

func TestInitialBearing(t *testing.T) {
	assert.InDelta(t, 0, InitialBearing(0, 0, 1, 0), 0.01)    // due north
	assert.InDelta(t, 90, InitialBearing(0, 0, 0, 1), 0.01)   // due east
	assert.InDelta(t, 180, InitialBearing(1, 0, 0, 0), 0.01)  // due south
	assert.InDelta(t, 270, InitialBearing(0, 1, 0, 0), 0.01)  // due west
}

func TestCompassPoint(t *testing.T) {
	cases := map[float64]string{
		0:      "N",
		11.24:  "N",
		11.26:  "NNE",
		45:     "NE",
		90:     "E",
		180:    "S",
		270:    "W",
		348.74: "NNW",
		348.76: "N",
		359.9:  "N",
	}
	for bearing, want := range cases {
		assert.Equal(t, want, CompassPoint(bearing), "bearing %v", bearing)
	}
}
