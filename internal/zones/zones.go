// Package zones answers the single question the fusion engine asks about
// geography: is this position inside a configured region, and what is that
// region called.
package zones

import (
	"github.com/mnordin/composite-hass/internal/geo"
	"github.com/mnordin/composite-hass/internal/ha"
)

// Zone is one circular region. The zone named "home" doubles as the position
// adopted when a presence-only source comes home without GPS data of its own.
type Zone struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Radius    float64 `yaml:"radius"` // meters
}

// Contains reports whether the point lies within the zone's radius.
func (z *Zone) Contains(lat, lon float64) bool {
	return geo.HaversineMeters(z.Latitude, z.Longitude, lat, lon) <= z.Radius
}

// Locator looks positions up against the configured zone set.
type Locator struct {
	zones []Zone
	home  *Zone
}

// New builds a locator. Zone order is significant: the first containing zone
// wins when zones overlap.
func New(zs []Zone) *Locator {
	l := &Locator{zones: zs}
	for i := range l.zones {
		if l.zones[i].Name == ha.StateHome {
			l.home = &l.zones[i]
			break
		}
	}
	return l
}

// Find returns the first zone containing the point, or nil.
func (l *Locator) Find(lat, lon float64) *Zone {
	for i := range l.zones {
		if l.zones[i].Contains(lat, lon) {
			return &l.zones[i]
		}
	}
	return nil
}

// StateFor resolves the location label for a position: the containing zone's
// name, or not_home.
func (l *Locator) StateFor(lat, lon float64) string {
	if z := l.Find(lat, lon); z != nil {
		return z.Name
	}
	return ha.StateNotHome
}

// Home returns the home zone, or nil when none is configured.
func (l *Locator) Home() *Zone { return l.home }
