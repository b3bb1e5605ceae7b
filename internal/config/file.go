package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/mnordin/composite-hass/internal/speed"
	"github.com/mnordin/composite-hass/internal/zones"
	"gopkg.in/yaml.v3"
)

// SourceSpec is the static configuration of one watched source entity.
type SourceSpec struct {
	Entity     string `yaml:"entity"`
	AllStates  bool   `yaml:"all_states"`
	UsePicture bool   `yaml:"use_picture"`
}

// TrackerConfig is one composite tracker definition.
type TrackerConfig struct {
	ID              string       `yaml:"id"`
	Name            string       `yaml:"name"`
	RequireMovement bool         `yaml:"require_movement"`
	DrivingSpeed    *float64     `yaml:"driving_speed"` // in the file's unit system
	EntityPicture   string       `yaml:"entity_picture"`
	Sources         []SourceSpec `yaml:"entities"`
}

// PictureSource returns the entity ID flagged as picture source, if any.
func (t *TrackerConfig) PictureSource() string {
	for _, s := range t.Sources {
		if s.UsePicture {
			return s.Entity
		}
	}
	return ""
}

// File is the reloadable part of the configuration: zones plus composite
// tracker definitions.
type File struct {
	UnitSystem speed.Unit      `yaml:"unit_system"`
	Zones      []zones.Zone    `yaml:"zones"`
	Trackers   []TrackerConfig `yaml:"trackers"`
}

// Load reads and validates the trackers file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trackers file: %w", err)
	}

	f := &File{UnitSystem: speed.Metric}
	if err := yaml.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("failed to parse trackers file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate enforces the configuration-time invariants: a known unit system,
// well-formed zones, unique tracker IDs, at least one source per tracker, at
// most one picture source, and no picture source next to an explicit picture.
func (f *File) Validate() error {
	if !f.UnitSystem.Valid() {
		return fmt.Errorf("unit_system must be %q or %q", speed.Metric, speed.Imperial)
	}

	for i, z := range f.Zones {
		if z.Name == "" {
			return fmt.Errorf("zone %d: name is required", i)
		}
		if z.Radius <= 0 {
			return fmt.Errorf("zone %q: radius must be positive", z.Name)
		}
	}

	if len(f.Trackers) == 0 {
		return fmt.Errorf("at least one tracker is required")
	}

	seen := make(map[string]bool, len(f.Trackers))
	for i := range f.Trackers {
		t := &f.Trackers[i]
		if t.ID == "" {
			t.ID = slugify(t.Name)
		}
		if t.ID == "" {
			return fmt.Errorf("tracker %d: id or name is required", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("tracker %q: duplicate id", t.ID)
		}
		seen[t.ID] = true
		if t.Name == "" {
			t.Name = titleFromID(t.ID)
		}

		if len(t.Sources) == 0 {
			return fmt.Errorf("tracker %q: at least one source entity is required", t.ID)
		}
		pictures := 0
		for _, s := range t.Sources {
			if s.Entity == "" {
				return fmt.Errorf("tracker %q: source entity must not be empty", t.ID)
			}
			if s.UsePicture {
				pictures++
			}
		}
		if pictures > 1 {
			return fmt.Errorf("tracker %q: use_picture may only be set on one source", t.ID)
		}
		if pictures > 0 && t.EntityPicture != "" {
			return fmt.Errorf("tracker %q: entity_picture and use_picture are mutually exclusive", t.ID)
		}
		if t.EntityPicture != "" {
			if _, err := url.Parse(t.EntityPicture); err != nil {
				return fmt.Errorf("tracker %q: invalid entity_picture: %w", t.ID, err)
			}
		}
		if t.DrivingSpeed != nil && *t.DrivingSpeed <= 0 {
			return fmt.Errorf("tracker %q: driving_speed must be positive", t.ID)
		}
	}
	return nil
}

// titleFromID turns an object ID into a display name ("kims_phone" becomes
// "Kims Phone").
func titleFromID(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// slugify lowercases and collapses a display name into an object ID.
func slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
