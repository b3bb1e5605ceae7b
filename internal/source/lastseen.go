package source

import (
	"time"

	"github.com/mnordin/composite-hass/internal/ha"
)

// Timestamp layouts seen in the wild on last_seen attributes. Naive layouts
// (no zone) are interpreted in the configured local zone.
var lastSeenLayouts = []struct {
	layout string
	naive  bool
}{
	{time.RFC3339Nano, false},
	{"2006-01-02 15:04:05.999999999Z07:00", false},
	{"2006-01-02T15:04:05.999999999", true},
	{"2006-01-02 15:04:05.999999999", true},
}

// ResolveLastSeen extracts the time the device was actually last seen from
// the raw attributes, preferring last_seen over last_timestamp. The value may
// be a zone-aware or naive timestamp string, or a POSIX timestamp as a number
// or numeric string. A missing or unparsable value falls back to the entity's
// own last_updated time; the resolver always yields a usable timestamp.
func ResolveLastSeen(attrs Attrs, fallback time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}

	v, ok := attrs.First(ha.AttrLastSeen, ha.AttrLastTimestamp)
	if !ok {
		return fallback.In(loc)
	}

	switch ts := v.(type) {
	case time.Time:
		return ts.In(loc)
	case string:
		for _, l := range lastSeenLayouts {
			var t time.Time
			var err error
			if l.naive {
				t, err = time.ParseInLocation(l.layout, ts, loc)
			} else {
				t, err = time.Parse(l.layout, ts)
			}
			if err == nil {
				return t.In(loc)
			}
		}
		// Not a date string; maybe POSIX seconds in string form.
		if secs, ok := toFloat(ts); ok {
			return fromUnixSeconds(secs).In(loc)
		}
	default:
		if secs, ok := toFloat(v); ok {
			return fromUnixSeconds(secs).In(loc)
		}
	}

	return fallback.In(loc)
}

func fromUnixSeconds(secs float64) time.Time {
	whole := int64(secs)
	frac := secs - float64(whole)
	return time.Unix(whole, int64(frac*float64(time.Second)))
}
