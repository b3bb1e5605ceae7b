package source

import (
	"strconv"
	"strings"
)

// Attrs provides tolerant, alias-aware access to a raw Home Assistant
// attribute mapping. Sources are duck-typed: the same logical field appears
// under different keys and types depending on the integration that produced
// it, so every accessor takes a preference-ordered key list.
type Attrs map[string]any

// First returns the value for the first present key.
func (a Attrs) First(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := a[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// Float returns the first present key coerced to float64. Numeric strings are
// accepted; anything else fails the coercion.
func (a Attrs) Float(keys ...string) (float64, bool) {
	v, ok := a.First(keys...)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Int is Float truncated to an int.
func (a Attrs) Int(keys ...string) (int, bool) {
	f, ok := a.Float(keys...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Bool returns the first present key coerced to bool. Accepts native bools,
// the strings understood by strconv.ParseBool and HA's "on"/"off".
func (a Attrs) Bool(keys ...string) (bool, bool) {
	v, ok := a.First(keys...)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(b) {
		case "on":
			return true, true
		case "off":
			return false, true
		}
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed, true
		}
	}
	return false, false
}

// String returns the first present key as a string.
func (a Attrs) String(keys ...string) (string, bool) {
	v, ok := a.First(keys...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
