package source

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveLastSeenEquivalentEncodings(t *testing.T) {
	// The same real instant in four encodings must resolve identically.
	zone := time.FixedZone("CET", 2*3600)
	want := time.Date(2024, 5, 1, 12, 30, 0, 0, zone)
	fallback := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	encodings := []any{
		want.Format(time.RFC3339),          // aware timestamp
		"2024-05-01 12:30:00",              // naive, interpreted in zone
		fmt.Sprintf("%d", want.Unix()),     // POSIX seconds as string
		float64(want.Unix()),               // POSIX seconds as number
	}

	for i, enc := range encodings {
		attrs := Attrs{"last_seen": enc}
		got := ResolveLastSeen(attrs, fallback, zone)
		assert.True(t, got.Equal(want), "encoding %d: got %v want %v", i, got, want)
	}
}

func TestResolveLastSeenPreference(t *testing.T) {
	zone := time.UTC
	fallback := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	attrs := Attrs{
		"last_seen":      "2024-05-01T10:00:00Z",
		"last_timestamp": "2024-05-01T09:00:00Z",
	}
	got := ResolveLastSeen(attrs, fallback, zone)
	assert.Equal(t, 10, got.Hour())

	attrs = Attrs{"last_timestamp": "2024-05-01T09:00:00Z"}
	got = ResolveLastSeen(attrs, fallback, zone)
	assert.Equal(t, 9, got.Hour())
}

func TestResolveLastSeenFallbacks(t *testing.T) {
	zone := time.UTC
	fallback := time.Date(2024, 5, 1, 8, 15, 0, 0, time.UTC)

	// Missing attribute.
	got := ResolveLastSeen(Attrs{}, fallback, zone)
	assert.True(t, got.Equal(fallback))

	// Present but malformed: recovered with the fallback, never an error.
	got = ResolveLastSeen(Attrs{"last_seen": "yesterday-ish"}, fallback, zone)
	assert.True(t, got.Equal(fallback))

	got = ResolveLastSeen(Attrs{"last_seen": []any{1, 2}}, fallback, zone)
	assert.True(t, got.Equal(fallback))
}

func TestResolveLastSeenFractionalPosix(t *testing.T) {
	fallback := time.Now()
	got := ResolveLastSeen(Attrs{"last_seen": 1714558200.5}, fallback, time.UTC)
	assert.Equal(t, int64(1714558200), got.Unix())
	assert.Equal(t, 500*time.Millisecond, time.Duration(got.Nanosecond()))
}
