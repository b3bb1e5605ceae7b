package speed

import (
	"io"
	"testing"
	"time"

	"github.com/mnordin/composite-hass/internal/geo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCalculator(unit Unit) *Calculator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewCalculator(unit, logger.WithField("tracker", "test"))
}

// latOffsetMeters moves roughly the given number of meters due north.
func latOffsetMeters(meters float64) float64 {
	return meters / 111194.93
}

func TestObserveFirstFix(t *testing.T) {
	c := testCalculator(Metric)

	r, ok := c.Observe(59.3, 18.0, time.Now(), "device_tracker.a")
	assert.True(t, ok)
	assert.Nil(t, r.Speed)
	assert.Nil(t, r.Angle)
}

func TestObserveSlowSpeedImperial(t *testing.T) {
	c := testCalculator(Imperial)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	lat1, lon1 := 59.3, 18.0
	lat2 := lat1 + latOffsetMeters(1000)

	_, ok := c.Observe(lat1, lon1, start, "device_tracker.a")
	require.True(t, ok)

	r, ok := c.Observe(lat2, lon1, start.Add(time.Hour), "device_tracker.a")
	require.True(t, ok)
	require.NotNil(t, r.Speed)

	// 1000 m/h is ~0.62 mph; allow formula-level variance.
	meters := geo.HaversineMeters(lat1, lon1, lat2, lon1)
	assert.InDelta(t, 1000, meters, 5)
	assert.InDelta(t, 0.62, *r.Speed, 0.06)
	// Well below walking pace: the angle is withheld as noise.
	assert.Nil(t, r.Angle)
}

func TestObserveAngleAndDirection(t *testing.T) {
	c := testCalculator(Metric)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	lat1, lon1 := 59.3, 18.0
	lat2 := lat1 + latOffsetMeters(600) // 600 m north in 60 s = 10 m/s

	_, ok := c.Observe(lat1, lon1, start, "device_tracker.a")
	require.True(t, ok)

	r, ok := c.Observe(lat2, lon1, start.Add(time.Minute), "device_tracker.a")
	require.True(t, ok)
	require.NotNil(t, r.Speed)
	assert.InDelta(t, 36.0, *r.Speed, 0.5) // 10 m/s in km/h
	require.NotNil(t, r.Angle)
	assert.Equal(t, 0, *r.Angle)
	require.NotNil(t, r.Direction)
	assert.Equal(t, "N", *r.Direction)
}

func TestObserveMinimumInterval(t *testing.T) {
	c := testCalculator(Metric)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, ok := c.Observe(59.3, 18.0, start, "device_tracker.a")
	require.True(t, ok)

	// Too soon after the previous fix: withhold the sensor entirely.
	_, ok = c.Observe(59.301, 18.0, start.Add(3*time.Second), "device_tracker.a")
	assert.False(t, ok)

	// The short-interval fix still rotated into history.
	r, ok := c.Observe(59.302, 18.0, start.Add(30*time.Second), "device_tracker.a")
	require.True(t, ok)
	require.NotNil(t, r.Speed)
}

func TestObserveCrossEntityInterval(t *testing.T) {
	c := testCalculator(Metric)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, ok := c.Observe(59.3, 18.0, start, "device_tracker.a")
	require.True(t, ok)

	// 10s is enough within one entity but not across entities.
	_, ok = c.Observe(59.301, 18.0, start.Add(10*time.Second), "device_tracker.b")
	assert.False(t, ok)
}

func TestObserveZeroElapsed(t *testing.T) {
	c := testCalculator(Metric)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, ok := c.Observe(59.3, 18.0, now, "device_tracker.a")
	require.True(t, ok)

	// Identical timestamps make speed undefined, not zero.
	r, ok := c.Observe(59.4, 18.0, now, "device_tracker.a")
	assert.True(t, ok)
	assert.Nil(t, r.Speed)
}

func TestReset(t *testing.T) {
	c := testCalculator(Metric)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, ok := c.Observe(59.3, 18.0, start, "device_tracker.a")
	require.True(t, ok)
	c.Reset()

	r, ok := c.Observe(59.4, 18.0, start.Add(time.Hour), "device_tracker.a")
	assert.True(t, ok)
	assert.Nil(t, r.Speed)
}

func TestUnits(t *testing.T) {
	assert.InDelta(t, 3.6, Metric.FromMS(1), 1e-9)
	assert.InDelta(t, 2.236936, Imperial.FromMS(1), 1e-6)
	assert.Equal(t, "km/h", Metric.Label())
	assert.Equal(t, "mph", Imperial.Label())
	assert.False(t, Unit("nautical").Valid())
}
