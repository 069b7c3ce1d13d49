package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
)

func coord(lat, lng float64, alt *float64, ts time.Time) models.Coordinate {
	return models.Coordinate{Lat: lat, Lng: lng, Altitude: alt, Timestamp: ts}
}

func altPtr(v float64) *float64 { return &v }

func TestHaversineIdenticalPointsIsZero(t *testing.T) {
	assert.Zero(t, Haversine(27.7172, 85.3240, 27.7172, 85.3240))
}

func TestHaversineKnownDistance(t *testing.T) {
	// Kathmandu Durbar Square to Patan Durbar Square, roughly 3.9 km.
	d := Haversine(27.7042, 85.3067, 27.6727, 85.3240)
	assert.InDelta(t, 3900, d, 300)
}

func TestTotalDistanceCollinearEqualsEndpoints(t *testing.T) {
	base := time.Now()
	start := coord(27.7000, 85.3000, nil, base)
	end := coord(27.7100, 85.3000, nil, base.Add(10*time.Minute))

	// Intermediate samples on the same meridian.
	trace := []models.Coordinate{start}
	for i := 1; i < 10; i++ {
		trace = append(trace, coord(27.7000+0.001*float64(i), 85.3000, nil, base.Add(time.Duration(i)*time.Minute)))
	}
	trace = append(trace, end)

	direct := Distance(start, end)
	assert.InDelta(t, direct, TotalDistance(trace), direct*1e-9)
}

func TestTotalDistanceFewerThanTwoPoints(t *testing.T) {
	assert.Zero(t, TotalDistance(nil))
	assert.Zero(t, TotalDistance([]models.Coordinate{coord(1, 1, nil, time.Now())}))
}

func TestComputeStatsSpeedAndElevation(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	trace := []models.Coordinate{
		coord(27.7000, 85.3000, altPtr(1300), base),
		coord(27.7010, 85.3000, altPtr(1310), base.Add(60*time.Second)),
		coord(27.7020, 85.3000, altPtr(1305), base.Add(120*time.Second)),
	}
	end := base.Add(2 * time.Minute)

	distance, duration, stats := ComputeStats(trace, base, end)

	require.Greater(t, distance, 0.0)
	assert.Equal(t, 120.0, duration)
	assert.InDelta(t, 10.0, stats.ElevationGainM, 1e-9)
	assert.InDelta(t, 5.0, stats.ElevationLossM, 1e-9)
	require.NotNil(t, stats.MinAltitudeM)
	require.NotNil(t, stats.MaxAltitudeM)
	assert.Equal(t, 1300.0, *stats.MinAltitudeM)
	assert.Equal(t, 1310.0, *stats.MaxAltitudeM)
	// ~111m per minute is ~6.7 km/h, well under the noise cutoff.
	assert.Greater(t, stats.MaxSpeedKmh, 0.0)
	assert.InDelta(t, (distance/1000)/(duration/3600), stats.AvgSpeedKmh, 1e-9)
}

func TestComputeStatsFiltersUnrealisticSpeed(t *testing.T) {
	base := time.Now()
	// Two points ~11 km apart one second apart, >150 km/h.
	trace := []models.Coordinate{
		coord(27.70, 85.30, nil, base),
		coord(27.80, 85.30, nil, base.Add(time.Second)),
	}
	_, _, stats := ComputeStats(trace, base, base.Add(time.Second))
	assert.Zero(t, stats.MaxSpeedKmh)
}

func TestComputeStatsNoAltitudeData(t *testing.T) {
	base := time.Now()
	trace := []models.Coordinate{
		coord(27.70, 85.30, nil, base),
		coord(27.7001, 85.30, nil, base.Add(time.Minute)),
	}
	_, _, stats := ComputeStats(trace, base, base.Add(time.Minute))
	assert.Nil(t, stats.MinAltitudeM)
	assert.Nil(t, stats.MaxAltitudeM)
	assert.Zero(t, stats.ElevationGainM)
	assert.Zero(t, stats.ElevationLossM)
}

func TestComputeStatsAltitudeGapDoesNotAccumulate(t *testing.T) {
	base := time.Now()
	trace := []models.Coordinate{
		coord(27.70, 85.30, altPtr(1300), base),
		coord(27.7001, 85.30, nil, base.Add(time.Minute)),
		coord(27.7002, 85.30, altPtr(1400), base.Add(2*time.Minute)),
	}
	_, _, stats := ComputeStats(trace, base, base.Add(2*time.Minute))
	// The 1300 -> 1400 climb spans a null sample, neither pair has two
	// altitudes so nothing accumulates.
	assert.Zero(t, stats.ElevationGainM)
	require.NotNil(t, stats.MaxAltitudeM)
	assert.Equal(t, 1400.0, *stats.MaxAltitudeM)
}

func TestBounds(t *testing.T) {
	trace := []models.Coordinate{
		coord(27.70, 85.32, nil, time.Now()),
		coord(27.72, 85.30, nil, time.Now()),
		coord(27.71, 85.31, nil, time.Now()),
	}
	minLat, maxLat, minLng, maxLng := Bounds(trace)
	assert.Equal(t, 27.70, minLat)
	assert.Equal(t, 27.72, maxLat)
	assert.Equal(t, 85.30, minLng)
	assert.Equal(t, 85.32, maxLng)
}

func TestInterpolateStepSpacing(t *testing.T) {
	waypoints := []models.Coordinate{
		coord(27.7000, 85.3000, nil, time.Time{}),
		coord(27.7050, 85.3000, nil, time.Time{}),
	}
	path := Interpolate(waypoints, 5)

	require.Greater(t, len(path), 2)
	for i := 1; i < len(path); i++ {
		assert.LessOrEqual(t, Distance(path[i-1], path[i]), 6.0)
	}
	assert.Equal(t, waypoints[0].Lat, path[0].Lat)
	assert.Equal(t, waypoints[1].Lat, path[len(path)-1].Lat)
}
