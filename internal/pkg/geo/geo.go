// Package geo holds the pure numeric kernel for trip statistics: haversine
// distance, speed and elevation accumulation, and the projection helpers the
// track renderer needs. Everything here is deterministic and side-effect
// free so the server can recompute authoritative stats from the persisted
// trace and the client can reuse the same math for display totals.
package geo

import (
	"math"
	"time"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
)

// EarthRadiusM is the sphere radius used for great-circle distances.
const EarthRadiusM = 6371000.0

// MaxRealisticSpeedKmh filters GPS noise out of max speed tracking. Pairs
// implying a faster instantaneous speed are ignored.
const MaxRealisticSpeedKmh = 150.0

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// Distance returns the haversine distance in meters between two samples.
func Distance(a, b models.Coordinate) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// TotalDistance sums pairwise distances across consecutive samples in one
// pass. Fewer than two samples is zero.
func TotalDistance(coords []models.Coordinate) float64 {
	if len(coords) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(coords); i++ {
		total += Distance(coords[i-1], coords[i])
	}
	return total
}

// ComputeStats derives distance, duration and the full stats block from a
// coordinate trace. Stats are always recomputed from the persisted samples,
// client-reported running totals are never trusted.
func ComputeStats(coords []models.Coordinate, start, end time.Time) (distanceM, durationSec float64, stats models.JourneyStats) {
	if end.After(start) {
		durationSec = end.Sub(start).Seconds()
	}

	minAlt := math.Inf(1)
	maxAlt := math.Inf(-1)

	for i, curr := range coords {
		if curr.Altitude != nil {
			if *curr.Altitude < minAlt {
				minAlt = *curr.Altitude
			}
			if *curr.Altitude > maxAlt {
				maxAlt = *curr.Altitude
			}
		}
		if i == 0 {
			continue
		}
		prev := coords[i-1]

		dist := Distance(prev, curr)
		distanceM += dist

		if dt := curr.Timestamp.Sub(prev.Timestamp).Seconds(); dt > 0 {
			speed := (dist / 1000) / (dt / 3600)
			if speed > stats.MaxSpeedKmh && speed < MaxRealisticSpeedKmh {
				stats.MaxSpeedKmh = speed
			}
		}

		if curr.Altitude != nil && prev.Altitude != nil {
			delta := *curr.Altitude - *prev.Altitude
			if delta > 0 {
				stats.ElevationGainM += delta
			} else {
				stats.ElevationLossM -= delta
			}
		}
	}

	if durationSec > 0 {
		stats.AvgSpeedKmh = (distanceM / 1000) / (durationSec / 3600)
	}
	if !math.IsInf(minAlt, 1) {
		stats.MinAltitudeM = &minAlt
	}
	if !math.IsInf(maxAlt, -1) {
		stats.MaxAltitudeM = &maxAlt
	}
	return distanceM, durationSec, stats
}

// Bounds returns the bounding box of a trace as minLat, maxLat, minLng,
// maxLng. All zeros for an empty trace.
func Bounds(coords []models.Coordinate) (minLat, maxLat, minLng, maxLng float64) {
	if len(coords) == 0 {
		return 0, 0, 0, 0
	}
	minLat, maxLat = coords[0].Lat, coords[0].Lat
	minLng, maxLng = coords[0].Lng, coords[0].Lng
	for _, c := range coords[1:] {
		minLat = math.Min(minLat, c.Lat)
		maxLat = math.Max(maxLat, c.Lat)
		minLng = math.Min(minLng, c.Lng)
		maxLng = math.Max(maxLng, c.Lng)
	}
	return minLat, maxLat, minLng, maxLng
}

// Interpolate returns points spaced at most stepM meters apart along the
// straight segments between the given waypoints. Used by the simulated
// position source to turn sparse roadmap stops into a walkable path.
func Interpolate(waypoints []models.Coordinate, stepM float64) []models.Coordinate {
	if len(waypoints) < 2 || stepM <= 0 {
		return waypoints
	}
	out := make([]models.Coordinate, 0, len(waypoints))
	for i := 0; i < len(waypoints)-1; i++ {
		start, end := waypoints[i], waypoints[i+1]
		steps := int(Distance(start, end) / stepM)
		if steps < 1 {
			steps = 1
		}
		for j := 0; j < steps; j++ {
			f := float64(j) / float64(steps)
			out = append(out, models.Coordinate{
				Lat: start.Lat + (end.Lat-start.Lat)*f,
				Lng: start.Lng + (end.Lng-start.Lng)*f,
			})
		}
	}
	return append(out, waypoints[len(waypoints)-1])
}
