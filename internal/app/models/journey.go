package models

import (
	"time"

	"github.com/google/uuid"
)

// JourneyStatus is the recording lifecycle state persisted on the server.
type JourneyStatus string

const (
	JourneyRecording JourneyStatus = "recording"
	JourneyPaused    JourneyStatus = "paused"
	JourneyCompleted JourneyStatus = "completed"
	JourneyCancelled JourneyStatus = "cancelled"
)

// Active reports whether the status still accepts coordinates.
func (s JourneyStatus) Active() bool {
	return s == JourneyRecording || s == JourneyPaused
}

// MinRecordingDuration is the minimum duration for a journey to complete.
const MinRecordingDuration = 30 * time.Second

// MinRecordingPoints is the minimum coordinate count for a journey to complete.
const MinRecordingPoints = 2

// Coordinate is a single GPS fix captured during a recording.
// Altitude and accuracy are optional, some devices never report them.
// Lat/Lng carry range tags only: zero is a valid fix on the equator or
// prime meridian, a required tag would reject it.
type Coordinate struct {
	Lat       float64   `json:"lat" binding:"min=-90,max=90"`
	Lng       float64   `json:"lng" binding:"min=-180,max=180"`
	Altitude  *float64  `json:"altitude"`
	Accuracy  *float64  `json:"accuracy"`
	Timestamp time.Time `json:"timestamp" binding:"required"`
}

// JourneyStats are derived from the full coordinate trace at stop time.
type JourneyStats struct {
	AvgSpeedKmh    float64  `json:"avg_speed_kmh"`
	MaxSpeedKmh    float64  `json:"max_speed_kmh"`
	ElevationGainM float64  `json:"elevation_gain_m"`
	ElevationLossM float64  `json:"elevation_loss_m"`
	MinAltitudeM   *float64 `json:"min_altitude_m"`
	MaxAltitudeM   *float64 `json:"max_altitude_m"`
}

// TrackImage points at the rendered artifact for a completed journey.
type TrackImage struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Format   string `json:"format"`
}

// Journey is one recorded trip from start to stop or cancel.
type Journey struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	RoadmapSlug *string       `json:"roadmap_slug,omitempty"`
	RoadmapName *string       `json:"roadmap_name,omitempty"`
	Title       string        `json:"title"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     *time.Time    `json:"end_time,omitempty"`
	DurationSec float64       `json:"duration_seconds"`
	DistanceM   float64       `json:"distance_m"`
	Status      JourneyStatus `json:"status"`
	Stats       JourneyStats  `json:"stats"`
	TrackImage  *TrackImage   `json:"track_image,omitempty"`
	Notes       *string       `json:"notes,omitempty"`
	Coordinates []Coordinate  `json:"coordinates,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TrackProgress is the server-side running total returned from a track call.
type TrackProgress struct {
	DistanceM   float64 `json:"distance_m"`
	DurationSec float64 `json:"duration_seconds"`
	PointCount  int     `json:"point_count"`
}

// JourneyFilter narrows a journey list query.
type JourneyFilter struct {
	Status      *JourneyStatus
	RoadmapSlug *string
	Page        int
	Limit       int
}

// JourneyPage is one page of a user's journey history, coordinates excluded.
type JourneyPage struct {
	Journeys []*Journey `json:"journeys"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	Pages    int        `json:"pages"`
}
