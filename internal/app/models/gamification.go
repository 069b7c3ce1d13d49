package models

import (
	"time"

	"github.com/google/uuid"
)

// PointsPerLevel drives level recomputation whenever points change.
const PointsPerLevel = 100

// BadgePoints is credited for every newly earned badge.
const BadgePoints = 50

// BadgeGrant is a permanent achievement record tied to a user. Grants are
// monotonic, a badge is never revoked and never granted twice.
type BadgeGrant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	EarnedAt    time.Time `json:"earned_at"`
}

// AggregateStats is the input to badge predicates, recomputed from the
// user's completed journeys.
type AggregateStats struct {
	TotalJourneys  int
	TotalDistanceM float64
}

// UserProgress is the gamification state carried on the user record.
type UserProgress struct {
	UserID         uuid.UUID    `json:"user_id"`
	Points         int          `json:"points"`
	Level          int          `json:"level"`
	TotalDistanceM float64      `json:"total_distance_m"`
	TotalTrails    int          `json:"total_trails"`
	Badges         []BadgeGrant `json:"badges"`
}

// LevelForPoints computes level = floor(points/100) + 1.
func LevelForPoints(points int) int {
	return points/PointsPerLevel + 1
}
