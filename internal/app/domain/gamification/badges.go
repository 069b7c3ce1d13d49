package gamification

import (
	"github.com/FACorreiaa/trailtrace/internal/app/models"
)

// BadgeRule pairs a badge definition with its predicate over the user's
// aggregate stats. Rules only ever add badges, a grant is never revoked.
type BadgeRule struct {
	ID          string
	Name        string
	Icon        string
	Description string
	Check       func(models.AggregateStats) bool
}

// DefaultBadgeRules is the production rule table.
func DefaultBadgeRules() []BadgeRule {
	return []BadgeRule{
		{
			ID:          "first_steps",
			Name:        "First Steps",
			Icon:        "🥾",
			Description: "Complete your first journey recording",
			Check: func(s models.AggregateStats) bool {
				return s.TotalJourneys >= 1
			},
		},
		{
			ID:          "trail_blazer",
			Name:        "Trail Blazer",
			Icon:        "🔥",
			Description: "Complete 5 journey recordings",
			Check: func(s models.AggregateStats) bool {
				return s.TotalJourneys >= 5
			},
		},
		{
			ID:          "explorer",
			Name:        "Explorer",
			Icon:        "🗺️",
			Description: "Record a total of 10km",
			Check: func(s models.AggregateStats) bool {
				return s.TotalDistanceM >= 10000
			},
		},
		{
			ID:          "adventurer",
			Name:        "Adventurer",
			Icon:        "⛰️",
			Description: "Record a total of 25km",
			Check: func(s models.AggregateStats) bool {
				return s.TotalDistanceM >= 25000
			},
		},
		{
			ID:          "marathon",
			Name:        "Marathon",
			Icon:        "🏃",
			Description: "Record a total of 42km",
			Check: func(s models.AggregateStats) bool {
				return s.TotalDistanceM >= 42000
			},
		},
	}
}
