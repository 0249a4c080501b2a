// Package types contains common types used across the application
package types

// Medal is the tier awarded by leaderboard rank.
type Medal string

// Medal tiers.
const (
	MedalGold   Medal = "gold"
	MedalSilver Medal = "silver"
	MedalBronze Medal = "bronze"
	MedalNone   Medal = "none"
)

// MedalForRank maps a 1-based rank to its tier.
func MedalForRank(rank int) Medal {
	switch rank {
	case 1:
		return MedalGold
	case 2: //nolint:mnd // rank number
		return MedalSilver
	case 3: //nolint:mnd // rank number
		return MedalBronze
	default:
		return MedalNone
	}
}

// Entry represents a leaderboard entry
type Entry struct {
	Rank         int    `json:"rank"`
	Medal        Medal  `json:"medal"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name,omitempty"`
	StreakDays   int    `json:"streak_days"`
	WeeklyXPGain int64  `json:"weekly_xp_gain"`
	TotalXP      int64  `json:"total_xp"`
}

// Name returns the display name, falling back to the username.
func (e Entry) Name() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.Username
}
