// Package ranking orders users into a leaderboard.
package ranking

import (
	"sort"

	"github.com/okian/league/internal/domain/types"
)

// Rank returns a new leaderboard ordered by streak, weekly XP and total XP
// (all descending) with username ascending as the final tie-break. Equal
// composite keys share a rank; the next distinct entry takes its 1-based
// position. The input slice is not modified.
func Rank(entries []types.Entry) []types.Entry {
	out := make([]types.Entry, len(entries))
	copy(out, entries)
	sortEntries(out)
	assignRanksWithTies(out)
	return out
}

func sortEntries(entries []types.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.StreakDays != b.StreakDays {
			return a.StreakDays > b.StreakDays
		}
		if a.WeeklyXPGain != b.WeeklyXPGain {
			return a.WeeklyXPGain > b.WeeklyXPGain
		}
		if a.TotalXP != b.TotalXP {
			return a.TotalXP > b.TotalXP
		}
		return a.Username < b.Username
	})
}

func sameKey(a, b types.Entry) bool {
	return a.StreakDays == b.StreakDays && a.WeeklyXPGain == b.WeeklyXPGain && a.TotalXP == b.TotalXP
}

// assignRanksWithTies applies standard competition ranking (1, 2, 2, 4).
func assignRanksWithTies(entries []types.Entry) {
	for i := range entries {
		if i > 0 && sameKey(entries[i], entries[i-1]) {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
		entries[i].Medal = types.MedalForRank(entries[i].Rank)
	}
}
