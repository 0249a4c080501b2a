package render

import (
	"strconv"

	"github.com/okian/league/internal/domain/report"
	"github.com/okian/league/internal/domain/types"
)

// thousands formats n with comma separators, e.g. 12,345.
func thousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + s
}

// position renders the medal for the top three and the rank otherwise.
func position(e types.Entry) string {
	switch e.Medal {
	case types.MedalGold:
		return "🥇"
	case types.MedalSilver:
		return "🥈"
	case types.MedalBronze:
		return "🥉"
	default:
		return strconv.Itoa(e.Rank) + "."
	}
}

// weeklyGains lists the courses that gained XP this week, e.g. "Spanish +80".
func weeklyGains(u report.UserDetail) []string {
	var out []string
	for _, l := range u.Languages {
		if l.WeeklyXPGain > 0 {
			out = append(out, l.Name+" +"+strconv.FormatInt(l.WeeklyXPGain, 10))
		}
	}
	return out
}

func displayName(r report.Report, username string) string {
	if u, ok := r.Users[username]; ok {
		return u.Name()
	}
	return username
}
