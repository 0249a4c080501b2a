// Package seed generates deterministic synthetic snapshot histories for
// demos, load tests and backend migration rehearsals.
package seed

import (
	"math/rand/v2"

	"github.com/okian/league/internal/domain/model"
)

// Constants for daily XP generation.
const (
	minDailyXP   = 10
	dailyXPRange = 150
	xpPerLevel   = 500
	// seedStream decorrelates the second PCG word from the seed.
	seedStream = 0x9e3779b97f4a7c15
)

type userState struct {
	total  int64
	streak int
	xp     []int64
}

// Generate builds the history described by cfg, ordered by user then date.
// Totals never decrease. Skipped practice days keep the totals and reset the
// streak; missing days produce no snapshot.
func Generate(cfg Config) ([]model.Snapshot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^seedStream)) //nolint:gosec // deterministic fixtures
	start := cfg.End.AddDays(-(cfg.Days - 1))

	out := make([]model.Snapshot, 0, len(cfg.Users)*cfg.Days)
	for _, user := range cfg.Users {
		st := userState{xp: make([]int64, len(cfg.Languages))}
		// a head start so users differ on day one
		for i := range st.xp {
			st.xp[i] = int64(rng.IntN(xpPerLevel * 4))
			st.total += st.xp[i]
		}
		st.streak = rng.IntN(30)

		for day := range cfg.Days {
			if rng.Float64() < cfg.ResetRate {
				st.streak = 0
			} else {
				st.streak++
				gain := int64(minDailyXP + rng.IntN(dailyXPRange))
				st.total += gain
				if len(st.xp) > 0 {
					st.xp[rng.IntN(len(st.xp))] += gain
				}
			}
			if rng.Float64() < cfg.MissingRate {
				continue
			}
			out = append(out, st.snapshot(user, start.AddDays(day), cfg.Languages))
		}
	}
	return out, nil
}

func (st *userState) snapshot(user string, date model.Date, languages []string) model.Snapshot {
	s := model.Snapshot{
		Username:   user,
		Date:       date,
		TotalXP:    st.total,
		StreakDays: st.streak,
		Languages:  make([]model.LanguageProgress, 0, len(languages)),
	}
	for i, name := range languages {
		s.Languages = append(s.Languages, model.LanguageProgress{
			Name:  name,
			Level: int(st.xp[i]/xpPerLevel) + 1,
			XP:    st.xp[i],
		})
	}
	return s
}
