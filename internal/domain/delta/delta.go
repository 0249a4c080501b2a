// Package delta derives day-over-day and week-over-week progress from
// cumulative snapshots. Gains are never negative and missing days are never
// interpolated.
package delta

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/league/internal/domain/model"
)

// WindowDays is the length of a weekly window ending at the report date.
const WindowDays = 7

// Reader is the read side of a snapshot store.
type Reader interface {
	GetRange(ctx context.Context, username string, start, end model.Date) ([]model.Snapshot, error)
}

// LanguageDelta is the clamped change of one course.
type LanguageDelta struct {
	Name      string `json:"name"`
	LevelGain int    `json:"level_gain"`
	XPGain    int64  `json:"xp_gain"`
	// New is set when the course was absent from the earlier snapshot.
	New bool `json:"new,omitempty"`
}

// Daily is the change between a snapshot and the one of the previous day.
type Daily struct {
	Username     string          `json:"username"`
	Date         model.Date      `json:"date"`
	XPGain       int64           `json:"xp_gain"`
	StreakDays   int             `json:"streak_days"`
	StreakBroken bool            `json:"streak_broken"`
	Languages    []LanguageDelta `json:"languages"`
}

// Weekly aggregates daily deltas over [End-6, End].
type Weekly struct {
	Username     string     `json:"username"`
	Start        model.Date `json:"start"`
	End          model.Date `json:"end"`
	XPGain       int64      `json:"xp_gain"`
	DaysWithData int        `json:"days_with_data"`
	// Languages holds the summed per-course gains, sorted by name.
	Languages []LanguageDelta `json:"languages"`
	Days      []Daily         `json:"days"`
	// Latest is the newest snapshot inside the window; HasLatest is false
	// when the window holds none.
	Latest    model.Snapshot `json:"latest"`
	HasLatest bool           `json:"has_latest"`
}

// LowConfidence reports whether fewer than seven daily deltas contributed.
func (w Weekly) LowConfidence() bool {
	return w.DaysWithData < WindowDays
}

// LanguageXPGain returns the weekly XP gain of the named course.
func (w Weekly) LanguageXPGain(name string) int64 {
	for _, l := range w.Languages {
		if l.Name == name {
			return l.XPGain
		}
	}
	return 0
}

// Between computes the clamped delta from prev to cur. It does not check
// that the dates are consecutive.
func Between(prev, cur model.Snapshot) Daily {
	d := Daily{
		Username:     cur.Username,
		Date:         cur.Date,
		XPGain:       clamp64(cur.TotalXP - prev.TotalXP),
		StreakDays:   cur.StreakDays,
		StreakBroken: cur.StreakDays < prev.StreakDays,
		Languages:    make([]LanguageDelta, 0, len(cur.Languages)),
	}
	for _, l := range cur.Languages {
		before, ok := prev.Language(l.Name)
		if !ok {
			d.Languages = append(d.Languages, LanguageDelta{Name: l.Name, LevelGain: l.Level, XPGain: l.XP, New: true})
			continue
		}
		d.Languages = append(d.Languages, LanguageDelta{
			Name:      l.Name,
			LevelGain: clamp(l.Level - before.Level),
			XPGain:    clamp64(l.XP - before.XP),
		})
	}
	return d
}

// Engine computes deltas from a snapshot reader.
type Engine struct {
	store Reader
}

// New creates an Engine reading from store.
func New(store Reader) *Engine {
	return &Engine{store: store}
}

// ComputeDaily returns the delta for date. found is false when the snapshot
// of date or of the previous day is missing.
func (e *Engine) ComputeDaily(ctx context.Context, username string, date model.Date) (Daily, bool, error) {
	snaps, err := e.store.GetRange(ctx, username, date.AddDays(-1), date)
	if err != nil {
		return Daily{}, false, fmt.Errorf("daily delta %s %s: %w", username, date, err)
	}
	byDate := index(snaps)
	cur, okCur := byDate[date]
	prev, okPrev := byDate[date.AddDays(-1)]
	if !okCur || !okPrev {
		return Daily{}, false, nil
	}
	return Between(prev, cur), true, nil
}

// ComputeWeekly sums the daily deltas of the seven days ending at end. Days
// without a delta contribute nothing and are not counted in DaysWithData.
func (e *Engine) ComputeWeekly(ctx context.Context, username string, end model.Date) (Weekly, error) {
	start := end.AddDays(-(WindowDays - 1))
	// one extra day so the first day of the window has its prior
	snaps, err := e.store.GetRange(ctx, username, start.AddDays(-1), end)
	if err != nil {
		return Weekly{}, fmt.Errorf("weekly delta %s %s: %w", username, end, err)
	}
	return Aggregate(username, start, end, snaps), nil
}

// Aggregate builds a Weekly from the snapshots covering [start-1, end].
// Snapshots outside that range are ignored.
func Aggregate(username string, start, end model.Date, snaps []model.Snapshot) Weekly {
	w := Weekly{Username: username, Start: start, End: end}
	byDate := index(snaps)
	perLang := make(map[string]*LanguageDelta)

	for d := start; !d.After(end); d = d.AddDays(1) {
		cur, ok := byDate[d]
		if !ok {
			continue
		}
		w.Latest, w.HasLatest = cur, true

		prev, ok := byDate[d.AddDays(-1)]
		if !ok {
			continue
		}
		daily := Between(prev, cur)
		w.Days = append(w.Days, daily)
		w.DaysWithData++
		w.XPGain += daily.XPGain
		for _, l := range daily.Languages {
			acc, ok := perLang[l.Name]
			if !ok {
				acc = &LanguageDelta{Name: l.Name}
				perLang[l.Name] = acc
			}
			acc.LevelGain += l.LevelGain
			acc.XPGain += l.XPGain
			acc.New = acc.New || l.New
		}
	}

	w.Languages = make([]LanguageDelta, 0, len(perLang))
	for _, l := range perLang {
		w.Languages = append(w.Languages, *l)
	}
	sort.Slice(w.Languages, func(i, j int) bool { return w.Languages[i].Name < w.Languages[j].Name })
	return w
}

func index(snaps []model.Snapshot) map[model.Date]model.Snapshot {
	m := make(map[model.Date]model.Snapshot, len(snaps))
	for _, s := range snaps {
		m[s.Date] = s
	}
	return m
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clamp64(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
