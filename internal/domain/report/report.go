// Package report assembles the structured family league report. It performs
// no formatting; renderers consume the Report value.
package report

import (
	"sort"
	"time"

	"github.com/okian/league/internal/domain/delta"
	"github.com/okian/league/internal/domain/goals"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/ranking"
	"github.com/okian/league/internal/domain/types"
)

// Period selects the report flavour.
type Period string

// Report periods.
const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// ParsePeriod maps a string to a Period.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case PeriodDaily, PeriodWeekly:
		return Period(s), true
	default:
		return "", false
	}
}

// UserStatus tells whether a user's row is backed by data.
type UserStatus string

// User statuses.
const (
	StatusOK     UserStatus = "ok"
	StatusNoData UserStatus = "no_data"
	StatusError  UserStatus = "error"
)

// LanguageDetail is one course in a user's detail.
type LanguageDetail struct {
	Name             string `json:"name"`
	Level            int    `json:"level"`
	XP               int64  `json:"xp"`
	DailyXPGain      int64  `json:"daily_xp_gain"`
	WeeklyXPGain     int64  `json:"weekly_xp_gain"`
	New              bool   `json:"new,omitempty"`
	FromLanguage     string `json:"from_language,omitempty"`
	LearningLanguage string `json:"learning_language,omitempty"`
}

// UserDetail is the per-user section of a report.
type UserDetail struct {
	Username      string           `json:"username"`
	DisplayName   string           `json:"display_name,omitempty"`
	Status        UserStatus       `json:"status"`
	LatestDate    model.Date       `json:"latest_date,omitempty"`
	StreakDays    int              `json:"streak_days"`
	StreakBroken  bool             `json:"streak_broken"`
	TotalXP       int64            `json:"total_xp"`
	DailyXPGain   int64            `json:"daily_xp_gain"`
	HasDaily      bool             `json:"has_daily"`
	WeeklyXPGain  int64            `json:"weekly_xp_gain"`
	DaysWithData  int              `json:"days_with_data"`
	LowConfidence bool             `json:"low_confidence"`
	Languages     []LanguageDetail `json:"languages"`
	Goals         goals.Result     `json:"goals"`
	Error         string           `json:"error,omitempty"`
}

// Name returns the display name, falling back to the username.
func (u UserDetail) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Report is the top-level structured report.
type Report struct {
	ID           string                `json:"id"`
	Period       Period                `json:"period"`
	ReportDate   model.Date            `json:"report_date"`
	GeneratedAt  time.Time             `json:"generated_at"`
	Thresholds   goals.Thresholds      `json:"thresholds"`
	Leaderboard  []types.Entry         `json:"leaderboard"`
	Users        map[string]UserDetail `json:"users"`
	Missing      []string              `json:"missing"`
	StreakAlerts []string              `json:"streak_alerts"`
}

// UserInput carries one user's computed deltas into Build.
type UserInput struct {
	Username         string
	DisplayName      string
	TrackedLanguages []string
	Weekly           delta.Weekly
	Daily            delta.Daily
	HasDaily         bool
	// Err is set when the user's history could not be read.
	Err error
}

// Input is everything Build needs. ID and GeneratedAt are supplied by the
// caller so that Build stays deterministic.
type Input struct {
	ID          string
	Period      Period
	ReportDate  model.Date
	GeneratedAt time.Time
	Thresholds  goals.Thresholds
	Users       []UserInput
}

// Build assembles a Report. Users without data or with a read error keep a
// detail row but are left off the leaderboard and listed in Missing.
func Build(in Input) Report {
	r := Report{
		ID:           in.ID,
		Period:       in.Period,
		ReportDate:   in.ReportDate,
		GeneratedAt:  in.GeneratedAt,
		Thresholds:   in.Thresholds,
		Users:        make(map[string]UserDetail, len(in.Users)),
		Missing:      []string{},
		StreakAlerts: []string{},
	}

	entries := make([]types.Entry, 0, len(in.Users))
	for _, u := range in.Users {
		d := buildUser(u, in.Period, in.ReportDate, in.Thresholds)
		r.Users[u.Username] = d
		if d.Status != StatusOK {
			r.Missing = append(r.Missing, u.Username)
			continue
		}
		if d.StreakDays == 0 {
			r.StreakAlerts = append(r.StreakAlerts, u.Username)
		}
		entries = append(entries, types.Entry{
			Username:     d.Username,
			DisplayName:  d.DisplayName,
			StreakDays:   d.StreakDays,
			WeeklyXPGain: d.WeeklyXPGain,
			TotalXP:      d.TotalXP,
		})
	}

	r.Leaderboard = ranking.Rank(entries)
	sort.Strings(r.Missing)
	sort.Strings(r.StreakAlerts)
	return r
}

func buildUser(u UserInput, period Period, date model.Date, th goals.Thresholds) UserDetail {
	d := UserDetail{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Languages:   []LanguageDetail{},
		Goals:       goals.Result{EligibleLanguages: []string{}},
	}
	if u.Err != nil {
		d.Status = StatusError
		d.Error = u.Err.Error()
		return d
	}
	w := u.Weekly
	if !w.HasLatest || (period == PeriodDaily && w.Latest.Date != date) {
		d.Status = StatusNoData
		return d
	}

	latest := w.Latest
	d.Status = StatusOK
	if d.DisplayName == "" {
		d.DisplayName = latest.DisplayName
	}
	d.LatestDate = latest.Date
	d.StreakDays = latest.StreakDays
	d.TotalXP = latest.TotalXP
	d.WeeklyXPGain = w.XPGain
	d.DaysWithData = w.DaysWithData
	d.LowConfidence = w.LowConfidence()
	if u.HasDaily {
		d.HasDaily = true
		d.DailyXPGain = u.Daily.XPGain
		d.StreakBroken = u.Daily.StreakBroken
	}

	gains := make(map[string]int64, len(w.Languages))
	for _, l := range w.Languages {
		gains[l.Name] = l.XPGain
	}
	for _, l := range latest.Languages {
		ld := LanguageDetail{
			Name:             l.Name,
			Level:            l.Level,
			XP:               l.XP,
			WeeklyXPGain:     gains[l.Name],
			FromLanguage:     l.FromLanguage,
			LearningLanguage: l.LearningLanguage,
		}
		if u.HasDaily {
			for _, dl := range u.Daily.Languages {
				if dl.Name == l.Name {
					ld.DailyXPGain = dl.XPGain
					ld.New = dl.New
				}
			}
		}
		d.Languages = append(d.Languages, ld)
	}

	d.Goals = goals.Evaluate(goals.Input{
		WeeklyXPGain:     w.XPGain,
		LanguageXPGains:  gains,
		StreakDays:       latest.StreakDays,
		TrackedLanguages: u.TrackedLanguages,
	}, th)
	return d
}

// Ranked returns the number of leaderboard entries.
func (r Report) Ranked() int { return len(r.Leaderboard) }

// LowConfidenceCount returns how many ranked users had an incomplete week.
func (r Report) LowConfidenceCount() int {
	n := 0
	for _, e := range r.Leaderboard {
		if r.Users[e.Username].LowConfidence {
			n++
		}
	}
	return n
}

// Ordered returns user details in leaderboard order followed by the
// missing users in name order.
func (r Report) Ordered() []UserDetail {
	out := make([]UserDetail, 0, len(r.Users))
	for _, e := range r.Leaderboard {
		out = append(out, r.Users[e.Username])
	}
	for _, name := range r.Missing {
		out = append(out, r.Users[name])
	}
	return out
}

// PocketMoneyTotal sums the pocket money earned by every user.
func (r Report) PocketMoneyTotal() goals.Money {
	var total goals.Money
	for _, u := range r.Users {
		total += u.Goals.PocketMoneyTotal
	}
	return total
}
