package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/okian/league/internal/domain/goals"
	"github.com/okian/league/internal/domain/report"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must( //nolint:gochecknoglobals // parsed once
	template.New("report.html.tmpl").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/report.html.tmpl"),
)

type entryView struct {
	Position      string
	Name          string
	StreakDays    int
	WeeklyXP      int64
	TotalXP       string
	LowConfidence bool
	Gains         []string
}

type userView struct {
	Name          string
	Username      string
	OK            bool
	Error         string
	StreakDays    int
	StreakMet     bool
	StreakLine    string
	XPMet         bool
	XPLine        string
	LowConfidence bool
	DaysWithData  int
	Languages     []string
}

type reportView struct {
	Title             string
	Weekly            bool
	Date              string
	Entries           []entryView
	Alerts            []string
	Users             []userView
	ShowPocketMoney   bool
	PocketMoney       []string
	PocketMoneyTotal  string
	StreakGoal        int
	WeeklyXPGoal      int64
	Missing           []string
	HasLowConfidence  bool
	LowConfidenceNote string
}

// HTML renders r as a standalone HTML document.
func HTML(r report.Report) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, newView(r)); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func newView(r report.Report) reportView {
	th := r.Thresholds
	v := reportView{
		Weekly:            r.Period == report.PeriodWeekly,
		Date:              r.ReportDate.String(),
		StreakGoal:        th.StreakGoal,
		WeeklyXPGoal:      th.WeeklyXPGoal,
		LowConfidenceNote: LowConfidenceNote,
	}
	if v.Weekly {
		v.Title = "Family League - Weekly Report"
	} else {
		v.Title = "Family League - Daily Update"
	}

	for i, e := range r.Leaderboard {
		if !v.Weekly && i == dailyTopN {
			break
		}
		u := r.Users[e.Username]
		v.HasLowConfidence = v.HasLowConfidence || u.LowConfidence
		v.Entries = append(v.Entries, entryView{
			Position:      position(e),
			Name:          e.Name(),
			StreakDays:    e.StreakDays,
			WeeklyXP:      e.WeeklyXPGain,
			TotalXP:       thousands(e.TotalXP),
			LowConfidence: u.LowConfidence,
			Gains:         weeklyGains(u),
		})
	}
	for _, a := range r.StreakAlerts {
		v.Alerts = append(v.Alerts, displayName(r, a))
	}
	for _, m := range r.Missing {
		v.Missing = append(v.Missing, displayName(r, m))
	}
	if !v.Weekly {
		return v
	}

	for _, u := range r.Ordered() {
		v.Users = append(v.Users, newUserView(u, th))
		if len(u.Goals.EligibleLanguages) > 0 {
			v.PocketMoney = append(v.PocketMoney, fmt.Sprintf("%s: %s %s (%s)",
				u.Name(), u.Goals.PocketMoneyTotal, th.Currency, strings.Join(u.Goals.EligibleLanguages, ", ")))
		}
	}
	if th.PocketMoneyAmount > 0 {
		v.ShowPocketMoney = true
		if len(v.PocketMoney) > 0 {
			v.PocketMoneyTotal = r.PocketMoneyTotal().String() + " " + th.Currency
		}
	}
	return v
}

func newUserView(u report.UserDetail, th goals.Thresholds) userView {
	uv := userView{
		Name:     u.Name(),
		Username: u.Username,
		OK:       u.Status == report.StatusOK,
		Error:    u.Error,
	}
	if !uv.OK {
		return uv
	}
	uv.StreakDays = u.StreakDays
	uv.StreakMet = u.Goals.StreakGoalMet
	switch u.Goals.StreakStatus {
	case goals.StreakAchieved:
		uv.StreakLine = "🔥 Streak goal achieved!"
	case goals.StreakProgressing:
		uv.StreakLine = fmt.Sprintf("⚡ Good progress towards %d-day goal", th.StreakGoal)
	default:
		uv.StreakLine = fmt.Sprintf("⚠️ Work needed for %d-day streak goal", th.StreakGoal)
	}
	uv.XPMet = u.Goals.WeeklyXPGoalMet
	if uv.XPMet {
		uv.XPLine = fmt.Sprintf("🎯 Weekly XP goal achieved! (%d/%d)", u.WeeklyXPGain, th.WeeklyXPGoal)
	} else {
		uv.XPLine = fmt.Sprintf("📈 Weekly XP progress: %d/%d", u.WeeklyXPGain, th.WeeklyXPGoal)
	}
	uv.LowConfidence = u.LowConfidence
	uv.DaysWithData = u.DaysWithData
	for _, l := range u.Languages {
		line := fmt.Sprintf("%s: Level %d | %s XP", l.Name, l.Level, thousands(l.XP))
		if l.WeeklyXPGain > 0 {
			line += fmt.Sprintf(" (+%d this week)", l.WeeklyXPGain)
		}
		uv.Languages = append(uv.Languages, line)
	}
	return uv
}
