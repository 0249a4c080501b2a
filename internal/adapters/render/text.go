// Package render turns an assembled report into plain text and HTML.
package render

import (
	"fmt"
	"strings"

	"github.com/okian/league/internal/domain/goals"
	"github.com/okian/league/internal/domain/report"
)

const (
	dailyTopN = 3
	// LowConfidenceNote explains the marker placed after incomplete weeks.
	LowConfidenceNote = "* fewer than 7 days of data this week"
)

// Text renders r as plain text using the daily or weekly layout.
func Text(r report.Report) string {
	if r.Period == report.PeriodDaily {
		return dailyText(r)
	}
	return weeklyText(r)
}

func dailyText(r report.Report) string {
	var b strings.Builder
	b.WriteString("📊 FAMILY LEAGUE - DAILY UPDATE\n")
	b.WriteString(strings.Repeat("=", 45) + "\n")
	fmt.Fprintf(&b, "Date: %s\n\n", r.ReportDate)

	b.WriteString("🏆 Today's Standings:\n")
	if len(r.Leaderboard) == 0 {
		b.WriteString("  No progress recorded today.\n")
	}
	lowConf := false
	for i, e := range r.Leaderboard {
		if i == dailyTopN {
			break
		}
		u := r.Users[e.Username]
		langs := ""
		if g := weeklyGains(u); len(g) > 0 {
			langs = " (" + strings.Join(g, ", ") + ")"
		}
		mark := ""
		if u.LowConfidence {
			mark, lowConf = "*", true
		}
		fmt.Fprintf(&b, "%s %s: %d day streak | %d weekly XP%s%s\n",
			position(e), e.Name(), e.StreakDays, e.WeeklyXPGain, mark, langs)
	}
	b.WriteString("\n")

	b.WriteString("⚠️ Streak Alerts:\n")
	if len(r.StreakAlerts) == 0 {
		b.WriteString("  ✅ Everyone is maintaining their streaks!\n")
	}
	for _, name := range r.StreakAlerts {
		fmt.Fprintf(&b, "  • %s needs to practice today!\n", displayName(r, name))
	}

	writeMissing(&b, r)
	if lowConf {
		b.WriteString("\n" + LowConfidenceNote + "\n")
	}
	b.WriteString("\nKeep learning! 🌟")
	return b.String()
}

func weeklyText(r report.Report) string {
	th := r.Thresholds
	var b strings.Builder
	b.WriteString("🏆 FAMILY LEAGUE - WEEKLY REPORT\n")
	b.WriteString(strings.Repeat("=", 55) + "\n")
	fmt.Fprintf(&b, "Week ending: %s\n", r.ReportDate)
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))

	b.WriteString("🥇 FAMILY LEADERBOARD\n")
	b.WriteString(strings.Repeat("-", 25) + "\n")
	lowConf := false
	for _, e := range r.Leaderboard {
		mark := ""
		if r.Users[e.Username].LowConfidence {
			mark, lowConf = "*", true
		}
		fmt.Fprintf(&b, "%s %s\n", position(e), e.Name())
		fmt.Fprintf(&b, "    Streak: %d days | Weekly XP: %d%s | Total XP: %s\n",
			e.StreakDays, e.WeeklyXPGain, mark, thousands(e.TotalXP))
	}
	b.WriteString("\n")

	b.WriteString("📊 DETAILED PROGRESS\n")
	b.WriteString(strings.Repeat("-", 22) + "\n")
	for _, u := range r.Ordered() {
		writeUserDetail(&b, u, th)
	}

	writePocketMoney(&b, r)
	writeMissing(&b, r)

	b.WriteString("\n🎯 THIS WEEK'S FAMILY GOALS\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	fmt.Fprintf(&b, "• Maintain a %d-day streak\n", th.StreakGoal)
	fmt.Fprintf(&b, "• Earn %d XP this week\n", th.WeeklyXPGoal)
	b.WriteString("• Try to beat your personal best!\n")
	if lowConf {
		b.WriteString("\n" + LowConfidenceNote + "\n")
	}
	b.WriteString("\nKeep up the great work, everyone! 🌟")
	return b.String()
}

func writeUserDetail(b *strings.Builder, u report.UserDetail, th goals.Thresholds) {
	switch u.Status {
	case report.StatusError:
		fmt.Fprintf(b, "\n👤 %s\n", u.Name())
		fmt.Fprintf(b, "   ❌ Unable to check progress: %s\n", u.Error)
		return
	case report.StatusNoData:
		fmt.Fprintf(b, "\n👤 %s\n", u.Name())
		b.WriteString("   ❓ No data recorded this week\n")
		return
	}

	fmt.Fprintf(b, "\n👤 %s (%s)\n", u.Name(), u.Username)
	fmt.Fprintf(b, "   Current streak: %d days\n", u.StreakDays)
	switch u.Goals.StreakStatus {
	case goals.StreakAchieved:
		b.WriteString("   🔥 STREAK GOAL ACHIEVED!\n")
	case goals.StreakProgressing:
		fmt.Fprintf(b, "   ⚡ Good progress towards %d-day goal\n", th.StreakGoal)
	default:
		fmt.Fprintf(b, "   ⚠️  Work needed for %d-day streak goal\n", th.StreakGoal)
	}
	if u.Goals.WeeklyXPGoalMet {
		fmt.Fprintf(b, "   🎯 WEEKLY XP GOAL ACHIEVED! (%d/%d)\n", u.WeeklyXPGain, th.WeeklyXPGoal)
	} else {
		fmt.Fprintf(b, "   📈 Weekly XP progress: %d/%d\n", u.WeeklyXPGain, th.WeeklyXPGoal)
	}
	if u.LowConfidence {
		fmt.Fprintf(b, "   ℹ️  Based on %d of 7 days\n", u.DaysWithData)
	}

	if len(u.Languages) > 0 {
		b.WriteString("   📚 Language Progress:\n")
	}
	for _, l := range u.Languages {
		if l.WeeklyXPGain > 0 {
			fmt.Fprintf(b, "      %s: Level %d | %s XP (+%d this week)\n", l.Name, l.Level, thousands(l.XP), l.WeeklyXPGain)
		} else {
			fmt.Fprintf(b, "      %s: Level %d | %s XP\n", l.Name, l.Level, thousands(l.XP))
		}
	}
}

func writePocketMoney(b *strings.Builder, r report.Report) {
	th := r.Thresholds
	if th.PocketMoneyAmount <= 0 {
		return
	}
	b.WriteString("\n💰 POCKET MONEY\n")
	b.WriteString(strings.Repeat("-", 16) + "\n")
	earned := false
	for _, u := range r.Ordered() {
		if len(u.Goals.EligibleLanguages) == 0 {
			continue
		}
		earned = true
		fmt.Fprintf(b, "• %s: %s %s (%s)\n", u.Name(), u.Goals.PocketMoneyTotal, th.Currency,
			strings.Join(u.Goals.EligibleLanguages, ", "))
	}
	if !earned {
		b.WriteString("• Nobody earned pocket money this week\n")
		return
	}
	fmt.Fprintf(b, "Total: %s %s\n", r.PocketMoneyTotal(), th.Currency)
}

func writeMissing(b *strings.Builder, r report.Report) {
	if len(r.Missing) == 0 {
		return
	}
	names := make([]string, 0, len(r.Missing))
	for _, m := range r.Missing {
		names = append(names, displayName(r, m))
	}
	fmt.Fprintf(b, "\n❓ No data for: %s\n", strings.Join(names, ", "))
}
