// Package goals evaluates weekly goals and pocket-money eligibility.
package goals

import (
	"fmt"
	"sort"
)

const minorPerMajor = 100

// Money is an amount in minor currency units (cents).
type Money int64

// String formats m with two decimals, e.g. "12.50".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/minorPerMajor, v%minorPerMajor)
}

// Times multiplies m by n.
func (m Money) Times(n int) Money { return m * Money(n) }

// StreakStatus summarises progress towards the streak goal.
type StreakStatus string

// Streak status values.
const (
	StreakAchieved    StreakStatus = "achieved"
	StreakProgressing StreakStatus = "progressing"
	StreakNeedsWork   StreakStatus = "needs_work"
)

// Thresholds are the family-wide goal settings.
type Thresholds struct {
	WeeklyXPGoal         int64    `json:"weekly_xp_goal"`
	StreakGoal           int      `json:"streak_goal"`
	PocketMoneyLanguages []string `json:"pocket_money_languages"`
	PocketMoneyAmount    Money    `json:"pocket_money_amount"`
	Currency             string   `json:"currency,omitempty"`
}

// Input is one user's weekly progress.
type Input struct {
	WeeklyXPGain int64
	// LanguageXPGains maps course name to its weekly XP gain.
	LanguageXPGains map[string]int64
	StreakDays      int
	// TrackedLanguages limits which courses count for pocket money. Empty
	// means every course is tracked.
	TrackedLanguages []string
}

// Result is the evaluation outcome for one user.
type Result struct {
	StreakGoalMet     bool         `json:"streak_goal_met"`
	WeeklyXPGoalMet   bool         `json:"weekly_xp_goal_met"`
	StreakStatus      StreakStatus `json:"streak_status"`
	EligibleLanguages []string     `json:"pocket_money_eligible_languages"`
	PocketMoneyTotal  Money        `json:"pocket_money_total"`
}

// Evaluate applies th to in. It has no side effects.
func Evaluate(in Input, th Thresholds) Result {
	r := Result{
		StreakGoalMet:     in.StreakDays >= th.StreakGoal,
		WeeklyXPGoalMet:   in.WeeklyXPGain >= th.WeeklyXPGoal,
		EligibleLanguages: []string{},
	}

	switch {
	case r.StreakGoalMet:
		r.StreakStatus = StreakAchieved
	case in.StreakDays*2 >= th.StreakGoal:
		r.StreakStatus = StreakProgressing
	default:
		r.StreakStatus = StreakNeedsWork
	}

	tracked := make(map[string]struct{}, len(in.TrackedLanguages))
	for _, l := range in.TrackedLanguages {
		tracked[l] = struct{}{}
	}
	seen := make(map[string]struct{}, len(th.PocketMoneyLanguages))
	for _, l := range th.PocketMoneyLanguages {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		if in.LanguageXPGains[l] <= 0 {
			continue
		}
		if len(tracked) > 0 {
			if _, ok := tracked[l]; !ok {
				continue
			}
		}
		r.EligibleLanguages = append(r.EligibleLanguages, l)
	}
	sort.Strings(r.EligibleLanguages)
	r.PocketMoneyTotal = th.PocketMoneyAmount.Times(len(r.EligibleLanguages))
	return r
}
