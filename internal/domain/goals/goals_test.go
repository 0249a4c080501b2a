package goals_test

import (
	"testing"

	"github.com/okian/league/internal/domain/goals"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEvaluate(t *testing.T) {
	Convey("Given the default family thresholds", t, func() {
		th := goals.Thresholds{WeeklyXPGoal: 500, StreakGoal: 7}

		Convey("When a user beats both goals", func() {
			r := goals.Evaluate(goals.Input{WeeklyXPGain: 650, StreakDays: 12}, th)

			Convey("Then both goals are met", func() {
				So(r.StreakGoalMet, ShouldBeTrue)
				So(r.WeeklyXPGoalMet, ShouldBeTrue)
				So(r.StreakStatus, ShouldEqual, goals.StreakAchieved)
			})
		})

		Convey("When a user sits exactly on the goals", func() {
			r := goals.Evaluate(goals.Input{WeeklyXPGain: 500, StreakDays: 7}, th)
			So(r.StreakGoalMet, ShouldBeTrue)
			So(r.WeeklyXPGoalMet, ShouldBeTrue)
		})

		Convey("When a user is half way on the streak", func() {
			r := goals.Evaluate(goals.Input{WeeklyXPGain: 499, StreakDays: 4}, th)
			So(r.StreakGoalMet, ShouldBeFalse)
			So(r.WeeklyXPGoalMet, ShouldBeFalse)
			So(r.StreakStatus, ShouldEqual, goals.StreakProgressing)
		})

		Convey("When a user has barely started", func() {
			r := goals.Evaluate(goals.Input{StreakDays: 3}, th)
			So(r.StreakStatus, ShouldEqual, goals.StreakNeedsWork)
		})
	})
}

func TestPocketMoney(t *testing.T) {
	Convey("Given pocket money settings", t, func() {
		th := goals.Thresholds{
			WeeklyXPGoal:         500,
			StreakGoal:           7,
			PocketMoneyLanguages: []string{"Hungarian"},
			PocketMoneyAmount:    500,
		}

		Convey("When the paid language had no activity but another did", func() {
			r := goals.Evaluate(goals.Input{
				LanguageXPGains: map[string]int64{"Hungarian": 0, "German": 80},
			}, th)

			Convey("Then nothing is eligible", func() {
				So(r.EligibleLanguages, ShouldBeEmpty)
				So(r.PocketMoneyTotal, ShouldEqual, goals.Money(0))
			})
		})

		Convey("When several paid languages were practised", func() {
			th.PocketMoneyLanguages = []string{"Spanish", "Hungarian", "French", "Spanish"}
			r := goals.Evaluate(goals.Input{
				LanguageXPGains: map[string]int64{"Hungarian": 20, "Spanish": 5, "French": 0},
			}, th)

			Convey("Then each counts once and the list is sorted", func() {
				So(r.EligibleLanguages, ShouldResemble, []string{"Hungarian", "Spanish"})
				So(r.PocketMoneyTotal, ShouldEqual, goals.Money(1000))
				So(r.PocketMoneyTotal.String(), ShouldEqual, "10.00")
			})
		})

		Convey("When the user tracks only some languages", func() {
			th.PocketMoneyLanguages = []string{"Spanish", "Hungarian"}
			r := goals.Evaluate(goals.Input{
				LanguageXPGains:  map[string]int64{"Hungarian": 20, "Spanish": 5},
				TrackedLanguages: []string{"Spanish"},
			}, th)

			Convey("Then only tracked languages are eligible", func() {
				So(r.EligibleLanguages, ShouldResemble, []string{"Spanish"})
				So(r.PocketMoneyTotal, ShouldEqual, goals.Money(500))
			})
		})
	})
}

func TestMoneyString(t *testing.T) {
	Convey("Given money amounts", t, func() {
		So(goals.Money(0).String(), ShouldEqual, "0.00")
		So(goals.Money(5).String(), ShouldEqual, "0.05")
		So(goals.Money(1250).String(), ShouldEqual, "12.50")
		So(goals.Money(-199).String(), ShouldEqual, "-1.99")
	})
}
