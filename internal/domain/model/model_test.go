package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	model "github.com/okian/league/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestDate(t *testing.T) {
	convey.Convey("Given calendar dates", t, func() {
		d := model.NewDate(2024, time.February, 28)

		convey.Convey("When shifting across a leap day", func() {
			convey.So(d.AddDays(1).String(), convey.ShouldEqual, "2024-02-29")
			convey.So(d.AddDays(2).String(), convey.ShouldEqual, "2024-03-01")
			convey.So(d.AddDays(-28).String(), convey.ShouldEqual, "2024-01-31")
		})

		convey.Convey("When comparing", func() {
			next := d.AddDays(1)
			convey.So(d.Before(next), convey.ShouldBeTrue)
			convey.So(next.After(d), convey.ShouldBeTrue)
			convey.So(d.DaysUntil(next.AddDays(6)), convey.ShouldEqual, 7)
			convey.So(next.DaysUntil(d), convey.ShouldEqual, -1)
			convey.So(d == model.MustParseDate("2024-02-28"), convey.ShouldBeTrue)
		})

		convey.Convey("When taken from a local time late in the day", func() {
			loc := time.FixedZone("UTC+11", 11*60*60)
			got := model.DateOf(time.Date(2024, 3, 5, 23, 30, 0, 0, loc))
			convey.So(got.String(), convey.ShouldEqual, "2024-03-05")
		})

		convey.Convey("When parsing garbage", func() {
			_, err := model.ParseDate("2024-13-01")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When encoded as JSON", func() {
			b, err := json.Marshal(map[string]model.Date{"d": d})
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldEqual, `{"d":"2024-02-28"}`)

			var back map[string]model.Date
			convey.So(json.Unmarshal(b, &back), convey.ShouldBeNil)
			convey.So(back["d"], convey.ShouldEqual, d)
		})
	})
}

func TestSnapshotValidate(t *testing.T) {
	convey.Convey("Given snapshots", t, func() {
		valid := model.Snapshot{
			Username:   "anna",
			Date:       model.MustParseDate("2024-05-01"),
			TotalXP:    1200,
			StreakDays: 4,
			Languages: []model.LanguageProgress{
				{Name: "Spanish", Level: 3, XP: 900},
				{Name: "French", Level: 1, XP: 300},
			},
		}

		convey.Convey("Then a well-formed one passes", func() {
			convey.So(valid.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then both date bounds are accepted", func() {
			for _, d := range []model.Date{model.MinDate, model.MaxDate} {
				s := valid.Clone()
				s.Date = d
				convey.So(s.Validate(), convey.ShouldBeNil)
			}
		})

		cases := []struct {
			name   string
			mutate func(s *model.Snapshot)
		}{
			{"empty username", func(s *model.Snapshot) { s.Username = "" }},
			{"missing date", func(s *model.Snapshot) { s.Date = model.Date{} }},
			{"negative xp", func(s *model.Snapshot) { s.TotalXP = -1 }},
			{"negative streak", func(s *model.Snapshot) { s.StreakDays = -2 }},
			{"unnamed language", func(s *model.Snapshot) { s.Languages[0].Name = "" }},
			{"duplicate name", func(s *model.Snapshot) { s.Languages[1].Name = "Spanish" }},
			{"negative level", func(s *model.Snapshot) { s.Languages[0].Level = -1 }},
			{"negative lang xp", func(s *model.Snapshot) { s.Languages[1].XP = -5 }},
			{"a date before MinDate", func(s *model.Snapshot) { s.Date = model.MustParseDate("1969-12-31") }},
			{"a NUL in the username", func(s *model.Snapshot) { s.Username = "anna\x00b" }},
			{"a newline in the username", func(s *model.Snapshot) { s.Username = "anna\nb" }},
		}
		for _, tc := range cases {
			s := valid.Clone()
			tc.mutate(&s)
			convey.Convey("Then it rejects "+tc.name, func() {
				convey.So(errors.Is(s.Validate(), model.ErrInvalidSnapshot), convey.ShouldBeTrue)
			})
		}
	})
}

func TestSnapshotEqualAndClone(t *testing.T) {
	convey.Convey("Given a snapshot and its clone", t, func() {
		s := model.Snapshot{
			Username:  "ben",
			Date:      model.MustParseDate("2024-05-01"),
			TotalXP:   10,
			Languages: []model.LanguageProgress{{Name: "German", Level: 1, XP: 10}},
		}
		c := s.Clone()

		convey.So(s.Equal(c), convey.ShouldBeTrue)

		convey.Convey("When the clone is mutated", func() {
			c.Languages[0].XP = 99
			convey.So(s.Languages[0].XP, convey.ShouldEqual, 10)
			convey.So(s.Equal(c), convey.ShouldBeFalse)
		})

		convey.Convey("When language lists are nil and empty", func() {
			a := model.Snapshot{Username: "x", Date: s.Date}
			b := model.Snapshot{Username: "x", Date: s.Date, Languages: []model.LanguageProgress{}}
			convey.So(a.Equal(b), convey.ShouldBeTrue)
		})

		convey.Convey("When looking up a language", func() {
			l, ok := s.Language("German")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(l.XP, convey.ShouldEqual, 10)
			_, ok = s.Language("Latin")
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}
