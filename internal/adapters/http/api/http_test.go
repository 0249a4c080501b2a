package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/league/internal/adapters/http/api"
	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/domain/goals"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/report"
	"github.com/okian/league/internal/domain/types"
)

var today = model.MustParseDate("2024-03-10")

type fakeDeps struct {
	*repository.MemoryStore

	reportErr  error
	lastPeriod report.Period
	lastDate   model.Date
}

func (f *fakeDeps) BuildReport(_ context.Context, period report.Period, date model.Date) (*report.Report, error) {
	f.lastPeriod, f.lastDate = period, date
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	r := report.Report{
		ID:          "rep-1",
		Period:      period,
		ReportDate:  date,
		GeneratedAt: time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC),
		Thresholds:  goals.Thresholds{WeeklyXPGoal: 500, StreakGoal: 7},
		Leaderboard: []types.Entry{
			{Rank: 1, Medal: types.MedalGold, Username: "alice", StreakDays: 9, WeeklyXPGain: 620, TotalXP: 12500},
		},
		Users: map[string]report.UserDetail{
			"alice": {Username: "alice", Status: report.StatusOK, StreakDays: 9, WeeklyXPGain: 620, DaysWithData: 7},
		},
		Missing:      []string{},
		StreakAlerts: []string{},
	}
	return &r, nil
}

func (f *fakeDeps) Stats(ctx context.Context) (api.Stats, error) {
	users, err := f.ListUsers(ctx)
	if err != nil {
		return api.Stats{}, err
	}
	return api.Stats{Backend: "memory", TrackedUsers: []string{"alice", "bob"}, StoredUsers: users, RetainDays: 90}, nil
}

func newTestServer() (*fakeDeps, http.Handler) {
	deps := &fakeDeps{MemoryStore: repository.NewMemoryStore()}
	ctx := context.Background()
	for i, xp := range []int64{100, 250, 400} {
		_ = deps.Put(ctx, model.Snapshot{
			Username:   "alice",
			Date:       today.AddDays(i - 2),
			TotalXP:    xp,
			StreakDays: 7 + i,
		})
	}
	srv := api.NewServer(deps,
		api.WithRateLimit(0),
		api.WithClock(func() model.Date { return today }),
	)
	return deps, srv.Handler()
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}

func TestHealthAndMetrics(t *testing.T) {
	Convey("Given an API server", t, func() {
		_, h := newTestServer()

		Convey("Health reports ok as JSON", func() {
			w := get(h, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			var body map[string]string
			So(decode(w, &body), ShouldBeNil)
			So(body["status"], ShouldEqual, "ok")
		})

		Convey("Metrics exposes the league registry", func() {
			get(h, "/healthz")
			w := get(h, "/metrics")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "league_tracker_http_requests_total")
		})

		Convey("The OpenAPI document is served", func() {
			w := get(h, "/openapi.yaml")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "/leaderboard:")
		})

		Convey("Unknown routes return a JSON 404", func() {
			w := get(h, "/unknown")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(w.Body.String(), ShouldContainSubstring, `"code":"not_found"`)
		})

		Convey("Writes are not allowed", func() {
			req := httptest.NewRequest(http.MethodPost, "/leaderboard", strings.NewReader(`{}`))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestLeaderboard(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps, h := newTestServer()

		Convey("The default is the weekly report for today", func() {
			w := get(h, "/leaderboard")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastPeriod, ShouldEqual, report.PeriodWeekly)
			So(deps.lastDate, ShouldEqual, today)

			var rep report.Report
			So(decode(w, &rep), ShouldBeNil)
			So(rep.ID, ShouldEqual, "rep-1")
			So(rep.ReportDate, ShouldEqual, today)
			So(rep.Leaderboard, ShouldHaveLength, 1)
			So(rep.Leaderboard[0].Medal, ShouldEqual, types.MedalGold)
		})

		Convey("Period and date are taken from the query", func() {
			w := get(h, "/leaderboard?period=daily&date=2024-03-01")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastPeriod, ShouldEqual, report.PeriodDaily)
			So(deps.lastDate, ShouldEqual, model.MustParseDate("2024-03-01"))
		})

		Convey("A bad period or date is rejected", func() {
			So(get(h, "/leaderboard?period=monthly").Code, ShouldEqual, http.StatusBadRequest)
			So(get(h, "/leaderboard?date=10-03-2024").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A storage read failure maps to 503", func() {
			deps.reportErr = &repository.StorageError{
				Backend: "gist", Op: "get_range", Kind: repository.ErrStorageRead, Err: errors.New("timeout"),
			}
			w := get(h, "/leaderboard")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldContainSubstring, "storage_unavailable")
		})

		Convey("Any other failure maps to 500 without leaking details", func() {
			deps.reportErr = errors.New("secret detail")
			w := get(h, "/leaderboard")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldNotContainSubstring, "secret detail")
		})
	})
}

func TestSnapshots(t *testing.T) {
	Convey("Given stored history for alice", t, func() {
		_, h := newTestServer()

		Convey("The default range is the week ending today", func() {
			w := get(h, "/users/alice/snapshots")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Username  string           `json:"username"`
				From      model.Date       `json:"from"`
				To        model.Date       `json:"to"`
				Snapshots []model.Snapshot `json:"snapshots"`
			}
			So(decode(w, &body), ShouldBeNil)
			So(body.Username, ShouldEqual, "alice")
			So(body.From, ShouldEqual, model.MustParseDate("2024-03-04"))
			So(body.To, ShouldEqual, today)
			So(body.Snapshots, ShouldHaveLength, 3)
			So(body.Snapshots[0].TotalXP, ShouldEqual, 100)
			So(body.Snapshots[2].TotalXP, ShouldEqual, 400)
		})

		Convey("An explicit range narrows the result", func() {
			w := get(h, "/users/alice/snapshots?from=2024-03-09&to=2024-03-09")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"total_xp":250`)
			So(w.Body.String(), ShouldNotContainSubstring, `"total_xp":400`)
		})

		Convey("An unknown user is a 404", func() {
			So(get(h, "/users/mallory/snapshots").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Inverted and oversized ranges are rejected", func() {
			So(get(h, "/users/alice/snapshots?from=2024-03-10&to=2024-03-01").Code, ShouldEqual, http.StatusBadRequest)
			So(get(h, "/users/alice/snapshots?from=2020-01-01&to=2024-03-01").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestDashboardAndStats(t *testing.T) {
	Convey("Given an API server", t, func() {
		_, h := newTestServer()

		Convey("The dashboard renders the report as HTML", func() {
			w := get(h, "/dashboard")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "text/html")
			So(w.Body.String(), ShouldStartWith, "<!DOCTYPE html>")
			So(w.Body.String(), ShouldContainSubstring, "alice")
		})

		Convey("Stats lists tracked and stored users", func() {
			w := get(h, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			var s api.Stats
			So(decode(w, &s), ShouldBeNil)
			So(s.Backend, ShouldEqual, "memory")
			So(s.StoredUsers, ShouldResemble, []string{"alice"})
			So(s.RetainDays, ShouldEqual, 90)
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a server limited to two requests a minute", t, func() {
		deps := &fakeDeps{MemoryStore: repository.NewMemoryStore()}
		h := api.NewServer(deps, api.WithRateLimit(2)).Handler()

		codes := make([]int, 0, 3)
		var last *httptest.ResponseRecorder
		for range 3 {
			last = get(h, "/healthz")
			codes = append(codes, last.Code)
		}
		So(codes, ShouldResemble, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests})
		So(last.Body.String(), ShouldContainSubstring, `"code":"rate_limited"`)
	})
}
