package api

import (
	"fmt"
	"net/http"

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/report"
	"github.com/okian/league/pkg/logger"
)

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps  ReportBuilder
	today func() model.Date
	log   logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps ReportBuilder) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, today: model.Today, log: logger.Nop()}
}

// HandleGetLeaderboard handles GET /leaderboard?period=weekly|daily&date=YYYY-MM-DD.
// period defaults to weekly and date to today.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	period, date, err := reportParams(r, h.today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rep, err := h.deps.BuildReport(r.Context(), period, date)
	if err != nil {
		writeUpstreamError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func reportParams(r *http.Request, today model.Date) (report.Period, model.Date, error) {
	period := report.PeriodWeekly
	if v := r.URL.Query().Get("period"); v != "" {
		p, ok := report.ParsePeriod(v)
		if !ok {
			return "", model.Date{}, fmt.Errorf("%w: period must be daily or weekly", ErrBadRequest)
		}
		period = p
	}
	date, err := dateParam(r, "date", today)
	if err != nil {
		return "", model.Date{}, err
	}
	return period, date, nil
}
