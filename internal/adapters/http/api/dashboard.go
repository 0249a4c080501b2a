package api

import (
	"net/http"

	"github.com/okian/league/internal/adapters/render"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
)

// dashboardHandler serves the rendered HTML report.
type dashboardHandler struct {
	deps  ReportBuilder
	today func() model.Date
	log   logger.Logger
}

func newDashboardHandler(deps ReportBuilder) *dashboardHandler {
	return &dashboardHandler{deps: deps, today: model.Today, log: logger.Nop()}
}

// HandleDashboard handles GET /dashboard?period=&date= with the same
// parameters as /leaderboard.
func (h *dashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.dashboard"
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
	page, err := render.HTML(*rep)
	if err != nil {
		writeUpstreamError(r.Context(), w, h.log, op, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}
