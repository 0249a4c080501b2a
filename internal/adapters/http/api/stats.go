package api

import (
	"net/http"

	"github.com/okian/league/pkg/logger"
)

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
	log           logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, log: logger.Nop()}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsProvider.Stats(r.Context())
	if err != nil {
		writeUpstreamError(r.Context(), w, h.log, "api.stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
