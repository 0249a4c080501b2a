package api

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/okian/league/internal/domain/delta"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
)

// maxRangeDays bounds a single snapshot query.
const maxRangeDays = 366

// SnapshotsHandler handles snapshot range requests.
type SnapshotsHandler struct {
	deps  SnapshotReader
	today func() model.Date
	log   logger.Logger
}

// NewSnapshotsHandler creates a new snapshots handler.
func NewSnapshotsHandler(deps SnapshotReader) *SnapshotsHandler {
	return &SnapshotsHandler{deps: deps, today: model.Today, log: logger.Nop()}
}

type snapshotsResponse struct {
	Username  string           `json:"username"`
	From      model.Date       `json:"from"`
	To        model.Date       `json:"to"`
	Snapshots []model.Snapshot `json:"snapshots"`
}

// HandleGetSnapshots handles GET /users/{username}/snapshots?from=&to=.
// to defaults to today and from to the start of the week ending at to.
func (h *SnapshotsHandler) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_snapshots"
	ctx := r.Context()
	username := chi.URLParam(r, "username")

	to, err := dateParam(r, "to", h.today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	from, err := dateParam(r, "from", to.AddDays(-(delta.WindowDays - 1)))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: from is after to", ErrBadRequest))
		return
	}
	if from.DaysUntil(to) >= maxRangeDays {
		writeError(w, http.StatusBadRequest, "range_exceeded",
			fmt.Errorf("%w: range exceeds %d days", ErrBadRequest, maxRangeDays))
		return
	}

	users, err := h.deps.ListUsers(ctx)
	if err != nil {
		writeUpstreamError(ctx, w, h.log, op, err)
		return
	}
	if !slices.Contains(users, username) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: user %q", ErrNotFound, username))
		return
	}

	snaps, err := h.deps.GetRange(ctx, username, from, to)
	if err != nil {
		writeUpstreamError(ctx, w, h.log, op, err)
		return
	}
	if snaps == nil {
		snaps = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshotsResponse{Username: username, From: from, To: to, Snapshots: snaps})
}
