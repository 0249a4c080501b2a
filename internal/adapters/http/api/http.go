// Package api serves the read-only HTTP view of the league: the assembled
// leaderboard, raw snapshot ranges, a rendered dashboard and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"

	"github.com/okian/league/internal/adapters/http/swagger"
	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/report"
	"github.com/okian/league/pkg/logger"
)

const (
	defaultRequestsPerMinute = 120
	rateWindow               = time.Minute
)

// ReportBuilder assembles reports on demand.
type ReportBuilder interface {
	BuildReport(ctx context.Context, period report.Period, date model.Date) (*report.Report, error)
}

// SnapshotReader exposes stored history.
type SnapshotReader interface {
	GetRange(ctx context.Context, username string, start, end model.Date) ([]model.Snapshot, error)
	ListUsers(ctx context.Context) ([]string, error)
}

// StatsProvider reports deployment facts for /stats.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	ReportBuilder
	SnapshotReader
	StatsProvider
}

// Stats is the body of GET /stats.
type Stats struct {
	Backend      string   `json:"backend"`
	TrackedUsers []string `json:"tracked_users"`
	StoredUsers  []string `json:"stored_users"`
	RetainDays   int      `json:"retain_days"`
}

// Server wires HTTP routes for the league API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	snapshotsHandler   *SnapshotsHandler
	dashboardHandler   *dashboardHandler

	requestsPerMinute int
	log               logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit caps requests per client IP per minute. n <= 0 disables limiting.
func WithRateLimit(n int) Option {
	return func(s *Server) { s.requestsPerMinute = n }
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the source of "today" used when a request omits its date.
func WithClock(today func() model.Date) Option {
	return func(s *Server) {
		if today != nil {
			s.leaderboardHandler.today = today
			s.snapshotsHandler.today = today
			s.dashboardHandler.today = today
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		snapshotsHandler:   NewSnapshotsHandler(deps),
		dashboardHandler:   newDashboardHandler(deps),
		requestsPerMinute:  defaultRequestsPerMinute,
		log:                logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.statsHandler.log = s.log
	s.leaderboardHandler.log = s.log
	s.snapshotsHandler.log = s.log
	s.dashboardHandler.log = s.log
	return s
}

// Handler returns the chi router with every route and middleware attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if s.requestsPerMinute > 0 {
		r.Use(httprate.Limit(s.requestsPerMinute, rateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimited),
		))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})

	r.With(instrument("healthz")).Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/openapi.yaml", swagger.Handler)
	r.With(instrument("stats")).Get("/stats", s.statsHandler.HandleStats)
	r.With(instrument("leaderboard")).Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	r.With(instrument("dashboard")).Get("/dashboard", s.dashboardHandler.HandleDashboard)
	r.With(instrument("snapshots")).Get("/users/{username}/snapshots", s.snapshotsHandler.HandleGetSnapshots)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeUpstreamError maps errors from the report builder or store to a status.
func writeUpstreamError(ctx context.Context, w http.ResponseWriter, log logger.Logger, op string, err error) {
	if errors.Is(err, repository.ErrStorageRead) {
		log.Warn(ctx, "storage unavailable", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", fmt.Errorf("%w: %s", ErrUnavailable, op))
		return
	}
	log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", nil)
}

// dateParam parses an optional YYYY-MM-DD query parameter.
func dateParam(r *http.Request, name string, fallback model.Date) (model.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return model.Date{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrBadRequest, name)
	}
	return d, nil
}
