// Package service orchestrates a league run: collect snapshots, assemble a
// report and deliver it. It also implements the dependencies required by the
// HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/league/internal/adapters/http/api"
	"github.com/okian/league/internal/adapters/notify"
	"github.com/okian/league/internal/adapters/profile"
	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/domain/delta"
	"github.com/okian/league/internal/domain/goals"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/report"
	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

const defaultRetainDays = 90

// User is one tracked family member.
type User struct {
	Username    string
	DisplayName string
	// Languages limits pocket-money tracking; empty tracks every course.
	Languages []string
}

// Service implements the batch run and the API dependencies.
type Service struct {
	// runMu serializes Run and Collect within one process.
	runMu sync.Mutex

	store   repository.Store
	fetcher profile.Fetcher
	mailer  notify.Sender

	users      []User
	thresholds goals.Thresholds
	retainDays int
	reportDir  string
	sendDaily  bool
	sendWeekly bool
	backend    string

	now    func() time.Time
	newID  func() string
	logger logger.Logger
}

var _ api.Dependencies = (*Service)(nil)

// New constructs a Service over store. fetcher may be nil when the service
// only serves reports.
func New(store repository.Store, fetcher profile.Fetcher, opts ...Option) *Service {
	s := &Service{
		store:      store,
		fetcher:    fetcher,
		retainDays: defaultRetainDays,
		thresholds: goals.Thresholds{WeeklyXPGoal: 500, StreakGoal: 7},
		sendWeekly: true,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchResult is the outcome of fetching every tracked user.
type FetchResult struct {
	Date      model.Date
	Snapshots []model.Snapshot
	// Failed maps usernames to their fetch error.
	Failed map[string]error
}

// CollectResult is the outcome of Collect.
type CollectResult struct {
	FetchResult
	Stored int
	Pruned int
}

// Fetch retrieves every tracked user's profile for date without persisting
// anything. Failures are isolated per user.
func (s *Service) Fetch(ctx context.Context, date model.Date) (FetchResult, error) {
	res := FetchResult{Date: date, Failed: map[string]error{}}
	if s.fetcher == nil {
		return res, fmt.Errorf("%w: no profile fetcher", ErrCollect)
	}
	users, err := s.trackedUsers(ctx)
	if err != nil {
		return res, err
	}
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		snap, err := s.fetcher.Fetch(ctx, u.Username, date)
		if err != nil {
			s.logger.Warn(ctx, "profile fetch failed",
				logger.String("username", u.Username),
				logger.Error(err),
			)
			res.Failed[u.Username] = err
			continue
		}
		if u.DisplayName != "" {
			snap.DisplayName = u.DisplayName
		}
		res.Snapshots = append(res.Snapshots, snap)
	}
	return res, nil
}

// Collect fetches every tracked user, stores each snapshot under date and
// prunes old history. Any storage write failure aborts the run.
func (s *Service) Collect(ctx context.Context, date model.Date) (CollectResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.collect(ctx, date)
}

func (s *Service) collect(ctx context.Context, date model.Date) (CollectResult, error) {
	fetched, err := s.Fetch(ctx, date)
	res := CollectResult{FetchResult: fetched}
	if err != nil {
		return res, err
	}
	for _, snap := range fetched.Snapshots {
		if err := s.store.Put(ctx, snap); err != nil {
			return res, fmt.Errorf("%w: store %s: %w", ErrCollect, snap.Username, err)
		}
		res.Stored++
	}
	if s.retainDays > 0 {
		n, err := s.store.Prune(ctx, s.retainDays)
		if err != nil {
			return res, fmt.Errorf("%w: prune: %w", ErrCollect, err)
		}
		res.Pruned = n
	}
	s.logger.Info(ctx, "collection finished",
		logger.String("date", date.String()),
		logger.Int("stored", res.Stored),
		logger.Int("failed", len(res.Failed)),
		logger.Int("pruned", res.Pruned),
	)
	return res, nil
}

// BuildReport assembles the report for period ending on date from stored
// history.
func (s *Service) BuildReport(ctx context.Context, period report.Period, date model.Date) (*report.Report, error) {
	return s.buildReport(ctx, s.store, period, date, nil)
}

// buildReport computes every user's deltas from r. A fetch failure turns a
// user who would otherwise have no data into an error row.
func (s *Service) buildReport(
	ctx context.Context,
	r delta.Reader,
	period report.Period,
	date model.Date,
	fetchFailures map[string]error,
) (*report.Report, error) {
	start := time.Now()
	users, err := s.trackedUsers(ctx)
	if err != nil {
		return nil, err
	}
	engine := delta.New(r)

	inputs := make([]report.UserInput, 0, len(users))
	var (
		readFailures int
		firstErr     error
	)
	for _, u := range users {
		in := report.UserInput{
			Username:         u.Username,
			DisplayName:      u.DisplayName,
			TrackedLanguages: u.Languages,
		}
		weekly, err := engine.ComputeWeekly(ctx, u.Username, date)
		if err == nil {
			in.Weekly = weekly
			in.Daily, in.HasDaily, err = engine.ComputeDaily(ctx, u.Username, date)
		}
		switch {
		case err != nil:
			s.logger.Warn(ctx, "history read failed",
				logger.String("username", u.Username),
				logger.Error(err),
			)
			in.Err = err
			if errors.Is(err, repository.ErrStorageRead) {
				readFailures++
				if firstErr == nil {
					firstErr = err
				}
			}
		case fetchFailures[u.Username] != nil && noData(weekly, period, date):
			in.Err = fetchFailures[u.Username]
		}
		inputs = append(inputs, in)
	}
	if len(users) > 0 && readFailures == len(users) {
		metrics.RecordErrorByComponent("report", "backend_unavailable")
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, firstErr)
	}

	rep := report.Build(report.Input{
		ID:          s.newID(),
		Period:      period,
		ReportDate:  date,
		GeneratedAt: s.now(),
		Thresholds:  s.thresholds,
		Users:       inputs,
	})
	metrics.RecordReport(string(period), rep.Ranked(), rep.LowConfidenceCount(), len(rep.Missing),
		float64(time.Since(start).Milliseconds()))
	s.logger.Debug(ctx, "report assembled",
		logger.String("id", rep.ID),
		logger.String("period", string(period)),
		logger.String("date", date.String()),
		logger.Int("ranked", rep.Ranked()),
		logger.Int("missing", len(rep.Missing)),
	)
	return &rep, nil
}

func noData(w delta.Weekly, period report.Period, date model.Date) bool {
	return !w.HasLatest || (period == report.PeriodDaily && w.Latest.Date != date)
}

// trackedUsers returns the configured users, falling back to every user in
// storage when none are configured.
func (s *Service) trackedUsers(ctx context.Context) ([]User, error) {
	if len(s.users) > 0 {
		return s.users, nil
	}
	names, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoUsers
	}
	users := make([]User, 0, len(names))
	for _, n := range names {
		users = append(users, User{Username: n})
	}
	return users, nil
}

// GetRange returns stored snapshots for the API.
func (s *Service) GetRange(ctx context.Context, username string, start, end model.Date) ([]model.Snapshot, error) {
	return s.store.GetRange(ctx, username, start, end)
}

// ListUsers returns the users present in storage.
func (s *Service) ListUsers(ctx context.Context) ([]string, error) {
	return s.store.ListUsers(ctx)
}

// Stats returns deployment facts for monitoring.
func (s *Service) Stats(ctx context.Context) (api.Stats, error) {
	stored, err := s.store.ListUsers(ctx)
	if err != nil {
		return api.Stats{}, err
	}
	tracked := make([]string, 0, len(s.users))
	for _, u := range s.users {
		tracked = append(tracked, u.Username)
	}
	sort.Strings(tracked)
	return api.Stats{
		Backend:      s.backend,
		TrackedUsers: tracked,
		StoredUsers:  stored,
		RetainDays:   s.retainDays,
	}, nil
}

// overlay serves reads from a store with freshly fetched snapshots laid on
// top, so a check run can report without persisting.
type overlay struct {
	base  delta.Reader
	fresh map[string]model.Snapshot
}

func newOverlay(base delta.Reader, snaps []model.Snapshot) *overlay {
	o := &overlay{base: base, fresh: make(map[string]model.Snapshot, len(snaps))}
	for _, s := range snaps {
		o.fresh[s.Username] = s
	}
	return o
}

func (o *overlay) GetRange(ctx context.Context, username string, start, end model.Date) ([]model.Snapshot, error) {
	snaps, err := o.base.GetRange(ctx, username, start, end)
	if err != nil {
		return nil, err
	}
	f, ok := o.fresh[username]
	if !ok || f.Date.Before(start) || f.Date.After(end) {
		return snaps, nil
	}
	out := make([]model.Snapshot, 0, len(snaps)+1)
	for _, s := range snaps {
		if s.Date != f.Date {
			out = append(out, s)
		}
	}
	out = append(out, f)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
