package repository

import (
	"context"
	"time"

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// instrumented decorates a Store with operation metrics.
type instrumented struct {
	next    Store
	backend string
	log     logger.Logger
}

// Instrument wraps st so each call records its latency and outcome under
// the given backend label.
func Instrument(st Store, backend string, log logger.Logger) Store {
	if log == nil {
		log = logger.Nop()
	}
	return &instrumented{next: st, backend: backend, log: log}
}

func (s *instrumented) observe(ctx context.Context, op string, start time.Time, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
		metrics.RecordErrorByComponent("store."+s.backend, op)
		s.log.Warn(ctx, "storage operation failed", logger.String("op", op), logger.Error(err))
	}
	metrics.RecordStoreOperation(s.backend, op, outcome, float64(time.Since(start).Milliseconds()))
}

func (s *instrumented) Put(ctx context.Context, snap model.Snapshot) error {
	start := time.Now()
	err := s.next.Put(ctx, snap)
	s.observe(ctx, "put", start, err)
	if err == nil {
		metrics.RecordSnapshotWritten()
	}
	return err
}

func (s *instrumented) Get(ctx context.Context, username string, date model.Date) (model.Snapshot, bool, error) {
	start := time.Now()
	snap, ok, err := s.next.Get(ctx, username, date)
	s.observe(ctx, "get", start, err)
	return snap, ok, err
}

func (s *instrumented) GetRange(ctx context.Context, username string, from, to model.Date) ([]model.Snapshot, error) {
	start := time.Now()
	out, err := s.next.GetRange(ctx, username, from, to)
	s.observe(ctx, "get_range", start, err)
	return out, err
}

func (s *instrumented) ListUsers(ctx context.Context) ([]string, error) {
	start := time.Now()
	out, err := s.next.ListUsers(ctx)
	s.observe(ctx, "list_users", start, err)
	return out, err
}

func (s *instrumented) Prune(ctx context.Context, retainDays int) (int, error) {
	start := time.Now()
	n, err := s.next.Prune(ctx, retainDays)
	s.observe(ctx, "prune", start, err)
	metrics.RecordSnapshotsPruned(n)
	if n > 0 {
		s.log.Info(ctx, "pruned old snapshots", logger.Int("removed", n), logger.Int("retain_days", retainDays))
	}
	return n, err
}

func (s *instrumented) Close() error {
	return s.next.Close()
}

// Unwrap returns the decorated store.
func (s *instrumented) Unwrap() Store { return s.next }
