package repository

import (
	"context"
	"sync"

	"github.com/okian/league/internal/domain/model"
)

// Opener opens a backend.
type Opener func(ctx context.Context) (Store, error)

// OnDemand returns a Store that opens the backend for each call and closes it
// before returning. The embedded backends lock their files while open, so a
// long-running reader built this way lets scheduled runs in other processes
// open the same database between calls.
func OnDemand(backend string, open Opener) Store {
	return &onDemand{backend: backend, open: open}
}

// Embedded reports whether backend holds an exclusive file lock while open.
func Embedded(backend string) bool {
	return backend == BackendBadger || backend == BackendDuckDB
}

type onDemand struct {
	mu      sync.Mutex
	backend string
	open    Opener
	closed  bool
}

func (s *onDemand) with(ctx context.Context, op string, wrap func(string, string, error) error, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return wrap(s.backend, op, ErrClosed)
	}
	st, err := s.open(ctx)
	if err != nil {
		return wrap(s.backend, op, err)
	}
	err = fn(st)
	if cerr := st.Close(); err == nil && cerr != nil {
		return wrap(s.backend, op, cerr)
	}
	return err
}

func (s *onDemand) Put(ctx context.Context, snap model.Snapshot) error {
	return s.with(ctx, "put", writeErr, func(st Store) error {
		return st.Put(ctx, snap)
	})
}

func (s *onDemand) Get(ctx context.Context, username string, date model.Date) (model.Snapshot, bool, error) {
	var (
		snap  model.Snapshot
		found bool
	)
	err := s.with(ctx, "get", readErr, func(st Store) error {
		var err error
		snap, found, err = st.Get(ctx, username, date)
		return err
	})
	return snap, found, err
}

func (s *onDemand) GetRange(ctx context.Context, username string, start, end model.Date) ([]model.Snapshot, error) {
	var out []model.Snapshot
	err := s.with(ctx, "get_range", readErr, func(st Store) error {
		var err error
		out, err = st.GetRange(ctx, username, start, end)
		return err
	})
	return out, err
}

func (s *onDemand) ListUsers(ctx context.Context) ([]string, error) {
	var out []string
	err := s.with(ctx, "list_users", readErr, func(st Store) error {
		var err error
		out, err = st.ListUsers(ctx)
		return err
	})
	return out, err
}

func (s *onDemand) Prune(ctx context.Context, retainDays int) (int, error) {
	var n int
	err := s.with(ctx, "prune", writeErr, func(st Store) error {
		var err error
		n, err = st.Prune(ctx, retainDays)
		return err
	})
	return n, err
}

func (s *onDemand) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
