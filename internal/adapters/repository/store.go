// Package repository persists daily snapshots behind one Store interface with
// interchangeable backends selected by name.
package repository

import (
	"context"

	"github.com/okian/league/internal/domain/model"
)

// Backend names understood by Open.
const (
	BackendMemory = "memory"
	BackendJSON   = "json"
	BackendDuckDB = "duckdb"
	BackendBadger = "badger"
	BackendGist   = "gist"
	BackendRedis  = "redis"
)

// Store provides read/write access to persisted snapshots.
//
// A Store is safe for use from a single process. It does not guard against
// two processes writing at once; overlapping scheduled runs must be
// serialized by the caller.
type Store interface {
	// Put upserts s by (username, date). A failed Put leaves prior state
	// unchanged.
	Put(ctx context.Context, s model.Snapshot) error

	// Get returns the snapshot for the key. found is false, with a nil
	// error, when the key does not exist.
	Get(ctx context.Context, username string, date model.Date) (model.Snapshot, bool, error)

	// GetRange returns the user's snapshots in [start, end], oldest first.
	// Missing days are skipped.
	GetRange(ctx context.Context, username string, start, end model.Date) ([]model.Snapshot, error)

	// ListUsers returns every username with at least one snapshot, sorted.
	ListUsers(ctx context.Context) ([]string, error)

	// Prune keeps the retainDays calendar days ending at the newest stored
	// date and deletes everything older. retainDays <= 0 is a no-op.
	Prune(ctx context.Context, retainDays int) (int, error)

	Close() error
}

// pruneCutoff returns the oldest date that survives Prune.
func pruneCutoff(latest model.Date, retainDays int) model.Date {
	return latest.AddDays(-(retainDays - 1))
}
