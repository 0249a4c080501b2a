package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
)

// Key layout: snap/<username>\x00<YYYY-MM-DD>. Dates sort lexically, so a
// prefix scan per user yields ascending dates.
const (
	snapshotKeyPrefix = "snap/"
	keySep            = "\x00"
)

// BadgerStore keeps one JSON value per snapshot in an embedded badger
// database.
type BadgerStore struct {
	db  *badger.DB
	log logger.Logger
}

// NewBadgerStore opens a badger database in dir. An empty dir opens an
// in-memory database.
func NewBadgerStore(dir string, log logger.Logger) (*BadgerStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, readErr(BackendBadger, "open", err)
	}
	return &BadgerStore{db: db, log: log}, nil
}

func userPrefix(username string) []byte {
	return []byte(snapshotKeyPrefix + username + keySep)
}

func snapshotKey(username string, date model.Date) []byte {
	return []byte(snapshotKeyPrefix + username + keySep + date.String())
}

func parseSnapshotKey(k []byte) (string, model.Date, error) {
	rest := bytes.TrimPrefix(k, []byte(snapshotKeyPrefix))
	i := bytes.LastIndex(rest, []byte(keySep))
	if i < 0 {
		return "", model.Date{}, fmt.Errorf("malformed key %q", k)
	}
	d, err := model.ParseDate(string(rest[i+1:]))
	if err != nil {
		return "", model.Date{}, err
	}
	return string(rest[:i]), d, nil
}

// Put implements Store.
func (s *BadgerStore) Put(_ context.Context, snap model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return writeErr(BackendBadger, "put", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return writeErr(BackendBadger, "put", fmt.Errorf("marshal snapshot: %w", err))
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(snap.Username, snap.Date), data)
	})
	if err != nil {
		return writeErr(BackendBadger, "put", err)
	}
	return nil
}

// Get implements Store.
func (s *BadgerStore) Get(_ context.Context, username string, date model.Date) (model.Snapshot, bool, error) {
	var (
		snap  model.Snapshot
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(username, date))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return model.Snapshot{}, false, readErr(BackendBadger, "get", err)
	}
	return snap, found, nil
}

// GetRange implements Store.
func (s *BadgerStore) GetRange(_ context.Context, username string, start, end model.Date) ([]model.Snapshot, error) {
	out := make([]model.Snapshot, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := userPrefix(username)
		for it.Seek(snapshotKey(username, start)); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			u, d, err := parseSnapshotKey(item.Key())
			if err != nil {
				return err
			}
			if u != username {
				continue
			}
			if d.After(end) {
				break
			}
			var snap model.Snapshot
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, readErr(BackendBadger, "get_range", err)
	}
	return out, nil
}

// ListUsers implements Store.
func (s *BadgerStore) ListUsers(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(snapshotKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			u, _, err := parseSnapshotKey(it.Item().Key())
			if err != nil {
				return err
			}
			seen[u] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, readErr(BackendBadger, "list_users", err)
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

// Prune implements Store. The scan and the deletes share one transaction.
func (s *BadgerStore) Prune(ctx context.Context, retainDays int) (int, error) {
	if retainDays <= 0 {
		return 0, nil
	}
	removed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		type entry struct {
			key  []byte
			date model.Date
		}
		var (
			all    []entry
			latest model.Date
		)
		prefix := []byte(snapshotKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			_, d, err := parseSnapshotKey(k)
			if err != nil {
				it.Close()
				return err
			}
			if d.After(latest) {
				latest = d
			}
			all = append(all, entry{key: k, date: d})
		}
		it.Close()
		if len(all) == 0 {
			return nil
		}

		cutoff := pruneCutoff(latest, retainDays)
		for _, e := range all {
			if !e.date.Before(cutoff) {
				continue
			}
			if err := txn.Delete(e.key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, writeErr(BackendBadger, "prune", err)
	}
	if removed > 0 {
		s.log.Debug(ctx, "pruned snapshots", logger.Int("removed", removed))
	}
	return removed, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
