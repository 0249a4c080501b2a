package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
)

// RedisStore keeps one hash per user (field = date, value = snapshot JSON)
// plus a set of usernames.
//
//	<prefix>users                set of usernames
//	<prefix>snapshots:<username> hash YYYY-MM-DD -> snapshot
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	owned  bool
	log    logger.Logger
}

// NewRedisStore wraps client. The client is pinged once so a bad address
// fails at startup instead of on the first write.
func NewRedisStore(ctx context.Context, client redis.UniversalClient, prefix string, log logger.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis backend requires a client", ErrInvalidOptions)
	}
	if log == nil {
		log = logger.Nop()
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, readErr(BackendRedis, "open", err)
	}
	return &RedisStore{client: client, prefix: prefix, log: log}, nil
}

func (s *RedisStore) usersKey() string { return s.prefix + "users" }

func (s *RedisStore) userKey(username string) string {
	return s.prefix + "snapshots:" + username
}

// Put implements Store. The hash field and the user set are written in one
// MULTI/EXEC block.
func (s *RedisStore) Put(ctx context.Context, snap model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return writeErr(BackendRedis, "put", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return writeErr(BackendRedis, "put", fmt.Errorf("marshal snapshot: %w", err))
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.userKey(snap.Username), snap.Date.String(), data)
		pipe.SAdd(ctx, s.usersKey(), snap.Username)
		return nil
	})
	if err != nil {
		return writeErr(BackendRedis, "put", err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, username string, date model.Date) (model.Snapshot, bool, error) {
	raw, err := s.client.HGet(ctx, s.userKey(username), date.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Snapshot{}, false, nil
	}
	if err != nil {
		return model.Snapshot{}, false, readErr(BackendRedis, "get", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.Snapshot{}, false, readErr(BackendRedis, "get", err)
	}
	return snap, true, nil
}

// GetRange implements Store.
func (s *RedisStore) GetRange(ctx context.Context, username string, start, end model.Date) ([]model.Snapshot, error) {
	all, err := s.client.HGetAll(ctx, s.userKey(username)).Result()
	if err != nil {
		return nil, readErr(BackendRedis, "get_range", err)
	}
	out := make([]model.Snapshot, 0, len(all))
	for field, raw := range all {
		d, err := model.ParseDate(field)
		if err != nil {
			return nil, readErr(BackendRedis, "get_range", fmt.Errorf("field %q: %w", field, err))
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		var snap model.Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			return nil, readErr(BackendRedis, "get_range", err)
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ListUsers implements Store.
func (s *RedisStore) ListUsers(ctx context.Context) ([]string, error) {
	users, err := s.client.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, readErr(BackendRedis, "list_users", err)
	}
	sort.Strings(users)
	return users, nil
}

// Prune implements Store. Dates are collected first; the deletes then run in
// one MULTI/EXEC block.
func (s *RedisStore) Prune(ctx context.Context, retainDays int) (int, error) {
	if retainDays <= 0 {
		return 0, nil
	}
	users, err := s.client.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return 0, writeErr(BackendRedis, "prune", err)
	}

	fields := make(map[string][]model.Date, len(users))
	var (
		latest model.Date
		found  bool
	)
	for _, u := range users {
		keys, err := s.client.HKeys(ctx, s.userKey(u)).Result()
		if err != nil {
			return 0, writeErr(BackendRedis, "prune", err)
		}
		for _, k := range keys {
			d, err := model.ParseDate(k)
			if err != nil {
				return 0, writeErr(BackendRedis, "prune", fmt.Errorf("field %q: %w", k, err))
			}
			fields[u] = append(fields[u], d)
			if !found || d.After(latest) {
				latest, found = d, true
			}
		}
	}
	if !found {
		return 0, nil
	}

	cutoff := pruneCutoff(latest, retainDays)
	old := make(map[string][]string)
	removed := 0
	for u, dates := range fields {
		for _, d := range dates {
			if d.Before(cutoff) {
				old[u] = append(old[u], d.String())
				removed++
			}
		}
	}
	if removed == 0 {
		return 0, nil
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for u, stale := range old {
			pipe.HDel(ctx, s.userKey(u), stale...)
			if len(stale) == len(fields[u]) {
				pipe.SRem(ctx, s.usersKey(), u)
			}
		}
		return nil
	})
	if err != nil {
		return 0, writeErr(BackendRedis, "prune", err)
	}
	s.log.Debug(ctx, "pruned snapshots", logger.Int("removed", removed))
	return removed, nil
}

// Close implements Store. A client passed in by the caller is left open.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
