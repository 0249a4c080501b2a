package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
)

// SchemaVersion is the layout version recorded in the metadata table.
const SchemaVersion = 1

var duckdbSchema = []string{ //nolint:gochecknoglobals // static DDL
	`CREATE TABLE IF NOT EXISTS metadata (
		key VARCHAR PRIMARY KEY,
		value VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		username VARCHAR NOT NULL,
		snapshot_date DATE NOT NULL,
		display_name VARCHAR NOT NULL DEFAULT '',
		total_xp BIGINT NOT NULL,
		streak_days INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (username, snapshot_date)
	)`,
	// no primary key: rows are replaced with delete + insert in one
	// transaction, which a unique index would reject
	`CREATE TABLE IF NOT EXISTS snapshot_languages (
		username VARCHAR NOT NULL,
		snapshot_date DATE NOT NULL,
		position INTEGER NOT NULL,
		name VARCHAR NOT NULL,
		level INTEGER NOT NULL,
		xp BIGINT NOT NULL,
		from_language VARCHAR NOT NULL DEFAULT '',
		learning_language VARCHAR NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_date ON snapshots (snapshot_date)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshot_languages_key ON snapshot_languages (username, snapshot_date)`,
}

// DuckDBStore keeps snapshots in an embedded DuckDB database.
type DuckDBStore struct {
	db  *sql.DB
	log logger.Logger
	now func() time.Time
}

// NewDuckDBStore opens (or creates) the database at path and applies the
// schema.
func NewDuckDBStore(ctx context.Context, path string, log logger.Logger) (*DuckDBStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, writeErr(BackendDuckDB, "open", err)
		}
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, readErr(BackendDuckDB, "open", err)
	}
	// one writer connection keeps transactions strictly serialized
	db.SetMaxOpenConns(1)

	s := &DuckDBStore{db: db, log: log, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, writeErr(BackendDuckDB, "migrate", err)
	}
	return s, nil
}

func (s *DuckDBStore) migrate(ctx context.Context) error {
	for _, stmt := range duckdbSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES ('schema_version', ?) ON CONFLICT (key) DO NOTHING`,
		strconv.Itoa(SchemaVersion)); err != nil {
		return err
	}
	// a database written by a newer release may use columns this one drops
	v, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if v > SchemaVersion {
		return fmt.Errorf("%w: database has %d, this build supports up to %d", ErrSchemaVersion, v, SchemaVersion)
	}
	return nil
}

func (s *DuckDBStore) schemaVersion(ctx context.Context) (int, error) {
	var v string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", v, err)
	}
	return n, nil
}

// Put implements Store. The snapshot row and its languages are replaced in
// one transaction.
func (s *DuckDBStore) Put(ctx context.Context, snap model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return writeErr(BackendDuckDB, "put", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr(BackendDuckDB, "put", err)
	}
	defer func() { _ = tx.Rollback() }()

	day := snap.Date.Time()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (username, snapshot_date, display_name, total_xp, streak_days, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (username, snapshot_date) DO UPDATE SET
			display_name = excluded.display_name,
			total_xp = excluded.total_xp,
			streak_days = excluded.streak_days,
			updated_at = excluded.updated_at`,
		snap.Username, day, snap.DisplayName, snap.TotalXP, snap.StreakDays, s.now().UTC()); err != nil {
		return writeErr(BackendDuckDB, "put", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshot_languages WHERE username = ? AND snapshot_date = ?`, snap.Username, day); err != nil {
		return writeErr(BackendDuckDB, "put", err)
	}
	for i, l := range snap.Languages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot_languages
				(username, snapshot_date, position, name, level, xp, from_language, learning_language)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.Username, day, i, l.Name, l.Level, l.XP, l.FromLanguage, l.LearningLanguage); err != nil {
			return writeErr(BackendDuckDB, "put", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return writeErr(BackendDuckDB, "put", err)
	}
	return nil
}

// Get implements Store.
func (s *DuckDBStore) Get(ctx context.Context, username string, date model.Date) (model.Snapshot, bool, error) {
	snaps, err := s.query(ctx, "get", username, date, date)
	if err != nil {
		return model.Snapshot{}, false, err
	}
	if len(snaps) == 0 {
		return model.Snapshot{}, false, nil
	}
	return snaps[0], true, nil
}

// GetRange implements Store.
func (s *DuckDBStore) GetRange(ctx context.Context, username string, start, end model.Date) ([]model.Snapshot, error) {
	return s.query(ctx, "get_range", username, start, end)
}

func (s *DuckDBStore) query(ctx context.Context, op, username string, start, end model.Date) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_date, display_name, total_xp, streak_days
		FROM snapshots
		WHERE username = ? AND snapshot_date BETWEEN ? AND ?
		ORDER BY snapshot_date`, username, start.Time(), end.Time())
	if err != nil {
		return nil, readErr(BackendDuckDB, op, err)
	}
	out := make([]model.Snapshot, 0)
	pos := make(map[model.Date]int)
	for rows.Next() {
		var (
			day  time.Time
			snap = model.Snapshot{Username: username}
		)
		if err := rows.Scan(&day, &snap.DisplayName, &snap.TotalXP, &snap.StreakDays); err != nil {
			_ = rows.Close()
			return nil, readErr(BackendDuckDB, op, err)
		}
		snap.Date = model.DateOf(day.UTC())
		pos[snap.Date] = len(out)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, readErr(BackendDuckDB, op, err)
	}
	_ = rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	langRows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_date, name, level, xp, from_language, learning_language
		FROM snapshot_languages
		WHERE username = ? AND snapshot_date BETWEEN ? AND ?
		ORDER BY snapshot_date, position`, username, start.Time(), end.Time())
	if err != nil {
		return nil, readErr(BackendDuckDB, op, err)
	}
	defer func() { _ = langRows.Close() }()
	for langRows.Next() {
		var (
			day time.Time
			l   model.LanguageProgress
		)
		if err := langRows.Scan(&day, &l.Name, &l.Level, &l.XP, &l.FromLanguage, &l.LearningLanguage); err != nil {
			return nil, readErr(BackendDuckDB, op, err)
		}
		if i, ok := pos[model.DateOf(day.UTC())]; ok {
			out[i].Languages = append(out[i].Languages, l)
		}
	}
	if err := langRows.Err(); err != nil {
		return nil, readErr(BackendDuckDB, op, err)
	}
	return out, nil
}

// ListUsers implements Store.
func (s *DuckDBStore) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT username FROM snapshots ORDER BY username`)
	if err != nil {
		return nil, readErr(BackendDuckDB, "list_users", err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, readErr(BackendDuckDB, "list_users", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, readErr(BackendDuckDB, "list_users", err)
	}
	return out, nil
}

// Prune implements Store.
func (s *DuckDBStore) Prune(ctx context.Context, retainDays int) (int, error) {
	if retainDays <= 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, writeErr(BackendDuckDB, "prune", err)
	}
	defer func() { _ = tx.Rollback() }()

	var latest sql.NullTime
	if err := tx.QueryRowContext(ctx, `SELECT max(snapshot_date) FROM snapshots`).Scan(&latest); err != nil {
		return 0, readErr(BackendDuckDB, "prune", err)
	}
	if !latest.Valid {
		return 0, nil
	}
	cutoff := pruneCutoff(model.DateOf(latest.Time.UTC()), retainDays).Time()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM snapshots WHERE snapshot_date < ?`, cutoff).Scan(&n); err != nil {
		return 0, readErr(BackendDuckDB, "prune", err)
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_languages WHERE snapshot_date < ?`, cutoff); err != nil {
		return 0, writeErr(BackendDuckDB, "prune", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE snapshot_date < ?`, cutoff); err != nil {
		return 0, writeErr(BackendDuckDB, "prune", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, writeErr(BackendDuckDB, "prune", err)
	}
	s.log.Debug(ctx, "pruned snapshots", logger.Int("removed", n))
	return n, nil
}

// Close implements Store.
func (s *DuckDBStore) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
