package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
)

// File layout of the json backend.
const (
	HistoryFileName = "league_history.json"
	dailyDirName    = "daily"
	dirPerm         = 0o755
)

// FileStore keeps one JSON document per date under daily/ and a combined
// history document. The history document is authoritative; daily documents
// are rebuilt into it only when it is missing. Every call first checks the
// history file and reloads it when another process has replaced it.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	ix     *index
	stamps map[model.Date]time.Time
	seen   fileVersion
	log    logger.Logger
	now    func() time.Time
	closed bool
}

// fileVersion identifies one revision of the history file on disk.
type fileVersion struct {
	exists bool
	size   int64
	mod    time.Time
}

func (v fileVersion) same(o fileVersion) bool {
	return v.exists == o.exists && v.size == o.size && v.mod.Equal(o.mod)
}

// NewFileStore opens or creates a json store rooted at dir.
func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(filepath.Join(dir, dailyDirName), dirPerm); err != nil {
		return nil, writeErr(BackendJSON, "open", err)
	}
	s := &FileStore{dir: dir, log: log, now: time.Now}
	if err := s.load(); err != nil {
		return nil, readErr(BackendJSON, "open", err)
	}
	if err := s.markSeen(); err != nil {
		return nil, readErr(BackendJSON, "open", err)
	}
	return s, nil
}

func (s *FileStore) diskVersion() (fileVersion, error) {
	fi, err := os.Stat(s.historyPath())
	if errors.Is(err, os.ErrNotExist) {
		return fileVersion{}, nil
	}
	if err != nil {
		return fileVersion{}, err
	}
	return fileVersion{exists: true, size: fi.Size(), mod: fi.ModTime()}, nil
}

func (s *FileStore) markSeen() error {
	v, err := s.diskVersion()
	if err != nil {
		return err
	}
	s.seen = v
	return nil
}

// sync reloads the history when the file changed since this store last read
// or wrote it. Callers hold s.mu.
func (s *FileStore) sync() error {
	v, err := s.diskVersion()
	if err != nil {
		return err
	}
	if v.same(s.seen) {
		return nil
	}
	if err := s.load(); err != nil {
		return err
	}
	return s.markSeen()
}

// wrote records the store's own write so the next sync does not reload it.
func (s *FileStore) wrote(ctx context.Context) {
	if err := s.markSeen(); err != nil {
		s.log.Warn(ctx, "failed to stat history after write", logger.Error(err))
	}
}

func (s *FileStore) historyPath() string { return filepath.Join(s.dir, HistoryFileName) }

func (s *FileStore) dailyPath(d model.Date) string {
	return filepath.Join(s.dir, dailyDirName, d.String()+".json")
}

func (s *FileStore) load() error {
	b, err := os.ReadFile(s.historyPath())
	switch {
	case err == nil:
		var entries []historyEntry
		if err := json.Unmarshal(b, &entries); err != nil {
			return fmt.Errorf("decode %s: %w", HistoryFileName, err)
		}
		s.ix, s.stamps = indexFromHistory(entries)
		return nil
	case errors.Is(err, os.ErrNotExist):
		return s.rebuild()
	default:
		return err
	}
}

// rebuild reconstructs the history from the daily documents.
func (s *FileStore) rebuild() error {
	files, err := filepath.Glob(filepath.Join(s.dir, dailyDirName, "*.json"))
	if err != nil {
		return err
	}
	entries := make([]historyEntry, 0, len(files))
	for _, f := range files {
		if _, err := model.ParseDate(strings.TrimSuffix(filepath.Base(f), ".json")); err != nil {
			continue
		}
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		var e historyEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return fmt.Errorf("decode %s: %w", filepath.Base(f), err)
		}
		entries = append(entries, e)
	}
	s.ix, s.stamps = indexFromHistory(entries)
	if len(entries) > 0 {
		s.log.Info(context.Background(), "rebuilt history from daily documents", logger.Int("dates", len(entries)))
		return atomicWriteFileJSON(s.historyPath(), s.ix.toHistory(s.stamps))
	}
	return nil
}

// Put implements Store.
func (s *FileStore) Put(ctx context.Context, snap model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return writeErr(BackendJSON, "put", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return writeErr(BackendJSON, "put", ErrClosed)
	}
	if err := s.sync(); err != nil {
		return writeErr(BackendJSON, "put", err)
	}

	next := s.ix.clone()
	next.put(snap)
	stamps := copyStamps(s.stamps)
	stamps[snap.Date] = s.now().UTC()

	dailyPath := s.dailyPath(snap.Date)
	previous, hadPrevious, err := readIfExists(dailyPath)
	if err != nil {
		return writeErr(BackendJSON, "put", err)
	}
	day := historyEntry{Date: snap.Date, Timestamp: stamps[snap.Date], Results: next.onDate(snap.Date)}
	if err := atomicWriteFileJSON(dailyPath, day); err != nil {
		return writeErr(BackendJSON, "put", err)
	}
	if err := atomicWriteFileJSON(s.historyPath(), next.toHistory(stamps)); err != nil {
		if rbErr := restoreFile(dailyPath, previous, hadPrevious); rbErr != nil {
			s.log.Error(ctx, "rollback of daily document failed", logger.String("path", dailyPath), logger.Error(rbErr))
		}
		return writeErr(BackendJSON, "put", err)
	}

	s.ix, s.stamps = next, stamps
	s.wrote(ctx)
	return nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, username string, date model.Date) (model.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Snapshot{}, false, readErr(BackendJSON, "get", ErrClosed)
	}
	if err := s.sync(); err != nil {
		return model.Snapshot{}, false, readErr(BackendJSON, "get", err)
	}
	snap, ok := s.ix.get(username, date)
	return snap, ok, nil
}

// GetRange implements Store.
func (s *FileStore) GetRange(_ context.Context, username string, start, end model.Date) ([]model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, readErr(BackendJSON, "get_range", ErrClosed)
	}
	if err := s.sync(); err != nil {
		return nil, readErr(BackendJSON, "get_range", err)
	}
	return s.ix.rangeOf(username, start, end), nil
}

// ListUsers implements Store.
func (s *FileStore) ListUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, readErr(BackendJSON, "list_users", ErrClosed)
	}
	if err := s.sync(); err != nil {
		return nil, readErr(BackendJSON, "list_users", err)
	}
	return s.ix.users(), nil
}

// Prune implements Store. The history is rewritten first; stale daily
// documents are removed afterwards.
func (s *FileStore) Prune(ctx context.Context, retainDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, writeErr(BackendJSON, "prune", ErrClosed)
	}
	if err := s.sync(); err != nil {
		return 0, writeErr(BackendJSON, "prune", err)
	}

	next := s.ix.clone()
	removed := next.prune(retainDays)
	if len(removed) == 0 {
		return 0, nil
	}
	stamps := copyStamps(s.stamps)
	gone := make(map[model.Date]struct{})
	for _, k := range removed {
		gone[k.Date] = struct{}{}
	}
	for d := range gone {
		delete(stamps, d)
	}
	if err := atomicWriteFileJSON(s.historyPath(), next.toHistory(stamps)); err != nil {
		return 0, writeErr(BackendJSON, "prune", err)
	}
	s.ix, s.stamps = next, stamps
	s.wrote(ctx)

	for d := range gone {
		if err := os.Remove(s.dailyPath(d)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn(ctx, "failed to remove daily document", logger.String("date", d.String()), logger.Error(err))
		}
	}
	return len(removed), nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyStamps(in map[model.Date]time.Time) map[model.Date]time.Time {
	out := make(map[model.Date]time.Time, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func readIfExists(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func restoreFile(path string, content []byte, existed bool) error {
	if !existed {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// atomicWriteFileJSON writes data to a temp file and renames it over path.
func atomicWriteFileJSON(path string, data any) error {
	tempFile := path + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, path)
}
