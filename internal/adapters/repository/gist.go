package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/league/internal/adapters/resilience"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
)

const (
	githubAccept     = "application/vnd.github+json"
	githubAPIVersion = "2022-11-28"
	maxErrorBody     = 512
)

// HTTPStatusError is returned for non-2xx responses of the gist API.
type HTTPStatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

type gistFile struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
	RawURL    string `json:"raw_url,omitempty"`
}

type gistDoc struct {
	Files map[string]*gistFile `json:"files"`
}

// GistStore keeps the whole history as league_history.json inside a GitHub
// gist. Every write rewrites the document; the local copy is replaced only
// after the remote update succeeded.
type GistStore struct {
	mu      sync.Mutex
	gistID  string
	token   string
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	log     logger.Logger
	now     func() time.Time

	ix       *index
	stamps   map[model.Date]time.Time
	loaded   bool
	loadedAt time.Time
	ttl      time.Duration
	closed   bool
}

// NewGistStore creates a store for the given gist. The document is fetched
// lazily on first use.
func NewGistStore(gistID, token, baseURL string, client *http.Client, log logger.Logger) (*GistStore, error) {
	if gistID == "" || token == "" {
		return nil, fmt.Errorf("%w: gist backend requires gist id and token", ErrInvalidOptions)
	}
	if baseURL == "" {
		baseURL = defaultGistAPIURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GistStore{
		gistID:  gistID,
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		cb:      resilience.NewBreaker[[]byte]("gist", resilience.Settings{}, log),
		log:     log,
		now:     time.Now,
	}, nil
}

func (s *GistStore) gistURL() string {
	return s.baseURL + "/gists/" + s.gistID
}

func (s *GistStore) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	return s.cb.Execute(func() ([]byte, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.token)
		req.Header.Set("Accept", githubAccept)
		req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet := string(data)
			if len(snippet) > maxErrorBody {
				snippet = snippet[:maxErrorBody]
			}
			return nil, &HTTPStatusError{Method: method, URL: url, Code: resp.StatusCode, Body: snippet}
		}
		return data, nil
	})
}

// ensureLoaded fetches the document when it was never fetched or the cached
// copy is older than the TTL. Callers hold s.mu.
func (s *GistStore) ensureLoaded(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.loaded && (s.ttl <= 0 || s.now().Sub(s.loadedAt) < s.ttl) {
		return nil
	}
	raw, err := s.do(ctx, http.MethodGet, s.gistURL(), nil)
	if err != nil {
		return err
	}
	var doc gistDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode gist: %w", err)
	}

	var entries []historyEntry
	if f, ok := doc.Files[HistoryFileName]; ok && f != nil {
		content := []byte(f.Content)
		if f.Truncated && f.RawURL != "" {
			if content, err = s.do(ctx, http.MethodGet, f.RawURL, nil); err != nil {
				return err
			}
		}
		if len(bytes.TrimSpace(content)) > 0 {
			if err := json.Unmarshal(content, &entries); err != nil {
				return fmt.Errorf("decode %s: %w", HistoryFileName, err)
			}
		}
	}
	s.ix, s.stamps = indexFromHistory(entries)
	s.loaded, s.loadedAt = true, s.now()
	return nil
}

// push uploads the document rendered from ix.
func (s *GistStore) push(ctx context.Context, ix *index, stamps map[model.Date]time.Time) error {
	content, err := json.MarshalIndent(ix.toHistory(stamps), "", "  ")
	if err != nil {
		return err
	}
	body, err := json.Marshal(gistDoc{Files: map[string]*gistFile{HistoryFileName: {Content: string(content)}}})
	if err != nil {
		return err
	}
	_, err = s.do(ctx, http.MethodPatch, s.gistURL(), body)
	return err
}

// Put implements Store.
func (s *GistStore) Put(ctx context.Context, snap model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return writeErr(BackendGist, "put", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return writeErr(BackendGist, "put", err)
	}

	next := s.ix.clone()
	next.put(snap)
	stamps := copyStamps(s.stamps)
	stamps[snap.Date] = s.now().UTC()
	if err := s.push(ctx, next, stamps); err != nil {
		return writeErr(BackendGist, "put", err)
	}
	s.ix, s.stamps = next, stamps
	return nil
}

// Get implements Store.
func (s *GistStore) Get(ctx context.Context, username string, date model.Date) (model.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return model.Snapshot{}, false, readErr(BackendGist, "get", err)
	}
	snap, ok := s.ix.get(username, date)
	return snap, ok, nil
}

// GetRange implements Store.
func (s *GistStore) GetRange(ctx context.Context, username string, start, end model.Date) ([]model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, readErr(BackendGist, "get_range", err)
	}
	return s.ix.rangeOf(username, start, end), nil
}

// ListUsers implements Store.
func (s *GistStore) ListUsers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, readErr(BackendGist, "list_users", err)
	}
	return s.ix.users(), nil
}

// Prune implements Store.
func (s *GistStore) Prune(ctx context.Context, retainDays int) (int, error) {
	if retainDays <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, writeErr(BackendGist, "prune", err)
	}
	next := s.ix.clone()
	removed := next.prune(retainDays)
	if len(removed) == 0 {
		return 0, nil
	}
	stamps := copyStamps(s.stamps)
	for _, k := range removed {
		delete(stamps, k.Date)
	}
	if err := s.push(ctx, next, stamps); err != nil {
		return 0, writeErr(BackendGist, "prune", err)
	}
	s.ix, s.stamps = next, stamps
	return len(removed), nil
}

// Refresh drops the cached document so the next call refetches it.
func (s *GistStore) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
}

// SetCacheTTL makes the store refetch the document on the first call after
// ttl has passed since the last fetch, so writes made by other processes
// become visible. Zero keeps the first copy for the store's lifetime.
func (s *GistStore) SetCacheTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttl = ttl
}

// Close implements Store.
func (s *GistStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}
