// Package profile reads public learner profiles from the upstream API and
// turns them into snapshots.
package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/league/internal/adapters/resilience"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

const (
	usersPath        = "/2017-06-30/users"
	defaultBaseURL   = "https://www.duolingo.com"
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; family-league/1.0)"
	maxErrorBody     = 256
)

// Fetch outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Fetcher returns the profile of one user as a snapshot dated date.
type Fetcher interface {
	Fetch(ctx context.Context, username string, date model.Date) (model.Snapshot, error)
}

type course struct {
	Title            string `json:"title"`
	XP               int64  `json:"xp"`
	Crowns           int    `json:"crowns"`
	FromLanguage     string `json:"fromLanguage"`
	LearningLanguage string `json:"learningLanguage"`
}

type apiUser struct {
	Username   string   `json:"username"`
	Name       string   `json:"name"`
	TotalXP    int64    `json:"totalXp"`
	Streak     int      `json:"streak"`
	Courses    []course `json:"courses"`
	StreakData *struct {
		CurrentStreak *struct {
			Length int `json:"length"`
		} `json:"currentStreak"`
	} `json:"streakData"`
}

type usersResponse struct {
	Users []apiUser `json:"users"`
}

// Client fetches profiles over HTTP. Calls are paced by a rate limiter and
// guarded by a circuit breaker.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	timeout   time.Duration
	limiter   *rate.Limiter
	cb        *gobreaker.CircuitBreaker[[]byte]
	log       logger.Logger
}

var _ Fetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-request timeout. It applies to a client passed
// through WithHTTPClient too, on a copy, whatever the option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRate limits requests to perSecond. Zero or less disables pacing.
func WithRate(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient returns a Client with one request per second and a 10s timeout
// unless overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http:      &http.Client{Timeout: defaultTimeout},
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	c.cb = resilience.NewBreaker[[]byte]("profile", resilience.Settings{}, c.log)
	return c
}

// Fetch implements Fetcher. Every failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, username string, date model.Date) (model.Snapshot, error) {
	start := time.Now()
	snap, err := c.fetch(ctx, username, date)
	outcome := OutcomeOK
	switch {
	case errors.Is(err, ErrUserNotFound):
		outcome = OutcomeNotFound
	case err != nil:
		outcome = OutcomeError
	}
	metrics.RecordFetch(outcome, float64(time.Since(start).Milliseconds()))
	if err != nil {
		c.log.Warn(ctx, "profile fetch failed", logger.String("username", username), logger.Error(err))
		return model.Snapshot{}, err
	}
	c.log.Debug(ctx, "profile fetched",
		logger.String("username", username),
		logger.Int64("total_xp", snap.TotalXP),
		logger.Int("streak", snap.StreakDays),
	)
	return snap, nil
}

func (c *Client) fetch(ctx context.Context, username string, date model.Date) (model.Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.Snapshot{}, &FetchError{Username: username, Err: err}
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.get(ctx, username)
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return model.Snapshot{}, fe
		}
		return model.Snapshot{}, &FetchError{Username: username, Err: err}
	}

	var resp usersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Snapshot{}, &FetchError{Username: username, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(resp.Users) == 0 {
		return model.Snapshot{}, &FetchError{Username: username, Err: ErrUserNotFound}
	}
	snap := toSnapshot(username, date, resp.Users[0])
	if err := snap.Validate(); err != nil {
		return model.Snapshot{}, &FetchError{Username: username, Err: err}
	}
	return snap, nil
}

func (c *Client) get(ctx context.Context, username string) ([]byte, error) {
	endpoint := c.baseURL + usersPath + "?" + url.Values{"username": {username}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Username: username, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Username: username, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Username: username, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(data)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &FetchError{Username: username, StatusCode: resp.StatusCode, Err: errors.New(strings.TrimSpace(snippet))}
	}
	return data, nil
}

// toSnapshot maps an API user. Courses without XP are skipped; a title that
// repeats (same language from another base language) gets the base language
// appended so names stay unique.
func toSnapshot(username string, date model.Date, u apiUser) model.Snapshot {
	snap := model.Snapshot{
		Username:    username,
		DisplayName: u.Name,
		Date:        date,
		TotalXP:     max(u.TotalXP, 0),
		StreakDays:  max(u.Streak, 0),
	}
	if u.StreakData != nil && u.StreakData.CurrentStreak != nil {
		snap.StreakDays = max(u.StreakData.CurrentStreak.Length, 0)
	}

	seen := make(map[string]struct{}, len(u.Courses))
	for _, c := range u.Courses {
		if c.XP <= 0 || c.Title == "" {
			continue
		}
		name := c.Title
		if _, dup := seen[name]; dup {
			name = fmt.Sprintf("%s (%s)", c.Title, c.FromLanguage)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		snap.Languages = append(snap.Languages, model.LanguageProgress{
			Name:             name,
			Level:            max(c.Crowns, 0),
			XP:               c.XP,
			FromLanguage:     c.FromLanguage,
			LearningLanguage: c.LearningLanguage,
		})
	}
	return snap
}
