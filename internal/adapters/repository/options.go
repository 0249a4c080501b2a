package repository

import (
	"net/http"
	"time"

	"github.com/okian/league/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	defaultGistAPIURL  = "https://api.github.com"
	defaultHTTPTimeout = 30 * time.Second
	defaultRedisPrefix = "league:"
)

type options struct {
	dataDir   string
	dbPath    string
	badgerDir string

	gistID      string
	githubToken string
	gistAPIURL  string
	gistTTL     time.Duration
	httpClient  *http.Client

	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string
	redisClient   redis.UniversalClient

	log        logger.Logger
	instrument bool
}

func defaultOptions() options {
	return options{
		dataDir:     "data",
		dbPath:      "data/league_data.duckdb",
		badgerDir:   "data/badger",
		gistAPIURL:  defaultGistAPIURL,
		redisPrefix: defaultRedisPrefix,
		log:         logger.Nop(),
		instrument:  true,
	}
}

// Option applies a configuration option to Open.
type Option func(*options)

// WithDataDir sets the root directory of the json backend.
func WithDataDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.dataDir = dir
		}
	}
}

// WithDBPath sets the duckdb database file.
func WithDBPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.dbPath = path
		}
	}
}

// WithBadgerDir sets the badger directory.
func WithBadgerDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.badgerDir = dir
		}
	}
}

// WithGist sets the gist id, token and API base URL. An empty URL keeps
// the GitHub default.
func WithGist(id, token, apiURL string) Option {
	return func(o *options) {
		o.gistID = id
		o.githubToken = token
		if apiURL != "" {
			o.gistAPIURL = apiURL
		}
	}
}

// WithGistCacheTTL sets how long the gist backend reuses a fetched document.
func WithGistCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl >= 0 {
			o.gistTTL = ttl
		}
	}
}

// WithHTTPClient overrides the client used by remote backends.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithRedis sets redis connection settings.
func WithRedis(addr, password string, db int, prefix string) Option {
	return func(o *options) {
		o.redisAddr = addr
		o.redisPassword = password
		o.redisDB = db
		if prefix != "" {
			o.redisPrefix = prefix
		}
	}
}

// WithRedisClient uses an existing client instead of dialing one.
func WithRedisClient(c redis.UniversalClient) Option {
	return func(o *options) {
		o.redisClient = c
	}
}

// WithLogger sets the logger used by the backend.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithInstrumentation toggles the metrics decorator applied by Open.
func WithInstrumentation(enabled bool) Option {
	return func(o *options) {
		o.instrument = enabled
	}
}
