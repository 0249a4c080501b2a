// Package config defines the tracker configuration and its layered loader.
//
// Conventions:
// - Keys are flat and match the koanf tags below.
// - Defaults live in New; Load layers file, .env and environment on top.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"time"
)

// Storage backend names accepted by storage_backend.
const (
	BackendJSON   = "json"
	BackendDuckDB = "duckdb"
	BackendBadger = "badger"
	BackendGist   = "gist"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// User describes one tracked family member.
type User struct {
	Username    string   `koanf:"username" validate:"required"`
	DisplayName string   `koanf:"display_name"`
	Languages   []string `koanf:"languages"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`
	// LogFormat selects console or json output.
	LogFormat string `koanf:"log_format" validate:"oneof=console json"`

	// HTTPAddr is the listen address of the read-only API, e.g. ":9080".
	HTTPAddr string `koanf:"http_addr" validate:"required"`
	// HTTPRateLimit caps API requests per client IP per minute; 0 disables it.
	HTTPRateLimit int `koanf:"http_rate_limit" validate:"gte=0"`

	StorageBackend string `koanf:"storage_backend" validate:"oneof=json duckdb badger gist redis memory"`
	DataDir        string `koanf:"data_dir"`
	DBPath         string `koanf:"db_path"`
	BadgerDir      string `koanf:"badger_dir"`

	GistID      string `koanf:"gist_id"`
	GitHubToken string `koanf:"github_token"`
	GistAPIURL  string `koanf:"gist_api_url" validate:"omitempty,url"`
	// GistCacheTTL is how long a fetched gist document is reused before the
	// next call refetches it; 0 keeps it for the process lifetime.
	GistCacheTTL time.Duration `koanf:"gist_cache_ttl" validate:"gte=0"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db" validate:"gte=0"`
	RedisPrefix   string `koanf:"redis_prefix"`

	ProfileAPIURL      string        `koanf:"profile_api_url" validate:"required,url"`
	FetchTimeout       time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
	FetchRatePerSecond float64       `koanf:"fetch_rate_per_second" validate:"gt=0"`

	// Usernames is the flat list form; Users carries per-user details and
	// takes precedence for names it lists.
	Usernames []string `koanf:"usernames"`
	Users     []User   `koanf:"users" validate:"dive"`

	WeeklyXPGoal         int64    `koanf:"weekly_xp_goal" validate:"gte=0"`
	StreakGoal           int      `koanf:"streak_goal" validate:"gte=0"`
	PocketMoneyLanguages []string `koanf:"pocket_money_languages"`
	// PocketMoneyAmount is expressed in minor currency units.
	PocketMoneyAmount   int64  `koanf:"pocket_money_amount" validate:"gte=0"`
	PocketMoneyCurrency string `koanf:"pocket_money_currency" validate:"required"`

	RetainDays int    `koanf:"retain_days" validate:"gte=0"`
	ReportDir  string `koanf:"report_dir"`

	SMTPServer      string   `koanf:"smtp_server"`
	SMTPPort        int      `koanf:"smtp_port" validate:"gt=0,lte=65535"`
	SenderEmail     string   `koanf:"sender_email" validate:"omitempty,email"`
	SenderPassword  string   `koanf:"sender_password"`
	FamilyEmailList []string `koanf:"family_email_list" validate:"dive,email"`
	SendDaily       bool     `koanf:"send_daily"`
	SendWeekly      bool     `koanf:"send_weekly"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "console",
		HTTPAddr:             ":9080",
		HTTPRateLimit:        120,
		StorageBackend:       BackendJSON,
		DataDir:              "data",
		DBPath:               "data/league_data.duckdb",
		BadgerDir:            "data/badger",
		GistAPIURL:           "https://api.github.com",
		GistCacheTTL:         time.Minute,
		RedisPrefix:          "league:",
		ProfileAPIURL:        "https://www.duolingo.com",
		FetchTimeout:         10 * time.Second,
		FetchRatePerSecond:   1,
		WeeklyXPGoal:         500,
		StreakGoal:           7,
		PocketMoneyLanguages: []string{},
		PocketMoneyAmount:    0,
		PocketMoneyCurrency:  "EUR",
		RetainDays:           90,
		ReportDir:            "reports",
		SMTPServer:           "smtp.gmail.com",
		SMTPPort:             587,
		SendDaily:            false,
		SendWeekly:           true,
	}
}

// TrackedUsers merges Users and Usernames into one ordered list without
// duplicates. Detailed entries come first.
func (c *Config) TrackedUsers() []User {
	seen := make(map[string]struct{}, len(c.Users)+len(c.Usernames))
	out := make([]User, 0, len(c.Users)+len(c.Usernames))
	for _, u := range c.Users {
		if _, ok := seen[u.Username]; ok {
			continue
		}
		seen[u.Username] = struct{}{}
		out = append(out, u)
	}
	for _, name := range c.Usernames {
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, User{Username: name})
	}
	return out
}

// EmailConfigured reports whether enough SMTP settings are present to send.
func (c *Config) EmailConfigured() bool {
	return c.SMTPServer != "" && c.SenderEmail != "" && c.SenderPassword != "" && len(c.FamilyEmailList) > 0
}
