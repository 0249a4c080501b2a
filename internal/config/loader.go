package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Environment variables that steer loading itself.
const (
	ConfigPathEnvVar = "LEAGUE_CONFIG"
	EnvFileEnvVar    = "LEAGUE_ENV_FILE"
	envPrefix        = "LEAGUE_"
	defaultEnvFile   = ".env"
)

// legacyEnvKeys maps the unprefixed variable names used by earlier
// deployments onto config keys. LEAGUE_* variables win over these.
var legacyEnvKeys = map[string]string{ //nolint:gochecknoglobals // static lookup table
	"DUOLINGO_USERNAMES": "usernames",
	"WEEKLY_XP_GOAL":     "weekly_xp_goal",
	"STREAK_GOAL":        "streak_goal",
	"SMTP_SERVER":        "smtp_server",
	"SMTP_PORT":          "smtp_port",
	"SENDER_EMAIL":       "sender_email",
	"SENDER_PASSWORD":    "sender_password",
	"FAMILY_EMAIL_LIST":  "family_email_list",
	"SEND_DAILY":         "send_daily",
	"SEND_WEEKLY":        "send_weekly",
	"STORAGE_BACKEND":    "storage_backend",
	"GIST_ID":            "gist_id",
	"GITHUB_TOKEN":       "github_token",
}

// sliceKeys are parsed from comma-separated strings when they arrive from
// the environment.
var sliceKeys = []string{ //nolint:gochecknoglobals // static lookup table
	"usernames",
	"pocket_money_languages",
	"family_email_list",
}

// Load builds a Config by layering defaults, optional file, .env and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if LEAGUE_CONFIG is set
//  3. .env file (LEAGUE_ENV_FILE or ./.env), never overriding the real environment
//  4. legacy unprefixed env (DUOLINGO_USERNAMES, SMTP_SERVER, ...)
//  5. env (prefix LEAGUE_)
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(New(ctx), "koanf"), nil); err != nil {
		return nil, loadErr("defaults", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, loadErr("file "+path, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, loadErr("dotenv", err)
	}

	legacy := env.Provider("", ".", func(s string) string {
		return legacyEnvKeys[s]
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, loadErr("legacy env", err)
	}

	// LEAGUE_STREAK_GOAL -> streak_goal (flat keys)
	prefixed := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, loadErr("env", err)
	}

	if err := splitSliceKeys(k); err != nil {
		return nil, loadErr("slices", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, loadErr("unmarshal", err)
	}
	normalize(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv(EnvFileEnvVar)
	if path == "" {
		path = defaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && os.Getenv(EnvFileEnvVar) == "" {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func splitSliceKeys(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(key, out); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func normalize(c *Config) {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	for i := range c.Usernames {
		c.Usernames[i] = strings.TrimSpace(c.Usernames[i])
	}
}

// Validate checks field constraints and the cross-field rules of the
// selected storage backend.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalidf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return invalidf("%v", err)
	}

	if len(c.TrackedUsers()) == 0 {
		return invalidf("no usernames configured")
	}

	switch c.StorageBackend {
	case BackendJSON:
		if c.DataDir == "" {
			return invalidf("json backend requires data_dir")
		}
	case BackendDuckDB:
		if c.DBPath == "" {
			return invalidf("duckdb backend requires db_path")
		}
	case BackendBadger:
		if c.BadgerDir == "" {
			return invalidf("badger backend requires badger_dir")
		}
	case BackendGist:
		if c.GistID == "" || c.GitHubToken == "" {
			return invalidf("gist backend requires gist_id and github_token")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return invalidf("redis backend requires redis_addr")
		}
	}
	return nil
}
