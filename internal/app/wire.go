package service

import (
	"context"

	"github.com/okian/league/internal/adapters/notify"
	"github.com/okian/league/internal/adapters/profile"
	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/config"
	"github.com/okian/league/internal/domain/goals"
	"github.com/okian/league/pkg/logger"
)

// OpenStore opens the backend named by backend with the connection settings
// of cfg. An empty backend selects cfg.StorageBackend.
func OpenStore(ctx context.Context, cfg *config.Config, backend string, log logger.Logger) (repository.Store, error) {
	if backend == "" {
		backend = cfg.StorageBackend
	}
	return repository.Open(ctx, backend,
		repository.WithDataDir(cfg.DataDir),
		repository.WithDBPath(cfg.DBPath),
		repository.WithBadgerDir(cfg.BadgerDir),
		repository.WithGist(cfg.GistID, cfg.GitHubToken, cfg.GistAPIURL),
		repository.WithGistCacheTTL(cfg.GistCacheTTL),
		repository.WithRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix),
		repository.WithLogger(log),
	)
}

// OpenServingStore opens the store for a long-running API server. Embedded
// backends are opened per call so scheduled runs in other processes can
// still take the database lock between requests.
func OpenServingStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	if !repository.Embedded(cfg.StorageBackend) {
		return OpenStore(ctx, cfg, "", log)
	}
	log.Info(ctx, "opening embedded backend per request", logger.String("backend", cfg.StorageBackend))
	return repository.OnDemand(cfg.StorageBackend, func(ctx context.Context) (repository.Store, error) {
		return OpenStore(ctx, cfg, "", log)
	}), nil
}

// NewProfileClient builds the upstream profile client from cfg.
func NewProfileClient(cfg *config.Config, log logger.Logger) *profile.Client {
	return profile.NewClient(
		profile.WithBaseURL(cfg.ProfileAPIURL),
		profile.WithTimeout(cfg.FetchTimeout),
		profile.WithRate(cfg.FetchRatePerSecond),
		profile.WithLogger(log),
	)
}

// NewMailer builds the SMTP mailer from cfg.
func NewMailer(cfg *config.Config, log logger.Logger) *notify.Mailer {
	return notify.NewMailer(notify.Config{
		Server:     cfg.SMTPServer,
		Port:       cfg.SMTPPort,
		Sender:     cfg.SenderEmail,
		Password:   cfg.SenderPassword,
		Recipients: cfg.FamilyEmailList,
	}, log)
}

// Thresholds maps the goal settings of cfg.
func Thresholds(cfg *config.Config) goals.Thresholds {
	return goals.Thresholds{
		WeeklyXPGoal:         cfg.WeeklyXPGoal,
		StreakGoal:           cfg.StreakGoal,
		PocketMoneyLanguages: cfg.PocketMoneyLanguages,
		PocketMoneyAmount:    goals.Money(cfg.PocketMoneyAmount),
		Currency:             cfg.PocketMoneyCurrency,
	}
}

// FromConfig builds a Service wired to store, fetcher and mailer with the
// settings of cfg.
func FromConfig(cfg *config.Config, store repository.Store, fetcher profile.Fetcher, mailer notify.Sender, log logger.Logger) *Service {
	tracked := cfg.TrackedUsers()
	users := make([]User, 0, len(tracked))
	for _, u := range tracked {
		users = append(users, User{Username: u.Username, DisplayName: u.DisplayName, Languages: u.Languages})
	}
	opts := []Option{
		WithUsers(users),
		WithThresholds(Thresholds(cfg)),
		WithRetainDays(cfg.RetainDays),
		WithReportDir(cfg.ReportDir),
		WithDelivery(cfg.SendDaily, cfg.SendWeekly),
		WithBackendName(cfg.StorageBackend),
		WithLogger(log),
	}
	if mailer != nil {
		opts = append(opts, WithMailer(mailer))
	}
	return New(store, fetcher, opts...)
}
