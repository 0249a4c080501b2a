// Command seed writes a deterministic synthetic history into a storage
// backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	app "github.com/okian/league/internal/app"
	"github.com/okian/league/internal/config"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/seed"
	"github.com/okian/league/pkg/logger"
)

// Default seeding constants.
const (
	defaultDays        = 30
	defaultSeed        = 1
	defaultMissingRate = 0.05
	defaultResetRate   = 0.05
	defaultLanguages   = "Spanish,French"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			_, _ = os.Stderr.WriteString("seed: " + err.Error() + "\n")
		}
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		cfg       seed.Config
		users     string
		languages string
		end       string
		backend   string
	)
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&users, "users", "", "Comma separated usernames (default: configured users)")
	fs.StringVar(&languages, "languages", defaultLanguages, "Comma separated course names")
	fs.IntVar(&cfg.Days, "days", defaultDays, "Number of days to generate")
	fs.StringVar(&end, "end", "", "Last generated day as YYYY-MM-DD (default today)")
	fs.Uint64Var(&cfg.Seed, "seed", defaultSeed, "PRNG seed")
	fs.Float64Var(&cfg.MissingRate, "missing", defaultMissingRate, "Chance that a day has no snapshot")
	fs.Float64Var(&cfg.ResetRate, "reset", defaultResetRate, "Chance that a user breaks the streak on a day")
	fs.StringVar(&backend, "backend", "", "Storage backend (default storage_backend)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := logger.InitWithWriter(stderr, logger.FormatConsole); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	appCfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	_ = logger.SetLevelString(appCfg.LogLevel)
	log := logger.Named("seed")

	cfg.Users = splitList(users)
	if len(cfg.Users) == 0 {
		for _, u := range appCfg.TrackedUsers() {
			cfg.Users = append(cfg.Users, u.Username)
		}
	}
	cfg.Languages = splitList(languages)
	cfg.End = model.Today()
	if end != "" {
		if cfg.End, err = model.ParseDate(end); err != nil {
			return err
		}
	}

	st, err := app.OpenStore(ctx, appCfg, backend, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = st.Close() }()

	stats, err := seed.Run(ctx, cfg, st, log)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Seeded %d snapshots for %d users (%d days ending %s)\n",
		stats.Written, len(cfg.Users), cfg.Days, cfg.End)
	return nil
}
