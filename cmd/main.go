package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/league/internal/adapters/http/api"
	"github.com/okian/league/internal/adapters/repository"
	app "github.com/okian/league/internal/app"
	"github.com/okian/league/internal/config"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// cliOptions are the parsed command line flags.
type cliOptions struct {
	daily     bool
	weekly    bool
	checkOnly bool
	sendEmail bool
	serve     bool
	date      model.Date
}

// mode returns the run mode selected by the flags, or "" when only the API
// server was requested.
func (o cliOptions) mode() app.Mode {
	switch {
	case o.daily:
		return app.ModeDaily
	case o.weekly:
		return app.ModeWeekly
	case o.checkOnly || !o.serve:
		return app.ModeCheck
	default:
		return ""
	}
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var (
		opts cliOptions
		date string
	)
	fs := flag.NewFlagSet("league", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.daily, "daily", false, "Run daily check, save data and produce the daily update")
	fs.BoolVar(&opts.weekly, "weekly", false, "Save data and produce the weekly report")
	fs.BoolVar(&opts.checkOnly, "check-only", false, "Check and display current status without saving")
	fs.BoolVar(&opts.sendEmail, "send-email", false, "Send the report by email regardless of send_daily/send_weekly")
	fs.BoolVar(&opts.serve, "serve", false, "Serve the read-only HTTP API until interrupted")
	fs.StringVar(&date, "date", "", "Run date as YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	n := 0
	for _, set := range []bool{opts.daily, opts.weekly, opts.checkOnly} {
		if set {
			n++
		}
	}
	if n > 1 {
		return opts, errors.New("--daily, --weekly and --check-only are mutually exclusive")
	}
	if date != "" {
		d, err := model.ParseDate(date)
		if err != nil {
			return opts, err
		}
		opts.date = d
	}
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			_, _ = os.Stderr.WriteString("league: " + err.Error() + "\n")
		}
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	// Logs go to stderr so the report on stdout stays clean.
	if err := logger.InitWithWriter(stderr, logger.FormatConsole); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWithWriter(stderr, cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if mode := opts.mode(); mode != "" {
		if err := runBatch(ctx, cfg, opts, mode, stdout, log); err != nil {
			return err
		}
	}
	if opts.serve {
		return serve(ctx, cfg, log)
	}
	return nil
}

func newService(cfg *config.Config, store repository.Store, log logger.Logger) *app.Service {
	return app.FromConfig(cfg, store,
		app.NewProfileClient(cfg, log.Named("profile")),
		app.NewMailer(cfg, log.Named("mailer")),
		log.Named("service"),
	)
}

func closeStore(ctx context.Context, store repository.Store, log logger.Logger) {
	if err := store.Close(); err != nil {
		log.Error(ctx, "failed to close storage", logger.Error(err))
	}
}

// runBatch runs one collection/report pass. The store is closed before the
// API server starts so an embedded database is not held across both.
func runBatch(ctx context.Context, cfg *config.Config, opts cliOptions, mode app.Mode, stdout io.Writer, log logger.Logger) error {
	store, err := app.OpenStore(ctx, cfg, "", log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStore(ctx, store, log)

	res, err := newService(cfg, store, log).Run(ctx, app.RunOptions{Mode: mode, Date: opts.date, ForceEmail: opts.sendEmail})
	if err != nil {
		return err
	}
	_, _ = io.WriteString(stdout, "\n"+res.Text+"\n")
	for _, f := range res.Files {
		_, _ = fmt.Fprintf(stdout, "\nReport saved to %s\n", f)
	}
	if res.EmailErr != nil {
		log.Error(ctx, "failed to send email", logger.Error(res.EmailErr))
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := app.OpenServingStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStore(ctx, store, log)
	svc := newService(cfg, store, log)

	apiServer := api.NewServer(svc,
		api.WithRateLimit(cfg.HTTPRateLimit),
		api.WithLogger(log.Named("api")),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer.Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}
