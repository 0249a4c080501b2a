// Command migrate copies every stored snapshot from one backend to another
// and validates the copy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	app "github.com/okian/league/internal/app"
	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/config"
	"github.com/okian/league/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			_, _ = os.Stderr.WriteString("migrate: " + err.Error() + "\n")
		}
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	from := fs.String("from", "", "Source backend (default storage_backend)")
	to := fs.String("to", "", "Destination backend (required)")
	validateOnly := fs.Bool("validate-only", false, "Only compare the two backends")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" {
		return errors.New("--to is required")
	}

	if err := logger.InitWithWriter(stderr, logger.FormatConsole); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.Named("migrate")
	_ = logger.SetLevelString(cfg.LogLevel)

	if *from == "" {
		*from = cfg.StorageBackend
	}
	if *from == *to {
		return fmt.Errorf("source and destination are both %q", *to)
	}

	src, err := app.OpenStore(ctx, cfg, *from, log)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = src.Close() }()
	dst, err := app.OpenStore(ctx, cfg, *to, log)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer func() { _ = dst.Close() }()

	if !*validateOnly {
		n, err := repository.Copy(ctx, src, dst)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Copied %d snapshots from %s to %s\n", n, *from, *to)
	}

	if err := repository.Validate(ctx, src, dst); err != nil {
		var verr *repository.ValidationError
		if errors.As(err, &verr) {
			_, _ = fmt.Fprintf(stdout, "Validation failed: %d missing, %d differing, %d extra\n",
				len(verr.Missing), len(verr.Differing), len(verr.Extra))
		}
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Validation passed: %s and %s hold the same snapshots\n", *from, *to)
	return nil
}
