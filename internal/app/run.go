package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/league/internal/adapters/notify"
	"github.com/okian/league/internal/adapters/render"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/report"
	"github.com/okian/league/pkg/logger"
)

const reportFileDateLayout = "20060102"

// Mode selects what Run does.
type Mode string

// Run modes.
const (
	// ModeCheck fetches and reports on the current state without storing it.
	ModeCheck Mode = "check"
	// ModeDaily collects and produces the daily update.
	ModeDaily Mode = "daily"
	// ModeWeekly collects and produces the weekly report.
	ModeWeekly Mode = "weekly"
)

// ParseMode maps a string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCheck, ModeDaily, ModeWeekly:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) period() report.Period {
	if m == ModeWeekly {
		return report.PeriodWeekly
	}
	return report.PeriodDaily
}

func (m Mode) subjectPrefix() string {
	switch m {
	case ModeDaily:
		return "Daily Update - "
	case ModeWeekly:
		return "Weekly Report - "
	default:
		return "Status Update - "
	}
}

// RunOptions parameterize one Run.
type RunOptions struct {
	Mode Mode
	// Date is the run date; zero means today.
	Date model.Date
	// ForceEmail sends the report even when the period is not enabled for
	// delivery.
	ForceEmail bool
}

// RunResult is everything one run produced.
type RunResult struct {
	Mode    Mode
	Collect CollectResult
	Report  *report.Report
	Text    string
	HTML    string
	// Files lists the report files written.
	Files []string
	// Emailed is true when the report was handed to the mail server.
	Emailed bool
	// EmailErr records a delivery failure; delivery never fails the run.
	EmailErr error
}

// Run executes one batch run.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()

	date := opts.Date
	if date.IsZero() {
		date = model.DateOf(s.now())
	}
	log := s.logger.Named(string(opts.Mode))
	log.Info(ctx, "run started", logger.String("date", date.String()))

	res := &RunResult{Mode: opts.Mode}
	var (
		rep *report.Report
		err error
	)
	if opts.Mode == ModeCheck {
		var fetched FetchResult
		fetched, err = s.Fetch(ctx, date)
		res.Collect = CollectResult{FetchResult: fetched}
		if err != nil {
			return res, err
		}
		rep, err = s.buildReport(ctx, newOverlay(s.store, fetched.Snapshots), report.PeriodDaily, date, fetched.Failed)
	} else {
		res.Collect, err = s.collect(ctx, date)
		if err != nil {
			return res, err
		}
		rep, err = s.buildReport(ctx, s.store, opts.Mode.period(), date, res.Collect.Failed)
	}
	if err != nil {
		return res, err
	}
	res.Report = rep
	res.Text = render.Text(*rep)
	res.HTML, err = render.HTML(*rep)
	if err != nil {
		return res, err
	}

	if opts.Mode != ModeCheck {
		if res.Files, err = s.writeReport(opts.Mode, date, res.Text, res.HTML); err != nil {
			return res, err
		}
	}

	if s.shouldEmail(opts) {
		res.EmailErr = s.mailer.Send(ctx, notify.Message{
			SubjectPrefix: opts.Mode.subjectPrefix(),
			Date:          date,
			Text:          res.Text,
			HTML:          res.HTML,
		})
		res.Emailed = res.EmailErr == nil
		if errors.Is(res.EmailErr, notify.ErrNotConfigured) {
			log.Warn(ctx, "email requested but not configured")
		}
	}

	log.Info(ctx, "run finished",
		logger.String("report_id", rep.ID),
		logger.Int("ranked", rep.Ranked()),
		logger.Int("missing", len(rep.Missing)),
		logger.Bool("emailed", res.Emailed),
	)
	return res, nil
}

func (s *Service) shouldEmail(opts RunOptions) bool {
	if s.mailer == nil {
		return false
	}
	if opts.ForceEmail {
		return true
	}
	switch opts.Mode {
	case ModeDaily:
		return s.sendDaily
	case ModeWeekly:
		return s.sendWeekly
	default:
		return false
	}
}

// writeReport saves <mode>_report_<YYYYMMDD>.txt and .html under reportDir.
func (s *Service) writeReport(mode Mode, date model.Date, text, html string) ([]string, error) {
	if s.reportDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(s.reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	base := filepath.Join(s.reportDir, fmt.Sprintf("%s_report_%s", mode, date.Time().Format(reportFileDateLayout)))
	files := []string{base + ".txt", base + ".html"}
	for i, body := range []string{text, html} {
		if err := os.WriteFile(files[i], []byte(body), 0o644); err != nil { //nolint:gosec // reports are meant to be shared
			return nil, fmt.Errorf("write report: %w", err)
		}
	}
	return files, nil
}
