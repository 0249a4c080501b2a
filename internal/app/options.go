package service

import (
	"time"

	"github.com/okian/league/internal/adapters/notify"
	"github.com/okian/league/internal/domain/goals"
	"github.com/okian/league/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithUsers sets the tracked family members.
func WithUsers(users []User) Option {
	return func(s *Service) {
		s.users = append([]User(nil), users...)
	}
}

// WithThresholds sets the goal thresholds used by reports.
func WithThresholds(th goals.Thresholds) Option {
	return func(s *Service) {
		s.thresholds = th
	}
}

// WithRetainDays sets how many calendar days of history Collect keeps.
// Zero disables pruning.
func WithRetainDays(days int) Option {
	return func(s *Service) {
		if days >= 0 {
			s.retainDays = days
		}
	}
}

// WithReportDir sets where Run writes report files. Empty disables writing.
func WithReportDir(dir string) Option {
	return func(s *Service) {
		s.reportDir = dir
	}
}

// WithMailer enables email delivery through m.
func WithMailer(m notify.Sender) Option {
	return func(s *Service) {
		s.mailer = m
	}
}

// WithDelivery selects which periods are emailed without being forced.
func WithDelivery(daily, weekly bool) Option {
	return func(s *Service) {
		s.sendDaily = daily
		s.sendWeekly = weekly
	}
}

// WithBackendName records the storage backend name reported by Stats.
func WithBackendName(name string) Option {
	return func(s *Service) {
		s.backend = name
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how report ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
