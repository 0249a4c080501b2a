package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/pkg/logger"
)

// Run generates the history described by cfg, writes it into st and reads
// every snapshot back to verify the write.
func Run(ctx context.Context, cfg Config, st repository.Store, log logger.Logger) (Stats, error) {
	if log == nil {
		log = logger.Nop()
	}
	stats := Stats{StartTime: time.Now()}

	log.Info(ctx, "starting seed",
		logger.Int("users", len(cfg.Users)),
		logger.Int("days", cfg.Days),
		logger.String("end", cfg.End.String()),
		logger.Any("seed", cfg.Seed),
	)

	snaps, err := Generate(cfg)
	if err != nil {
		return stats, err
	}
	stats.Generated = len(snaps)

	for _, s := range snaps {
		if err := st.Put(ctx, s); err != nil {
			return stats, fmt.Errorf("seed %s %s: %w", s.Username, s.Date, err)
		}
		stats.Written++
	}

	for _, s := range snaps {
		got, found, err := st.Get(ctx, s.Username, s.Date)
		if err != nil {
			return stats, fmt.Errorf("verify %s %s: %w", s.Username, s.Date, err)
		}
		if !found || !got.Equal(s) {
			return stats, fmt.Errorf("%w: %s", repository.ErrValidation,
				repository.Key{Username: s.Username, Date: s.Date})
		}
		stats.Verified++
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "seed finished",
		logger.Int("generated", stats.Generated),
		logger.Int("written", stats.Written),
		logger.Int("verified", stats.Verified),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}
