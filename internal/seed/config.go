package seed

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/league/internal/domain/model"
)

// ErrInvalidConfig marks an unusable seeding configuration.
var ErrInvalidConfig = errors.New("invalid seed config")

// Config holds configuration for a synthetic history.
type Config struct {
	Users     []string   // Usernames to generate
	Languages []string   // Course names shared by every user
	Days      int        // Number of calendar days ending at End
	End       model.Date // Last generated day
	Seed      uint64     // PRNG seed; equal seeds give equal histories
	// MissingRate is the chance that a day has no snapshot at all.
	MissingRate float64
	// ResetRate is the chance that a user skips practice and loses the streak.
	ResetRate float64
}

// Stats holds seeding statistics.
type Stats struct {
	Generated int
	Written   int
	Verified  int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case len(c.Users) == 0:
		return fmt.Errorf("%w: no users", ErrInvalidConfig)
	case c.Days <= 0:
		return fmt.Errorf("%w: days must be positive", ErrInvalidConfig)
	case c.End.IsZero():
		return fmt.Errorf("%w: missing end date", ErrInvalidConfig)
	case c.MissingRate < 0 || c.MissingRate >= 1:
		return fmt.Errorf("%w: missing rate must be in [0,1)", ErrInvalidConfig)
	case c.ResetRate < 0 || c.ResetRate >= 1:
		return fmt.Errorf("%w: reset rate must be in [0,1)", ErrInvalidConfig)
	}
	return nil
}
