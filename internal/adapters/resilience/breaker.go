// Package resilience wraps outbound calls in circuit breakers that report
// their state through metrics and logs.
package resilience

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

// Default breaker settings.
const (
	DefaultMaxRequests = 1
	DefaultInterval    = time.Minute
	DefaultTimeout     = 30 * time.Second
	DefaultTripAfter   = 5
)

// Settings tune a breaker. Zero values take the defaults.
type Settings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// TripAfter is the number of consecutive failures that opens the circuit.
	TripAfter uint32
}

// NewBreaker builds a named breaker that trips after TripAfter consecutive
// failures.
func NewBreaker[T any](name string, s Settings, log logger.Logger) *gobreaker.CircuitBreaker[T] {
	if log == nil {
		log = logger.Nop()
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = DefaultMaxRequests
	}
	if s.Interval == 0 {
		s.Interval = DefaultInterval
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	if s.TripAfter == 0 {
		s.TripAfter = DefaultTripAfter
	}

	metrics.UpdateCircuitBreakerState(name, StateValue(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.TripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			metrics.UpdateCircuitBreakerState(name, StateValue(to))
		},
	})
}

// StateValue maps a breaker state onto the gauge value (0 closed,
// 1 half-open, 2 open).
func StateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2 //nolint:mnd // gauge encoding
	default:
		return -1
	}
}
