// Package resilience provides circuit breaker and provider failover primitives.
//
// The central type is [CircuitBreaker], a thin wrapper around
// github.com/sony/gobreaker that normalises its configuration and error
// surface. [FallbackGroup] composes multiple instances of any provider type
// with per-entry circuit breakers so that a failing primary is automatically
// bypassed in favour of healthy fallbacks.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker
// rejects the call without running it, either because it is open or because
// the half-open probe budget is exhausted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before transitioning to
	// half-open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the maximum number of probe calls allowed in the
	// half-open state. Default: 3.
	HalfOpenMax int
}

// CircuitBreaker wraps a [gobreaker.CircuitBreaker] behind a plain
// Execute(func() error) surface and a single [ErrCircuitOpen] rejection
// error.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a [CircuitBreaker] with the supplied
// configuration. Zero-value config fields are replaced with sensible
// defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}

	maxFailures := uint32(cfg.MaxFailures)
	return &CircuitBreaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: uint32(cfg.HalfOpenMax),
			Timeout:     cfg.ResetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Info("circuit breaker state change",
					"name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Execute runs fn if the breaker allows it. When the breaker refuses the
// call, the returned error wraps [ErrCircuitOpen]; otherwise fn's own error
// is returned unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	_, err := cb.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrCircuitOpen, err)
	}
	return err
}

// State returns the underlying breaker state ("closed", "open", or
// "half-open").
func (cb *CircuitBreaker) State() string {
	return cb.cb.State().String()
}
