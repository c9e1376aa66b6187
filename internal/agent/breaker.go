package agent

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/metrics"
)

// ErrCircuitOpen is returned without calling the agent while it is considered down.
var ErrCircuitOpen = errors.New("agent: circuit open, agent service unavailable")

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota

	// CircuitOpen rejects calls immediately.
	CircuitOpen

	// CircuitHalfOpen lets a limited number of trial calls through.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds configuration for the circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening.
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration

	// HalfOpenMaxCalls successful trial calls close the circuit again.
	HalfOpenMaxCalls int
}

// DefaultBreakerConfig returns the default circuit breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:      3,
		ResetTimeout:     time.Minute,
		HalfOpenMaxCalls: 1,
	}
}

// Breaker wraps a Verifier and short-circuits calls with ErrCircuitOpen after
// MaxFailures consecutive infrastructure failures.
type Breaker struct {
	next   Verifier
	config BreakerConfig
	logger *zerolog.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	successCount    int
	inFlightTrials  int
	lastFailureTime time.Time
}

var _ Verifier = (*Breaker)(nil)

// NewBreaker creates a circuit breaker around next.
func NewBreaker(next Verifier, config BreakerConfig, logger *zerolog.Logger) *Breaker {
	defaults := DefaultBreakerConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = defaults.ResetTimeout
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = defaults.HalfOpenMaxCalls
	}
	if logger == nil {
		nopLogger := zerolog.Nop()
		logger = &nopLogger
	}

	return &Breaker{
		next:   next,
		config: config,
		logger: logger,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// Verify calls the wrapped verifier unless the circuit is open.
func (b *Breaker) Verify(ctx context.Context, req Request) (*Verdict, error) {
	if !b.allow() {
		return nil, &RequestError{Criterion: req.Criterion, Err: ErrCircuitOpen}
	}

	verdict, err := b.next.Verify(ctx, req)
	switch {
	case err == nil:
		b.recordSuccess()
	case isUnavailable(ctx, err):
		b.recordFailure(err)
	default:
		// the agent answered; the circuit only tracks reachability
		b.recordSuccess()
	}
	return verdict, err
}

// State returns the current state of the circuit.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transitionTo(CircuitClosed)
	b.logger.Info().Msg("Agent circuit breaker manually reset to closed state")
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if b.now().Sub(b.lastFailureTime) < b.config.ResetTimeout {
			return false
		}
		b.transitionTo(CircuitHalfOpen)
		b.logger.Info().Msg("Agent circuit breaker transitioning to half-open")
		fallthrough

	case CircuitHalfOpen:
		if b.inFlightTrials >= b.config.HalfOpenMaxCalls {
			return false
		}
		b.inFlightTrials++
		return true

	default:
		return false
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		b.failureCount = 0

	case CircuitHalfOpen:
		if b.inFlightTrials > 0 {
			b.inFlightTrials--
		}
		b.successCount++
		if b.successCount >= b.config.HalfOpenMaxCalls {
			b.logger.Info().
				Int("success_count", b.successCount).
				Msg("Agent circuit breaker closing after successful recovery")
			b.transitionTo(CircuitClosed)
		}
	}
}

func (b *Breaker) recordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = b.now()

	switch b.state {
	case CircuitClosed:
		if b.failureCount >= b.config.MaxFailures {
			b.logger.Warn().
				Err(err).
				Int("failure_count", b.failureCount).
				Dur("reset_timeout", b.config.ResetTimeout).
				Msg("Agent circuit breaker opening after max failures")
			b.transitionTo(CircuitOpen)
		}

	case CircuitHalfOpen:
		b.logger.Warn().Err(err).Msg("Agent circuit breaker re-opening after failed trial call")
		b.transitionTo(CircuitOpen)
	}
}

// transitionTo must be called with mu held.
func (b *Breaker) transitionTo(state CircuitState) {
	b.state = state
	b.successCount = 0
	b.inFlightTrials = 0
	if state == CircuitClosed {
		b.failureCount = 0
	}
	metrics.SetAgentCircuitOpen(state == CircuitOpen)
}

// isUnavailable reports whether err means the agent service could not be
// reached or failed on its side. Cancellation by the caller does not count.
func isUnavailable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrNoTarget) {
		return false
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Status != 0 {
		return reqErr.Status >= http.StatusInternalServerError
	}
	return true
}
