package clients

import (
	"sync"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/platform/config"
)

// State is the position of a circuit breaker.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota

	// StateOpen blocks requests until the cool-down has passed.
	StateOpen

	// StateHalfOpen admits a limited number of probes.
	StateHalfOpen
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Counts is a point-in-time view of the breaker counters.
type Counts struct {
	State       State
	Failures    int
	Successes   int
	InFlight    int
	LastFailure time.Time
}

// CircuitBreaker stops calling the remote quote service after repeated failures.
//
//   - Closed to Open after MaxFailures consecutive failures
//   - Open to HalfOpen once Timeout has elapsed since the last failure
//   - HalfOpen to Closed after HalfOpenLimit consecutive successes
//   - HalfOpen to Open on any failure
type CircuitBreaker struct {
	mu  sync.Mutex
	cfg config.CircuitBreakerConfig

	counts Counts

	onStateChange func(from, to State)
	now           func() time.Time
}

// BreakerOption customizes a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithClock replaces time.Now. Tests use it to step past the cool-down.
func WithClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg config.CircuitBreakerConfig, opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		cfg: cfg,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(cb)
	}

	return cb
}

// OnStateChange registers fn to run on every transition.
// fn runs on its own goroutine.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.onStateChange = fn
}

// Allow reports whether a request may proceed. It moves an open breaker to
// half-open when the cool-down has passed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.counts.State {
	case StateClosed:
		return true

	case StateOpen:
		if cb.now().Sub(cb.counts.LastFailure) < cb.cfg.Timeout {
			return false
		}

		cb.transitionTo(StateHalfOpen)
		cb.counts.InFlight = 1

		return true

	case StateHalfOpen:
		if cb.counts.InFlight >= cb.cfg.HalfOpenLimit {
			return false
		}

		cb.counts.InFlight++

		return true

	default:
		return false
	}
}

// RecordSuccess records a completed request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.counts.State {
	case StateClosed:
		cb.counts.Failures = 0

	case StateHalfOpen:
		cb.counts.InFlight--
		cb.counts.Successes++

		if cb.counts.Successes >= cb.cfg.HalfOpenLimit {
			cb.transitionTo(StateClosed)
		}
	}
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.LastFailure = cb.now()

	switch cb.counts.State {
	case StateClosed:
		cb.counts.Failures++

		if cb.counts.Failures >= cb.cfg.MaxFailures {
			cb.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		cb.counts.InFlight--
		cb.transitionTo(StateOpen)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts.State
}

// Counts returns a copy of the counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts
}

// transitionTo must be called with mu held.
func (cb *CircuitBreaker) transitionTo(to State) {
	from := cb.counts.State
	if from == to {
		return
	}

	cb.counts.State = to
	cb.counts.Failures = 0
	cb.counts.Successes = 0

	if to != StateHalfOpen {
		cb.counts.InFlight = 0
	}

	if cb.onStateChange != nil {
		go cb.onStateChange(from, to)
	}
}
