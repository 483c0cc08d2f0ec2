// Package healing keeps a failing persistence backend from stalling the
// engines.
//
// Circuit breaker states:
//   - CLOSED    (normal) → consecutive failures reach threshold → OPEN
//   - OPEN      (rejecting) → after ResetTimeout → HALF_OPEN
//   - HALF_OPEN (probing) → HalfOpenMax successes → CLOSED, any failure → OPEN
package healing

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pulsefit/pulse/internal/domain"
	"github.com/pulsefit/pulse/internal/infra/metrics"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// State is the breaker state.
type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half_open"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures that trip the breaker
	ResetTimeout     time.Duration // time spent OPEN before probing
	HalfOpenMax      int           // probe successes needed to close
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     15 * time.Second,
		HalfOpenMax:      1,
	}
}

// Breaker implements the circuit breaker pattern. Safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	name      string
	cfg       BreakerConfig
	clock     domain.Clock
	state     State
	failures  int
	successes int
	trippedAt time.Time
	trips     int
}

// NewBreaker creates a closed breaker. Zero config fields take defaults.
func NewBreaker(name string, cfg BreakerConfig, clock domain.Clock) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = def.HalfOpenMax
	}
	return &Breaker{name: name, cfg: cfg, clock: clock}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stateLocked() == Open {
		return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
	}
	return nil
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenMax {
			b.setLocked(Closed)
		}
	case Closed:
		b.failures = 0
	}
}

// RecordFailure records a failed call and may trip the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.tripLocked()
		}
	case HalfOpen:
		b.tripLocked()
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// Trips returns how many times the breaker has opened.
func (b *Breaker) Trips() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setLocked(Closed)
}

// stateLocked applies the OPEN → HALF_OPEN timeout transition.
func (b *Breaker) stateLocked() State {
	if b.state == Open && b.clock.Now().Sub(b.trippedAt) >= b.cfg.ResetTimeout {
		b.setLocked(HalfOpen)
	}
	return b.state
}

func (b *Breaker) tripLocked() {
	b.trippedAt = b.clock.Now()
	b.trips++
	metrics.StoreBreakerTrips.Inc()
	b.setLocked(Open)
}

func (b *Breaker) setLocked(s State) {
	b.state = s
	b.failures = 0
	b.successes = 0
	metrics.StoreBreakerState.Set(float64(s))
}
