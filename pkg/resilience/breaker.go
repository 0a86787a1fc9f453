package resilience

import (
	"sync"
	"time"
)

// State is the current circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Breaker is a per-dependency circuit breaker. It opens after a run of
// consecutive failures, sheds calls while open, lets probes through after
// the cooldown, and re-closes after enough consecutive probe successes.
// Safe for concurrent use; the breaker's counters are the only mutable
// state shared between request workers.
type Breaker struct {
	dependency       string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration

	mu               sync.Mutex
	state            State
	consecutiveFails int
	consecutiveOK    int
	lastFailure      time.Time
}

func NewBreaker(dependency string, failureThreshold, successThreshold int, cooldown time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		dependency:       dependency,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
		state:            StateClosed,
	}
}

// Allow reports whether a call may proceed. While open, it transitions to
// half-open once the cooldown has elapsed and admits the probe call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) >= b.cooldown {
			b.state = StateHalfOpen
			b.consecutiveOK = 0
			return true
		}
		return false
	case StateHalfOpen, StateClosed:
		return true
	}
	return true
}

// RecordSuccess registers a successful call against the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.consecutiveOK++
		if b.consecutiveOK >= b.successThreshold {
			b.state = StateClosed
			b.consecutiveFails = 0
			b.consecutiveOK = 0
		}
	case StateClosed:
		b.consecutiveFails = 0
	}
}

// RecordFailure registers a failed call. A failure while half-open re-opens
// the circuit immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.consecutiveOK = 0
	case StateClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.failureThreshold {
			b.state = StateOpen
		}
	}
}

// CurrentState returns the breaker state at the time of the call.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Dependency returns the downstream dependency name this breaker guards.
func (b *Breaker) Dependency() string { return b.dependency }
