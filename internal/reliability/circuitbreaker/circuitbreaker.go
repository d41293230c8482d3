package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrOpen is returned by Execute while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker provides fast-fail behavior when a dependency fails repeatedly
type CircuitBreaker struct {
	state            atomic.Value
	failureCount     atomic.Int32
	successCount     atomic.Int32
	lastFailureTime  atomic.Value
	failureThreshold int32
	successThreshold int32
	timeout          time.Duration
	mu               sync.RWMutex
	onStateChange    func(from, to State)
	now              func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker. It opens after
// failureThreshold consecutive failures, stays open for timeout, and closes
// again after successThreshold successes in the half-open state.
func NewCircuitBreaker(failureThreshold, successThreshold int32, timeout time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		onStateChange:    func(_, _ State) {},
		now:              time.Now,
	}
	cb.state.Store(StateClosed)
	return cb
}

// SetStateChangeCallback registers a callback for state transitions
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Execute runs fn if the breaker allows it and records the outcome. Errors
// for which countsAsFailure returns false are passed through without
// tripping the breaker; a nil countsAsFailure counts every error.
func (cb *CircuitBreaker) Execute(fn func() error, countsAsFailure func(error) bool) error {
	if !cb.AllowRequest() {
		return ErrOpen
	}
	err := fn()
	if err != nil && (countsAsFailure == nil || countsAsFailure(err)) {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return err
}

// RecordSuccess increments success counter and attempts half-open -> closed transition
func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.GetState() {
	case StateHalfOpen:
		if cb.successCount.Add(1) >= cb.successThreshold {
			cb.setState(StateClosed)
			cb.failureCount.Store(0)
			cb.successCount.Store(0)
		}
	case StateClosed:
		cb.failureCount.Store(0)
	}
}

// RecordFailure increments failure counter and may trip open or stay open
func (cb *CircuitBreaker) RecordFailure() {
	now := cb.now()
	cb.lastFailureTime.Store(&now)

	switch cb.GetState() {
	case StateClosed:
		if cb.failureCount.Add(1) >= cb.failureThreshold {
			cb.setState(StateOpen)
			cb.failureCount.Store(0)
			cb.successCount.Store(0)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
		cb.failureCount.Store(0)
		cb.successCount.Store(0)
	}
}

// AllowRequest returns true if the circuit allows a request
func (cb *CircuitBreaker) AllowRequest() bool {
	if cb.GetState() != StateOpen {
		return true
	}
	lastFailure, ok := cb.lastFailureTime.Load().(*time.Time)
	if !ok || lastFailure == nil {
		return false
	}
	if cb.now().Sub(*lastFailure) > cb.timeout {
		cb.setState(StateHalfOpen)
		cb.failureCount.Store(0)
		cb.successCount.Store(0)
		return true
	}
	return false
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() State {
	return cb.state.Load().(State)
}

// setState transitions to a new state and calls the callback
func (cb *CircuitBreaker) setState(newState State) {
	oldState := cb.GetState()
	if oldState == newState {
		return
	}
	cb.state.Store(newState)
	cb.mu.RLock()
	fn := cb.onStateChange
	cb.mu.RUnlock()
	if fn != nil {
		fn(oldState, newState)
	}
}
