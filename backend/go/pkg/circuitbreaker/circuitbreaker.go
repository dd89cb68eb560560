package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed lets every call through.
	Closed State = iota
	// Open rejects calls until the open period has elapsed.
	Open
	// HalfOpen lets trial calls through to probe recovery.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected without being attempted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker trips after FailureThreshold consecutive failures and closes again
// after SuccessThreshold consecutive successes in the half-open state.
type Breaker struct {
	failureThreshold uint32
	successThreshold uint32
	openFor          time.Duration

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	openedAt  time.Time
	now       func() time.Time
}

// New creates a Breaker. Zero thresholds are treated as 1.
func New(failureThreshold, successThreshold uint32, openFor time.Duration) *Breaker {
	if failureThreshold == 0 {
		failureThreshold = 1
	}
	if successThreshold == 0 {
		successThreshold = 1
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openFor:          openFor,
		state:            Closed,
		now:              time.Now,
	}
}

// State returns the current state, moving Open to HalfOpen when the open period is over.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

// Do runs fn unless the circuit is open. The error from fn is returned unchanged.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	b.refresh()
	if b.state == Open {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
	} else {
		b.onSuccess()
	}
	return err
}

func (b *Breaker) refresh() {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.openFor {
		b.state = HalfOpen
		b.successes = 0
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = Closed
			b.failures = 0
			b.successes = 0
		}
	case Closed:
		b.failures = 0
	}
}

func (b *Breaker) onFailure() {
	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
}
