package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed lets every call through and counts consecutive failures.
	Closed State = iota
	// Open rejects calls until the cool-down has elapsed.
	Open
	// HalfOpen lets trial calls through; one failure re-opens the circuit.
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

// ErrCircuitOpen is returned when the circuit breaker is in the Open state.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings configures a Breaker.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32
	// SuccessThreshold is the number of consecutive HalfOpen successes that closes it again.
	SuccessThreshold uint32
	// Timeout is how long the circuit stays Open before allowing a trial call.
	Timeout time.Duration
	// IsFailure decides whether an error counts against the circuit.
	// Nil means every non-nil error counts.
	IsFailure func(error) bool
	// OnStateChange is called, outside the lock, after every transition.
	OnStateChange func(from, to State)
}

// Breaker guards calls to a single remote dependency.
type Breaker struct {
	settings Settings
	now      func() time.Time

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	openedAt  time.Time
}

// New creates a Breaker. Zero thresholds are raised to 1.
func New(s Settings) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 1
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = 1
	}
	return &Breaker{settings: s, now: time.Now, state: Closed}
}

// State returns the current state, applying the Open to HalfOpen transition if the timeout has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	from, to := b.advance()
	state := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return state
}

// Do runs fn unless the circuit is open. The error from fn is returned unchanged.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	from, to := b.advance()
	if b.state == Open {
		b.mu.Unlock()
		b.notify(from, to)
		return ErrCircuitOpen
	}
	b.mu.Unlock()
	b.notify(from, to)

	err := fn()
	b.record(err)
	return err
}

// advance moves Open to HalfOpen once the timeout has elapsed. Callers hold mu.
func (b *Breaker) advance() (State, State) {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.settings.Timeout {
		b.state = HalfOpen
		b.successes = 0
		return Open, HalfOpen
	}
	return b.state, b.state
}

func (b *Breaker) record(err error) {
	failed := err != nil
	if failed && b.settings.IsFailure != nil {
		failed = b.settings.IsFailure(err)
	}

	b.mu.Lock()
	from := b.state
	switch {
	case failed && b.state == HalfOpen:
		b.trip()
	case failed && b.state == Closed:
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.trip()
		}
	case !failed && b.state == HalfOpen:
		b.successes++
		if b.successes >= b.settings.SuccessThreshold {
			b.state = Closed
			b.failures = 0
			b.successes = 0
		}
	case !failed && b.state == Closed:
		b.failures = 0
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(from, to)
	}
}
