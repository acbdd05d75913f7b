package circuitbreaker

import (
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking requests
	StateHalfOpen              // Admitting one probe
)

const (
	DefaultFailureThreshold = 3
	DefaultTimeout          = 30 * time.Second
)

// Transition describes a single state change of one breaker.
type Transition struct {
	Channel  string
	From     State
	To       State
	Failures int
	At       time.Time
}

// Listener receives transitions. It is called outside the breaker lock.
type Listener func(Transition)

type Option func(*CircuitBreaker)

func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

func WithListener(l Listener) Option {
	return func(cb *CircuitBreaker) {
		cb.listener = l
	}
}

type CircuitBreaker struct {
	mutex            sync.Mutex
	channel          string
	state            State
	failures         int
	lastFailure      time.Time
	probing          bool
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time
	listener         Listener
}

// NewCircuitBreaker returns a closed breaker for the named channel.
// Non-positive threshold or timeout fall back to the defaults.
func NewCircuitBreaker(channel string, threshold int, timeout time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cb := &CircuitBreaker{
		channel:          channel,
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     timeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

func (cb *CircuitBreaker) Channel() string {
	return cb.channel
}

// Allow reports whether a send may be attempted. While HALF-OPEN only the
// first caller gets true; the slot is freed by RecordSuccess, RecordFailure
// or Reset.
func (cb *CircuitBreaker) Allow() bool {
	cb.mutex.Lock()
	t, moved := cb.advanceLocked()

	var allowed bool
	switch cb.state {
	case StateOpen:
		allowed = false
	case StateHalfOpen:
		allowed = !cb.probing
		cb.probing = true
	default:
		allowed = true
	}
	cb.mutex.Unlock()

	if moved {
		cb.emit(t)
	}
	return allowed
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()

	cb.failures++
	cb.lastFailure = cb.now()
	cb.probing = false

	from := cb.state
	switch {
	case cb.state == StateHalfOpen:
		cb.state = StateOpen
	case cb.state == StateClosed && cb.failures >= cb.failureThreshold:
		cb.state = StateOpen
	}
	t := cb.transitionLocked(from)
	cb.mutex.Unlock()

	if from != t.To {
		cb.emit(t)
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()

	from := cb.state
	switch cb.state {
	case StateHalfOpen:
		cb.state = StateClosed
		cb.failures = 0
	case StateClosed:
		cb.failures = 0
	}
	cb.probing = false
	t := cb.transitionLocked(from)
	cb.mutex.Unlock()

	if from != t.To {
		cb.emit(t)
	}
}

// Reset forces the breaker closed regardless of its current state.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()

	from := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.probing = false
	t := cb.transitionLocked(from)
	cb.mutex.Unlock()

	if from != t.To {
		cb.emit(t)
	}
}

// State returns the current state after applying a due OPEN -> HALF-OPEN move.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	t, moved := cb.advanceLocked()
	state := cb.state
	cb.mutex.Unlock()

	if moved {
		cb.emit(t)
	}
	return state
}

func (cb *CircuitBreaker) Failures() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failures
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "CLOSED":
		*s = StateClosed
	case "OPEN":
		*s = StateOpen
	case "HALF-OPEN":
		*s = StateHalfOpen
	default:
		return fmt.Errorf("unknown breaker state %q", b)
	}
	return nil
}

// advanceLocked moves OPEN to HALF-OPEN once the timeout has elapsed since
// the last failure. The failure count is left untouched.
func (cb *CircuitBreaker) advanceLocked() (Transition, bool) {
	if cb.state != StateOpen || cb.now().Sub(cb.lastFailure) < cb.resetTimeout {
		return Transition{}, false
	}

	cb.state = StateHalfOpen
	cb.probing = false
	return cb.transitionLocked(StateOpen), true
}

func (cb *CircuitBreaker) transitionLocked(from State) Transition {
	return Transition{
		Channel:  cb.channel,
		From:     from,
		To:       cb.state,
		Failures: cb.failures,
		At:       cb.now(),
	}
}

func (cb *CircuitBreaker) emit(t Transition) {
	if cb.listener != nil {
		cb.listener(t)
	}
}
