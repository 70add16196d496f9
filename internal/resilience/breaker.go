// Package resilience wraps outbound LLM provider calls with retry and
// circuit-breaking so one slow or failing model endpoint cannot stall
// every chat turn.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the provider while the
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker trips after a run of consecutive provider failures and rejects
// calls until the cooldown elapses. The first call after the cooldown is
// a trial: its failure reopens the breaker immediately, its success
// closes it.
type Breaker struct {
	mu       sync.Mutex
	state    breakerState
	failures int

	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time

	clock func() time.Time
}

// NewBreaker returns a Breaker that opens after maxFailures consecutive
// failures and stays open for the given cooldown.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{maxFailures: maxFailures, cooldown: cooldown, clock: time.Now}
}

// Do runs fn unless the breaker is open, and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}

	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen {
		if b.clock().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = breakerHalfOpen
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.state = breakerClosed
		return
	}
	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.maxFailures {
		b.state = breakerOpen
		b.openedAt = b.clock()
	}
}
