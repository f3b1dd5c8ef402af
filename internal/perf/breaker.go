package perf

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by Allow when a breaker is tripped and still
// within its recovery window.
var ErrBreakerOpen = errors.New("circuit breaker open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// These constants hold the spec's default thresholds: 50% failure over a 5s
// window with at least 3 samples, 1s recovery before a half-open probe.
const (
	defaultWindow        = 5 * time.Second
	defaultMinSamples    = 3
	defaultFailureRatio  = 0.5
	defaultRecoveryDelay = time.Second
)

type sample struct {
	at      time.Time
	success bool
}

// Breaker is one named instance guarding a single adapter operation class
// (navigation, interaction, evaluation, screenshot, session creation, file
// operations).
type Breaker struct {
	mu        sync.Mutex
	state     breakerState
	samples   []sample
	openedAt  time.Time
}

func newBreaker() *Breaker {
	return &Breaker{state: stateClosed}
}

// Allow reports whether a call may proceed, transitioning open→half-open
// once the recovery delay has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if time.Since(b.openedAt) >= defaultRecoveryDelay {
			b.state = stateHalfOpen
			return nil
		}
		return ErrBreakerOpen
	default:
		return nil
	}
}

// RecordResult feeds the outcome of a call back into the breaker, evaluating
// whether to trip open (closed/half-open state) or reset (half-open success).
func (b *Breaker) RecordResult(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	if b.state == stateHalfOpen {
		if success {
			b.state = stateClosed
			b.samples = nil
		} else {
			b.state = stateOpen
			b.openedAt = now
			b.samples = nil
		}
		return
	}

	b.samples = append(b.samples, sample{at: now, success: success})
	cutoff := now.Add(-defaultWindow)
	kept := b.samples[:0]
	for _, s := range b.samples {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	b.samples = kept

	if len(b.samples) < defaultMinSamples {
		return
	}

	failures := 0
	for _, s := range b.samples {
		if !s.success {
			failures++
		}
	}
	ratio := float64(failures) / float64(len(b.samples))
	if ratio >= defaultFailureRatio {
		b.state = stateOpen
		b.openedAt = now
	}
}

// BreakerRegistry holds one Breaker per named operation class.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{breakers: make(map[string]*Breaker)}
}

func (r *BreakerRegistry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = newBreaker()
		r.breakers[name] = b
	}
	return b
}

// Guard runs fn if the named breaker allows it, recording the outcome.
func (r *BreakerRegistry) Guard(name string, fn func() error) error {
	b := r.Get(name)
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	b.RecordResult(err == nil)
	return err
}
