// Package circuitbreaker tracks consecutive failures per resource and blocks
// further attempts until a cooldown has elapsed. Used to fail jobs fast when
// a remote host or callback destination keeps refusing connections.
package circuitbreaker

import (
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	Closed   State = iota // normal operation
	Open                  // blocking attempts until cooldown passes
	HalfOpen              // cooldown elapsed, probing with one attempt
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Config holds breaker tuning. Zero values use defaults.
type Config struct {
	Threshold int           // consecutive failures before opening (default: 5)
	Cooldown  time.Duration // wait before probing again (default: 30s)
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// Breaker guards a single resource.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	failures int
	openedAt time.Time
	probing  bool
	now      func() time.Time // test seam
}

// New creates a breaker in the closed state.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now}
}

// Allow reports whether an attempt should proceed. While open, one probe is
// let through after the cooldown; its result decides whether the breaker
// closes again.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.cfg.Threshold {
		return true
	}
	if b.probing {
		return false
	}
	if b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.probing = true
		return true
	}
	return false
}

// RecordSuccess resets the breaker to closed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
}

// RecordFailure counts a failure, opening (or re-opening) the breaker once
// the threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.probing = false
	if b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.cfg.Threshold {
		return Closed
	}
	if b.probing || b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return Open
}
