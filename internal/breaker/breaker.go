// Package breaker implements the per-provider three-state circuit breaker
// from spec.md §3 / §4.E: Closed -> Open -> HalfOpen -> {Closed, Open}.
package breaker

import (
	"sync"
	"time"
)

// State names the three circuit states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Decision is the result of an admission check.
type Decision bool

const (
	Allow Decision = true
	Deny  Decision = false
)

// Config holds the thresholds from spec.md §3.
type Config struct {
	FailureThreshold int           // k: consecutive failures to trip Closed -> Open
	SuccessThreshold int           // m: probe successes to close HalfOpen -> Closed
	Timeout          time.Duration // T: cool-down before Open -> HalfOpen is considered
}

// DefaultConfig matches spec.md §3's stated defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, SuccessThreshold: 2, Timeout: 30 * time.Second}
}

type providerCircuit struct {
	mu                 sync.Mutex
	state              State
	consecutiveFailures int
	probeSuccesses     int
	openedAt           time.Time
	probeInFlight      bool
}

// Breaker manages one circuit per provider.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	circuits map[string]*providerCircuit
}

// New constructs a Breaker with the given configuration.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, now: time.Now, circuits: make(map[string]*providerCircuit)}
}

func (b *Breaker) circuitFor(provider string) *providerCircuit {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.circuits[provider]
	if !ok {
		c = &providerCircuit{state: Closed}
		b.circuits[provider] = c
	}
	return c
}

// Admit decides whether a request to provider may proceed. The lazy
// Open -> HalfOpen transition happens here, on the next admission check
// after Timeout has elapsed — there is no background timer. While
// HalfOpen, at most one probe is allowed in flight at a time; additional
// admissions are denied until that probe resolves.
func (b *Breaker) Admit(provider string) Decision {
	c := b.circuitFor(provider)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Closed:
		return Allow
	case Open:
		if b.now().Sub(c.openedAt) >= b.cfg.Timeout {
			c.state = HalfOpen
			c.probeSuccesses = 0
			c.probeInFlight = true
			return Allow
		}
		return Deny
	case HalfOpen:
		if c.probeInFlight {
			return Deny
		}
		c.probeInFlight = true
		return Allow
	}
	return Deny
}

// Record reports the outcome of a call previously admitted via Admit.
func (b *Breaker) Record(provider string, success bool) {
	c := b.circuitFor(provider)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Closed:
		if success {
			c.consecutiveFailures = 0
			return
		}
		c.consecutiveFailures++
		if c.consecutiveFailures >= b.cfg.FailureThreshold {
			c.state = Open
			c.openedAt = b.now()
		}
	case HalfOpen:
		c.probeInFlight = false
		if !success {
			c.state = Open
			c.openedAt = b.now()
			c.probeSuccesses = 0
			return
		}
		c.probeSuccesses++
		if c.probeSuccesses >= b.cfg.SuccessThreshold {
			c.state = Closed
			c.consecutiveFailures = 0
			c.probeSuccesses = 0
		}
	case Open:
		// A result arriving for a call that raced the Open->HalfOpen
		// transition; ignore, the next Admit will re-evaluate the timeout.
	}
}

// State reports the current state of a provider's circuit without
// mutating it (aside from lazily materializing a Closed entry).
func (b *Breaker) State(provider string) State {
	c := b.circuitFor(provider)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
