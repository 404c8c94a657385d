// Package breaker implements a per-name three-state circuit breaker
// protecting flaky outbound calls. The on-chain balance probe (package
// chain) runs its RPC call through one; the retrying fetcher does not
// use a breaker. The registry is process-wide, shared
// mutable state; each breaker's own counters are guarded by its own
// lock so that no external call is ever made while a lock is held.
package breaker

import (
	"sync"
	"time"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/errtaxonomy"
)

// State is one of the three breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half-open"
)

const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
	DefaultMonitoringPeriod = 5 * time.Minute
)

// Snapshot is a point-in-time, lock-free copy of a breaker's state, for
// getAllStates.
type Snapshot struct {
	Name            string
	State           State
	FailureCount    int
	LastFailureTime time.Time
}

// Breaker is a single named circuit breaker.
type Breaker struct {
	name              string
	failureThreshold  int
	recoveryTimeout   time.Duration
	monitoringPeriod  time.Duration

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	halfOpenProbeInFlight bool
}

// New constructs a breaker with the given tuning, defaulting anything
// left at the zero value.
func New(name string, failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = DefaultRecoveryTimeout
	}
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		monitoringPeriod: DefaultMonitoringPeriod,
		state:            Closed,
	}
}

// Snapshot takes a consistent point-in-time copy of the breaker.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:            b.name,
		State:           b.state,
		FailureCount:    b.failureCount,
		LastFailureTime: b.lastFailureTime,
	}
}

// Reset forces the breaker closed with counters cleared.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
	b.lastFailureTime = time.Time{}
	b.halfOpenProbeInFlight = false
}

// allow decides, under the breaker's lock, whether a call may proceed
// right now, and if so whether it is a half-open probe. It never makes
// an external call while holding the lock.
func (b *Breaker) allow(now time.Time) (proceed, isProbe bool, fastFailErr *errtaxonomy.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true, false, nil
	case Open:
		if now.Sub(b.lastFailureTime) > b.recoveryTimeout {
			b.state = HalfOpen
			b.halfOpenProbeInFlight = true
			return true, true, nil
		}
		return false, false, errtaxonomy.NewCircuitBreaker(
			"BREAKER_OPEN",
			"circuit breaker "+b.name+" is open",
			nil,
		).WithContext(map[string]any{"breaker": b.name, "state": string(b.state)})
	case HalfOpen:
		if b.halfOpenProbeInFlight {
			return false, false, errtaxonomy.NewCircuitBreaker(
				"BREAKER_HALF_OPEN_BUSY",
				"circuit breaker "+b.name+" is half-open and a probe is already in flight",
				nil,
			).WithContext(map[string]any{"breaker": b.name, "state": string(b.state)})
		}
		b.halfOpenProbeInFlight = true
		return true, true, nil
	default:
		return true, false, nil
	}
}

func (b *Breaker) onSuccess(now time.Time, wasProbe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if wasProbe {
		b.halfOpenProbeInFlight = false
	}

	switch b.state {
	case HalfOpen:
		b.state = Closed
		b.failureCount = 0
		b.lastFailureTime = time.Time{}
	case Closed:
		if !b.lastFailureTime.IsZero() && now.Sub(b.lastFailureTime) > b.monitoringPeriod {
			b.failureCount = 0
		}
	}
}

func (b *Breaker) onFailure(now time.Time, wasProbe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if wasProbe {
		b.halfOpenProbeInFlight = false
	}

	switch b.state {
	case HalfOpen:
		b.state = Open
		b.lastFailureTime = now
	case Closed:
		b.failureCount++
		b.lastFailureTime = now
		if b.failureCount >= b.failureThreshold {
			b.state = Open
		}
	case Open:
		b.lastFailureTime = now
	}
}

// Call executes fn if the breaker allows it, updating state before the
// error escapes. An open-state fast fail returns a CIRCUIT_BREAKER
// error without invoking fn; every other failure from fn propagates
// unchanged (but is still counted).
func (b *Breaker) Call(fn func() error) error {
	now := time.Now()
	proceed, isProbe, fastFailErr := b.allow(now)
	if !proceed {
		return fastFailErr
	}

	err := fn()
	now = time.Now()
	if err != nil {
		b.onFailure(now, isProbe)
		return err
	}
	b.onSuccess(now, isProbe)
	return nil
}
