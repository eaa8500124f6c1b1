// breaker.go
package internal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "Closed"
	case BreakerOpen:
		return "Open"
	case BreakerHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// ErrBreakerOpen is returned when an operation is fast-failed because
// the breaker has seen too many consecutive failures.
var ErrBreakerOpen = errors.New("circuit breaker is open; fast-fail")

// Breaker guards a flaky downstream (broker publish, event write) so
// repeated consecutive failures stop consuming control-loop time. After
// ResetTimeout a single half-open probe decides whether to close again.
type Breaker struct {
	name string
	lg   *slog.Logger

	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	state       BreakerState
	recentFails int
	openedAt    time.Time
}

func NewBreaker(name string, maxFailures int, resetTimeout time.Duration, lg *slog.Logger) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	b := &Breaker{
		name:         name,
		lg:           lg,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        BreakerClosed,
	}
	lg.Info("breaker created", "name", name, "maxFailures", maxFailures, "resetTimeout", resetTimeout.String())
	return b
}

func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	state := b.state
	openedAt := b.openedAt
	b.mu.Unlock()

	if state == BreakerOpen {
		if b.now().Sub(openedAt) < b.resetTimeout {
			return ErrBreakerOpen
		}
		return b.halfOpenAttempt(ctx, op)
	}

	if err := op(ctx); err != nil {
		b.onFailure(err)
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) halfOpenAttempt(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	b.state = BreakerHalfOpen
	b.mu.Unlock()
	b.lg.Info("breaker probe", "name", b.name)

	if err := op(ctx); err != nil {
		b.mu.Lock()
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.recentFails++
		b.mu.Unlock()
		b.lg.Warn("breaker probe failed", "name", b.name, "error", err)
		return err
	}
	b.mu.Lock()
	b.state = BreakerClosed
	b.recentFails = 0
	b.mu.Unlock()
	b.lg.Info("breaker closed after probe", "name", b.name)
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.recentFails = 0
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recentFails++
	b.lg.Warn("operation failure", "name", b.name, "failures", b.recentFails, "error", err)
	if b.recentFails >= b.maxFailures {
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.lg.Error("breaker opened", "name", b.name, "maxFailures", b.maxFailures)
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
