// Package poll provides bounded waiting: sleeps and wait-until-predicate
// loops that honour a context and an injectable clock.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Until when the predicate never held.
var ErrTimeout = errors.New("poll: timed out waiting for condition")

// Clock abstracts time so tests can run waits without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

// Until evaluates cond every interval until it returns true, returns an
// error, timeout elapses or ctx is done. cond is always evaluated at least
// once. Errors from cond are treated as "not yet" and the last one is
// wrapped into the timeout error.
func Until(ctx context.Context, clock Clock, timeout, interval time.Duration, cond func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := clock.Now().Add(timeout)

	var lastErr error
	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			if lastErr != nil {
				return errors.Join(ErrTimeout, lastErr)
			}
			return ErrTimeout
		}
		if err := Sleep(ctx, clock, min(interval, remaining)); err != nil {
			return err
		}
	}
}
