// Package race runs an operation against a wall-clock deadline and reports
// whichever resolves first.
package race

import (
	"context"
	"time"
)

// Kind tags how a race was decided.
type Kind int

const (
	// Completed means the operation returned (successfully or not) before the timer fired.
	Completed Kind = iota
	// TimedOut means the timer fired first; the operation's result is discarded.
	TimedOut
)

func (k Kind) String() string {
	if k == TimedOut {
		return "timed_out"
	}
	return "completed"
}

// Outcome is the tagged result of WithTimeout. Value and Err are only
// meaningful when Kind is Completed.
type Outcome[T any] struct {
	Kind    Kind
	Value   T
	Err     error
	Elapsed time.Duration
}

type result[T any] struct {
	value T
	err   error
}

// WithTimeout starts op and a timer of length d at the same instant. If op
// returns first the timer is stopped and op's value and error are reported. If
// the timer fires first the context handed to op is cancelled and TimedOut is
// reported; op's eventual return value is dropped.
//
// Cancellation of the parent ctx before either side resolves is reported as a
// Completed outcome carrying ctx.Err().
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) Outcome[T] {
	start := time.Now()
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so a late op never blocks after the race is decided.
	done := make(chan result[T], 1)
	go func() {
		v, err := op(opCtx)
		done <- result[T]{value: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case r := <-done:
		return Outcome[T]{Kind: Completed, Value: r.value, Err: r.err, Elapsed: time.Since(start)}
	case <-timer.C:
		cancel()
		return Outcome[T]{Kind: TimedOut, Elapsed: time.Since(start)}
	case <-ctx.Done():
		var zero T
		return Outcome[T]{Kind: Completed, Value: zero, Err: ctx.Err(), Elapsed: time.Since(start)}
	}
}
