// appgen - Application Generation Pipeline
// Author: Ariel Frischer
// Source: https://github.com/ariel-frischer/appgen

// Package guard bounds every awaited operation with a deadline.
//
// [Await] runs a synchronous function under a deadline. [Poll] repeatedly checks
// an asynchronous operation at a fixed interval until it reports completion or
// the deadline elapses. Both always return a terminal [Outcome]; neither loops
// without checking the deadline.
package guard

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// DefaultPollInterval is used by Poll when no interval is given.
const DefaultPollInterval = 2 * time.Second

// ErrInvalidTimeout is returned for a zero or negative timeout.
var ErrInvalidTimeout = errors.New("guard: timeout must be positive")

// Kind classifies the terminal outcome of a guarded call.
type Kind int

const (
	Success Kind = iota
	Failure
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of a guarded call.
type Outcome[T any] struct {
	Kind    Kind
	Value   T
	Elapsed time.Duration
	err     error
}

// Err returns the failure error, a *TimeoutError for timeouts, or nil on success.
func (o Outcome[T]) Err() error {
	return o.err
}

// OK reports whether the call succeeded.
func (o Outcome[T]) OK() bool {
	return o.Kind == Success
}

// TimeoutError represents a guarded call that exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration // The limit that was exceeded
	Elapsed time.Duration // Time spent before giving up
	Err     error         // Underlying error (context.DeadlineExceeded)
}

// Error returns a human-readable message with elapsed and limit.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %v (limit %v)", e.Elapsed.Round(time.Millisecond), e.Timeout)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// NewTimeoutError creates a TimeoutError wrapping context.DeadlineExceeded.
func NewTimeoutError(timeout, elapsed time.Duration) *TimeoutError {
	return &TimeoutError{
		Timeout: timeout,
		Elapsed: elapsed,
		Err:     context.DeadlineExceeded,
	}
}

// PanicError reports a panic recovered from a guarded function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Await runs fn under a deadline of timeout.
//
// fn receives a context that is cancelled at the deadline. If the deadline passes
// first, Await returns a Timeout outcome immediately; fn keeps running until it
// observes cancellation, but its late result is discarded. Cancellation of the
// parent ctx yields a Failure carrying the context error.
func Await[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) Outcome[T] {
	start := time.Now()
	if timeout <= 0 {
		return Outcome[T]{Kind: Failure, err: ErrInvalidTimeout}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := call(runCtx, fn)
	return classify(ctx, runCtx, v, err, timeout, time.Since(start))
}

// Poll calls check every interval until it reports done, it fails, or the
// deadline elapses. The first check runs immediately.
//
// Each iteration re-checks the deadline, so a check that never reports done
// yields a Timeout no later than the deadline plus one interval.
func Poll[T any](ctx context.Context, timeout, interval time.Duration, check func(context.Context) (bool, T, error)) Outcome[T] {
	start := time.Now()
	if timeout <= 0 {
		return Outcome[T]{Kind: Failure, err: ErrInvalidTimeout}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	type polled struct {
		done  bool
		value T
	}
	probe := func(c context.Context) (polled, error) {
		done, v, err := check(c)
		return polled{done: done, value: v}, err
	}

	for {
		p, err := call(runCtx, probe)
		if err != nil || p.done {
			return classify(ctx, runCtx, p.value, err, timeout, time.Since(start))
		}
		if time.Since(start) >= timeout {
			var zero T
			return Outcome[T]{Kind: Timeout, Value: zero, Elapsed: time.Since(start), err: NewTimeoutError(timeout, time.Since(start))}
		}

		select {
		case <-runCtx.Done():
			var zero T
			return classify(ctx, runCtx, zero, runCtx.Err(), timeout, time.Since(start))
		case <-ticker.C:
		}
	}
}

type result[T any] struct {
	value T
	err   error
}

// call runs fn in its own goroutine and returns when fn finishes or ctx is done.
// The result channel is buffered so an abandoned fn never blocks on send.
func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		v, err := fn(ctx)
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func classify[T any](parent, runCtx context.Context, v T, err error, timeout, elapsed time.Duration) Outcome[T] {
	switch {
	case err == nil:
		return Outcome[T]{Kind: Success, Value: v, Elapsed: elapsed}
	case parent.Err() != nil:
		return Outcome[T]{Kind: Failure, Elapsed: elapsed, err: parent.Err()}
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return Outcome[T]{Kind: Timeout, Elapsed: elapsed, err: NewTimeoutError(timeout, elapsed)}
	default:
		return Outcome[T]{Kind: Failure, Value: v, Elapsed: elapsed, err: err}
	}
}
