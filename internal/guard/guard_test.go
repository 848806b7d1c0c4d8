package guard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwait(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := map[string]struct {
		timeout  time.Duration
		fn       func(context.Context) (string, error)
		wantKind Kind
		wantVal  string
		wantErr  error
	}{
		"success": {
			timeout:  time.Second,
			fn:       func(context.Context) (string, error) { return "ok", nil },
			wantKind: Success,
			wantVal:  "ok",
		},
		"handler failure": {
			timeout:  time.Second,
			fn:       func(context.Context) (string, error) { return "", errBoom },
			wantKind: Failure,
			wantErr:  errBoom,
		},
		"handler ignores context": {
			timeout: 50 * time.Millisecond,
			fn: func(context.Context) (string, error) {
				time.Sleep(time.Second)
				return "late", nil
			},
			wantKind: Timeout,
			wantErr:  context.DeadlineExceeded,
		},
		"handler honours context": {
			timeout: 50 * time.Millisecond,
			fn: func(ctx context.Context) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
			wantKind: Timeout,
			wantErr:  context.DeadlineExceeded,
		},
		"panic is recovered": {
			timeout:  time.Second,
			fn:       func(context.Context) (string, error) { panic("kaboom") },
			wantKind: Failure,
		},
		"non-positive timeout": {
			timeout:  0,
			fn:       func(context.Context) (string, error) { return "never", nil },
			wantKind: Failure,
			wantErr:  ErrInvalidTimeout,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			out := Await(context.Background(), tt.timeout, tt.fn)
			assert.Equal(t, tt.wantKind, out.Kind, "kind %s", out.Kind)
			assert.Equal(t, tt.wantVal, out.Value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, out.Err(), tt.wantErr)
			}
			if tt.wantKind == Success {
				assert.NoError(t, out.Err())
				assert.True(t, out.OK())
			}
		})
	}
}

func TestAwait_PanicError(t *testing.T) {
	t.Parallel()

	out := Await(context.Background(), time.Second, func(context.Context) (int, error) {
		panic("kaboom")
	})
	var pe *PanicError
	require.ErrorAs(t, out.Err(), &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestAwait_ReturnsAtDeadline(t *testing.T) {
	t.Parallel()

	const timeout = 100 * time.Millisecond
	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	out := Await(context.Background(), timeout, func(context.Context) (int, error) {
		<-block
		return 1, nil
	})
	elapsed := time.Since(start)

	require.Equal(t, Timeout, out.Kind)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+500*time.Millisecond)

	var te *TimeoutError
	require.ErrorAs(t, out.Err(), &te)
	assert.Equal(t, timeout, te.Timeout)
	assert.Contains(t, te.Error(), "timed out after")
	assert.Contains(t, te.Error(), "limit 100ms")
}

func TestAwait_ParentCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	out := Await(ctx, time.Minute, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.Equal(t, Failure, out.Kind)
	assert.ErrorIs(t, out.Err(), context.Canceled)
}

func TestPoll(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := map[string]struct {
		doneAfter int32
		fail      bool
		wantKind  Kind
	}{
		"done immediately": {doneAfter: 1, wantKind: Success},
		"done after ticks": {doneAfter: 3, wantKind: Success},
		"check fails":      {doneAfter: 2, fail: true, wantKind: Failure},
		"never done":       {doneAfter: -1, wantKind: Timeout},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int32
			out := Poll(context.Background(), 300*time.Millisecond, 10*time.Millisecond,
				func(context.Context) (bool, string, error) {
					n := calls.Add(1)
					if tt.doneAfter < 0 || n < tt.doneAfter {
						return false, "", nil
					}
					if tt.fail {
						return false, "", errBoom
					}
					return true, "result", nil
				})

			assert.Equal(t, tt.wantKind, out.Kind, "kind %s", out.Kind)
			switch tt.wantKind {
			case Success:
				assert.Equal(t, "result", out.Value)
				assert.Equal(t, tt.doneAfter, calls.Load())
			case Failure:
				assert.ErrorIs(t, out.Err(), errBoom)
			case Timeout:
				assert.ErrorIs(t, out.Err(), context.DeadlineExceeded)
			}
		})
	}
}

func TestPoll_NeverLaterThanDeadlinePlusInterval(t *testing.T) {
	t.Parallel()

	const (
		timeout  = 120 * time.Millisecond
		interval = 50 * time.Millisecond
	)

	start := time.Now()
	out := Poll(context.Background(), timeout, interval, func(context.Context) (bool, int, error) {
		return false, 0, nil
	})
	elapsed := time.Since(start)

	require.Equal(t, Timeout, out.Kind)
	assert.GreaterOrEqual(t, elapsed, timeout)
	// Allow scheduler jitter on top of the documented bound.
	assert.LessOrEqual(t, elapsed, timeout+interval+200*time.Millisecond)
}

func TestPoll_BlockingCheckIsBounded(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)

	out := Poll(context.Background(), 80*time.Millisecond, 10*time.Millisecond, func(context.Context) (bool, int, error) {
		<-block
		return true, 1, nil
	})
	assert.Equal(t, Timeout, out.Kind)
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "failure", Failure.String())
	assert.Equal(t, "timeout", Timeout.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
