package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariel-frischer/appgen/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FanOut(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	defer cancelA()
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	ev := Event{ExecutionID: "e1", Type: StageStarted, Stage: stage.Testing}
	bus.Report(ev)

	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-b)
	assert.Equal(t, 2, bus.Subscribers())
}

func TestBus_FullSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	_, cancel := bus.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for range 10 {
			bus.Report(Event{ExecutionID: "e1", Type: StageStarted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Report blocked on a full subscriber")
	}
	assert.Equal(t, uint64(9), bus.Dropped())
}

func TestBus_CancelAndClose(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, cancel := bus.Subscribe(0)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "cancelled subscription channel should be closed")
	assert.Equal(t, 0, bus.Subscribers())

	other, _ := bus.Subscribe(1)
	bus.Close()
	bus.Close()
	_, ok = <-other
	assert.False(t, ok)

	late, _ := bus.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed bus yields a closed channel")

	bus.Report(Event{ExecutionID: "ignored"})
}

func TestBus_ConcurrentReportAndCancel(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel := bus.Subscribe(2)
			for range 50 {
				bus.Report(Event{ExecutionID: "e"})
			}
			cancel()
			for range ch {
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, bus.Subscribers())
}

func TestConsume(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cancelCtx bool
		wantErr   error
	}{
		"returns nil when channel closes": {},
		"returns ctx error when cancelled": {cancelCtx: true, wantErr: context.Canceled},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ch := make(chan Event, 2)
			ch <- Event{Type: StageStarted}
			ch <- Event{Type: StageCompleted}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var got []Type
			sink := func(ev Event) {
				got = append(got, ev.Type)
				if len(got) == 2 {
					if tt.cancelCtx {
						cancel()
					} else {
						close(ch)
					}
				}
			}

			err := Consume(ctx, ch, sink)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, []Type{StageStarted, StageCompleted}, got)
		})
	}
}

func TestMulti(t *testing.T) {
	t.Parallel()

	var got []string
	m := Multi{
		ReporterFunc(func(ev Event) { got = append(got, "a:"+ev.Message) }),
		nil,
		Nop{},
		ReporterFunc(func(ev Event) { got = append(got, "b:"+ev.Message) }),
	}
	m.Report(Event{Message: "hi"})
	assert.Equal(t, []string{"a:hi", "b:hi"}, got)
}

func TestEvent_Terminal(t *testing.T) {
	t.Parallel()

	assert.True(t, Event{Type: WorkflowCompleted}.Terminal())
	assert.True(t, Event{Type: WorkflowFailed}.Terminal())
	assert.False(t, Event{Type: StageFailed}.Terminal())
}
