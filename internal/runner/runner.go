// Package runner accepts workflow requests, runs each one on its own goroutine
// and answers status queries from memory or the snapshot store.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ariel-frischer/appgen/internal/events"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/store"
	"github.com/ariel-frischer/appgen/internal/workflow"
	"github.com/google/uuid"
)

// DefaultRetain is how many finished executions stay in memory.
const DefaultRetain = 256

const saveTimeout = 5 * time.Second

var (
	// ErrNotFound is returned for an execution id the manager has never seen.
	ErrNotFound = store.ErrNotFound
	// ErrShuttingDown is returned by Submit after Shutdown has been called.
	ErrShuttingDown = errors.New("runner is shutting down")
)

// SnapshotStore persists execution snapshots. *store.Store implements it.
type SnapshotStore interface {
	Save(ctx context.Context, snap execution.Snapshot) error
	Get(ctx context.Context, id string) (execution.Snapshot, error)
	List(ctx context.Context, f store.Filter) ([]execution.Snapshot, error)
}

// Manager owns the running executions.
type Manager struct {
	registry  *workflow.Registry
	schedOpts []workflow.Option
	store     SnapshotStore
	reporters []events.Reporter
	logger    *log.Logger
	debug     bool
	newID     func() string
	retain    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	runs     map[string]*entry
	finished []string
	closed   bool
}

// entry is one execution tracked in memory.
type entry struct {
	exec *execution.Execution
	bus  *events.Bus
	done chan struct{}
	err  error
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore persists snapshots on every event and serves unknown ids from it.
func WithStore(s SnapshotStore) Option {
	return func(m *Manager) { m.store = s }
}

// WithReporter attaches a reporter to every execution's event stream. Each
// reporter consumes on its own goroutine, so a slow one never stalls a run.
func WithReporter(r events.Reporter) Option {
	return func(m *Manager) {
		if r != nil {
			m.reporters = append(m.reporters, r)
		}
	}
}

// WithSchedulerOptions passes options to the scheduler of every execution.
func WithSchedulerOptions(opts ...workflow.Option) Option {
	return func(m *Manager) { m.schedOpts = append(m.schedOpts, opts...) }
}

// WithLogger sets the logger for warnings and debug output.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(m *Manager) { m.debug = debug }
}

// WithIDFunc overrides execution id generation.
func WithIDFunc(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithRetain sets how many finished executions stay in memory.
func WithRetain(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.retain = n
		}
	}
}

// New creates a Manager that runs executions through reg.
func New(reg *workflow.Registry, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		registry: reg,
		logger:   log.Default(),
		newID:    uuid.NewString,
		retain:   DefaultRetain,
		ctx:      ctx,
		cancel:   cancel,
		runs:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the stage registry executions run through.
func (m *Manager) Registry() *workflow.Registry {
	return m.registry
}

func (m *Manager) debugLog(format string, args ...interface{}) {
	if m.debug {
		m.logger.Printf("[runner] debug: "+format, args...)
	}
}

// Submit validates req, starts the execution in the background and returns its
// initial snapshot, including any warning about an unrecognized max stage.
// The execution outlives ctx; it stops only on Shutdown.
func (m *Manager) Submit(ctx context.Context, req execution.Request) (execution.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return execution.Snapshot{}, err
	}
	l, err := m.start(m.ctx, req)
	if err != nil {
		return execution.Snapshot{}, err
	}
	return l.initial, nil
}

// Run starts an execution and waits for it. Cancelling ctx fails the run.
func (m *Manager) Run(ctx context.Context, req execution.Request) (execution.Snapshot, error) {
	runCtx, cancel := context.WithCancel(m.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	l, err := m.start(runCtx, req)
	if err != nil {
		return execution.Snapshot{}, err
	}
	<-l.entry.done
	return l.entry.exec.Snapshot(), l.entry.err
}

type launch struct {
	entry   *entry
	initial execution.Snapshot
}

func (m *Manager) start(ctx context.Context, req execution.Request) (launch, error) {
	if err := req.Validate(); err != nil {
		return launch{}, fmt.Errorf("invalid request: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return launch{}, ErrShuttingDown
	}
	id := m.newID()
	if _, exists := m.runs[id]; exists {
		m.mu.Unlock()
		return launch{}, fmt.Errorf("duplicate execution id %s", id)
	}
	e := &entry{
		exec: execution.New(id, req),
		bus:  events.NewBus(),
		done: make(chan struct{}),
	}
	m.runs[id] = e
	m.wg.Add(1)
	m.mu.Unlock()

	initial := e.exec.Snapshot()
	m.save(initial)
	for _, w := range initial.Errors {
		m.logger.Printf("[runner] %s: %s", id, w)
	}

	var subs sync.WaitGroup
	m.attach(e, &subs)

	opts := append(slices.Clone(m.schedOpts), workflow.WithReporter(e.bus))
	sched := workflow.NewScheduler(m.registry, opts...)
	go func() {
		defer m.wg.Done()
		status, err := sched.Run(ctx, e.exec)
		if err != nil {
			m.logger.Printf("[runner] %s: %v", id, err)
		}
		m.debugLog("%s finished with status %s", id, status)

		e.bus.Close()
		subs.Wait()
		m.save(e.exec.Snapshot())

		m.mu.Lock()
		e.err = err
		m.finished = append(m.finished, id)
		m.evictLocked()
		m.mu.Unlock()
		close(e.done)
	}()

	return launch{entry: e, initial: initial}, nil
}

// attach subscribes the persistence subscriber and every reporter to e's bus.
func (m *Manager) attach(e *entry, subs *sync.WaitGroup) {
	sinks := make([]func(events.Event), 0, len(m.reporters)+1)
	if m.store != nil {
		sinks = append(sinks, func(events.Event) { m.save(e.exec.Snapshot()) })
	}
	for _, r := range m.reporters {
		sinks = append(sinks, r.Report)
	}
	for _, sink := range sinks {
		ch, _ := e.bus.Subscribe(events.DefaultBuffer * 4)
		subs.Add(1)
		go func() {
			defer subs.Done()
			_ = events.Consume(context.Background(), ch, sink)
		}()
	}
}

func (m *Manager) save(snap execution.Snapshot) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := m.store.Save(ctx, snap); err != nil {
		m.logger.Printf("[runner] warning: saving %s: %v", snap.ID, err)
	}
}

// evictLocked drops the oldest finished executions beyond the retain limit.
// Evicted executions remain queryable through the store.
func (m *Manager) evictLocked() {
	for len(m.finished) > m.retain {
		delete(m.runs, m.finished[0])
		m.finished = m.finished[1:]
	}
}

func (m *Manager) lookup(id string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.runs[id]
	return e, ok
}

// Status returns the current snapshot of an execution. It has no side effects.
func (m *Manager) Status(ctx context.Context, id string) (execution.Snapshot, error) {
	if e, ok := m.lookup(id); ok {
		return e.exec.Snapshot(), nil
	}
	if m.store == nil {
		return execution.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.store.Get(ctx, id)
}

// Wait blocks until the execution is terminal or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (execution.Snapshot, error) {
	e, ok := m.lookup(id)
	if !ok {
		snap, err := m.Status(ctx, id)
		if err != nil {
			return snap, err
		}
		if !snap.Status.IsTerminal() {
			return snap, fmt.Errorf("execution %s is not running in this process", id)
		}
		return snap, nil
	}
	select {
	case <-e.done:
		return e.exec.Snapshot(), nil
	case <-ctx.Done():
		return e.exec.Snapshot(), ctx.Err()
	}
}

// List returns up to limit executions, newest first, merging running ones with
// the store.
func (m *Manager) List(ctx context.Context, limit int) ([]execution.Snapshot, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	byID := make(map[string]execution.Snapshot)
	if m.store != nil {
		stored, err := m.store.List(ctx, store.Filter{Limit: limit})
		if err != nil {
			return nil, err
		}
		for _, snap := range stored {
			byID[snap.ID] = snap
		}
	}
	m.mu.RLock()
	for id, e := range m.runs {
		byID[id] = e.exec.Snapshot()
	}
	m.mu.RUnlock()

	out := make([]execution.Snapshot, 0, len(byID))
	for _, snap := range byID {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Subscribe streams the events of a live execution. The channel closes when
// the execution finishes; for a finished execution it is already closed.
func (m *Manager) Subscribe(id string) (<-chan events.Event, func(), error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ch, cancel := e.bus.Subscribe(events.DefaultBuffer)
	return ch, cancel, nil
}

// Shutdown stops accepting work and waits for running executions. When ctx
// ends first, the remaining executions are cancelled and fail.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.logger.Printf("[runner] shutdown deadline reached, cancelling running executions")
		m.cancel()
		<-done
		return ctx.Err()
	}
}
