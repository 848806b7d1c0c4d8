package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Tailer streams events from a JSONL event log as they are appended.
// It uses fsnotify for change detection with a periodic poll as backup.
type Tailer struct {
	path      string
	watcher   *fsnotify.Watcher
	pollEvery time.Duration
	mu        sync.Mutex
	closed    bool
}

// NewTailer creates a Tailer for path. The file does not need to exist yet.
func NewTailer(path string) (*Tailer, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Tailer{path: path, watcher: watcher, pollEvery: 200 * time.Millisecond}, nil
}

// Path returns the log file being tailed.
func (t *Tailer) Path() string {
	return t.path
}

// Tail returns a channel of decoded events. Without follow it emits the events
// already in the file and closes. With follow it waits for the file, then keeps
// streaming until a terminal event is read or ctx is cancelled.
// Malformed lines are skipped.
func (t *Tailer) Tail(ctx context.Context, follow bool) <-chan Event {
	out := make(chan Event, DefaultBuffer)
	go t.run(ctx, out, follow)
	return out
}

func (t *Tailer) run(ctx context.Context, out chan<- Event, follow bool) {
	defer close(out)

	if follow {
		if err := t.awaitFile(ctx); err != nil {
			return
		}
	}

	f, err := os.Open(t.path)
	if err != nil {
		return
	}
	defer f.Close()

	lr := &lineReader{r: bufio.NewReader(f)}
	if done := t.drain(ctx, lr, out); done || !follow {
		return
	}

	if err := t.watcher.Add(t.path); err != nil {
		return
	}
	ticker := time.NewTicker(t.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != t.path || !ev.Has(fsnotify.Write) {
				continue
			}
		case <-ticker.C:
		case _, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			continue
		}
		if t.drain(ctx, lr, out) {
			return
		}
	}
}

// awaitFile blocks until the log file exists or ctx is done.
func (t *Tailer) awaitFile(ctx context.Context) error {
	if _, err := os.Stat(t.path); err == nil {
		return nil
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	if err := t.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching log directory: %w", err)
	}
	defer func() { _ = t.watcher.Remove(dir) }()

	ticker := time.NewTicker(t.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if ev.Name == t.path && ev.Has(fsnotify.Create) {
				return nil
			}
		case <-ticker.C:
			if _, err := os.Stat(t.path); err == nil {
				return nil
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// drain sends every complete line currently available and reports whether a
// terminal event was sent.
func (t *Tailer) drain(ctx context.Context, lr *lineReader, out chan<- Event) bool {
	for {
		line, ok := lr.next()
		if !ok {
			return false
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		select {
		case <-ctx.Done():
			return true
		case out <- ev:
		}
		if ev.Terminal() {
			return true
		}
	}
}

// Close stops the tailer and releases the watcher.
func (t *Tailer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.watcher.Close()
}

// lineReader yields complete newline-terminated lines, holding back a trailing
// partial line until the writer finishes it.
type lineReader struct {
	r       *bufio.Reader
	pending []byte
}

func (l *lineReader) next() ([]byte, bool) {
	for {
		chunk, err := l.r.ReadBytes('\n')
		l.pending = append(l.pending, chunk...)
		if err == nil {
			line := l.pending
			l.pending = nil
			if len(line) <= 1 {
				continue
			}
			return line[:len(line)-1], true
		}
		// io.EOF or a read error: keep the partial line for the next call.
		return nil, false
	}
}
