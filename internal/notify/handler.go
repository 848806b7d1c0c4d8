package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ariel-frischer/appgen/internal/events"
	"golang.org/x/term"
)

const title = "appgen"

// Handler decides which hooks fire and dispatches notifications through a Sender.
// It implements events.Reporter so it can be attached to a runner.
type Handler struct {
	config      NotificationConfig
	sender      Sender
	startTime   time.Time
	logger      *log.Logger
	debug       bool
	ci          func() bool
	interactive func() bool

	mu      sync.Mutex
	started map[string]time.Time
}

// NewHandler creates a handler for the current platform. With notifications
// disabled every hook is a no-op.
func NewHandler(config NotificationConfig) *Handler {
	return &Handler{
		config:      config,
		sender:      NewSender(),
		startTime:   time.Now(),
		logger:      log.New(io.Discard, "", 0),
		ci:          isCI,
		interactive: isInteractive,
		started:     make(map[string]time.Time),
	}
}

// NewHandlerWithSender creates a handler with a custom sender. It skips the
// CI and terminal checks.
func NewHandlerWithSender(config NotificationConfig, sender Sender) *Handler {
	h := NewHandler(config)
	h.sender = sender
	h.ci = func() bool { return false }
	h.interactive = func() bool { return true }
	return h
}

// SetDebug enables "[notify]" debug logging to logger.
func (h *Handler) SetDebug(logger *log.Logger, debug bool) {
	if logger != nil {
		h.logger = logger
	}
	h.debug = debug
}

// SetStartTime updates the command start time.
func (h *Handler) SetStartTime(t time.Time) {
	h.startTime = t
}

// StartTime returns the command start time.
func (h *Handler) StartTime() time.Time {
	return h.startTime
}

// Config returns the handler's notification configuration
func (h *Handler) Config() NotificationConfig {
	return h.config
}

func (h *Handler) debugLog(format string, args ...interface{}) {
	if h.debug {
		h.logger.Printf("[notify] "+format, args...)
	}
}

// isEnabled reports whether notifications should be sent right now.
func (h *Handler) isEnabled() bool {
	if !h.config.Enabled {
		return false
	}
	if h.ci() {
		h.debugLog("skipped: running in CI")
		return false
	}
	if !h.interactive() {
		h.debugLog("skipped: non-interactive session")
		return false
	}
	return true
}

// isCI checks for common CI environment variables.
func isCI() bool {
	ciVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"TRAVIS",
		"JENKINS_URL",
		"BUILDKITE",
		"DRONE",
		"TEAMCITY_VERSION",
		"TF_BUILD",
		"BITBUCKET_PIPELINES",
		"CODEBUILD_BUILD_ID",
	}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// isInteractive checks stdout first since stdin is often piped.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) ||
		term.IsTerminal(int(os.Stderr.Fd())) ||
		term.IsTerminal(int(os.Stdin.Fd()))
}

// dispatch sends n and gives up after DispatchTimeout. Failures are logged only.
func (h *Handler) dispatch(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), DispatchTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.send(ctx, n)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		h.debugLog("dispatch timed out after %s", DispatchTimeout)
	}
}

func (h *Handler) send(ctx context.Context, n Notification) {
	switch h.config.Type {
	case OutputSound:
		h.logErr("sound", h.sender.SendSound(ctx, h.config.SoundFile))
	case OutputVisual:
		h.logErr("visual", h.sender.SendVisual(ctx, n))
	case OutputBoth:
		h.logErr("visual", h.sender.SendVisual(ctx, n))
		h.logErr("sound", h.sender.SendSound(ctx, h.config.SoundFile))
	default:
		h.debugLog("unknown notification type: %v", h.config.Type)
	}
}

func (h *Handler) logErr(kind string, err error) {
	if err != nil {
		h.debugLog("%s notification failed: %v", kind, err)
	}
}

// longEnough applies the on_long_running filter.
func (h *Handler) longEnough(d time.Duration) bool {
	if !h.config.OnLongRunning {
		return true
	}
	threshold := h.config.LongRunningThreshold
	return threshold <= 0 || d >= threshold
}

// OnCommandComplete is called when an appgen command finishes.
func (h *Handler) OnCommandComplete(commandName string, success bool, duration time.Duration) {
	if !h.isEnabled() || !h.config.OnCommandComplete || !h.longEnough(duration) {
		return
	}
	notifType, status := TypeSuccess, "completed successfully"
	if !success {
		notifType, status = TypeFailure, "failed"
	}
	h.dispatch(NewNotification(title,
		fmt.Sprintf("Command '%s' %s (%s)", commandName, status, formatDuration(duration)),
		notifType))
}

// OnWorkflowComplete is called when an execution reaches a terminal status.
// Failures go through OnError when that hook is enabled.
func (h *Handler) OnWorkflowComplete(executionID string, success bool, duration time.Duration, message string) {
	if !h.isEnabled() {
		return
	}
	if !success && h.config.OnError {
		h.OnError("workflow "+short(executionID), fmt.Errorf("%s", message))
		return
	}
	if !h.config.OnWorkflowComplete || !h.longEnough(duration) {
		return
	}
	notifType, status := TypeSuccess, "completed"
	if !success {
		notifType, status = TypeFailure, "failed"
	}
	h.dispatch(NewNotification(title,
		fmt.Sprintf("Workflow %s %s (%s)", short(executionID), status, formatDuration(duration)),
		notifType))
}

// OnStageComplete is called when a workflow stage finishes.
func (h *Handler) OnStageComplete(stageName string, success bool) {
	if !h.isEnabled() || !h.config.OnStageComplete {
		return
	}
	notifType, status := TypeSuccess, "completed"
	if !success {
		notifType, status = TypeFailure, "failed"
	}
	h.dispatch(NewNotification(title, fmt.Sprintf("Stage '%s' %s", stageName, status), notifType))
}

// OnError is called when a command or workflow fails.
func (h *Handler) OnError(commandName string, err error) {
	if !h.isEnabled() || !h.config.OnError {
		return
	}
	errMsg := "unknown error"
	if err != nil && err.Error() != "" {
		errMsg = err.Error()
	}
	h.dispatch(NewNotification(title, fmt.Sprintf("Error in '%s': %s", commandName, errMsg), TypeFailure))
}

// Report maps workflow events onto the notification hooks.
func (h *Handler) Report(ev events.Event) {
	switch ev.Type {
	case events.WorkflowStarted:
		h.mu.Lock()
		h.started[ev.ExecutionID] = ev.Timestamp
		h.mu.Unlock()
	case events.StageCompleted:
		h.OnStageComplete(ev.Stage.Title(), true)
	case events.StageFailed:
		h.OnStageComplete(ev.Stage.Title(), false)
	case events.WorkflowCompleted, events.WorkflowFailed:
		h.mu.Lock()
		start, ok := h.started[ev.ExecutionID]
		delete(h.started, ev.ExecutionID)
		h.mu.Unlock()
		var d time.Duration
		if ok {
			d = ev.Timestamp.Sub(start)
		}
		h.OnWorkflowComplete(ev.ExecutionID, ev.Type == events.WorkflowCompleted, d, ev.Message)
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration formats a duration for display in notifications
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
