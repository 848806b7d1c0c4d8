package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Sender delivers notifications to the operating system.
type Sender interface {
	SendVisual(ctx context.Context, n Notification) error
	SendSound(ctx context.Context, soundFile string) error
	VisualAvailable() bool
	SoundAvailable() bool
}

// NewSender returns the sender for the current OS. Unsupported platforms get a no-op sender.
func NewSender() Sender {
	switch runtime.GOOS {
	case "darwin":
		return &execSender{visual: "osascript", sound: "afplay", defaultSound: "/System/Library/Sounds/Glass.aiff"}
	case "linux":
		return &execSender{visual: "notify-send", sound: "paplay", defaultSound: "/usr/share/sounds/freedesktop/stereo/complete.oga"}
	default:
		return noopSender{}
	}
}

// Platform returns the current operating system name
func Platform() string {
	return runtime.GOOS
}

// execSender shells out to the platform notification and audio tools.
type execSender struct {
	visual       string
	sound        string
	defaultSound string
}

func (s *execSender) VisualAvailable() bool { return toolAvailable(s.visual) }
func (s *execSender) SoundAvailable() bool  { return toolAvailable(s.sound) }

func (s *execSender) SendVisual(ctx context.Context, n Notification) error {
	if !s.VisualAvailable() {
		return fmt.Errorf("%s not found in PATH", s.visual)
	}
	var cmd *exec.Cmd
	switch s.visual {
	case "osascript":
		script := fmt.Sprintf("display notification %s with title %s", appleQuote(n.Message), appleQuote(n.Title))
		cmd = exec.CommandContext(ctx, "osascript", "-e", script)
	default:
		args := []string{"--app-name=appgen"}
		if n.NotificationType == TypeFailure {
			args = append(args, "--urgency=critical")
		}
		args = append(args, n.Title, n.Message)
		cmd = exec.CommandContext(ctx, s.visual, args...)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.visual, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *execSender) SendSound(ctx context.Context, soundFile string) error {
	if !s.SoundAvailable() {
		return fmt.Errorf("%s not found in PATH", s.sound)
	}
	if soundFile == "" {
		soundFile = s.defaultSound
	}
	if err := exec.CommandContext(ctx, s.sound, soundFile).Run(); err != nil {
		return fmt.Errorf("playing %s: %w", soundFile, err)
	}
	return nil
}

// appleQuote renders s as an AppleScript string literal.
func appleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func toolAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

type noopSender struct{}

func (noopSender) SendVisual(context.Context, Notification) error { return nil }
func (noopSender) SendSound(context.Context, string) error        { return nil }
func (noopSender) VisualAvailable() bool                          { return false }
func (noopSender) SoundAvailable() bool                           { return false }
