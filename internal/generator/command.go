package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// PromptPlaceholder is replaced with the quoted prompt text in a command template.
const PromptPlaceholder = "{{PROMPT}}"

// ErrEmptyOutput is returned when the agent command prints nothing.
var ErrEmptyOutput = errors.New("generator command produced no output")

// CommandGenerator runs an external agent CLI built from a command template
// such as `claude -p {{PROMPT}}` and returns its stdout as the artifact content.
type CommandGenerator struct {
	template string
	workDir  string
	env      map[string]string
}

// CommandOption configures a CommandGenerator.
type CommandOption func(*CommandGenerator)

// WithWorkDir sets the directory the command runs in.
func WithWorkDir(dir string) CommandOption {
	return func(c *CommandGenerator) { c.workDir = dir }
}

// WithEnv adds environment variables on top of the current environment.
func WithEnv(env map[string]string) CommandOption {
	return func(c *CommandGenerator) { c.env = env }
}

// NewCommandGenerator validates the template contains the prompt placeholder
// and parses as a command line.
func NewCommandGenerator(template string, opts ...CommandOption) (*CommandGenerator, error) {
	if !strings.Contains(template, PromptPlaceholder) {
		return nil, fmt.Errorf("generator command must contain %s placeholder", PromptPlaceholder)
	}
	parts, err := shlex.Split(strings.ReplaceAll(template, PromptPlaceholder, "test"))
	if err != nil {
		return nil, fmt.Errorf("generator command: invalid template: %w", err)
	}
	if len(parts) == 0 {
		return nil, errors.New("generator command: template produces no command")
	}
	c := &CommandGenerator{template: template}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Validate checks that the command exists in PATH.
func (c *CommandGenerator) Validate() error {
	args, err := c.expand("test")
	if err != nil {
		return err
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return fmt.Errorf("generator command %q not found in PATH", args[0])
	}
	return nil
}

// Args returns the argv the generator would run for prompt.
func (c *CommandGenerator) Args(prompt string) ([]string, error) {
	return c.expand(prompt)
}

// Generate runs the command with the prompt text. The process is killed when
// ctx is done.
func (c *CommandGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	args, err := c.expand(p.Text())
	if err != nil {
		return "", err
	}

	cmd := exec.Command(args[0], args[1:]...)
	if c.workDir != "" {
		cmd.Dir = c.workDir
	}
	cmd.Env = os.Environ()
	for k, v := range c.env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("starting generator command: %w", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return "", fmt.Errorf("running generator command: %w", ctx.Err())
	case err = <-done:
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("generator command exited with code %d: %s",
				exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("running generator command: %w", err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out + "\n", nil
}

// expand replaces the placeholder with the single-quoted prompt and splits the
// result into argv.
func (c *CommandGenerator) expand(prompt string) ([]string, error) {
	expanded := strings.ReplaceAll(c.template, PromptPlaceholder, quote(prompt))
	args, err := shlex.Split(expanded)
	if err != nil {
		return nil, fmt.Errorf("expanding generator command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("generator command: template produces no command")
	}
	return args, nil
}

// quote wraps s in single quotes; 'don't' becomes 'don'\''t'.
func quote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
