package errors

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ariel-frischer/appgen/internal/guard"
	"github.com/ariel-frischer/appgen/internal/workflow"
	"github.com/fatih/color"
)

var (
	headerColor   = color.New(color.FgRed, color.Bold)
	messageColor  = color.New(color.FgRed)
	categoryColor = color.New(color.FgYellow)
	detailColor   = color.New(color.FgMagenta)
	usageColor    = color.New(color.FgCyan, color.Bold)
	fixColor      = color.New(color.FgGreen, color.Bold)
)

// Format renders err for the terminal. Errors that are not a CLIError are
// shown in the Runtime category. When the chain holds a stage failure or a
// timeout, the stage, reason and timing are listed under the message.
func Format(err error, useColors bool) string {
	if err == nil {
		return ""
	}
	cliErr := AsCLIError(err)
	if cliErr == nil {
		cliErr = &CLIError{Category: Runtime, Message: err.Error(), cause: err}
	}

	paint := func(c *color.Color, s string) string {
		if !useColors {
			return s
		}
		return c.Sprint(s)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]: %s\n",
		paint(headerColor, "Error"),
		paint(categoryColor, cliErr.Category.String()),
		paint(messageColor, cliErr.Message))

	if details := failureDetails(cliErr); len(details) > 0 {
		sb.WriteString("\n")
		for _, d := range details {
			fmt.Fprintf(&sb, "  %-9s %s\n", paint(detailColor, d[0]+":"), d[1])
		}
	}

	if cliErr.Usage != "" {
		fmt.Fprintf(&sb, "\n%s%s\n", paint(usageColor, "Usage: "), cliErr.Usage)
	}

	steps := make([]string, 0, len(cliErr.Remediation))
	for _, step := range cliErr.Remediation {
		if step != "" {
			steps = append(steps, step)
		}
	}
	if len(steps) > 0 {
		fmt.Fprintf(&sb, "\n%s\n", paint(fixColor, "To fix this:"))
		for _, step := range steps {
			fmt.Fprintf(&sb, "  %s %s\n", paint(fixColor, "•"), step)
		}
	}
	return sb.String()
}

// failureDetails extracts label/value pairs from a scheduler or guard error
// wrapped by err.
func failureDetails(err error) [][2]string {
	var out [][2]string

	var stageErr *workflow.StageError
	if errors.As(err, &stageErr) {
		name := stageErr.Stage.String()
		if stageErr.Critical {
			name += " (critical)"
		}
		out = append(out, [2]string{"Stage", name}, [2]string{"Reason", string(stageErr.Reason)})
	}

	var timeoutErr *guard.TimeoutError
	if errors.As(err, &timeoutErr) {
		out = append(out, [2]string{"Elapsed", fmt.Sprintf("%v of %v limit",
			timeoutErr.Elapsed.Round(time.Millisecond), timeoutErr.Timeout)})
	}
	return out
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}

// Fprint writes a formatted error to w, colored unless color output is disabled.
func Fprint(w io.Writer, err error) {
	fmt.Fprint(w, Format(err, !color.NoColor))
}
