package progress

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ariel-frischer/appgen/internal/events"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/stage"
	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

// Display prints one line per finished stage and, on a TTY, a spinner naming
// the stages still running. It implements events.Reporter.
type Display struct {
	out     io.Writer
	caps    TerminalCapabilities
	symbols ProgressSymbols
	total   int

	mu       sync.Mutex
	done     int
	running  []stage.Stage
	spin     *spinner.Spinner
	ok       func(a ...interface{}) string
	fail     func(a ...interface{}) string
	warn     func(a ...interface{}) string
	dim      func(a ...interface{}) string
	finished bool
}

// NewDisplay creates a display for a run of total executable stages.
func NewDisplay(out io.Writer, caps TerminalCapabilities, total int) *Display {
	d := &Display{
		out:     out,
		caps:    caps,
		symbols: SelectSymbols(caps),
		total:   total,
		ok:      fmt.Sprint,
		fail:    fmt.Sprint,
		warn:    fmt.Sprint,
		dim:     fmt.Sprint,
	}
	if caps.SupportsColor {
		d.ok = colorFunc(color.FgGreen)
		d.fail = colorFunc(color.FgRed)
		d.warn = colorFunc(color.FgYellow)
		d.dim = colorFunc(color.Faint)
	}
	if caps.IsTTY {
		d.spin = spinner.New(spinner.CharSets[d.symbols.SpinnerSet], 100*time.Millisecond, spinner.WithWriter(out))
	}
	return d
}

// colorFunc forces color output; SupportsColor already accounts for NO_COLOR.
func colorFunc(attr color.Attribute) func(a ...interface{}) string {
	c := color.New(attr)
	c.EnableColor()
	return c.SprintFunc()
}

// Report implements events.Reporter.
func (d *Display) Report(ev events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finished {
		return
	}

	switch ev.Type {
	case events.WorkflowStarted:
		d.printf("%s\n", d.dim(fmt.Sprintf("Workflow %s started", ev.ExecutionID)))
	case events.StageStarted:
		d.running = append(d.running, ev.Stage)
		if d.spin == nil {
			d.printf("%s %s...\n", d.counter(d.done+1), ev.Stage.Title())
		}
	case events.StageCompleted:
		d.finish(ev.Stage)
		d.done++
		d.printf("%s %s %s\n", d.ok(d.symbols.Checkmark), d.counter(d.done), ev.Stage.Title())
	case events.StageFailed:
		d.finish(ev.Stage)
		d.printf("%s %s: %s\n", d.fail(d.symbols.Failure), ev.Stage.Title(), ev.Message)
	case events.StageSkipped:
		d.printf("%s %s\n", d.dim(d.symbols.Skipped), d.dim(ev.Stage.Title()+" (skipped: "+ev.Message+")"))
	case events.Warning:
		d.printf("%s\n", d.warn("warning: "+ev.Message))
	case events.WorkflowCompleted, events.WorkflowFailed:
		d.running = nil
		d.finished = true
	}
	d.refreshSpinner()
}

// Stop halts the spinner. It is safe to call more than once.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finished = true
	d.running = nil
	d.refreshSpinner()
}

func (d *Display) finish(s stage.Stage) {
	if i := slices.Index(d.running, s); i >= 0 {
		d.running = slices.Delete(d.running, i, i+1)
	}
}

func (d *Display) counter(n int) string {
	return fmt.Sprintf("[%d/%d]", n, d.total)
}

// printf writes a line with the spinner paused so the two never interleave.
func (d *Display) printf(format string, args ...interface{}) {
	if d.spin != nil && d.spin.Active() {
		d.spin.Stop()
	}
	fmt.Fprintf(d.out, format, args...)
}

func (d *Display) refreshSpinner() {
	if d.spin == nil {
		return
	}
	if len(d.running) == 0 {
		if d.spin.Active() {
			d.spin.Stop()
		}
		return
	}
	names := make([]string, len(d.running))
	for i, s := range d.running {
		names[i] = s.Title()
	}
	d.spin.Suffix = " " + d.counter(d.done+1) + " " + strings.Join(names, ", ")
	if !d.spin.Active() {
		d.spin.Start()
	}
}

// Summary renders the final snapshot. On a color terminal it is drawn in a
// lipgloss box tinted by status.
func Summary(snap execution.Snapshot, caps TerminalCapabilities) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Execution  %s\n", snap.ID)
	fmt.Fprintf(&b, "Status     %s", snap.Status)
	if snap.EarlyStopped {
		b.WriteString(" (stopped at max stage)")
	}
	fmt.Fprintf(&b, "\nProgress   %d%%\n", snap.ProgressPercent)
	fmt.Fprintf(&b, "Stages     %d completed, %d failed\n", len(snap.StagesCompleted), len(snap.StagesFailed))
	if snap.FinishedAt != nil {
		fmt.Fprintf(&b, "Duration   %s\n", snap.FinishedAt.Sub(snap.CreatedAt).Round(time.Millisecond))
	}
	if url := snap.Artifacts[execution.ArtifactRepositoryURL].Value(); url != "" {
		fmt.Fprintf(&b, "Repository %s\n", url)
	}
	if len(snap.Artifacts) > 0 {
		names := make([]string, 0, len(snap.Artifacts))
		for name := range snap.Artifacts {
			names = append(names, name)
		}
		slices.Sort(names)
		fmt.Fprintf(&b, "Artifacts  %s\n", strings.Join(names, ", "))
	}
	for _, e := range snap.Errors {
		fmt.Fprintf(&b, "Error      %s\n", e)
	}
	text := strings.TrimRight(b.String(), "\n")

	if !caps.SupportsColor {
		return text + "\n"
	}
	border := lipgloss.Color("10")
	if snap.Status == execution.StatusFailed {
		border = lipgloss.Color("9")
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
	if caps.Width > 4 {
		style = style.MaxWidth(caps.Width)
	}
	return style.Render(text) + "\n"
}
