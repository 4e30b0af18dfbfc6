package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aristath/trainqueue/internal/events"
)

// Progress renders run and job events as one line each.
type Progress struct {
	w      io.Writer
	styles Styles
	now    func() time.Time
}

// NewProgress creates a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w, styles: NewStyles(w), now: time.Now}
}

// Consume renders events from ch until it is closed, then closes done.
// Run it in its own goroutine and close the bus to stop it.
func (p *Progress) Consume(ch <-chan events.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range ch {
		p.Render(ev)
	}
}

// Render writes the line for one event. Unknown events are ignored.
func (p *Progress) Render(ev events.Event) {
	ts := p.styles.Muted.Render(p.now().Format("2006-01-02 15:04:05"))

	var line string
	switch e := ev.(type) {
	case events.RunStartedEvent:
		line = fmt.Sprintf("Training %d experiment(s) in order", e.Total)

	case events.JobStartedEvent:
		line = fmt.Sprintf("%s %s",
			p.styles.Running.Render(fmt.Sprintf("(%d/%d) ➜", e.Index, e.Total)),
			e.Name)
		if len(e.Argv) > 0 {
			line += "\n" + p.styles.Muted.Render("  $ "+strings.Join(e.Argv, " "))
		}

	case events.JobCompletedEvent:
		line = fmt.Sprintf("%s %s %s",
			p.styles.Complete.Render("✓"),
			e.Name,
			p.styles.Muted.Render("("+formatDuration(e.Duration)+")"))

	case events.JobFailedEvent:
		line = fmt.Sprintf("%s %s %s",
			p.styles.Failed.Render("✗"),
			e.Name,
			p.styles.Failed.Render(failureText(e)))

	case events.JobSkippedEvent:
		line = fmt.Sprintf("%s %s %s",
			p.styles.Skipped.Render("-"),
			e.Name,
			p.styles.Muted.Render("(missing "+e.Resource+", skipped)"))

	case events.RunFinishedEvent:
		line = p.summary(e)

	default:
		return
	}

	fmt.Fprintf(p.w, "%s %s\n", ts, line)
}

func (p *Progress) summary(e events.RunFinishedEvent) string {
	counts := fmt.Sprintf("%d completed, %d skipped of %d in %s",
		e.Completed, e.Skipped, e.Total, formatDuration(e.Duration))
	if e.State == "drained" {
		return p.styles.Complete.Render("All done") + " " + counts
	}
	return p.styles.Failed.Render("Stopped") + " " + counts +
		"\n" + p.styles.Muted.Render("  Fix the problem and re-run; the pending file still starts at the failed entry.")
}

func failureText(e events.JobFailedEvent) string {
	if e.ExitCode < 0 && e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("failed (exit code %d)", e.ExitCode)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
