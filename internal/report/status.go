package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/trainqueue/internal/persistence"
	"github.com/aristath/trainqueue/internal/queue"
)

// headLimit caps how many pending entries the status box lists.
const headLimit = 5

// Status is a snapshot of the queue files plus recent ledger history.
type Status struct {
	PendingFile   string
	CompletedFile string
	// PendingMissing is set when the pending file does not exist.
	PendingMissing bool
	Pending        []queue.Entry
	Completed      []queue.Entry
	Runs           []persistence.Run
	Attempts       []persistence.Attempt
}

// RenderStatus writes a human-readable summary of st to w.
func RenderStatus(w io.Writer, st Status) {
	s := NewStyles(w)

	var b strings.Builder
	b.WriteString(s.Title.Render("Queue") + "\n")

	switch {
	case st.PendingMissing:
		fmt.Fprintf(&b, "pending:   %s %s\n", st.PendingFile, s.Failed.Render("(missing)"))
	default:
		fmt.Fprintf(&b, "pending:   %s (%d)\n", st.PendingFile, len(st.Pending))
		for i, e := range st.Pending {
			if i == headLimit {
				b.WriteString(s.Muted.Render(fmt.Sprintf("  ... %d more", len(st.Pending)-headLimit)) + "\n")
				break
			}
			marker := "  "
			if i == 0 {
				marker = s.Running.Render("➜ ")
			}
			fmt.Fprintf(&b, "  %s%s\n", marker, e)
		}
	}
	fmt.Fprintf(&b, "completed: %s (%d)", st.CompletedFile, len(st.Completed))

	fmt.Fprintln(w, s.Box.Render(b.String()))

	if len(st.Runs) > 0 {
		fmt.Fprintln(w, s.Title.Render("Recent runs"))
		for _, r := range st.Runs {
			line := fmt.Sprintf("  %s  %s  %s",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"), shortID(r.ID), stateStyle(s, r.State).Render(r.State))
			if r.Error != "" {
				line += "  " + s.Muted.Render(r.Error)
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(st.Attempts) > 0 {
		fmt.Fprintln(w, s.Title.Render("Recent attempts"))
		for _, a := range st.Attempts {
			fmt.Fprintf(w, "  %s  %-12s %s %s\n",
				a.StartedAt.Local().Format("2006-01-02 15:04:05"),
				outcomeStyle(s, a.Outcome).Render(string(a.Outcome)),
				a.Entry,
				s.Muted.Render(attemptDetail(a)))
		}
	}
}

func attemptDetail(a persistence.Attempt) string {
	switch a.Outcome {
	case persistence.OutcomeFailed:
		return fmt.Sprintf("(exit code %d, %s)", a.ExitCode, formatDuration(a.Duration))
	case persistence.OutcomeCompleted:
		return "(" + formatDuration(a.Duration) + ")"
	default:
		return ""
	}
}

func stateStyle(s Styles, state string) lipgloss.Style {
	switch state {
	case "drained":
		return s.Complete
	case "halted":
		return s.Failed
	default:
		return s.Running
	}
}

func outcomeStyle(s Styles, o persistence.AttemptOutcome) lipgloss.Style {
	switch o {
	case persistence.OutcomeCompleted:
		return s.Complete
	case persistence.OutcomeSkipped:
		return s.Skipped
	default:
		return s.Failed
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
