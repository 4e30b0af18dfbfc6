package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aristath/trainqueue/internal/backend"
	"github.com/aristath/trainqueue/internal/events"
	"github.com/aristath/trainqueue/internal/observability"
	"github.com/aristath/trainqueue/internal/persistence"
	"github.com/aristath/trainqueue/internal/queue"
)

// State is a sequencer state. Halted and Drained are terminal.
type State string

const (
	StateLoading   State = "loading"
	StateIterating State = "iterating"
	StateRunning   State = "running"
	StateHalted    State = "halted"
	StateDrained   State = "drained"
)

// Policy decides what happens when an entry's config file is missing.
type Policy int

const (
	PolicyStrict  Policy = iota // Halt the run
	PolicyLenient               // Log a warning and skip the entry
)

func (p Policy) String() string {
	if p == PolicyLenient {
		return "lenient"
	}
	return "strict"
}

// JobExecutor resolves entries to config files and runs one job per file.
// *backend.Executor is the production implementation.
type JobExecutor interface {
	ResolveResource(entry string) string
	Argv(resource string) []string
	Run(ctx context.Context, resource string) (backend.Outcome, error)
}

// ResourceChecker reports whether a config file exists.
type ResourceChecker func(path string) (bool, error)

// SequencerConfig wires a Sequencer. Store and Executor are required.
type SequencerConfig struct {
	Store          queue.Store
	Executor       JobExecutor
	Policy         Policy
	ResourceExists ResourceChecker // Default: regular file check via os.Stat
	Ledger         persistence.Ledger
	Bus            *events.EventBus
	Tracing        *observability.Tracing
	PendingLabel   string // Recorded in the ledger to identify the queue
}

// Result describes a finished run.
type Result struct {
	RunID     string
	State     State
	Total     int           // Entries loaded from the pending file
	Completed []queue.Entry // Jobs that succeeded, in order
	Skipped   []queue.Entry // Entries skipped for missing config (lenient only)
	Duration  time.Duration
}

// Sequencer runs pending entries one at a time and advances the durable
// queue only after each job succeeds.
type Sequencer struct {
	cfg SequencerConfig
}

// NewSequencer creates a Sequencer.
func NewSequencer(cfg SequencerConfig) *Sequencer {
	if cfg.ResourceExists == nil {
		cfg.ResourceExists = FileExists
	}
	if cfg.Tracing == nil {
		cfg.Tracing = observability.Noop()
	}
	return &Sequencer{cfg: cfg}
}

// FileExists reports whether path is an existing regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Run drains the pending queue. It returns a nil error only when every entry
// was completed or skipped (StateDrained). Any error means StateHalted; the
// process should exit non-zero. Run never exits the process itself.
func (s *Sequencer) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	res := Result{
		RunID: uuid.NewString(),
		State: StateLoading,
	}

	ctx, span := s.cfg.Tracing.StartSpan(ctx, "trainqueue.run",
		attribute.String("trainqueue.run_id", res.RunID),
		attribute.String("trainqueue.policy", s.cfg.Policy.String()),
	)
	defer span.End()

	entries, err := s.cfg.Store.LoadPending(ctx)
	if err != nil {
		res.State = StateHalted
		res.Duration = time.Since(started)
		span.SetStatus(codes.Error, err.Error())
		return res, fmt.Errorf("loading pending queue: %w", err)
	}
	res.Total = len(entries)
	span.SetAttributes(attribute.Int("trainqueue.total", res.Total))

	s.ledgerStartRun(ctx, res.RunID)
	s.cfg.Bus.Publish(events.TopicRun, events.RunStartedEvent{
		RunID:     res.RunID,
		Total:     res.Total,
		Timestamp: time.Now(),
	})

	res.State = StateIterating
	runErr := s.iterate(ctx, &res, entries)
	if runErr != nil {
		res.State = StateHalted
		span.SetStatus(codes.Error, runErr.Error())
	} else {
		res.State = StateDrained
	}
	res.Duration = time.Since(started)

	s.ledgerFinishRun(ctx, res.RunID, res.State, runErr)
	s.cfg.Bus.Publish(events.TopicRun, events.RunFinishedEvent{
		RunID:     res.RunID,
		State:     string(res.State),
		Completed: len(res.Completed),
		Skipped:   len(res.Skipped),
		Total:     res.Total,
		Err:       runErr,
		Duration:  res.Duration,
		Timestamp: time.Now(),
	})

	return res, runErr
}

// iterate walks entries in loaded order. The order never changes even though
// the persisted file shrinks underneath it.
func (s *Sequencer) iterate(ctx context.Context, res *Result, entries []queue.Entry) error {
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted before %q: %w", entry, err)
		}

		resource := s.cfg.Executor.ResolveResource(string(entry))
		exists, err := s.cfg.ResourceExists(resource)
		if err != nil {
			return fmt.Errorf("checking config for %q: %w", entry, err)
		}

		if !exists {
			missing := &ResourceMissingError{Entry: string(entry), Path: resource}
			if s.cfg.Policy == PolicyStrict {
				return missing
			}

			// Dropped in memory only; the pending file keeps the entry until a
			// later success rewrites past it
			log.Printf("WARNING: %v, skipping", missing)
			res.Skipped = append(res.Skipped, entry)
			s.ledgerRecord(ctx, persistence.Attempt{
				RunID:     res.RunID,
				Entry:     string(entry),
				Resource:  resource,
				Outcome:   persistence.OutcomeSkipped,
				StartedAt: time.Now(),
			})
			s.cfg.Bus.Publish(events.TopicJob, events.JobSkippedEvent{
				Name:      string(entry),
				Resource:  resource,
				Timestamp: time.Now(),
			})
			continue
		}

		res.State = StateRunning
		if err := s.runEntry(ctx, res.RunID, i, len(entries), entry, resource, entries[i+1:]); err != nil {
			return err
		}
		res.Completed = append(res.Completed, entry)
		res.State = StateIterating
	}
	return nil
}

// runEntry runs one job and, on success, appends it to the completed log and
// rewrites the pending file to remaining.
func (s *Sequencer) runEntry(ctx context.Context, runID string, idx, total int, entry queue.Entry, resource string, remaining []queue.Entry) error {
	name := string(entry)

	ctx, span := s.cfg.Tracing.StartSpan(ctx, "trainqueue.job",
		attribute.String("trainqueue.entry", name),
		attribute.String("trainqueue.resource", resource),
		attribute.Int("trainqueue.index", idx+1),
	)
	defer span.End()

	s.cfg.Bus.Publish(events.TopicJob, events.JobStartedEvent{
		Name:      name,
		Index:     idx + 1,
		Total:     total,
		Resource:  resource,
		Argv:      s.cfg.Executor.Argv(resource),
		Timestamp: time.Now(),
	})

	started := time.Now()
	outcome, err := s.cfg.Executor.Run(ctx, resource)
	duration := time.Since(started)

	attempt := persistence.Attempt{
		RunID:     runID,
		Entry:     name,
		Resource:  resource,
		ExitCode:  outcome.ExitCode,
		StartedAt: started,
		Duration:  duration,
	}

	if err != nil {
		launchErr := &JobLaunchError{Entry: name, Err: err}
		attempt.Outcome = persistence.OutcomeLaunchError
		s.jobFailed(ctx, span, attempt, launchErr)
		return launchErr
	}

	span.SetAttributes(attribute.Int("trainqueue.exit_code", outcome.ExitCode))
	if !outcome.Success {
		failErr := &JobFailedError{
			Entry:       name,
			ExitCode:    outcome.ExitCode,
			Interrupted: ctx.Err() != nil,
		}
		attempt.Outcome = persistence.OutcomeFailed
		s.jobFailed(ctx, span, attempt, failErr)
		return failErr
	}

	// The job already finished; record it even if a shutdown is under way
	persistCtx := context.WithoutCancel(ctx)
	if err := s.cfg.Store.AppendCompleted(persistCtx, entry); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("recording %q as completed: %w", name, err)
	}
	if err := s.cfg.Store.RewritePending(persistCtx, remaining); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("advancing pending queue past %q: %w", name, err)
	}

	attempt.Outcome = persistence.OutcomeCompleted
	s.ledgerRecord(ctx, attempt)
	s.cfg.Bus.Publish(events.TopicJob, events.JobCompletedEvent{
		Name:      name,
		Duration:  duration,
		Timestamp: time.Now(),
	})
	return nil
}

func (s *Sequencer) jobFailed(ctx context.Context, span trace.Span, attempt persistence.Attempt, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.ledgerRecord(ctx, attempt)
	s.cfg.Bus.Publish(events.TopicJob, events.JobFailedEvent{
		Name:      attempt.Entry,
		ExitCode:  attempt.ExitCode,
		Err:       err,
		Duration:  attempt.Duration,
		Timestamp: time.Now(),
	})
}

// Ledger writes are best-effort: the pending and completed files are the
// source of truth, so a ledger failure is only a warning.

func (s *Sequencer) ledgerStartRun(ctx context.Context, runID string) {
	if s.cfg.Ledger == nil {
		return
	}
	if err := s.cfg.Ledger.StartRun(context.WithoutCancel(ctx), runID, s.cfg.PendingLabel); err != nil {
		log.Printf("WARNING: ledger: %v", err)
	}
}

func (s *Sequencer) ledgerRecord(ctx context.Context, a persistence.Attempt) {
	if s.cfg.Ledger == nil {
		return
	}
	if err := s.cfg.Ledger.RecordAttempt(context.WithoutCancel(ctx), a); err != nil {
		log.Printf("WARNING: ledger: %v", err)
	}
}

func (s *Sequencer) ledgerFinishRun(ctx context.Context, runID string, state State, runErr error) {
	if s.cfg.Ledger == nil {
		return
	}
	if err := s.cfg.Ledger.FinishRun(context.WithoutCancel(ctx), runID, string(state), runErr); err != nil {
		log.Printf("WARNING: ledger: %v", err)
	}
}
