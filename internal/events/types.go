package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Entry() string
}

// Topic constants
const (
	TopicJob = "job"
	TopicRun = "run"
)

// Event type constants
const (
	EventTypeRunStarted   = "run.started"
	EventTypeRunFinished  = "run.finished"
	EventTypeJobStarted   = "job.started"
	EventTypeJobCompleted = "job.completed"
	EventTypeJobFailed    = "job.failed"
	EventTypeJobSkipped   = "job.skipped"
)

// RunStartedEvent is published once the pending queue has been loaded.
type RunStartedEvent struct {
	RunID     string
	Total     int
	Timestamp time.Time
}

func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) Entry() string     { return "" }

// RunFinishedEvent is published when the run drains or halts.
type RunFinishedEvent struct {
	RunID     string
	State     string // "drained" or "halted"
	Completed int
	Skipped   int
	Total     int
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e RunFinishedEvent) EventType() string { return EventTypeRunFinished }
func (e RunFinishedEvent) Entry() string     { return "" }

// JobStartedEvent is published right before a job is launched.
type JobStartedEvent struct {
	Name      string
	Index     int // 1-based position in the loaded queue
	Total     int
	Resource  string
	Argv      []string
	Timestamp time.Time
}

func (e JobStartedEvent) EventType() string { return EventTypeJobStarted }
func (e JobStartedEvent) Entry() string     { return e.Name }

// JobCompletedEvent is published after a job succeeded and the queue advanced.
type JobCompletedEvent struct {
	Name      string
	Duration  time.Duration
	Timestamp time.Time
}

func (e JobCompletedEvent) EventType() string { return EventTypeJobCompleted }
func (e JobCompletedEvent) Entry() string     { return e.Name }

// JobFailedEvent is published when a job exits non-zero or cannot be launched.
type JobFailedEvent struct {
	Name      string
	ExitCode  int
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e JobFailedEvent) EventType() string { return EventTypeJobFailed }
func (e JobFailedEvent) Entry() string     { return e.Name }

// JobSkippedEvent is published when a missing config file is skipped under lenient policy.
type JobSkippedEvent struct {
	Name      string
	Resource  string
	Timestamp time.Time
}

func (e JobSkippedEvent) EventType() string { return EventTypeJobSkipped }
func (e JobSkippedEvent) Entry() string     { return e.Name }
