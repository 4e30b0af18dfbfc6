package orchestrator

import (
	"fmt"
)

// ResourceMissingError means an entry's config file does not exist.
// Fatal under strict policy; logged and skipped under lenient policy.
type ResourceMissingError struct {
	Entry string
	Path  string
}

func (e *ResourceMissingError) Error() string {
	return fmt.Sprintf("missing config for %q: %s", e.Entry, e.Path)
}

// JobFailedError means the training job exited non-zero. The entry stays at
// the head of the pending file so a re-run retries it first.
type JobFailedError struct {
	Entry       string
	ExitCode    int
	Interrupted bool // the run was cancelled while the job was in flight
}

func (e *JobFailedError) Error() string {
	if e.Interrupted {
		return fmt.Sprintf("job %q interrupted (exit code %d)", e.Entry, e.ExitCode)
	}
	return fmt.Sprintf("job %q failed (exit code %d)", e.Entry, e.ExitCode)
}

// JobLaunchError means the training command could not be started at all.
type JobLaunchError struct {
	Entry string
	Err   error
}

func (e *JobLaunchError) Error() string {
	return fmt.Sprintf("job %q could not be launched: %v", e.Entry, e.Err)
}

func (e *JobLaunchError) Unwrap() error { return e.Err }
