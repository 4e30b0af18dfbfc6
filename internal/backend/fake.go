package backend

import (
	"context"
	"sync"
)

// Invocation is one call recorded by FakeRunner.
type Invocation struct {
	Command string
	Args    []string
}

// FakeRunner is a Runner that never spawns processes. It returns scripted
// exit codes keyed by the last argument (the resource path) and records
// every call in order. Dry runs use it with no script, so every job succeeds.
type FakeRunner struct {
	mu    sync.Mutex
	codes map[string]int
	errs  map[string]error
	calls []Invocation

	// OnRun, if set, is called before the result is returned.
	OnRun func(inv Invocation)
}

// NewFakeRunner creates a FakeRunner where every job succeeds.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		codes: make(map[string]int),
		errs:  make(map[string]error),
	}
}

// SetExitCode scripts the exit code for jobs whose last argument is resource.
func (f *FakeRunner) SetExitCode(resource string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[resource] = code
}

// SetLaunchError makes jobs for resource fail to launch.
func (f *FakeRunner) SetLaunchError(resource string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[resource] = err
}

// Run records the invocation and returns the scripted result.
func (f *FakeRunner) Run(ctx context.Context, command string, args []string) (ExitStatus, error) {
	inv := Invocation{Command: command, Args: append([]string(nil), args...)}

	f.mu.Lock()
	f.calls = append(f.calls, inv)
	key := ""
	if len(args) > 0 {
		key = args[len(args)-1]
	}
	code := f.codes[key]
	err := f.errs[key]
	hook := f.OnRun
	f.mu.Unlock()

	if hook != nil {
		hook(inv)
	}
	if err != nil {
		return ExitStatus{}, err
	}
	return ExitStatus{Code: code}, nil
}

// Calls returns the recorded invocations in order.
func (f *FakeRunner) Calls() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Invocation(nil), f.calls...)
}
