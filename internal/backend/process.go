package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// ExitStatus is the termination status of a child process.
// Code is -1 when the process was killed by a signal.
type ExitStatus struct {
	Code int
}

// Success reports whether the process exited with status zero.
func (s ExitStatus) Success() bool { return s.Code == 0 }

// Runner launches one external command and blocks until it terminates.
// The error return is reserved for failures to launch or wait; a non-zero
// exit is reported through ExitStatus, not as an error.
type Runner interface {
	Run(ctx context.Context, command string, args []string) (ExitStatus, error)
}

// ProcessRunner runs commands as real child processes whose stdout and stderr
// are wired straight to the runner's own streams.
type ProcessRunner struct {
	procMgr *ProcessManager
	stdout  io.Writer
	stderr  io.Writer
	dir     string
	env     []string
	ctxEnv  func(context.Context) []string
}

// ProcessRunnerOption configures a ProcessRunner.
type ProcessRunnerOption func(*ProcessRunner)

// WithOutput overrides where the child's stdout and stderr go (default os.Stdout/os.Stderr).
func WithOutput(stdout, stderr io.Writer) ProcessRunnerOption {
	return func(r *ProcessRunner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithWorkDir sets the child's working directory.
func WithWorkDir(dir string) ProcessRunnerOption {
	return func(r *ProcessRunner) { r.dir = dir }
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) ProcessRunnerOption {
	return func(r *ProcessRunner) { r.env = append(r.env, env...) }
}

// WithContextEnv adds per-job environment entries derived from the job's
// context, such as trace propagation headers.
func WithContextEnv(fn func(context.Context) []string) ProcessRunnerOption {
	return func(r *ProcessRunner) { r.ctxEnv = fn }
}

// NewProcessRunner creates a ProcessRunner. pm may be nil, in which case the
// child is not tracked for shutdown.
func NewProcessRunner(pm *ProcessManager, opts ...ProcessRunnerOption) *ProcessRunner {
	r := &ProcessRunner{
		procMgr: pm,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts command, tracks it, and waits for it to exit.
// There is no timeout: a child that never exits blocks Run forever.
// Cancelling ctx while the child runs does not kill it; shutdown goes
// through ProcessManager.KillAll. A child that starts after ctx was
// cancelled is killed at once, since KillAll may already have run.
func (r *ProcessRunner) Run(ctx context.Context, command string, args []string) (ExitStatus, error) {
	// Check context before starting
	if err := ctx.Err(); err != nil {
		return ExitStatus{}, fmt.Errorf("context cancelled before start: %w", err)
	}

	cmd := newCommand(command, args...)

	// Child output goes straight to our streams, unbuffered
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	cmd.Dir = r.dir

	// Inherited environment, then configured pairs, then per-job pairs
	env := r.env
	if r.ctxEnv != nil {
		env = append(append([]string(nil), r.env...), r.ctxEnv(ctx)...)
	}
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	if err := cmd.Start(); err != nil {
		return ExitStatus{}, fmt.Errorf("failed to start command: %w", err)
	}

	// Track process for cleanup on shutdown
	if r.procMgr != nil {
		r.procMgr.Track(cmd)
		defer r.procMgr.Untrack(cmd)
	}

	// A signal that landed between Start and Track found nothing to kill
	if ctx.Err() != nil {
		if err := killProcessGroup(cmd); err != nil {
			log.Printf("WARNING: killing job started during shutdown: %v", err)
		}
	}

	waitErr := cmd.Wait()
	if waitErr == nil {
		return ExitStatus{Code: 0}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		// ExitCode is -1 for signal termination
		return ExitStatus{Code: exitErr.ExitCode()}, nil
	}
	return ExitStatus{}, fmt.Errorf("waiting for command: %w", waitErr)
}

// newCommand creates an exec.Cmd with process group isolation.
// The Setpgid: true flag puts the child in its own process group, so a
// terminal Ctrl+C reaches only the runner and killProcessGroup can take down
// the whole subprocess tree.
func newCommand(name string, args ...string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd
}

// killProcessGroup kills the entire process group associated with the command.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}

	// Negative PID addresses the whole group
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill process group: %w", err)
	}

	return nil
}

// ProcessManager tracks running subprocesses so they can all be terminated on shutdown.
//
// Usage pattern (typically in main):
//
//	pm := NewProcessManager()
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	go func() {
//		<-ctx.Done()
//		pm.KillAll()
//	}()
type ProcessManager struct {
	mu    sync.Mutex
	procs map[int]*exec.Cmd
}

// NewProcessManager creates a new ProcessManager.
func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		procs: make(map[int]*exec.Cmd),
	}
}

// Track registers a subprocess for tracking.
// Should be called after cmd.Start() when cmd.Process is available.
func (pm *ProcessManager) Track(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.procs[cmd.Process.Pid] = cmd
}

// Untrack removes a subprocess from tracking.
// Should be called after cmd.Wait() completes.
func (pm *ProcessManager) Untrack(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.procs, cmd.Process.Pid)
}

// KillAll terminates all tracked subprocesses.
func (pm *ProcessManager) KillAll() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	// Collect errors instead of stopping at the first one
	var errs []error
	for pid, cmd := range pm.procs {
		if err := killProcessGroup(cmd); err != nil {
			errs = append(errs, fmt.Errorf("failed to kill process %d: %w", pid, err))
		}
	}

	return errors.Join(errs...)
}

// Count returns the number of currently tracked processes.
func (pm *ProcessManager) Count() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.procs)
}
