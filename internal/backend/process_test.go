package backend

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

// TestProcessRunner_ExitCodes verifies exit statuses are reported, not turned into errors.
func TestProcessRunner_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		wantCode int
	}{
		{name: "Success", script: "exit 0", wantCode: 0},
		{name: "Failure", script: "exit 3", wantCode: 3},
		{name: "Killed by signal", script: "kill -9 $$", wantCode: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewProcessRunner(nil, WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
			status, err := r.Run(context.Background(), "sh", []string{"-c", tt.script})
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if status.Code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", status.Code, tt.wantCode)
			}
			if status.Success() != (tt.wantCode == 0) {
				t.Errorf("Success() = %v for code %d", status.Success(), status.Code)
			}
		})
	}
}

// TestProcessRunner_Passthrough verifies child output reaches the configured streams unmodified.
func TestProcessRunner_Passthrough(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := NewProcessRunner(nil, WithOutput(&stdout, &stderr))

	_, err := r.Run(context.Background(), "sh", []string{"-c", "printf 'out line\\n'; printf 'err line\\n' >&2"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if stdout.String() != "out line\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	if stderr.String() != "err line\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestProcessRunner_EnvAndWorkDir(t *testing.T) {
	var stdout bytes.Buffer
	dir := t.TempDir()
	r := NewProcessRunner(nil,
		WithOutput(&stdout, &bytes.Buffer{}),
		WithWorkDir(dir),
		WithEnv("TRAINQUEUE_TEST_VAR=hello"),
	)

	if _, err := r.Run(context.Background(), "sh", []string{"-c", "echo $TRAINQUEUE_TEST_VAR; pwd"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 || lines[0] != "hello" {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
	if !strings.HasSuffix(lines[1], strings.TrimPrefix(dir, "/private")) {
		t.Errorf("pwd = %q, want %q", lines[1], dir)
	}
}

// TestProcessRunner_LaunchFailure verifies a missing binary is an error, not an exit status.
func TestProcessRunner_LaunchFailure(t *testing.T) {
	r := NewProcessRunner(nil)
	_, err := r.Run(context.Background(), "trainqueue-definitely-not-a-binary", nil)
	if err == nil {
		t.Fatal("Expected launch error for missing binary")
	}
}

func TestProcessRunner_CancelledContextDoesNotStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pm := NewProcessManager()
	r := NewProcessRunner(pm)
	if _, err := r.Run(ctx, "sh", []string{"-c", "exit 0"}); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if pm.Count() != 0 {
		t.Errorf("Expected no tracked processes, got %d", pm.Count())
	}
}

// TestProcessRunner_TracksAndKillAll verifies a running job is tracked and
// that KillAll terminates it, surfacing as a signal exit.
func TestProcessRunner_TracksAndKillAll(t *testing.T) {
	pm := NewProcessManager()
	r := NewProcessRunner(pm, WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))

	var (
		wg     sync.WaitGroup
		status ExitStatus
		runErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		status, runErr = r.Run(context.Background(), "sleep", []string{"60"})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pm.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("process was never tracked")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll() failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not terminate after KillAll()")
	}

	if runErr != nil {
		t.Fatalf("Expected exit status, got error: %v", runErr)
	}
	if status.Success() {
		t.Error("Expected killed job to be a failure")
	}
	if pm.Count() != 0 {
		t.Errorf("Expected process to be untracked after exit, got count=%d", pm.Count())
	}
}

// TestProcessRunner_CancelledDuringStartIsKilled covers a shutdown signal
// arriving after the pre-start check but before the child was tracked, when
// KillAll has nothing to kill yet.
func TestProcessRunner_CancelledDuringStartIsKilled(t *testing.T) {
	pm := NewProcessManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewProcessRunner(pm,
		WithOutput(&bytes.Buffer{}, &bytes.Buffer{}),
		WithContextEnv(func(context.Context) []string {
			// Runs after the ctx check and before Start
			cancel()
			if err := pm.KillAll(); err != nil {
				t.Errorf("KillAll() on empty manager: %v", err)
			}
			return nil
		}),
	)

	type result struct {
		status ExitStatus
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := r.Run(ctx, "sleep", []string{"60"})
		done <- result{status, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("Expected exit status, got error: %v", res.err)
		}
		if res.status.Code != -1 {
			t.Errorf("exit code = %d, want -1 (killed)", res.status.Code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("child started during shutdown was not killed")
	}
	if pm.Count() != 0 {
		t.Errorf("Expected process to be untracked after exit, got count=%d", pm.Count())
	}
}

func TestNewCommand_ProcessGroupIsolation(t *testing.T) {
	cmd := newCommand("echo", "hi")
	if cmd.SysProcAttr == nil || !cmd.SysProcAttr.Setpgid {
		t.Fatal("Expected Setpgid to be set")
	}
}

func TestKillProcessGroup_NotStarted(t *testing.T) {
	if err := killProcessGroup(exec.Command("true")); err == nil {
		t.Error("Expected error for unstarted process")
	}
}

func TestProcessManager_TrackUntrack(t *testing.T) {
	pm := NewProcessManager()

	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start subprocess: %v", err)
	}
	defer func() {
		_ = killProcessGroup(cmd)
		_ = cmd.Wait()
	}()

	pm.Track(cmd)
	if pm.Count() != 1 {
		t.Errorf("Expected 1 tracked process, got %d", pm.Count())
	}
	pm.Untrack(cmd)
	if pm.Count() != 0 {
		t.Errorf("Expected 0 tracked processes, got %d", pm.Count())
	}

	// Untracked commands without a process are ignored
	pm.Track(exec.Command("true"))
	if pm.Count() != 0 {
		t.Errorf("Expected unstarted command to be ignored, got %d", pm.Count())
	}
}

func TestProcessRunner_ContextEnv(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "run-42")

	r := NewProcessRunner(nil,
		WithEnv("TQ_STATIC=yes"),
		WithContextEnv(func(ctx context.Context) []string {
			return []string{"TQ_FROM_CTX=" + ctx.Value(key{}).(string)}
		}),
	)

	status, err := r.Run(ctx, "sh", []string{"-c", `test "$TQ_STATIC" = yes && test "$TQ_FROM_CTX" = run-42`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Success() {
		t.Errorf("child did not see both env entries, exit code %d", status.Code)
	}
}
