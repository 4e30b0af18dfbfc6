package backend

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Outcome classifies a finished job.
type Outcome struct {
	Success  bool
	ExitCode int
}

func (o Outcome) String() string {
	if o.Success {
		return "success"
	}
	return fmt.Sprintf("failure (exit code %d)", o.ExitCode)
}

// Config describes how a queue entry maps to a training invocation.
type Config struct {
	Command     string   // Training CLI binary (e.g., "llamafactory-cli")
	Args        []string // Extra args placed before the subcommand
	Subcommand  string   // e.g., "train"; omitted when empty
	ResourceDir string   // Directory holding one config file per entry
	Extension   string   // Config file extension without the dot (e.g., "yaml")
}

// Executor turns queue entries into external training jobs.
type Executor struct {
	cfg    Config
	runner Runner
}

// NewExecutor creates an Executor that launches jobs through runner.
func NewExecutor(cfg Config, runner Runner) *Executor {
	cfg.Extension = strings.TrimPrefix(cfg.Extension, ".")
	return &Executor{cfg: cfg, runner: runner}
}

// ResolveResource returns the config file path for entry.
// Pure path join; existence is checked by the caller.
func (e *Executor) ResolveResource(entry string) string {
	name := entry
	if e.cfg.Extension != "" {
		name = entry + "." + e.cfg.Extension
	}
	return filepath.Join(e.cfg.ResourceDir, name)
}

// Argv returns the full command line used for resource.
func (e *Executor) Argv(resource string) []string {
	return append([]string{e.cfg.Command}, e.args(resource)...)
}

// Run launches the training command for resource and waits for it.
// Exit code 0 is success, anything else a failure. The returned error is
// only set when the process could not be launched at all.
func (e *Executor) Run(ctx context.Context, resource string) (Outcome, error) {
	status, err := e.runner.Run(ctx, e.cfg.Command, e.args(resource))
	if err != nil {
		return Outcome{ExitCode: -1}, fmt.Errorf("running %s: %w", e.cfg.Command, err)
	}
	return Outcome{Success: status.Success(), ExitCode: status.Code}, nil
}

func (e *Executor) args(resource string) []string {
	args := make([]string, 0, len(e.cfg.Args)+2)
	args = append(args, e.cfg.Args...)
	if e.cfg.Subcommand != "" {
		args = append(args, e.cfg.Subcommand)
	}
	return append(args, resource)
}
