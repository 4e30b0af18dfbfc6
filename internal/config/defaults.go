package config

import (
	"path/filepath"
)

// DefaultConfig returns the default configuration: a LLaMA-Factory training
// queue under ./train.
func DefaultConfig() *RunnerConfig {
	return &RunnerConfig{
		Queue: QueueConfig{
			PendingFile:   filepath.Join("train", "wait_experiments.txt"),
			CompletedFile: filepath.Join("train", "completed_experiments.txt"),
		},
		Job: JobConfig{
			Command:     "llamafactory-cli",
			Subcommand:  StringPtr("train"),
			ResourceDir: "train",
			Extension:   "yaml",
		},
		Strict: BoolPtr(true),
		Ledger: filepath.Join(".trainqueue", "history.db"),
		Tracing: TracingConfig{
			Exporter: "none",
		},
	}
}
