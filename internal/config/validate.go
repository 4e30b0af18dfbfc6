package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that cfg can drive a run. It normalizes the ledger path:
// "none" and "off" disable the ledger.
func (c *RunnerConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Queue.PendingFile) == "" {
		errs = append(errs, errors.New("queue.pending_file is required"))
	}
	if strings.TrimSpace(c.Queue.CompletedFile) == "" {
		errs = append(errs, errors.New("queue.completed_file is required"))
	}
	if strings.TrimSpace(c.Job.Command) == "" {
		errs = append(errs, errors.New("job.command is required"))
	}
	for _, kv := range c.Job.Env {
		if !strings.Contains(kv, "=") {
			errs = append(errs, fmt.Errorf("job.env entry %q is not KEY=VALUE", kv))
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Ledger)) {
	case "none", "off":
		c.Ledger = ""
	}

	switch strings.ToLower(strings.TrimSpace(c.Tracing.Exporter)) {
	case "", "none", "stdout", "otlp", "otlphttp", "http", "otlpgrpc", "grpc":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not one of none, stdout, otlphttp, otlpgrpc", c.Tracing.Exporter))
	}

	return errors.Join(errs...)
}
