package config

// QueueConfig locates the durable queue files.
type QueueConfig struct {
	PendingFile   string `json:"pending_file,omitempty" yaml:"pending_file,omitempty"`     // One experiment name per line
	CompletedFile string `json:"completed_file,omitempty" yaml:"completed_file,omitempty"` // Append-only audit log
}

// JobConfig describes how an experiment name becomes a training command.
type JobConfig struct {
	Command     string   `json:"command,omitempty" yaml:"command,omitempty"`           // CLI binary (e.g., "llamafactory-cli")
	Args        []string `json:"args,omitempty" yaml:"args,omitempty"`                 // Extra args placed before the subcommand
	Subcommand  *string  `json:"subcommand,omitempty" yaml:"subcommand,omitempty"`     // e.g., "train"; "" omits it
	ResourceDir string   `json:"resource_dir,omitempty" yaml:"resource_dir,omitempty"` // Directory of per-experiment configs
	Extension   string   `json:"extension,omitempty" yaml:"extension,omitempty"`       // Config file extension, e.g. "yaml"
	WorkDir     string   `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`         // Working directory for the job
	Env         []string `json:"env,omitempty" yaml:"env,omitempty"`                   // Extra KEY=VALUE pairs for the job
}

// TracingConfig selects an OpenTelemetry span exporter.
type TracingConfig struct {
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"` // "none", "stdout", "otlphttp", "otlpgrpc"
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure *bool  `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// RunnerConfig is the top-level configuration. It is built once at startup
// and handed to the sequencer; nothing reads it globally.
type RunnerConfig struct {
	Queue   QueueConfig   `json:"queue" yaml:"queue"`
	Job     JobConfig     `json:"job" yaml:"job"`
	Strict  *bool         `json:"strict,omitempty" yaml:"strict,omitempty"` // Missing config halts (true) or is skipped (false)
	Ledger  string        `json:"ledger,omitempty" yaml:"ledger,omitempty"` // SQLite run history; "" disables
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// IsStrict reports the effective strict policy (default true).
func (c *RunnerConfig) IsStrict() bool {
	return c.Strict == nil || *c.Strict
}

// JobSubcommand reports the effective subcommand; empty means none.
func (c *RunnerConfig) JobSubcommand() string {
	if c.Job.Subcommand == nil {
		return ""
	}
	return *c.Job.Subcommand
}

// TracingInsecure reports whether OTLP should use plain HTTP (default true).
func (c *RunnerConfig) TracingInsecure() bool {
	return c.Tracing.Insecure == nil || *c.Tracing.Insecure
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
