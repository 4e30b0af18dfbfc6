package config

import (
	"fmt"
	"strings"
)

// Environment variable names for overrides.
const (
	EnvPendingFile   = "TRAINQUEUE_PENDING_FILE"
	EnvCompletedFile = "TRAINQUEUE_COMPLETED_FILE"
	EnvResourceDir   = "TRAINQUEUE_RESOURCE_DIR"
	EnvResourceExt   = "TRAINQUEUE_RESOURCE_EXT"
	EnvCommand       = "TRAINQUEUE_COMMAND"
	EnvSubcommand    = "TRAINQUEUE_SUBCOMMAND"
	EnvStrict        = "TRAINQUEUE_STRICT"
	EnvLedgerPath    = "TRAINQUEUE_LEDGER_PATH"
	EnvOTelExporter  = "TRAINQUEUE_OTEL_EXPORTER"
	EnvOTelEndpoint  = "TRAINQUEUE_OTEL_ENDPOINT"
)

// ApplyEnv overrides cfg from environment variables read through lookup
// (os.LookupEnv in production). Unset or empty variables leave the field
// alone, except TRAINQUEUE_SUBCOMMAND where an empty value omits the
// subcommand.
func ApplyEnv(cfg *RunnerConfig, lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	setString(&cfg.Queue.PendingFile, get(EnvPendingFile))
	setString(&cfg.Queue.CompletedFile, get(EnvCompletedFile))
	setString(&cfg.Job.ResourceDir, get(EnvResourceDir))
	setString(&cfg.Job.Extension, get(EnvResourceExt))
	setString(&cfg.Job.Command, get(EnvCommand))
	setString(&cfg.Ledger, get(EnvLedgerPath))
	setString(&cfg.Tracing.Exporter, get(EnvOTelExporter))
	setString(&cfg.Tracing.Endpoint, get(EnvOTelEndpoint))

	if v, ok := lookup(EnvSubcommand); ok {
		cfg.Job.Subcommand = StringPtr(strings.TrimSpace(v))
	}

	if v := get(EnvStrict); v != "" {
		b, err := ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStrict, err)
		}
		cfg.Strict = BoolPtr(b)
	}
	return nil
}

// ParseBool accepts the usual spellings of a boolean switch.
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", v)
	}
}
