package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/aristath/trainqueue/internal/config"
)

// cliFlags holds the flags shared by run and status. Only flags the user
// actually set override the loaded configuration.
type cliFlags struct {
	configPath  string
	pending     string
	completed   string
	resourceDir string
	ext         string
	command     string
	subcommand  string
	ledger      string
	strict      bool
}

func bindFlags(fs *flag.FlagSet) *cliFlags {
	f := &cliFlags{}
	fs.StringVar(&f.configPath, "config", "", "config file to use instead of ~/.trainqueue and .trainqueue")
	fs.StringVar(&f.pending, "pending", "", "pending queue file, one experiment per line")
	fs.StringVar(&f.completed, "completed", "", "completed log file")
	fs.StringVar(&f.resourceDir, "resource-dir", "", "directory holding one config file per experiment")
	fs.StringVar(&f.ext, "ext", "", "experiment config file extension")
	fs.StringVar(&f.command, "command", "", "training command")
	fs.StringVar(&f.subcommand, "subcommand", "", "training subcommand (empty string to omit)")
	fs.StringVar(&f.ledger, "ledger", "", `run history database ("none" disables)`)
	fs.BoolVar(&f.strict, "strict", true, "halt when an experiment config is missing (false skips it)")
	return f
}

// load builds the effective config: defaults, config files, environment,
// then flags.
func (f *cliFlags) load(fs *flag.FlagSet) (*config.RunnerConfig, error) {
	var (
		cfg *config.RunnerConfig
		err error
	)
	if f.configPath != "" {
		if _, statErr := os.Stat(f.configPath); statErr != nil {
			return nil, fmt.Errorf("config file: %w", statErr)
		}
		cfg, err = config.Load("", f.configPath)
		if err == nil {
			err = config.ApplyEnv(cfg, os.LookupEnv)
		}
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "pending":
			cfg.Queue.PendingFile = f.pending
		case "completed":
			cfg.Queue.CompletedFile = f.completed
		case "resource-dir":
			cfg.Job.ResourceDir = f.resourceDir
		case "ext":
			cfg.Job.Extension = f.ext
		case "command":
			cfg.Job.Command = f.command
		case "subcommand":
			cfg.Job.Subcommand = config.StringPtr(f.subcommand)
		case "ledger":
			cfg.Ledger = f.ledger
		case "strict":
			cfg.Strict = config.BoolPtr(f.strict)
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// parseExit maps a flag parse error to an exit code; -h is not a failure.
func parseExit(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return 1
}
