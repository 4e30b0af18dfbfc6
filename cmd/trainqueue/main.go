package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/trainqueue/internal/backend"
	"github.com/aristath/trainqueue/internal/config"
	"github.com/aristath/trainqueue/internal/events"
	"github.com/aristath/trainqueue/internal/observability"
	"github.com/aristath/trainqueue/internal/orchestrator"
	"github.com/aristath/trainqueue/internal/persistence"
	"github.com/aristath/trainqueue/internal/queue"
	"github.com/aristath/trainqueue/internal/report"
)

const serviceName = "trainqueue"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches to a subcommand and returns the process exit code:
// 0 when the command succeeded, 1 for any error.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || len(args[0]) > 0 && args[0][0] == '-' {
		return runQueue(args, stdout, stderr)
	}

	switch args[0] {
	case "run":
		return runQueue(args[1:], stdout, stderr)
	case "status":
		return runStatus(args[1:], stdout, stderr)
	case "config":
		return runConfig(args[1:], stdout, stderr)
	case "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  trainqueue [run] [flags]      train every pending experiment in order
  trainqueue status [flags]     show the queue and recent run history
  trainqueue config init [path] write a default config file

Run "trainqueue run -h" for flags.
`)
}

func runQueue(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := bindFlags(fs)
	dryRun := fs.Bool("dry-run", false, "report every job as successful without spawning it; queue files are left untouched")
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}

	logger := log.New(stderr, "", log.LstdFlags)

	cfg, err := opts.load(fs)
	if err != nil {
		logger.Printf("ERROR: %v", err)
		return 1
	}

	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, stop, cfg, *dryRun, stdout, stderr); err != nil {
		logger.Printf("ERROR: %v", err)
		return 1
	}
	return 0
}

// execute wires the sequencer to its collaborators and drains the queue.
// stop restores default signal handling once the first signal arrived.
func execute(ctx context.Context, stop context.CancelFunc, cfg *config.RunnerConfig, dryRun bool, stdout, stderr io.Writer) error {
	files := queue.NewFileStore(cfg.Queue.PendingFile, cfg.Queue.CompletedFile)
	pm := backend.NewProcessManager()

	var store queue.Store = files
	if dryRun {
		entries, err := files.LoadPending(ctx)
		if err != nil {
			return fmt.Errorf("loading pending queue: %w", err)
		}
		store = queue.NewMemoryStore(entries)
	}

	var ledger persistence.Ledger
	if cfg.Ledger != "" && !dryRun {
		sqlite, err := persistence.NewSQLiteStore(ctx, cfg.Ledger)
		if err != nil {
			log.Printf("WARNING: ledger disabled: %v", err)
		} else {
			defer sqlite.Close()
			ledger = persistence.NewResilientLedger(sqlite, persistence.DefaultRetryConfig(), 10*time.Minute)
		}
	}

	tracing, err := observability.NewTracing(ctx, serviceName, observability.TracingConfig{
		Exporter: cfg.Tracing.Exporter,
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.TracingInsecure(),
		Writer:   stderr,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARNING: flushing traces: %v", err)
		}
	}()

	var runner backend.Runner = backend.NewProcessRunner(pm,
		backend.WithOutput(stdout, stderr),
		backend.WithWorkDir(cfg.Job.WorkDir),
		backend.WithEnv(cfg.Job.Env...),
		backend.WithContextEnv(tracing.InjectEnv),
	)
	if dryRun {
		runner = backend.NewFakeRunner()
	}

	bus := events.NewEventBus()
	progress := report.NewProgress(stdout)
	progressDone := make(chan struct{})
	go progress.Consume(bus.SubscribeAll(events.DefaultBufferSize), progressDone)

	policy := orchestrator.PolicyStrict
	if !cfg.IsStrict() {
		policy = orchestrator.PolicyLenient
	}

	seq := orchestrator.NewSequencer(orchestrator.SequencerConfig{
		Store: store,
		Executor: backend.NewExecutor(backend.Config{
			Command:     cfg.Job.Command,
			Args:        cfg.Job.Args,
			Subcommand:  cfg.JobSubcommand(),
			ResourceDir: cfg.Job.ResourceDir,
			Extension:   cfg.Job.Extension,
		}, runner),
		Policy:       policy,
		Ledger:       ledger,
		Bus:          bus,
		Tracing:      tracing,
		PendingLabel: cfg.Queue.PendingFile,
	})

	runDone := make(chan struct{})
	var g errgroup.Group

	g.Go(func() error {
		defer close(runDone)
		_, err := seq.Run(ctx)
		return err
	})

	g.Go(func() error {
		select {
		case <-runDone:
		case <-ctx.Done():
			// Call stop() to restore default signal handling (double Ctrl+C = force exit)
			stop()
			log.Println("Shutdown signal received, stopping the running job...")
			if err := pm.KillAll(); err != nil {
				log.Printf("WARNING: killing job: %v", err)
			}
		}
		return nil
	})

	runErr := g.Wait()

	// Drain the reporter so the summary line is printed before the error
	bus.Close()
	<-progressDone

	if dropped := bus.Dropped(); dropped > 0 {
		log.Printf("WARNING: %d progress events dropped", dropped)
	}

	return runErr
}
