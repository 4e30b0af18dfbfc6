package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/aristath/trainqueue/internal/config"
	"github.com/aristath/trainqueue/internal/persistence"
	"github.com/aristath/trainqueue/internal/queue"
	"github.com/aristath/trainqueue/internal/report"
)

func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := bindFlags(fs)
	limit := fs.Int("limit", 10, "number of recent runs and attempts to show")
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}

	logger := log.New(stderr, "", log.LstdFlags)

	cfg, err := opts.load(fs)
	if err != nil {
		logger.Printf("ERROR: %v", err)
		return 1
	}

	st, err := collectStatus(context.Background(), cfg, *limit)
	if err != nil {
		logger.Printf("ERROR: %v", err)
		return 1
	}
	report.RenderStatus(stdout, st)
	return 0
}

// collectStatus reads the queue files and, when a ledger exists, recent
// history. It never creates or modifies anything.
func collectStatus(ctx context.Context, cfg *config.RunnerConfig, limit int) (report.Status, error) {
	files := queue.NewFileStore(cfg.Queue.PendingFile, cfg.Queue.CompletedFile)
	st := report.Status{
		PendingFile:   files.PendingPath(),
		CompletedFile: files.CompletedPath(),
	}

	pending, err := files.LoadPending(ctx)
	switch {
	case errors.Is(err, queue.ErrQueueMissing):
		st.PendingMissing = true
	case errors.Is(err, queue.ErrQueueEmpty):
	case err != nil:
		return st, err
	default:
		st.Pending = pending
	}

	completed, err := files.ReadCompleted()
	if err != nil {
		return st, err
	}
	st.Completed = completed

	if cfg.Ledger == "" {
		return st, nil
	}
	if _, err := os.Stat(cfg.Ledger); err != nil {
		// No run has recorded history yet
		return st, nil
	}

	ledger, err := persistence.NewSQLiteStore(ctx, cfg.Ledger)
	if err != nil {
		log.Printf("WARNING: ledger unavailable: %v", err)
		return st, nil
	}
	defer ledger.Close()

	if st.Runs, err = ledger.ListRuns(ctx, limit); err != nil {
		log.Printf("WARNING: reading runs: %v", err)
	}
	if st.Attempts, err = ledger.ListAttempts(ctx, limit); err != nil {
		log.Printf("WARNING: reading attempts: %v", err)
	}
	return st, nil
}

func runConfig(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "init" {
		fmt.Fprintln(stderr, "usage: trainqueue config init [-force] [path]")
		return 1
	}

	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args[1:]); err != nil {
		return parseExit(err)
	}

	logger := log.New(stderr, "", log.LstdFlags)

	path := filepath.Join(".trainqueue", "config.yaml")
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	if _, err := os.Stat(path); err == nil && !*force {
		logger.Printf("ERROR: %s already exists (use -force to overwrite)", path)
		return 1
	}

	if err := config.Save(config.DefaultConfig(), path); err != nil {
		logger.Printf("ERROR: %v", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return 0
}
