package persistence

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff for ledger writes.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 50ms)
	MaxInterval         time.Duration // Maximum retry interval (default 1s)
	MaxElapsedTime      time.Duration // Maximum total retry time per write (default 5s)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     50 * time.Millisecond,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      5 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// ResilientLedger wraps a Ledger so writes are retried with backoff while
// the database is locked by another trainqueue sharing it, and so a ledger
// that keeps failing is switched off by a circuit breaker instead of slowing
// down every job. Reads pass straight through.
type ResilientLedger struct {
	inner   Ledger
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
}

// NewResilientLedger wraps inner. The breaker opens after 3 consecutive
// failed writes and stays open for cooldown.
func NewResilientLedger(inner Ledger, retry RetryConfig, cooldown time.Duration) *ResilientLedger {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: 1,
		Interval:    0, // Don't clear counts automatically
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation says nothing about the database
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	return &ResilientLedger{inner: inner, breaker: cb, retry: retry}
}

// State reports the breaker state.
func (l *ResilientLedger) State() gobreaker.State {
	return l.breaker.State()
}

func (l *ResilientLedger) StartRun(ctx context.Context, runID, pendingFile string) error {
	return l.write(ctx, func() error { return l.inner.StartRun(ctx, runID, pendingFile) })
}

func (l *ResilientLedger) RecordAttempt(ctx context.Context, a Attempt) error {
	return l.write(ctx, func() error { return l.inner.RecordAttempt(ctx, a) })
}

func (l *ResilientLedger) FinishRun(ctx context.Context, runID, state string, runErr error) error {
	return l.write(ctx, func() error { return l.inner.FinishRun(ctx, runID, state, runErr) })
}

func (l *ResilientLedger) ListAttempts(ctx context.Context, limit int) ([]Attempt, error) {
	return l.inner.ListAttempts(ctx, limit)
}

func (l *ResilientLedger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return l.inner.ListRuns(ctx, limit)
}

func (l *ResilientLedger) Close() error {
	return l.inner.Close()
}

// write runs fn through the breaker, retrying with exponential backoff.
func (l *ResilientLedger) write(ctx context.Context, fn func() error) error {
	operation := func() error {
		// Check context first - fail fast if cancelled
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		_, err := l.breaker.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.retry.InitialInterval
	policy.MaxInterval = l.retry.MaxInterval
	policy.MaxElapsedTime = l.retry.MaxElapsedTime
	policy.Multiplier = l.retry.Multiplier
	policy.RandomizationFactor = l.retry.RandomizationFactor

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
