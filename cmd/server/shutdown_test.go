package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/dayroster/internal/core"
)

func TestGracefulStop_DrainsBeforeCancelling(t *testing.T) {
	limiter := core.NewRunLimiter(1, time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	// The in-flight run checks its context right before it finishes.
	runSawCancel := make(chan bool, 1)
	go func() {
		time.Sleep(150 * time.Millisecond)
		runSawCancel <- jobCtx.Err() != nil
		limiter.Release()
	}()

	var stopped bool
	err := gracefulStop(context.Background(), limiter, cancelJobs, func(context.Context) error {
		stopped = true
		return nil
	})
	if err != nil {
		t.Fatalf("gracefulStop: %v", err)
	}

	if <-runSawCancel {
		t.Error("in-flight run saw a cancelled context before it finished")
	}
	if jobCtx.Err() == nil {
		t.Error("jobs should be cancelled after the drain")
	}
	if !stopped {
		t.Error("server was not stopped")
	}
}

func TestGracefulStop_DrainTimeout(t *testing.T) {
	limiter := core.NewRunLimiter(1, time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	stopErr := errors.New("stop failed")
	err := gracefulStop(ctx, limiter, cancelJobs, func(context.Context) error { return stopErr })
	if !errors.Is(err, stopErr) {
		t.Errorf("gracefulStop error = %v, want %v", err, stopErr)
	}
	if jobCtx.Err() == nil {
		t.Error("jobs must be cancelled once the drain gives up")
	}
}
