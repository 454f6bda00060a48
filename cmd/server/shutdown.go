package main

import (
	"context"
	"log/slog"
)

// runDrainer is the part of core.RunLimiter shutdown needs.
type runDrainer interface {
	ActiveCount() int
	WaitForDrain(ctx context.Context) error
}

// gracefulStop lets an in-flight run finish and finalize its audit record
// before the scheduler context is cancelled and the HTTP server stops. A run
// still going when ctx expires is cancelled and finalized as failed.
func gracefulStop(ctx context.Context, runs runDrainer, cancelJobs context.CancelFunc, stopServer func(context.Context) error) error {
	if runs.ActiveCount() > 0 {
		slog.Info("waiting for sync run to complete")
		if err := runs.WaitForDrain(ctx); err != nil {
			slog.Warn("sync run did not complete in time", "error", err)
		}
	}
	cancelJobs()
	return stopServer(ctx)
}
