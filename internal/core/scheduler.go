package core

// scheduler.go runs the daily roster import.
//
// Once a day at a fixed wall-clock time the scheduler fetches the roster from
// its configured location and performs a real sync tagged scheduled-import.
// Failures are logged and the loop simply waits for the next day.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// SchedulerActor is recorded as the triggering actor of scheduled runs.
const SchedulerActor = "scheduler"

// RosterFetcher opens the roster for a scheduled run. Name describes the
// location for logs.
type RosterFetcher interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
	Name() string
}

// ScheduleConfig holds the daily run time.
type ScheduleConfig struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// ParseSchedule parses "HH:MM" in the named IANA zone.
func ParseSchedule(at, zone string) (ScheduleConfig, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return ScheduleConfig{}, fmt.Errorf("schedule time %q: want HH:MM", at)
	}
	loc := time.UTC
	if zone != "" {
		loc, err = time.LoadLocation(zone)
		if err != nil {
			return ScheduleConfig{}, fmt.Errorf("schedule timezone %q: %w", zone, err)
		}
	}
	return ScheduleConfig{Hour: t.Hour(), Minute: t.Minute(), Location: loc}, nil
}

// Next returns the first scheduled instant strictly after now.
func (c ScheduleConfig) Next(now time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), c.Hour, c.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, c.Hour, c.Minute, 0, 0, loc)
	}
	return next
}

// StartSyncScheduler blocks until ctx is cancelled.
func (s *Service) StartSyncScheduler(ctx context.Context, cfg ScheduleConfig, fetcher RosterFetcher) {
	slog.Info("sync scheduler started",
		"at", fmt.Sprintf("%02d:%02d", cfg.Hour, cfg.Minute),
		"timezone", cfg.Location.String(),
		"roster", fetcher.Name(),
	)

	for {
		next := cfg.Next(s.now())
		slog.Debug("next scheduled sync", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("sync scheduler stopped")
			return
		case <-timer.C:
			s.RunScheduledSync(ctx, fetcher)
		}
	}
}

// RunScheduledSync fetches the roster and runs one real sync.
func (s *Service) RunScheduledSync(ctx context.Context, fetcher RosterFetcher) (*SyncResult, error) {
	start := time.Now()

	rc, err := fetcher.Fetch(ctx)
	if err != nil {
		err = fmt.Errorf("fetch roster from %s: %w", fetcher.Name(), err)
		slog.Error("scheduled sync failed", "error", err)
		return nil, err
	}
	defer rc.Close()

	res, err := s.RunSync(ctx, rc, SyncOptions{
		Source:      SourceScheduled,
		TriggeredBy: SchedulerActor,
	})
	if err != nil {
		slog.Error("scheduled sync failed",
			"sync_id", res.SyncID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return res, err
	}

	slog.Info("scheduled sync completed",
		"sync_id", res.SyncID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
