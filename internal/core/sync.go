package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/dayroster/internal/logging"
	"github.com/JonMunkholm/dayroster/internal/reconcile"
	"github.com/JonMunkholm/dayroster/internal/roster"
)

// finalizeTimeout bounds the audit and notification writes that run after
// the run context may already have been cancelled.
const finalizeTimeout = 10 * time.Second

// RunSync performs one reconciliation pass over the roster read from r.
//
// A dry run computes the same summary and change list as a real run but takes
// no lock, writes nothing and leaves SyncID empty. A real run takes the run
// lock, records a running audit entry, applies every action in plan order and
// finalizes the entry as completed or failed.
//
// The returned result is never nil. On failure it carries the error message
// and, for a real run, the counts of the actions that were actually applied.
func (s *Service) RunSync(ctx context.Context, r io.Reader, opts SyncOptions) (*SyncResult, error) {
	result := &SyncResult{
		Success:        true,
		Changes:        []reconcile.Change{},
		SkippedReasons: []reconcile.Skip{},
	}

	if err := s.validate.Struct(opts); err != nil {
		err = fmt.Errorf("invalid sync options: %w", err)
		result.Success = false
		result.ErrorMessage = err.Error()
		return result, err
	}

	log := logging.WithFields(ctx,
		"source", opts.Source,
		"dry_run", opts.DryRun,
		"triggered_by", opts.TriggeredBy,
	)
	if ip := IPAddressFromContext(ctx); ip != "" {
		log = log.With("ip", ip, "user_agent", UserAgentFromContext(ctx))
	}

	if !opts.DryRun {
		unlock, err := s.lock(ctx)
		if err != nil {
			log.Warn("sync rejected", "error", err)
			result.Success = false
			result.ErrorMessage = err.Error()
			return result, err
		}
		defer unlock()
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var run *SyncRun
	if !opts.DryRun {
		run = &SyncRun{
			ID:          s.newID(),
			StartedAt:   s.now().UTC(),
			Source:      opts.Source,
			TriggeredBy: opts.TriggeredBy,
			Status:      RunRunning,
		}
		if err := s.runs.Create(ctx, *run); err != nil {
			err = fmt.Errorf("create sync run: %w", err)
			log.Error("sync aborted", "error", err)
			result.Success = false
			result.ErrorMessage = err.Error()
			return result, err
		}
		result.SyncID = run.ID
		log = log.With("sync_id", run.ID)
	}

	start := time.Now()
	log.Info("sync started")

	plan, err := s.plan(ctx, log, r)
	if err != nil {
		return s.fail(ctx, log, run, result, err)
	}

	result.Summary = plan.Summary
	result.Changes = plan.Changes()
	result.SkippedReasons = plan.SkippedReasons()

	if opts.DryRun {
		log.Info("sync preview computed",
			summaryAttrs(result.Summary),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return result, nil
	}

	applied, err := s.apply(ctx, plan.Actions, opts.Source)
	if err != nil {
		result.Summary = appliedSummary(plan.Summary, applied)
		result.Changes = changesOf(applied)
		return s.fail(ctx, log, run, result, err)
	}

	if err := s.finalize(ctx, run, result, RunCompleted); err != nil {
		err = fmt.Errorf("finalize sync run: %w", err)
		log.Error("sync applied but not recorded", "error", err)
		result.Success = false
		result.ErrorMessage = err.Error()
		return result, err
	}

	log.Info("sync completed",
		summaryAttrs(result.Summary),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// lock takes the in-process slot first, then any shared locks.
func (s *Service) lock(ctx context.Context) (func(), error) {
	locks := append(chainLocks{s.limiter}, s.locks...)
	return locks.Lock(ctx)
}

// plan reads the roster and every reference table, then classifies.
// No registry write happens before this returns.
func (s *Service) plan(ctx context.Context, log *slog.Logger, r io.Reader) (*reconcile.Plan, error) {
	data, err := s.readRoster(r)
	if err != nil {
		return nil, err
	}

	parsed, err := roster.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	for _, rej := range parsed.Rejected {
		log.Debug("roster row rejected", "line", rej.Line, "reason", rej.Reason)
	}

	mappings, err := s.directory.RoomMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load room mappings: %w", err)
	}
	physicians, err := s.directory.Physicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("load physicians: %w", err)
	}
	patients, err := s.patients.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	snap := reconcile.NewSnapshot(mappings, physicians, patients)
	return s.engine.Plan(parsed.Records, snap), nil
}

func (s *Service) readRoster(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, ErrNoFile
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxFileSize)
	}
	if len(data) == 0 {
		return nil, roster.ErrEmptyWorkbook
	}
	return data, nil
}

// apply writes actions in order. In atomic mode a failure rolls back every
// write and nothing counts as applied.
func (s *Service) apply(ctx context.Context, actions []reconcile.Action, source Source) ([]reconcile.Action, error) {
	if !s.AtomicApply() {
		return applyActions(ctx, s.patients, actions, source)
	}

	var applied []reconcile.Action
	err := s.tx.InTx(ctx, func(ps PatientStore) error {
		var err error
		applied, err = applyActions(ctx, ps, actions, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// applyActions stops at the first failure and returns the prefix that landed.
func applyActions(ctx context.Context, ps PatientStore, actions []reconcile.Action, source Source) ([]reconcile.Action, error) {
	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			return actions[:i], fmt.Errorf("%w after %d of %d actions: %v", ErrSyncCancelled, i, len(actions), err)
		}
		if err := applyAction(ctx, ps, a, source); err != nil {
			return actions[:i], fmt.Errorf("%s %s: %w", a.Kind, a.ExternalID, err)
		}
	}
	return actions, nil
}

func applyAction(ctx context.Context, ps PatientStore, a reconcile.Action, source Source) error {
	switch a.Kind {
	case reconcile.KindInsert:
		// The snapshot may be stale; never hand an external id to a second record.
		_, err := ps.GetByExternalID(ctx, a.ExternalID)
		if err == nil {
			return ErrExternalIDTaken
		}
		if !errors.Is(err, ErrPatientNotFound) {
			return err
		}
		_, err = ps.Insert(ctx, a.Target, source)
		return err

	case reconcile.KindUpdate, reconcile.KindReactivate, reconcile.KindDischarge:
		return ps.Update(ctx, a.PatientID, a.Target, source)

	default:
		return nil
	}
}

func (s *Service) fail(ctx context.Context, log *slog.Logger, run *SyncRun, result *SyncResult, err error) (*SyncResult, error) {
	result.Success = false
	result.ErrorMessage = err.Error()
	log.Error("sync failed", "error", err, summaryAttrs(result.Summary))

	if run != nil {
		if ferr := s.finalize(ctx, run, result, RunFailed); ferr != nil {
			log.Error("finalize failed sync run", "error", ferr)
		}
	}
	return result, err
}

// finalize records the terminal state and announces it. It detaches from the
// run context so a cancelled or timed-out run is still recorded.
func (s *Service) finalize(ctx context.Context, run *SyncRun, result *SyncResult, status RunStatus) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	completed := s.now().UTC()
	run.Status = status
	run.CompletedAt = &completed
	run.Summary = result.Summary
	run.ErrorMessage = result.ErrorMessage
	run.Changes = result.Changes
	run.SkippedReasons = result.SkippedReasons

	if err := s.runs.Finalize(ctx, *run); err != nil {
		return err
	}

	if s.notifier != nil {
		ev := RunEvent{
			SyncID:       run.ID,
			Status:       status,
			Source:       run.Source,
			TriggeredBy:  run.TriggeredBy,
			Summary:      run.Summary,
			ErrorMessage: run.ErrorMessage,
			CompletedAt:  completed,
		}
		if err := s.notifier.Publish(ctx, ev); err != nil {
			logging.WithFields(ctx, "sync_id", run.ID).Warn("publish run event", "error", err)
		}
	}
	return nil
}

// appliedSummary keeps the classification-only counters from the plan and
// counts writes from what actually landed.
func appliedSummary(planned reconcile.Summary, applied []reconcile.Action) reconcile.Summary {
	sum := reconcile.Summary{
		TotalInSource:  planned.TotalInSource,
		TotalProcessed: planned.TotalProcessed,
		Unchanged:      planned.Unchanged,
		Skipped:        planned.Skipped,
	}
	for _, a := range applied {
		sum.Record(a.Kind)
	}
	return sum
}

func changesOf(actions []reconcile.Action) []reconcile.Change {
	changes := make([]reconcile.Change, 0, len(actions))
	for _, a := range actions {
		changes = append(changes, a.Change())
	}
	return changes
}

func summaryAttrs(s reconcile.Summary) slog.Attr {
	return slog.Group("summary",
		"total_in_source", s.TotalInSource,
		"total_processed", s.TotalProcessed,
		"inserted", s.Inserted,
		"updated", s.Updated,
		"discharged", s.Discharged,
		"reactivated", s.Reactivated,
		"unchanged", s.Unchanged,
		"skipped", s.Skipped,
	)
}
