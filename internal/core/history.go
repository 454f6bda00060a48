package core

import (
	"context"
	"fmt"
	"math"
)

const (
	DefaultRunPageSize = 20
	MaxRunPageSize     = 100
)

// ListRuns returns one page of the run ledger, newest first. page is 1-based;
// out-of-range values are clamped, and the offset never exceeds an int32.
func (s *Service) ListRuns(ctx context.Context, page, limit int) (*RunPage, error) {
	if limit <= 0 {
		limit = DefaultRunPageSize
	}
	if limit > MaxRunPageSize {
		limit = MaxRunPageSize
	}
	if page < 1 {
		page = 1
	}
	if maxPage := math.MaxInt32/limit + 1; page > maxPage {
		page = maxPage
	}

	runs, total, err := s.runs.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	if runs == nil {
		runs = []SyncRun{}
	}

	return &RunPage{
		Runs:       runs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// GetRun returns a single run including its change and skip lists.
func (s *Service) GetRun(ctx context.Context, id string) (*SyncRun, error) {
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get sync run %s: %w", id, err)
	}
	return &run, nil
}
