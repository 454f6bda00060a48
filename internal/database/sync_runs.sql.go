package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const syncRunColumns = `id, started_at, completed_at, source, triggered_by, status, total_in_source, total_processed, inserted, updated, discharged, reactivated, unchanged, skipped, error_message, details`

func scanSyncRun(row interface{ Scan(...interface{}) error }) (SyncRun, error) {
	var i SyncRun
	err := row.Scan(
		&i.ID,
		&i.StartedAt,
		&i.CompletedAt,
		&i.Source,
		&i.TriggeredBy,
		&i.Status,
		&i.TotalInSource,
		&i.TotalProcessed,
		&i.Inserted,
		&i.Updated,
		&i.Discharged,
		&i.Reactivated,
		&i.Unchanged,
		&i.Skipped,
		&i.ErrorMessage,
		&i.Details,
	)
	return i, err
}

const insertSyncRun = `-- name: InsertSyncRun :one
INSERT INTO sync_runs (id, started_at, source, triggered_by, status)
VALUES ($1, $2, $3, $4, 'running')
RETURNING ` + syncRunColumns + `
`

type InsertSyncRunParams struct {
	ID          pgtype.UUID
	StartedAt   pgtype.Timestamptz
	Source      string
	TriggeredBy string
}

func (q *Queries) InsertSyncRun(ctx context.Context, arg InsertSyncRunParams) (SyncRun, error) {
	return scanSyncRun(q.db.QueryRow(ctx, insertSyncRun, arg.ID, arg.StartedAt, arg.Source, arg.TriggeredBy))
}

// Guarded on status = 'running' so a run is finalized at most once.
const finalizeSyncRun = `-- name: FinalizeSyncRun :execrows
UPDATE sync_runs
SET status = $2,
    completed_at = $3,
    total_in_source = $4,
    total_processed = $5,
    inserted = $6,
    updated = $7,
    discharged = $8,
    reactivated = $9,
    unchanged = $10,
    skipped = $11,
    error_message = $12,
    details = $13
WHERE id = $1 AND status = 'running'
`

type FinalizeSyncRunParams struct {
	ID             pgtype.UUID
	Status         string
	CompletedAt    pgtype.Timestamptz
	TotalInSource  int32
	TotalProcessed int32
	Inserted       int32
	Updated        int32
	Discharged     int32
	Reactivated    int32
	Unchanged      int32
	Skipped        int32
	ErrorMessage   pgtype.Text
	Details        []byte
}

func (q *Queries) FinalizeSyncRun(ctx context.Context, arg FinalizeSyncRunParams) (int64, error) {
	result, err := q.db.Exec(ctx, finalizeSyncRun,
		arg.ID,
		arg.Status,
		arg.CompletedAt,
		arg.TotalInSource,
		arg.TotalProcessed,
		arg.Inserted,
		arg.Updated,
		arg.Discharged,
		arg.Reactivated,
		arg.Unchanged,
		arg.Skipped,
		arg.ErrorMessage,
		arg.Details,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listSyncRuns = `-- name: ListSyncRuns :many
SELECT ` + syncRunColumns + `
FROM sync_runs
ORDER BY started_at DESC
LIMIT $1 OFFSET $2
`

type ListSyncRunsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListSyncRuns(ctx context.Context, arg ListSyncRunsParams) ([]SyncRun, error) {
	rows, err := q.db.Query(ctx, listSyncRuns, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SyncRun
	for rows.Next() {
		i, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countSyncRuns = `-- name: CountSyncRuns :one
SELECT count(*) FROM sync_runs
`

func (q *Queries) CountSyncRuns(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countSyncRuns)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getSyncRun = `-- name: GetSyncRun :one
SELECT ` + syncRunColumns + `
FROM sync_runs
WHERE id = $1
`

func (q *Queries) GetSyncRun(ctx context.Context, id pgtype.UUID) (SyncRun, error) {
	return scanSyncRun(q.db.QueryRow(ctx, getSyncRun, id))
}
