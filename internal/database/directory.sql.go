package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

func collectRoomMappings(ctx context.Context, q *Queries, sql string, args ...interface{}) ([]RoomCoordinatorMapping, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RoomCoordinatorMapping
	for rows.Next() {
		var i RoomCoordinatorMapping
		if err := rows.Scan(
			&i.RoomPrefix,
			&i.CoordinatorID,
			&i.IsActive,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listActiveRoomMappings = `-- name: ListActiveRoomMappings :many
SELECT room_prefix, coordinator_id, is_active, created_at, updated_at
FROM room_coordinator_mapping
WHERE is_active
ORDER BY room_prefix
`

func (q *Queries) ListActiveRoomMappings(ctx context.Context) ([]RoomCoordinatorMapping, error) {
	return collectRoomMappings(ctx, q, listActiveRoomMappings)
}

const listRoomMappings = `-- name: ListRoomMappings :many
SELECT room_prefix, coordinator_id, is_active, created_at, updated_at
FROM room_coordinator_mapping
ORDER BY room_prefix
`

func (q *Queries) ListRoomMappings(ctx context.Context) ([]RoomCoordinatorMapping, error) {
	return collectRoomMappings(ctx, q, listRoomMappings)
}

const getRoomMapping = `-- name: GetRoomMapping :one
SELECT room_prefix, coordinator_id, is_active, created_at, updated_at
FROM room_coordinator_mapping
WHERE room_prefix = $1
`

func (q *Queries) GetRoomMapping(ctx context.Context, roomPrefix string) (RoomCoordinatorMapping, error) {
	row := q.db.QueryRow(ctx, getRoomMapping, roomPrefix)
	var i RoomCoordinatorMapping
	err := row.Scan(
		&i.RoomPrefix,
		&i.CoordinatorID,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createRoomMapping = `-- name: CreateRoomMapping :one
INSERT INTO room_coordinator_mapping (room_prefix, coordinator_id, is_active)
VALUES ($1, $2, $3)
RETURNING room_prefix, coordinator_id, is_active, created_at, updated_at
`

type CreateRoomMappingParams struct {
	RoomPrefix    string
	CoordinatorID pgtype.UUID
	IsActive      bool
}

func (q *Queries) CreateRoomMapping(ctx context.Context, arg CreateRoomMappingParams) (RoomCoordinatorMapping, error) {
	row := q.db.QueryRow(ctx, createRoomMapping, arg.RoomPrefix, arg.CoordinatorID, arg.IsActive)
	var i RoomCoordinatorMapping
	err := row.Scan(
		&i.RoomPrefix,
		&i.CoordinatorID,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateRoomMapping = `-- name: UpdateRoomMapping :execrows
UPDATE room_coordinator_mapping
SET coordinator_id = $2,
    is_active = $3,
    updated_at = now()
WHERE room_prefix = $1
`

type UpdateRoomMappingParams struct {
	RoomPrefix    string
	CoordinatorID pgtype.UUID
	IsActive      bool
}

func (q *Queries) UpdateRoomMapping(ctx context.Context, arg UpdateRoomMappingParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateRoomMapping, arg.RoomPrefix, arg.CoordinatorID, arg.IsActive)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteRoomMapping = `-- name: DeleteRoomMapping :execrows
DELETE FROM room_coordinator_mapping
WHERE room_prefix = $1
`

func (q *Queries) DeleteRoomMapping(ctx context.Context, roomPrefix string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteRoomMapping, roomPrefix)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listActivePhysicians = `-- name: ListActivePhysicians :many
SELECT id, name, role, is_active
FROM staff
WHERE role = 'doctor' AND is_active
ORDER BY name, id
`

func (q *Queries) ListActivePhysicians(ctx context.Context) ([]Staff, error) {
	rows, err := q.db.Query(ctx, listActivePhysicians)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Staff
	for rows.Next() {
		var i Staff
		if err := rows.Scan(&i.ID, &i.Name, &i.Role, &i.IsActive); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const staffExists = `-- name: StaffExists :one
SELECT EXISTS (SELECT 1 FROM staff WHERE id = $1 AND is_active)
`

func (q *Queries) StaffExists(ctx context.Context, id pgtype.UUID) (bool, error) {
	row := q.db.QueryRow(ctx, staffExists, id)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}
