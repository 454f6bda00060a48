package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const patientColumns = `id, patient_id_no, name, room_number, gender, coordinator_id, doctor_id, status, memo, last_synced_at, sync_source, created_at, updated_at`

func scanPatient(row interface{ Scan(...interface{}) error }) (Patient, error) {
	var i Patient
	err := row.Scan(
		&i.ID,
		&i.PatientIDNo,
		&i.Name,
		&i.RoomNumber,
		&i.Gender,
		&i.CoordinatorID,
		&i.DoctorID,
		&i.Status,
		&i.Memo,
		&i.LastSyncedAt,
		&i.SyncSource,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listPatients = `-- name: ListPatients :many
SELECT ` + patientColumns + `
FROM patients
ORDER BY created_at
`

func (q *Queries) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := q.db.Query(ctx, listPatients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Patient
	for rows.Next() {
		i, err := scanPatient(rows)
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

const getPatientByExternalID = `-- name: GetPatientByExternalID :one
SELECT ` + patientColumns + `
FROM patients
WHERE patient_id_no = $1
`

func (q *Queries) GetPatientByExternalID(ctx context.Context, patientIDNo pgtype.Text) (Patient, error) {
	return scanPatient(q.db.QueryRow(ctx, getPatientByExternalID, patientIDNo))
}

const insertPatient = `-- name: InsertPatient :one
INSERT INTO patients (
    patient_id_no, name, room_number, gender, coordinator_id, doctor_id, status, last_synced_at, sync_source
) VALUES (
    $1, $2, $3, $4, $5, $6, 'active', now(), $7
)
RETURNING id
`

type InsertPatientParams struct {
	PatientIDNo   pgtype.Text
	Name          string
	RoomNumber    pgtype.Text
	Gender        pgtype.Text
	CoordinatorID pgtype.UUID
	DoctorID      pgtype.UUID
	SyncSource    pgtype.Text
}

func (q *Queries) InsertPatient(ctx context.Context, arg InsertPatientParams) (pgtype.UUID, error) {
	row := q.db.QueryRow(ctx, insertPatient,
		arg.PatientIDNo,
		arg.Name,
		arg.RoomNumber,
		arg.Gender,
		arg.CoordinatorID,
		arg.DoctorID,
		arg.SyncSource,
	)
	var id pgtype.UUID
	err := row.Scan(&id)
	return id, err
}

// Only roster-owned columns are written; memo and clinical fields are left alone.
const updatePatientSync = `-- name: UpdatePatientSync :execrows
UPDATE patients
SET name = $2,
    room_number = $3,
    gender = $4,
    coordinator_id = $5,
    doctor_id = $6,
    status = $7,
    last_synced_at = now(),
    sync_source = $8,
    updated_at = now()
WHERE id = $1
`

type UpdatePatientSyncParams struct {
	ID            pgtype.UUID
	Name          string
	RoomNumber    pgtype.Text
	Gender        pgtype.Text
	CoordinatorID pgtype.UUID
	DoctorID      pgtype.UUID
	Status        string
	SyncSource    pgtype.Text
}

func (q *Queries) UpdatePatientSync(ctx context.Context, arg UpdatePatientSyncParams) (int64, error) {
	result, err := q.db.Exec(ctx, updatePatientSync,
		arg.ID,
		arg.Name,
		arg.RoomNumber,
		arg.Gender,
		arg.CoordinatorID,
		arg.DoctorID,
		arg.Status,
		arg.SyncSource,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
