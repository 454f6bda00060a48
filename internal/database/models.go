package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Patient struct {
	ID            pgtype.UUID
	PatientIDNo   pgtype.Text
	Name          string
	RoomNumber    pgtype.Text
	Gender        pgtype.Text
	CoordinatorID pgtype.UUID
	DoctorID      pgtype.UUID
	Status        string
	Memo          pgtype.Text
	LastSyncedAt  pgtype.Timestamptz
	SyncSource    pgtype.Text
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

type RoomCoordinatorMapping struct {
	RoomPrefix    string
	CoordinatorID pgtype.UUID
	IsActive      bool
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

type Staff struct {
	ID       pgtype.UUID
	Name     string
	Role     string
	IsActive bool
}

type SyncRun struct {
	ID             pgtype.UUID
	StartedAt      pgtype.Timestamptz
	CompletedAt    pgtype.Timestamptz
	Source         string
	TriggeredBy    string
	Status         string
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
