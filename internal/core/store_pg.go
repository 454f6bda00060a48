package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/dayroster/internal/database"
	"github.com/JonMunkholm/dayroster/internal/reconcile"
	"github.com/JonMunkholm/dayroster/internal/roster"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PgStore implements every store interface over one pgx pool.
type PgStore struct {
	pool *pgxpool.Pool
	pgPatients
}

// pgPatients is the registry over a pool or a transaction.
type pgPatients struct {
	q *database.Queries
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{
		pool:       pool,
		pgPatients: pgPatients{q: database.New(pool)},
	}
}

// InTx implements Transactor.
func (s *PgStore) InTx(ctx context.Context, fn func(PatientStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := fn(pgPatients{q: s.q.WithTx(tx)}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping reports whether the database answers.
func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded schema.
func (s *PgStore) Migrate(ctx context.Context) error {
	return database.Migrate(ctx, s.pool)
}

// Registry

func (s pgPatients) GetByExternalID(ctx context.Context, externalID string) (reconcile.Patient, error) {
	row, err := s.q.GetPatientByExternalID(ctx, ToPgText(externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return reconcile.Patient{}, ErrPatientNotFound
	}
	if err != nil {
		return reconcile.Patient{}, err
	}
	return patientFromRow(row), nil
}

func (s pgPatients) ListAll(ctx context.Context) ([]reconcile.Patient, error) {
	rows, err := s.q.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	patients := make([]reconcile.Patient, len(rows))
	for i, row := range rows {
		patients[i] = patientFromRow(row)
	}
	return patients, nil
}

func (s pgPatients) Insert(ctx context.Context, p reconcile.Patient, source Source) (string, error) {
	id, err := s.q.InsertPatient(ctx, database.InsertPatientParams{
		PatientIDNo:   ToPgText(p.ExternalID),
		Name:          p.Name,
		RoomNumber:    ToPgText(p.Room),
		Gender:        toPgGender(p.Gender),
		CoordinatorID: ToPgUUID(p.CoordinatorID),
		DoctorID:      ToPgUUID(p.PhysicianID),
		SyncSource:    ToPgText(string(source)),
	})
	if err != nil {
		return "", err
	}
	return PgUUIDToString(id), nil
}

func (s pgPatients) Update(ctx context.Context, id string, p reconcile.Patient, source Source) error {
	n, err := s.q.UpdatePatientSync(ctx, database.UpdatePatientSyncParams{
		ID:            ToPgUUID(id),
		Name:          p.Name,
		RoomNumber:    ToPgText(p.Room),
		Gender:        toPgGender(p.Gender),
		CoordinatorID: ToPgUUID(p.CoordinatorID),
		DoctorID:      ToPgUUID(p.PhysicianID),
		Status:        string(p.Status),
		SyncSource:    ToPgText(string(source)),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %s", ErrPatientNotFound, id)
	}
	return nil
}

func patientFromRow(row database.Patient) reconcile.Patient {
	return reconcile.Patient{
		ID:            PgUUIDToString(row.ID),
		ExternalID:    PgTextToString(row.PatientIDNo),
		Name:          row.Name,
		Room:          PgTextToString(row.RoomNumber),
		Gender:        roster.Gender(PgTextToString(row.Gender)),
		CoordinatorID: PgUUIDToString(row.CoordinatorID),
		PhysicianID:   PgUUIDToString(row.DoctorID),
		Status:        reconcile.Status(row.Status),
	}
}

// Directory

func (s *PgStore) RoomMappings(ctx context.Context) ([]reconcile.RoomMapping, error) {
	rows, err := s.q.ListActiveRoomMappings(ctx)
	if err != nil {
		return nil, err
	}
	mappings := make([]reconcile.RoomMapping, len(rows))
	for i, row := range rows {
		mappings[i] = reconcile.RoomMapping{
			Prefix:        row.RoomPrefix,
			CoordinatorID: PgUUIDToString(row.CoordinatorID),
			Active:        row.IsActive,
		}
	}
	return mappings, nil
}

func (s *PgStore) Physicians(ctx context.Context) ([]reconcile.Physician, error) {
	rows, err := s.q.ListActivePhysicians(ctx)
	if err != nil {
		return nil, err
	}
	physicians := make([]reconcile.Physician, len(rows))
	for i, row := range rows {
		physicians[i] = reconcile.Physician{ID: PgUUIDToString(row.ID), Name: row.Name}
	}
	return physicians, nil
}

// Run ledger

func (s *PgStore) Create(ctx context.Context, run SyncRun) error {
	_, err := s.q.InsertSyncRun(ctx, database.InsertSyncRunParams{
		ID:          ToPgUUID(run.ID),
		StartedAt:   toPgTimestamptz(run.StartedAt),
		Source:      string(run.Source),
		TriggeredBy: run.TriggeredBy,
	})
	return err
}

func (s *PgStore) Finalize(ctx context.Context, run SyncRun) error {
	details, err := json.Marshal(RunDetails{Changes: run.Changes, SkippedReasons: run.SkippedReasons})
	if err != nil {
		return fmt.Errorf("encode run details: %w", err)
	}

	var completed pgtype.Timestamptz
	if run.CompletedAt != nil {
		completed = toPgTimestamptz(*run.CompletedAt)
	}

	sum := run.Summary
	n, err := s.q.FinalizeSyncRun(ctx, database.FinalizeSyncRunParams{
		ID:             ToPgUUID(run.ID),
		Status:         string(run.Status),
		CompletedAt:    completed,
		TotalInSource:  int32(sum.TotalInSource),
		TotalProcessed: int32(sum.TotalProcessed),
		Inserted:       int32(sum.Inserted),
		Updated:        int32(sum.Updated),
		Discharged:     int32(sum.Discharged),
		Reactivated:    int32(sum.Reactivated),
		Unchanged:      int32(sum.Unchanged),
		Skipped:        int32(sum.Skipped),
		ErrorMessage:   ToPgText(run.ErrorMessage),
		Details:        details,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.Get(ctx, run.ID); err != nil {
			return err
		}
		return ErrRunFinalized
	}
	return nil
}

func (s *PgStore) List(ctx context.Context, limit, offset int) ([]SyncRun, int, error) {
	total, err := s.q.CountSyncRuns(ctx)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.q.ListSyncRuns(ctx, database.ListSyncRunsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, 0, err
	}

	runs := make([]SyncRun, 0, len(rows))
	for _, row := range rows {
		run, err := runFromRow(row)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, int(total), nil
}

func (s *PgStore) Get(ctx context.Context, id string) (SyncRun, error) {
	pgID := ToPgUUID(id)
	if !pgID.Valid {
		return SyncRun{}, ErrRunNotFound
	}
	row, err := s.q.GetSyncRun(ctx, pgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return SyncRun{}, ErrRunNotFound
	}
	if err != nil {
		return SyncRun{}, err
	}
	return runFromRow(row)
}

func runFromRow(row database.SyncRun) (SyncRun, error) {
	run := SyncRun{
		ID:          PgUUIDToString(row.ID),
		StartedAt:   pgTime(row.StartedAt),
		CompletedAt: pgTimePtr(row.CompletedAt),
		Source:      Source(row.Source),
		TriggeredBy: row.TriggeredBy,
		Status:      RunStatus(row.Status),
		Summary: reconcile.Summary{
			TotalInSource:  int(row.TotalInSource),
			TotalProcessed: int(row.TotalProcessed),
			Inserted:       int(row.Inserted),
			Updated:        int(row.Updated),
			Discharged:     int(row.Discharged),
			Reactivated:    int(row.Reactivated),
			Unchanged:      int(row.Unchanged),
			Skipped:        int(row.Skipped),
		},
		ErrorMessage:   PgTextToString(row.ErrorMessage),
		Changes:        []reconcile.Change{},
		SkippedReasons: []reconcile.Skip{},
	}

	if len(row.Details) > 0 {
		var details RunDetails
		if err := json.Unmarshal(row.Details, &details); err != nil {
			return SyncRun{}, fmt.Errorf("decode details of run %s: %w", run.ID, err)
		}
		if details.Changes != nil {
			run.Changes = details.Changes
		}
		if details.SkippedReasons != nil {
			run.SkippedReasons = details.SkippedReasons
		}
	}
	return run, nil
}

// Room mapping admin

func (s *PgStore) ListMappings(ctx context.Context) ([]RoomMapping, error) {
	rows, err := s.q.ListRoomMappings(ctx)
	if err != nil {
		return nil, err
	}
	mappings := make([]RoomMapping, len(rows))
	for i, row := range rows {
		mappings[i] = mappingFromRow(row)
	}
	return mappings, nil
}

func (s *PgStore) GetMapping(ctx context.Context, prefix string) (RoomMapping, error) {
	row, err := s.q.GetRoomMapping(ctx, prefix)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoomMapping{}, ErrMappingNotFound
	}
	if err != nil {
		return RoomMapping{}, err
	}
	return mappingFromRow(row), nil
}

func (s *PgStore) CreateMapping(ctx context.Context, m RoomMapping) (RoomMapping, error) {
	row, err := s.q.CreateRoomMapping(ctx, database.CreateRoomMappingParams{
		RoomPrefix:    m.RoomPrefix,
		CoordinatorID: ToPgUUID(m.CoordinatorID),
		IsActive:      m.IsActive,
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return RoomMapping{}, ErrMappingExists
	}
	if err != nil {
		return RoomMapping{}, err
	}
	return mappingFromRow(row), nil
}

func (s *PgStore) UpdateMapping(ctx context.Context, m RoomMapping) error {
	n, err := s.q.UpdateRoomMapping(ctx, database.UpdateRoomMappingParams{
		RoomPrefix:    m.RoomPrefix,
		CoordinatorID: ToPgUUID(m.CoordinatorID),
		IsActive:      m.IsActive,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMappingNotFound
	}
	return nil
}

func (s *PgStore) DeleteMapping(ctx context.Context, prefix string) error {
	n, err := s.q.DeleteRoomMapping(ctx, prefix)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMappingNotFound
	}
	return nil
}

func (s *PgStore) CoordinatorExists(ctx context.Context, id string) (bool, error) {
	pgID := ToPgUUID(id)
	if !pgID.Valid {
		return false, nil
	}
	return s.q.StaffExists(ctx, pgID)
}

func mappingFromRow(row database.RoomCoordinatorMapping) RoomMapping {
	return RoomMapping{
		RoomPrefix:    row.RoomPrefix,
		CoordinatorID: PgUUIDToString(row.CoordinatorID),
		IsActive:      row.IsActive,
		CreatedAt:     pgTime(row.CreatedAt),
		UpdatedAt:     pgTime(row.UpdatedAt),
	}
}
