package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/dayroster/internal/reconcile"
)

// Source tags where a roster came from.
type Source string

const (
	SourceScheduled Source = "scheduled-import"
	SourceManual    Source = "manual-upload"
)

// RunStatus is the lifecycle state of a sync run audit record.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// SyncOptions controls a single reconciliation pass.
type SyncOptions struct {
	DryRun      bool
	Source      Source `validate:"required,oneof=scheduled-import manual-upload"`
	TriggeredBy string `validate:"required,max=100"`
}

// SyncResult is returned for both previews and real runs.
type SyncResult struct {
	Success        bool               `json:"success"`
	SyncID         string             `json:"syncId"`
	Summary        reconcile.Summary  `json:"summary"`
	Changes        []reconcile.Change `json:"changes"`
	SkippedReasons []reconcile.Skip   `json:"skippedReasons"`
	ErrorMessage   string             `json:"errorMessage,omitempty"`
}

// SyncRun is one audit ledger entry.
type SyncRun struct {
	ID             string             `json:"id"`
	StartedAt      time.Time          `json:"startedAt"`
	CompletedAt    *time.Time         `json:"completedAt,omitempty"`
	Source         Source             `json:"source"`
	TriggeredBy    string             `json:"triggeredBy"`
	Status         RunStatus          `json:"status"`
	Summary        reconcile.Summary  `json:"summary"`
	ErrorMessage   string             `json:"errorMessage,omitempty"`
	Changes        []reconcile.Change `json:"changes"`
	SkippedReasons []reconcile.Skip   `json:"skippedReasons"`
}

// RunDetails is the structured blob stored alongside a run's counters.
type RunDetails struct {
	Changes        []reconcile.Change `json:"changes"`
	SkippedReasons []reconcile.Skip   `json:"skipped_reasons"`
}

// RunPage is one page of the run history.
type RunPage struct {
	Runs       []SyncRun `json:"runs"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"totalPages"`
}

// RunEvent is published once a real run has been finalized.
type RunEvent struct {
	SyncID       string            `json:"syncId"`
	Status       RunStatus         `json:"status"`
	Source       Source            `json:"source"`
	TriggeredBy  string            `json:"triggeredBy"`
	Summary      reconcile.Summary `json:"summary"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	CompletedAt  time.Time         `json:"completedAt"`
}

// RoomMapping is the admin view of a room prefix assignment.
type RoomMapping struct {
	RoomPrefix    string    `json:"roomPrefix"`
	CoordinatorID string    `json:"coordinatorId"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RoomMappingInput is the validated body of a create or update request.
type RoomMappingInput struct {
	RoomPrefix    string `json:"roomPrefix" validate:"required,numeric,max=10"`
	CoordinatorID string `json:"coordinatorId" validate:"omitempty,uuid"`
	IsActive      *bool  `json:"isActive"`
}

// PatientStore is the registry as seen by the coordinator.
type PatientStore interface {
	// GetByExternalID returns ErrPatientNotFound when no patient carries the id.
	GetByExternalID(ctx context.Context, externalID string) (reconcile.Patient, error)
	ListAll(ctx context.Context) ([]reconcile.Patient, error)
	Insert(ctx context.Context, p reconcile.Patient, source Source) (string, error)
	Update(ctx context.Context, id string, p reconcile.Patient, source Source) error
}

// Directory supplies the reference tables for one pass.
type Directory interface {
	RoomMappings(ctx context.Context) ([]reconcile.RoomMapping, error)
	Physicians(ctx context.Context) ([]reconcile.Physician, error)
}

// RunStore persists sync run audit records.
type RunStore interface {
	Create(ctx context.Context, run SyncRun) error
	// Finalize returns ErrRunFinalized if the run is no longer running.
	Finalize(ctx context.Context, run SyncRun) error
	List(ctx context.Context, limit, offset int) ([]SyncRun, int, error)
	Get(ctx context.Context, id string) (SyncRun, error)
}

// MappingStore backs the room-mapping admin operations.
type MappingStore interface {
	ListMappings(ctx context.Context) ([]RoomMapping, error)
	// GetMapping returns ErrMappingNotFound for an unknown prefix.
	GetMapping(ctx context.Context, prefix string) (RoomMapping, error)
	CreateMapping(ctx context.Context, m RoomMapping) (RoomMapping, error)
	UpdateMapping(ctx context.Context, m RoomMapping) error
	DeleteMapping(ctx context.Context, prefix string) error
	CoordinatorExists(ctx context.Context, id string) (bool, error)
}

// Transactor runs fn against a PatientStore bound to a single transaction.
// Returning an error from fn rolls the transaction back.
type Transactor interface {
	InTx(ctx context.Context, fn func(PatientStore) error) error
}

// Notifier announces finalized runs.
type Notifier interface {
	Publish(ctx context.Context, ev RunEvent) error
}

// RunLock excludes concurrent real runs. unlock must be called exactly once.
type RunLock interface {
	Lock(ctx context.Context) (unlock func(), err error)
}
