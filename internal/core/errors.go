package core

import "errors"

var (
	// ErrSyncInProgress is returned when another real run holds the run lock.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrSyncCancelled is returned when the caller cancels a run mid-apply.
	ErrSyncCancelled = errors.New("sync cancelled")

	// ErrRunNotFound is returned for an unknown sync run id.
	ErrRunNotFound = errors.New("sync run not found")

	// ErrRunFinalized is returned when finalizing a run that is not running.
	ErrRunFinalized = errors.New("sync run already finalized")

	// ErrMappingNotFound is returned for an unknown room prefix.
	ErrMappingNotFound = errors.New("room mapping not found")

	// ErrMappingExists is returned when creating a prefix that is already mapped.
	ErrMappingExists = errors.New("room mapping already exists")

	// ErrCoordinatorNotFound is returned when a mapping names an unknown or inactive staff member.
	ErrCoordinatorNotFound = errors.New("coordinator not found")

	// ErrPatientNotFound is returned by PatientStore.GetByExternalID.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrExternalIDTaken is returned when an insert would reuse an external id.
	ErrExternalIDTaken = errors.New("external id already registered")

	// ErrFileTooLarge is returned when a roster exceeds the configured size.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when a request carries no roster.
	ErrNoFile = errors.New("no file provided")
)
