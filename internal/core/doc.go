// Package core coordinates roster reconciliation runs.
//
// It sits between the transports (HTTP, CLI, the daily scheduler) and the
// pure reconciliation logic in package reconcile. Storage is reached only
// through the PatientStore, Directory, RunStore and MappingStore interfaces;
// PgStore implements all of them over PostgreSQL.
//
// # Runs
//
// [Service.RunSync] executes one pass:
//
//  1. Real runs take the run lock ([RunLimiter], plus [RedisRunLock] when
//     configured). A held lock fails fast with [ErrSyncInProgress].
//  2. A running audit record is created. Dry runs skip this and the lock.
//  3. The roster is parsed and every reference table and the registry are
//     read before any write.
//  4. Actions are applied in plan order. By default each write stands on its
//     own and a failure leaves earlier writes in place; with atomic apply all
//     writes share one transaction.
//  5. The audit record is finalized as completed or failed and a [RunEvent]
//     is published if a [Notifier] is configured.
//
// # Error Handling
//
// Technical errors are mapped to operator-facing messages with [MapError].
// See error_messages.go for the code families.
package core
