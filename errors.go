package hume

import "errors"

// Sentinel errors returned by Daemon operations and store implementations.
var (
	// ErrNoStore is returned when a Daemon is created without a store.
	ErrNoStore = errors.New("hume: store is required")

	// ErrNoSinks is returned when no transfer method is configured.
	ErrNoSinks = errors.New("hume: at least one transfer method is required")

	// ErrStorageFailure wraps queue write errors surfaced to the sender.
	ErrStorageFailure = errors.New("hume: storage failure")

	// ErrRecordNotFound is returned when a queue record cannot be found.
	ErrRecordNotFound = errors.New("hume: queue record not found")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("hume: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("hume: migration failed")
)
