package conduit

import "errors"

// Sentinel errors returned by Conduit operations.
var (
	// ErrNoStore is returned when a Conduit is created without a store.
	ErrNoStore = errors.New("conduit: store is required")

	// ErrRouteNotFound is returned when a route does not exist, is disabled,
	// or has an inactive source or target.
	ErrRouteNotFound = errors.New("conduit: route not found")

	// ErrRunNotFound is returned when a run cannot be found.
	ErrRunNotFound = errors.New("conduit: run not found")

	// ErrDeadLetterNotFound is returned when a dead-letter entry cannot be found.
	ErrDeadLetterNotFound = errors.New("conduit: dead letter not found")

	// ErrPayloadValidationFailed is returned when a payload fails the source JSON Schema.
	ErrPayloadValidationFailed = errors.New("conduit: payload validation failed")

	// ErrDuplicateIdempotencyKey is returned by stores when a run with the same
	// route and idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("conduit: duplicate idempotency key")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("conduit: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("conduit: migration failed")

	// ErrAlreadyReplayed is returned when replaying an entry that a
	// previous replay already delivered.
	ErrAlreadyReplayed = errors.New("conduit: dead letter already replayed")

	// ErrPoolStopped is returned by Submit after the worker pool has stopped.
	ErrPoolStopped = errors.New("conduit: worker pool stopped")
)
