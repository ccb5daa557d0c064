package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync pass is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrNotInitialized indicates the scheduler was started before a successful initialisation.
	ErrNotInitialized = errors.New("scheduler not initialised")

	// Index Errors.

	// ErrIndexUnavailable indicates the search index service cannot be reached.
	// It is fatal to the current operation and retried on the next scheduler tick.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrIndexRequest indicates the index rejected a malformed query or document.
	// This is a programming error and is never retried.
	ErrIndexRequest = errors.New("index request error")

	// ErrInvalidIndexDefinition indicates a field is referenced that the index definition does not declare.
	ErrInvalidIndexDefinition = errors.New("invalid index definition")

	// Sync Errors.

	// ErrPrimaryStoreRead indicates the primary record store failed to answer a read.
	ErrPrimaryStoreRead = errors.New("primary store read failed")

	// ErrProjection indicates a record could not be mapped to an index document.
	ErrProjection = errors.New("projection failed")

	// Query Log Errors.

	// ErrQueueFull indicates the query log queue rejected an entry.
	ErrQueueFull = errors.New("query log queue full")

	// ErrRecorderClosed indicates the query log recorder no longer accepts entries.
	ErrRecorderClosed = errors.New("query log recorder closed")
)

// IsRetryable reports whether err is worth retrying against the index.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrIndexUnavailable)
}
