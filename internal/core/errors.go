package core

import "errors"

// Error taxonomy shared by the ledger services and the storage layer.
// Callers branch with errors.Is to tell retryable failures from terminal
// ones.
var (
	// ErrInvalidInput covers malformed request data. No state change.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means a referenced house, transaction or user does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrPartialCommit means a fee payment was persisted but the
	// obligation updates failed, leaving an orphan transaction. Re-running
	// the settle is safe; re-creating the transaction is not.
	ErrPartialCommit = errors.New("partial commit")

	// ErrConcurrencyConflict means an optimistic-update precondition
	// failed. The caller should reload and retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrStorageUnavailable wraps transient storage failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
