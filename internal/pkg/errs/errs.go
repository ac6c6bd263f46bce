// Package errs hosts the typed error taxonomy for the backup pipeline:
// persistence, transformer, integrity, corrupt-state, and
// precondition-missing errors. Each sentinel is meant to be wrapped with
// fmt.Errorf("...: %w", Sentinel) so errors.Is/errors.As keep working across
// the propagation chain, matching how the rest of this codebase returns
// plain wrapped errors rather than a status-code package.
package errs

import "errors"

var (
	// ErrPersistence wraps a load/save failure from the persistence store.
	ErrPersistence = errors.New("persistence error")

	// ErrTransformer wraps an export/split/compress/encrypt/upload leaf
	// failure. The current stage has not committed; resume retries the
	// same step.
	ErrTransformer = errors.New("transformer error")

	// ErrEncryptionIntegrity is raised when the Encrypt stage's
	// decrypt-and-compare round trip does not match the pre-encryption
	// hash.
	ErrEncryptionIntegrity = errors.New("encryption integrity check failed")

	// ErrVerifyMismatch is raised when the Verify stage's full-vs-stream
	// hash comparison fails.
	ErrVerifyMismatch = errors.New("verify hash mismatch")

	// ErrCorruptState is raised when restore_status observes persisted
	// counters that violate I2/I3 (split_count > total, or any counter >
	// split_count). Fatal for the task; requires operator intervention.
	ErrCorruptState = errors.New("corrupt state")

	// ErrPreconditionMissing is raised when a stage handler is asked to
	// act on a field that should have been populated by an earlier stage
	// (e.g. snapshot_exported_name empty) — only reachable under
	// persisted-state corruption.
	ErrPreconditionMissing = errors.New("precondition missing")

	// ErrEmptyQueue is returned by DequeueTarget when the queue has no
	// runnable target.
	ErrEmptyQueue = errors.New("target queue is empty")
)

// CorruptState builds an ErrCorruptState-wrapping error carrying the stage
// name the corruption was detected at.
func CorruptState(detail string) error {
	if detail == "" {
		return ErrCorruptState
	}
	return &wrapped{msg: detail, err: ErrCorruptState}
}

type wrapped struct {
	msg string
	err error
}

func (w *wrapped) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
