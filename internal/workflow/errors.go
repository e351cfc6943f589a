// Package workflow implements the guarded document-transition protocol:
// a transaction coordinator, a blob relocator with compensation, and
// table-driven approval state machines. Services compose the three to move
// an entity and its files between states atomically.
package workflow

import "errors"

var (
	// ErrNotFound reports a transition target that does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidTransition reports an edge absent from the transition table
	// or blocked by its guard.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrForbidden reports an actor whose role may not take the edge.
	ErrForbidden = errors.New("actor not allowed")

	// ErrStorageFailure wraps database or blob-store failures.
	ErrStorageFailure = errors.New("storage failure")

	// ErrPreconditionFailed reports protocol misuse: a nested atomic scope,
	// or a relocation or merge attempted outside one.
	ErrPreconditionFailed = errors.New("precondition failed")
)
