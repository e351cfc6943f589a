package workflow

import (
	"context"
	"fmt"
	"log"
)

// Blobs is the slice of the blob store the relocator needs.
type Blobs interface {
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
}

// Move records one staged-to-permanent copy.
type Move struct {
	OldKey string
	NewKey string
}

// Relocator copies staged blobs to permanent keys during an atomic scope and
// keeps an ordered ledger so the outcome can be settled after the scope ends:
// Finalize after commit, Compensate after abort. A Relocator is request
// scoped and not safe for concurrent use.
type Relocator struct {
	blobs  Blobs
	ledger []Move
}

func NewRelocator(blobs Blobs) *Relocator {
	return &Relocator{blobs: blobs}
}

// Relocate copies oldKey to newKey and records the move. It must be called
// inside an atomic scope; outside one it fails ErrPreconditionFailed. On copy
// failure nothing is recorded.
func (r *Relocator) Relocate(ctx context.Context, oldKey, newKey string) error {
	if !InScope(ctx) {
		return fmt.Errorf("relocate outside atomic scope: %w", ErrPreconditionFailed)
	}
	if err := r.blobs.Copy(ctx, oldKey, newKey); err != nil {
		return fmt.Errorf("copy %s to %s: %w: %w", oldKey, newKey, ErrStorageFailure, err)
	}
	r.ledger = append(r.ledger, Move{OldKey: oldKey, NewKey: newKey})
	return nil
}

// Moves returns the ledger in relocation order.
func (r *Relocator) Moves() []Move {
	return r.ledger
}

// Finalize deletes the staged originals after a successful commit. Delete
// failures are logged and skipped: the permanent copies are already durable
// and a leftover staged object expires on its own.
func (r *Relocator) Finalize(ctx context.Context) {
	for _, m := range r.ledger {
		if err := r.blobs.Delete(ctx, m.OldKey); err != nil {
			log.Printf(`{"msg":"finalize: staged delete failed","key":%q,"error":%q}`, m.OldKey, err)
		}
	}
	r.ledger = nil
}

// Compensate deletes the permanent copies made so far, in ledger order,
// after an aborted scope. Staged originals are left in place so the caller
// can retry. Delete failures are logged and skipped.
func (r *Relocator) Compensate(ctx context.Context) {
	for _, m := range r.ledger {
		if err := r.blobs.Delete(ctx, m.NewKey); err != nil {
			log.Printf(`{"msg":"compensate: permanent delete failed","key":%q,"error":%q}`, m.NewKey, err)
		}
	}
	r.ledger = nil
}
