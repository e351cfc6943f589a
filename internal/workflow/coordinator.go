package workflow

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
)

type scopeKey struct{}

// InScope reports whether ctx was produced by a running RunAtomic call.
func InScope(ctx context.Context) bool {
	v, _ := ctx.Value(scopeKey{}).(bool)
	return v
}

// Coordinator runs multi-step transitions inside a single database
// transaction.
type Coordinator struct {
	db *sql.DB
}

func NewCoordinator(db *sql.DB) *Coordinator {
	return &Coordinator{db: db}
}

// RunAtomic begins a transaction, marks the context as in-scope, and runs fn
// with a transactional handle. It commits iff fn returns nil; on error or
// panic the transaction is rolled back and the panic rethrown. Scopes do not
// nest: calling RunAtomic from inside one fails ErrPreconditionFailed.
func (c *Coordinator) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx store.DBTX) error) (err error) {
	if InScope(ctx) {
		return fmt.Errorf("atomic scopes do not nest: %w", ErrPreconditionFailed)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", ErrStorageFailure, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit transaction: %w: %w", ErrStorageFailure, cerr)
		}
	}()

	err = fn(context.WithValue(ctx, scopeKey{}, true), tx)
	return err
}
