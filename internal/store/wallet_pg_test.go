package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/util"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/workflow"
)

// Needs a real Postgres: the advisory-lock serialization this covers cannot
// be reproduced on sqlite's single-writer model.
func openTestDB(t *testing.T) (*store.PostgresStore, *workflow.Coordinator) {
	t.Helper()
	dsn := os.Getenv("ORBIT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("set ORBIT_TEST_DATABASE_URL to run Postgres wallet tests")
	}
	db, err := store.Open(t.Context(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.ApplyMigrations(t.Context(), db, filepath.Join("..", "..", "db", "migrations")))
	return store.NewPostgresStore(db), workflow.NewCoordinator(db)
}

func TestWalletConcurrentCreditsSerialize(t *testing.T) {
	base, coord := openTestDB(t)
	ctx := t.Context()

	userID := util.NewID("usr")
	require.NoError(t, base.CreateUser(ctx, store.User{
		ID: userID, DisplayName: "Wallet", Email: userID + "@wallet.test", PasswordHash: "x", Role: "customer",
	}))

	move := func(direction string, amount int64) error {
		return coord.RunAtomic(ctx, func(ctx context.Context, tx store.DBTX) error {
			_, err := base.Bind(tx).InsertWalletEntry(ctx, store.WalletEntry{
				UserID: userID, Direction: direction, Amount: amount, CreatedBy: userID,
			})
			return err
		})
	}

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- move("credit", 100)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	balance, err := base.WalletBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(writers*100), balance)

	entries, err := base.ListWalletEntries(ctx, userID, writers)
	require.NoError(t, err)
	require.Len(t, entries, writers)
	// Newest first; every running balance must be a distinct multiple of 100.
	for i, e := range entries {
		require.Equal(t, int64((writers-i)*100), e.Balance)
	}
}

func TestWalletConcurrentDebitsCannotOverdraw(t *testing.T) {
	base, coord := openTestDB(t)
	ctx := t.Context()

	userID := util.NewID("usr")
	require.NoError(t, base.CreateUser(ctx, store.User{
		ID: userID, DisplayName: "Wallet", Email: userID + "@wallet.test", PasswordHash: "x", Role: "customer",
	}))

	move := func(direction string, amount int64) error {
		return coord.RunAtomic(ctx, func(ctx context.Context, tx store.DBTX) error {
			_, err := base.Bind(tx).InsertWalletEntry(ctx, store.WalletEntry{
				UserID: userID, Direction: direction, Amount: amount, CreatedBy: userID,
			})
			return err
		})
	}

	require.NoError(t, move("credit", 800))

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- move("debit", 500) }()
	}

	var succeeded, rejected int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded, "exactly one debit may win")
	require.Equal(t, 1, rejected, "the loser must see insufficient funds")

	balance, err := base.WalletBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(300), balance)
}

func TestWalletFirstEntryOnEmptyLedger(t *testing.T) {
	base, coord := openTestDB(t)
	ctx := t.Context()

	userID := util.NewID("usr")
	require.NoError(t, base.CreateUser(ctx, store.User{
		ID: userID, DisplayName: "Wallet", Email: userID + "@wallet.test", PasswordHash: "x", Role: "customer",
	}))

	err := coord.RunAtomic(ctx, func(ctx context.Context, tx store.DBTX) error {
		_, err := base.Bind(tx).InsertWalletEntry(ctx, store.WalletEntry{
			UserID: userID, Direction: "debit", Amount: 1, CreatedBy: userID,
		})
		return err
	})
	require.ErrorIs(t, err, store.ErrInsufficientFunds)

	require.NoError(t, coord.RunAtomic(ctx, func(ctx context.Context, tx store.DBTX) error {
		_, err := base.Bind(tx).InsertWalletEntry(ctx, store.WalletEntry{
			UserID: userID, Direction: "credit", Amount: 250, CreatedBy: userID,
		})
		return err
	}))

	balance, err := base.WalletBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(250), balance)
}
