package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertWalletEntry appends a ledger row and returns it with the running
// balance filled in. Concurrent appends for one user serialize on a
// transaction-scoped advisory lock keyed by user id; locking the latest row
// would not cover the insert of a competing transaction, and an empty wallet
// has no row to lock at all. Callers must run this inside a transaction, the
// lock releases at commit or rollback.
func (s *PostgresStore) InsertWalletEntry(ctx context.Context, entry WalletEntry) (WalletEntry, error) {
	if _, err := s.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('wallet:' || $1))`, entry.UserID); err != nil {
		return WalletEntry{}, fmt.Errorf("lock wallet %s: %w", entry.UserID, err)
	}

	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT balance FROM wallet_entries
		WHERE user_id=$1
		ORDER BY id DESC
		LIMIT 1
	`, entry.UserID).Scan(&balance)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return WalletEntry{}, fmt.Errorf("read wallet balance: %w", err)
	}

	switch entry.Direction {
	case "credit":
		balance += entry.Amount
	case "debit":
		if balance < entry.Amount {
			return WalletEntry{}, ErrInsufficientFunds
		}
		balance -= entry.Amount
	default:
		return WalletEntry{}, fmt.Errorf("wallet direction %q not recognized", entry.Direction)
	}
	entry.Balance = balance

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO wallet_entries (user_id, direction, amount, balance, reference, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, entry.UserID, entry.Direction, entry.Amount, entry.Balance, entry.Reference, entry.CreatedBy).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return WalletEntry{}, fmt.Errorf("insert wallet entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) WalletBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT balance FROM wallet_entries
		WHERE user_id=$1
		ORDER BY id DESC
		LIMIT 1
	`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read wallet balance: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) ListWalletEntries(ctx context.Context, userID string, limit int) ([]WalletEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, direction, amount, balance, reference, created_by, created_at
		FROM wallet_entries
		WHERE user_id=$1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list wallet entries: %w", err)
	}
	defer rows.Close()

	list := make([]WalletEntry, 0)
	for rows.Next() {
		var e WalletEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Direction, &e.Amount, &e.Balance, &e.Reference, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet entry: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet entries: %w", err)
	}
	return list, nil
}
