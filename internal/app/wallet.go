package app

import (
	"context"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/rbac"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
)

type WalletMoveInput struct {
	UserID    string `json:"userId"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// CreditWallet appends a credit to the user's ledger. The entry runs inside a
// transaction so the running balance stays correct under concurrent writes.
func (s *Service) CreditWallet(ctx context.Context, sess Session, in WalletMoveInput) (store.WalletEntry, error) {
	return s.walletMove(ctx, sess, "credit", in)
}

// DebitWallet appends a debit; a balance short of the amount fails the whole
// transaction.
func (s *Service) DebitWallet(ctx context.Context, sess Session, in WalletMoveInput) (store.WalletEntry, error) {
	return s.walletMove(ctx, sess, "debit", in)
}

func (s *Service) walletMove(ctx context.Context, sess Session, direction string, in WalletMoveInput) (store.WalletEntry, error) {
	if !s.Can(sess.Role, rbac.ActionAdmin) {
		return store.WalletEntry{}, forbidden("Only admins move wallet funds")
	}
	if in.Amount <= 0 {
		return store.WalletEntry{}, validation("amount must be positive", nil)
	}
	if _, err := s.store.GetUserByID(ctx, in.UserID); err != nil {
		return store.WalletEntry{}, err
	}

	var out store.WalletEntry
	err := s.runner.RunAtomic(ctx, func(ctx context.Context, ds dataStore) error {
		entry, err := ds.InsertWalletEntry(ctx, store.WalletEntry{
			UserID:    in.UserID,
			Direction: direction,
			Amount:    in.Amount,
			Reference: in.Reference,
			CreatedBy: sess.UserID,
		})
		if err != nil {
			return err
		}
		out = entry
		return nil
	})
	if err != nil {
		return store.WalletEntry{}, err
	}

	s.notifyUser(ctx, in.UserID, "wallet."+direction, "Your wallet was "+direction+"ed")
	return out, nil
}

// WalletBalance returns the user's current balance. Non-admins can only read
// their own.
func (s *Service) WalletBalance(ctx context.Context, sess Session, userID string) (int64, error) {
	if userID != sess.UserID && !s.Can(sess.Role, rbac.ActionAdmin) {
		return 0, forbidden("You can only view your own wallet")
	}
	return s.store.WalletBalance(ctx, userID)
}

func (s *Service) WalletLedger(ctx context.Context, sess Session, userID string, limit int) ([]store.WalletEntry, error) {
	if userID != sess.UserID && !s.Can(sess.Role, rbac.ActionAdmin) {
		return nil, forbidden("You can only view your own wallet")
	}
	return s.store.ListWalletEntries(ctx, userID, limit)
}
