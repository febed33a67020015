package wallet

import (
	"context"
	"strings"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *service) FreezeWallet(ctx context.Context, userID uint, reason string) error {
	err := s.setStatus(ctx, s.store, userID, func(w *models.Wallet) {
		w.IsFrozen = true
		w.StatusReason = reason
	})
	if err == nil {
		s.logger.Info("wallet frozen", zap.Uint("user_id", userID), zap.String("reason", reason))
	}
	return err
}

func (s *service) UnfreezeWallet(ctx context.Context, userID uint) error {
	return s.setStatus(ctx, s.store, userID, func(w *models.Wallet) {
		w.IsFrozen = false
		w.StatusReason = ""
	})
}

func (s *service) SetActive(ctx context.Context, userID uint, active bool) error {
	return s.setStatus(ctx, s.store, userID, func(w *models.Wallet) {
		w.IsActive = active
	})
}

func (s *service) ClearReconciliationHold(ctx context.Context, userID uint) error {
	err := s.setStatus(ctx, s.store, userID, func(w *models.Wallet) {
		w.ReconciliationHold = false
		w.StatusReason = ""
	})
	if err == nil {
		s.logger.Info("reconciliation hold cleared", zap.Uint("user_id", userID))
	}
	return err
}

// AdminAdjust books a manual correction. Positive amounts are credited as REFUND,
// negative ones debited as WITHDRAWAL. Frozen, inactive and held wallets are
// allowed; the balance still may not go negative.
func (s *service) AdminAdjust(ctx context.Context, userID uint, amount decimal.Decimal, reason string) (*Receipt, error) {
	if amount.IsZero() || !amount.Equal(amount.Round(2)) {
		return nil, apperrors.ErrInvalidAmount
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation("reason is required")
	}

	e := Entry{
		UserID:      userID,
		Amount:      amount.Abs(),
		Type:        models.TransactionTypeRefund,
		Description: adjustmentPrefix + reason,
	}
	if amount.IsNegative() {
		e.Type = models.TransactionTypeWithdrawal
	}

	var receipt *Receipt
	var violated []uint
	err := s.run(ctx, OpAdjust, func(tx repositories.Store) error {
		if err := s.ensureWallet(ctx, tx, userID, apperrors.ErrWalletNotFound); err != nil {
			return err
		}
		wallets, err := s.lockWallets(ctx, tx, userID)
		if err != nil {
			return err
		}
		w := wallets[userID]

		if e.Type.IsDebit() {
			if w.Balance.LessThan(e.Amount) {
				return apperrors.ErrInsufficientBalance
			}
			w.Balance = w.Balance.Sub(e.Amount)
		} else {
			w.Balance = w.Balance.Add(e.Amount)
		}

		t, err := s.appendEntry(ctx, tx, e, nil)
		if err != nil {
			return err
		}
		if err := tx.Wallets().Update(ctx, w); err != nil {
			return err
		}
		if err := s.checkInvariant(ctx, tx, &violated, w); err != nil {
			return err
		}
		receipt = &Receipt{Transaction: t, Balance: w.Balance}
		return nil
	})
	if err != nil {
		s.afterFailure(ctx, err, violated)
		return nil, err
	}

	s.logger.Warn("manual wallet adjustment",
		zap.Uint("user_id", userID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("reason", reason))
	return receipt, nil
}

func (s *service) setStatus(ctx context.Context, store repositories.Store, userID uint, apply func(w *models.Wallet)) error {
	return store.WithinTx(ctx, func(tx repositories.Store) error {
		if err := s.ensureWallet(ctx, tx, userID, apperrors.ErrWalletNotFound); err != nil {
			return err
		}
		wallets, err := s.lockWallets(ctx, tx, userID)
		if err != nil {
			return err
		}
		w := wallets[userID]
		apply(w)
		return tx.Wallets().Update(ctx, w)
	})
}
