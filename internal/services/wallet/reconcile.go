package wallet

import (
	"context"
	"errors"
	"fmt"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// checkInvariant compares each wallet's balance with its ledger sum. It only runs in strict mode.
func (s *service) checkInvariant(ctx context.Context, tx repositories.Store, violated *[]uint, wallets ...*models.Wallet) error {
	if !s.config.StrictCheck {
		return nil
	}
	for _, w := range wallets {
		sum, err := tx.Transactions().SumSigned(ctx, w.UserID)
		if err != nil {
			return err
		}
		if !sum.Equal(w.Balance) {
			*violated = append(*violated, w.UserID)
			return s.invariantViolation(w.UserID, w.Balance, sum)
		}
	}
	return nil
}

func (s *service) invariantViolation(userID uint, balance, sum decimal.Decimal) error {
	s.logger.Error("ledger invariant violated",
		zap.Uint("user_id", userID),
		zap.String("balance", balance.StringFixed(2)),
		zap.String("ledger_sum", sum.StringFixed(2)))
	s.metrics.RecordInvariantViolation(userID)
	return apperrors.Wrap(apperrors.CodeInvariantViolation,
		fmt.Errorf("user %d: balance %s, ledger sum %s", userID, balance.StringFixed(2), sum.StringFixed(2)),
		"ledger invariant violated")
}

// afterFailure places a reconciliation hold on wallets whose ledger check failed.
// The hold is written after the failed unit of work has rolled back.
func (s *service) afterFailure(ctx context.Context, err error, violated []uint) {
	if len(violated) == 0 || !errors.Is(err, apperrors.ErrInvariantViolation) {
		return
	}
	if s.joined {
		// the caller's transaction still holds the row locks
		go s.placeHolds(context.WithoutCancel(ctx), violated)
		return
	}
	s.placeHolds(context.WithoutCancel(ctx), violated)
}

func (s *service) placeHolds(ctx context.Context, userIDs []uint) {
	for _, id := range userIDs {
		err := s.setStatus(ctx, s.root, id, func(w *models.Wallet) {
			w.ReconciliationHold = true
			w.StatusReason = "ledger mismatch detected"
		})
		if err != nil {
			s.logger.Error("failed to place reconciliation hold", zap.Uint("user_id", id), zap.Error(err))
			continue
		}
		s.logger.Warn("wallet placed on reconciliation hold", zap.Uint("user_id", id))
	}
}

// VerifyLedger recomputes the ledger sum under the wallet lock. A mismatch is
// reported, never corrected, and puts the wallet on hold.
func (s *service) VerifyLedger(ctx context.Context, userID uint) (*LedgerReport, error) {
	var report *LedgerReport
	err := s.run(ctx, OpVerify, func(tx repositories.Store) error {
		wallets, err := s.lockWallets(ctx, tx, userID)
		if err != nil {
			return err
		}
		w := wallets[userID]
		sum, err := tx.Transactions().SumSigned(ctx, userID)
		if err != nil {
			return err
		}
		report = &LedgerReport{
			UserID:     userID,
			Balance:    w.Balance,
			LedgerSum:  sum,
			Consistent: sum.Equal(w.Balance),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent {
		_ = s.invariantViolation(userID, report.Balance, report.LedgerSum)
		s.afterFailure(ctx, apperrors.ErrInvariantViolation, []uint{userID})
	}
	return report, nil
}
