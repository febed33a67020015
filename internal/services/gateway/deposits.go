package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"
	"pearlbingo/internal/services/wallet"

	"go.uber.org/zap"
)

var errDepositNotFound = apperrors.New(apperrors.CodeNotFound, "deposit request not found")

// AutoApproveDeposit credits a PENDING deposit once its charge succeeded. It is a
// no-op for deposits that already left PENDING, and expires deposits whose
// window has passed instead of crediting them.
func (s *service) AutoApproveDeposit(ctx context.Context, depositID, gatewayTxID uint) (*Approval, error) {
	var approval *Approval
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		deposit, err := lockDeposit(ctx, tx, depositID)
		if err != nil {
			return err
		}
		if !deposit.IsPending() {
			approval = &Approval{Deposit: deposit}
			return nil
		}
		if deposit.IsExpired(s.now()) {
			if err := s.resolve(ctx, tx, deposit, models.DepositStatusExpired, "expired before payment confirmation"); err != nil {
				return err
			}
			approval = &Approval{Deposit: deposit, Expired: true}
			return nil
		}

		gtx, err := tx.GatewayTransactions().GetByID(ctx, gatewayTxID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "gateway transaction not found")
			}
			return fmt.Errorf("failed to get gateway transaction: %w", err)
		}
		if gtx.DepositRequestID != deposit.ID {
			return apperrors.Validation("gateway transaction %d does not belong to deposit %d", gtx.ID, deposit.ID)
		}

		approval, err = s.approve(ctx, tx, deposit, gtx.ExternalChargeID, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	switch {
	case approval.Applied:
		s.logger.Info("deposit approved",
			zap.Uint("deposit_id", approval.Deposit.ID),
			zap.Uint("user_id", approval.Deposit.UserID),
			zap.String("pearls", approval.Deposit.PearlAmount.StringFixed(2)))
		s.notifyResolved(ctx, approval.Deposit, approval.Receipt)
	case approval.Expired:
		s.logger.Warn("payment confirmed for expired deposit",
			zap.Uint("deposit_id", approval.Deposit.ID),
			zap.Uint("gateway_transaction_id", gatewayTxID))
		s.notifyResolved(ctx, approval.Deposit, nil)
	}
	return approval, nil
}

// ApproveDeposit is the manual approval path, used for bank transfers.
func (s *service) ApproveDeposit(ctx context.Context, depositID uint, notes string) (*Approval, error) {
	var approval *Approval
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		deposit, err := lockDeposit(ctx, tx, depositID)
		if err != nil {
			return err
		}
		if !deposit.IsPending() {
			return apperrors.ErrDepositNotPending
		}

		ref := "deposit:" + deposit.Reference
		gtxs, err := tx.GatewayTransactions().ListByDepositRequestID(ctx, deposit.ID)
		if err != nil {
			return fmt.Errorf("failed to list gateway transactions: %w", err)
		}
		for i := range gtxs {
			gtx := &gtxs[i]
			if gtx.Status == models.GatewayStatusFailed {
				continue
			}
			ref = gtx.ExternalChargeID
			gtx.Status = models.GatewayStatusSucceeded
			if err := tx.GatewayTransactions().Update(ctx, gtx); err != nil {
				return fmt.Errorf("failed to update gateway transaction: %w", err)
			}
			break
		}

		approval, err = s.approve(ctx, tx, deposit, ref, notes)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit approved manually",
		zap.Uint("deposit_id", depositID),
		zap.Uint("user_id", approval.Deposit.UserID))
	s.notifyResolved(ctx, approval.Deposit, approval.Receipt)
	return approval, nil
}

func (s *service) RejectDeposit(ctx context.Context, depositID uint, notes string) (*models.DepositRequest, error) {
	deposit, changed, err := s.CloseDeposit(ctx, depositID, models.DepositStatusRejected, notes)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, apperrors.ErrDepositNotPending
	}
	return deposit, nil
}

// CancelDeposit lets the owner withdraw a PENDING request. Other users' deposits
// are reported as not found.
func (s *service) CancelDeposit(ctx context.Context, userID, depositID uint) (*models.DepositRequest, error) {
	var deposit *models.DepositRequest
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		deposit, err = lockDeposit(ctx, tx, depositID)
		if err != nil {
			return err
		}
		if deposit.UserID != userID {
			return errDepositNotFound
		}
		if !deposit.IsPending() {
			return apperrors.ErrDepositNotPending
		}
		return s.resolve(ctx, tx, deposit, models.DepositStatusCancelled, "cancelled by user")
	})
	if err != nil {
		return nil, err
	}
	s.notifyResolved(ctx, deposit, nil)
	return deposit, nil
}

// CloseDeposit moves a PENDING deposit to a final status without a ledger
// effect. changed is false when the deposit was no longer PENDING.
func (s *service) CloseDeposit(ctx context.Context, depositID uint, status, notes string) (*models.DepositRequest, bool, error) {
	switch status {
	case models.DepositStatusRejected, models.DepositStatusCancelled, models.DepositStatusExpired:
	default:
		return nil, false, apperrors.Validation("cannot close deposit with status %s", status)
	}

	var deposit *models.DepositRequest
	var changed bool
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		deposit, err = lockDeposit(ctx, tx, depositID)
		if err != nil {
			return err
		}
		if !deposit.IsPending() {
			return nil
		}
		changed = true
		return s.resolve(ctx, tx, deposit, status, notes)
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.logger.Info("deposit closed",
			zap.Uint("deposit_id", deposit.ID),
			zap.String("status", status),
			zap.String("notes", notes))
		s.notifyResolved(ctx, deposit, nil)
	}
	return deposit, changed, nil
}

// ExpireStaleDeposits marks every PENDING deposit past its expiry as EXPIRED.
func (s *service) ExpireStaleDeposits(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	for {
		batch, err := s.store.Deposits().ListExpired(ctx, now, expiryBatchSize)
		if err != nil {
			return expired, fmt.Errorf("failed to list expired deposits: %w", err)
		}

		progressed := 0
		for _, candidate := range batch {
			deposit, changed, err := s.expire(ctx, candidate.ID, now)
			if err != nil {
				return expired, err
			}
			progressed++
			if changed {
				expired++
				s.notifyResolved(ctx, deposit, nil)
			}
		}
		if len(batch) < expiryBatchSize || progressed == 0 {
			break
		}
	}

	if expired > 0 {
		s.logger.Info("expired stale deposits", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *service) expire(ctx context.Context, depositID uint, now time.Time) (*models.DepositRequest, bool, error) {
	var deposit *models.DepositRequest
	var changed bool
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		deposit, err = lockDeposit(ctx, tx, depositID)
		if err != nil {
			return err
		}
		if !deposit.IsExpired(now) {
			return nil
		}
		changed = true
		return s.resolve(ctx, tx, deposit, models.DepositStatusExpired, "expired without payment")
	})
	return deposit, changed, err
}

// approve credits the deposit and marks it APPROVED inside tx.
func (s *service) approve(ctx context.Context, tx repositories.Store, deposit *models.DepositRequest, externalRef, notes string) (*Approval, error) {
	receipt, err := s.ledger.WithTx(tx).Credit(ctx, wallet.Entry{
		UserID:            deposit.UserID,
		Amount:            deposit.PearlAmount,
		Type:              models.TransactionTypeDeposit,
		Description:       "Deposit " + deposit.Reference,
		ExternalReference: externalRef,
		Metadata: models.JSON{
			"deposit_id":     deposit.ID,
			"payment_method": deposit.PaymentMethod,
		},
	})
	if err != nil {
		return nil, err
	}

	deposit.TransactionID = &receipt.Transaction.ID
	if err := s.resolve(ctx, tx, deposit, models.DepositStatusApproved, notes); err != nil {
		return nil, err
	}
	return &Approval{Deposit: deposit, Receipt: receipt, Applied: true}, nil
}

func (s *service) resolve(ctx context.Context, tx repositories.Store, deposit *models.DepositRequest, status, notes string) error {
	now := s.now()
	deposit.Status = status
	deposit.ResolvedAt = &now
	if notes != "" {
		deposit.AdminNotes = notes
	}
	if err := tx.Deposits().Update(ctx, deposit); err != nil {
		return fmt.Errorf("failed to update deposit request: %w", err)
	}
	if status == models.DepositStatusApproved {
		return nil
	}

	gtxs, err := tx.GatewayTransactions().ListByDepositRequestID(ctx, deposit.ID)
	if err != nil {
		return fmt.Errorf("failed to list gateway transactions: %w", err)
	}
	for i := range gtxs {
		if gtxs[i].Status != models.GatewayStatusInProgress {
			continue
		}
		gtxs[i].Status = models.GatewayStatusCancelled
		if err := tx.GatewayTransactions().Update(ctx, &gtxs[i]); err != nil {
			return fmt.Errorf("failed to update gateway transaction: %w", err)
		}
	}
	return nil
}

// notifyResolved publishes deposit outcomes. Joined services leave it to the caller.
func (s *service) notifyResolved(ctx context.Context, deposit *models.DepositRequest, receipt *wallet.Receipt) {
	if s.joined || deposit == nil {
		return
	}
	if receipt != nil {
		s.notifier.BalanceChanged(ctx, deposit.UserID, receipt.Transaction, receipt.Balance.StringFixed(2))
	}
	s.notifier.DepositResolved(ctx, deposit)
}

func lockDeposit(ctx context.Context, tx repositories.Store, id uint) (*models.DepositRequest, error) {
	deposit, err := tx.Deposits().LockByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, errDepositNotFound
		}
		return nil, fmt.Errorf("failed to lock deposit request: %w", err)
	}
	return deposit, nil
}
