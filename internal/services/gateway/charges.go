package gateway

import (
	"context"
	"errors"
	"fmt"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"
	"pearlbingo/internal/services/wallet"

	"go.uber.org/zap"
)

// LookupCharge finds the gateway transaction for chargeID. A charge created
// while the adapter lost contact with the gateway is linked to depositHint,
// taken from the charge metadata.
func (s *service) LookupCharge(ctx context.Context, chargeID string, depositHint uint) (*models.GatewayTransaction, error) {
	gtx, err := s.store.GatewayTransactions().GetByExternalChargeID(ctx, chargeID)
	if err == nil {
		return gtx, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to get gateway transaction: %w", err)
	}
	if depositHint == 0 {
		return nil, apperrors.New(apperrors.CodeNotFound, "unknown charge %s", chargeID)
	}

	deposit, err := s.store.Deposits().GetByID(ctx, depositHint)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "unknown charge %s", chargeID)
		}
		return nil, fmt.Errorf("failed to get deposit request: %w", err)
	}

	gtx = &models.GatewayTransaction{
		DepositRequestID: deposit.ID,
		ExternalChargeID: chargeID,
		Method:           deposit.PaymentMethod,
		Amount:           deposit.Amount,
		Status:           models.GatewayStatusInProgress,
	}
	if err := s.store.GatewayTransactions().Create(ctx, gtx); err != nil {
		return nil, fmt.Errorf("failed to link charge: %w", err)
	}
	s.logger.Info("linked charge to deposit",
		zap.String("charge_id", chargeID),
		zap.Uint("deposit_id", deposit.ID))
	return gtx, nil
}

// RecordChargeStatus stores the status the gateway reported for gtx. Late
// updates for a settled charge are ignored.
func (s *service) RecordChargeStatus(ctx context.Context, gtx *models.GatewayTransaction, update ChargeUpdate) error {
	status := chargeStatus(update.Status)
	if gtx.IsSettled() && status != gtx.Status {
		s.logger.Info("ignoring charge status for settled charge",
			zap.String("charge_id", gtx.ExternalChargeID),
			zap.String("status", gtx.Status),
			zap.String("reported", status))
		return nil
	}
	gtx.Status = status
	if update.FailureCode != "" {
		gtx.ErrorCode = update.FailureCode
	}
	if update.FailureMessage != "" {
		gtx.ErrorMessage = update.FailureMessage
	}
	if update.AuthorizationCode != "" {
		gtx.AuthorizationCode = update.AuthorizationCode
	}
	if err := s.store.GatewayTransactions().Update(ctx, gtx); err != nil {
		return fmt.Errorf("failed to update gateway transaction: %w", err)
	}
	return nil
}

// RefundCharge records a gateway refund as a new REFUND entry on the depositor's
// wallet. One refund entry is written per charge; deposits that were never
// credited only have their charge marked refunded.
func (s *service) RefundCharge(ctx context.Context, gtx *models.GatewayTransaction, refundedMinor int64) (*wallet.Receipt, error) {
	var receipt *wallet.Receipt
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		deposit, err := lockDeposit(ctx, tx, gtx.DepositRequestID)
		if err != nil {
			return err
		}

		gtx.Status = models.GatewayStatusRefunded
		if err := tx.GatewayTransactions().Update(ctx, gtx); err != nil {
			return fmt.Errorf("failed to update gateway transaction: %w", err)
		}
		if deposit.Status != models.DepositStatusApproved {
			return nil
		}

		ledger := s.ledger.WithTx(tx)
		ref := "refund:" + gtx.ExternalChargeID
		_, err = ledger.FindByExternalReference(ctx, deposit.UserID, models.TransactionTypeRefund, ref)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		amount := deposit.PearlAmount
		if refundedMinor > 0 {
			amount = fromMinorUnits(refundedMinor).Mul(s.config.PearlsPerCurrencyUnit).Round(2)
			if amount.GreaterThan(deposit.PearlAmount) {
				amount = deposit.PearlAmount
			}
		}

		receipt, err = ledger.Credit(ctx, wallet.Entry{
			UserID:            deposit.UserID,
			Amount:            amount,
			Type:              models.TransactionTypeRefund,
			Description:       "Refund of deposit " + deposit.Reference,
			ExternalReference: ref,
			Metadata: models.JSON{
				"deposit_id": deposit.ID,
				"charge_id":  gtx.ExternalChargeID,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if receipt != nil {
		s.logger.Info("charge refund recorded",
			zap.String("charge_id", gtx.ExternalChargeID),
			zap.String("amount", receipt.Transaction.Amount.StringFixed(2)))
		if !s.joined {
			s.notifier.BalanceChanged(ctx, receipt.Transaction.UserID, receipt.Transaction, receipt.Balance.StringFixed(2))
		}
	}
	return receipt, nil
}
