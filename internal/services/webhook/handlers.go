package webhook

import (
	"context"

	"pearlbingo/internal/models"
	"pearlbingo/internal/services/gateway"

	"go.uber.org/zap"
)

// dispatch applies event through gw, which is joined to the event's transaction.
func (p *Pipeline) dispatch(ctx context.Context, gw gateway.Service, event Event, log *zap.Logger) ([]effect, error) {
	switch e := event.(type) {
	case *ChargeEvent:
		return p.handleCharge(ctx, gw, e, log)
	case *PayoutEvent:
		log.Info("payout event recorded",
			zap.String("payout_id", e.PayoutID),
			zap.String("status", e.Status))
		return nil, nil
	default:
		log.Info("ignoring unknown webhook event")
		return nil, nil
	}
}

func (p *Pipeline) handleCharge(ctx context.Context, gw gateway.Service, e *ChargeEvent, log *zap.Logger) ([]effect, error) {
	log = log.With(zap.String("charge_id", e.ChargeID))

	switch e.Type {
	case TypeChargeSucceeded:
		return p.chargeSucceeded(ctx, gw, e, log)
	case TypeChargeFailed:
		return p.chargeClosed(ctx, gw, e, models.GatewayStatusFailed, models.DepositStatusRejected, log)
	case TypeChargeCancelled, TypeChargeCanceled:
		return p.chargeClosed(ctx, gw, e, models.GatewayStatusCancelled, models.DepositStatusCancelled, log)
	case TypeChargeRefunded:
		return p.chargeRefunded(ctx, gw, e, log)
	case TypeChargePending:
		gtx, err := gw.LookupCharge(ctx, e.ChargeID, e.DepositID)
		if err != nil {
			return nil, err
		}
		return nil, gw.RecordChargeStatus(ctx, gtx, gateway.ChargeUpdate{Status: models.GatewayStatusInProgress})
	}

	log.Info("ignoring unhandled charge event")
	return nil, nil
}

func (p *Pipeline) chargeSucceeded(ctx context.Context, gw gateway.Service, e *ChargeEvent, log *zap.Logger) ([]effect, error) {
	gtx, err := gw.LookupCharge(ctx, e.ChargeID, e.DepositID)
	if err != nil {
		return nil, err
	}
	err = gw.RecordChargeStatus(ctx, gtx, gateway.ChargeUpdate{
		Status:            models.GatewayStatusSucceeded,
		AuthorizationCode: e.AuthorizationCode,
	})
	if err != nil {
		return nil, err
	}

	approval, err := gw.AutoApproveDeposit(ctx, gtx.DepositRequestID, gtx.ID)
	if err != nil {
		return nil, err
	}

	deposit := approval.Deposit
	switch {
	case approval.Applied:
		receipt := approval.Receipt
		return []effect{
			func(ctx context.Context) {
				p.notifier.BalanceChanged(ctx, deposit.UserID, receipt.Transaction, receipt.Balance.StringFixed(2))
			},
			func(ctx context.Context) { p.notifier.DepositResolved(ctx, deposit) },
		}, nil
	case approval.Expired:
		log.Warn("stale charge for expired deposit ignored", zap.Uint("deposit_id", deposit.ID))
		return []effect{func(ctx context.Context) { p.notifier.DepositResolved(ctx, deposit) }}, nil
	case deposit.Status != models.DepositStatusApproved:
		log.Warn("stale charge ignored",
			zap.Uint("deposit_id", deposit.ID),
			zap.String("deposit_status", deposit.Status))
	}
	return nil, nil
}

func (p *Pipeline) chargeClosed(ctx context.Context, gw gateway.Service, e *ChargeEvent, gatewayStatus, depositStatus string, log *zap.Logger) ([]effect, error) {
	gtx, err := gw.LookupCharge(ctx, e.ChargeID, e.DepositID)
	if err != nil {
		return nil, err
	}
	err = gw.RecordChargeStatus(ctx, gtx, gateway.ChargeUpdate{
		Status:         gatewayStatus,
		FailureCode:    e.FailureCode,
		FailureMessage: e.FailureMessage,
	})
	if err != nil {
		return nil, err
	}

	notes := e.FailureMessage
	if notes == "" {
		notes = "charge " + gatewayStatus
	}
	deposit, changed, err := gw.CloseDeposit(ctx, gtx.DepositRequestID, depositStatus, notes)
	if err != nil {
		return nil, err
	}
	if !changed {
		log.Info("deposit already resolved", zap.Uint("deposit_id", deposit.ID), zap.String("deposit_status", deposit.Status))
		return nil, nil
	}
	return []effect{func(ctx context.Context) { p.notifier.DepositResolved(ctx, deposit) }}, nil
}

func (p *Pipeline) chargeRefunded(ctx context.Context, gw gateway.Service, e *ChargeEvent, log *zap.Logger) ([]effect, error) {
	gtx, err := gw.LookupCharge(ctx, e.ChargeID, e.DepositID)
	if err != nil {
		return nil, err
	}
	receipt, err := gw.RefundCharge(ctx, gtx, e.AmountRefundedMinor)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		log.Info("refund has no ledger effect")
		return nil, nil
	}
	return []effect{func(ctx context.Context) {
		p.notifier.BalanceChanged(ctx, receipt.Transaction.UserID, receipt.Transaction, receipt.Balance.StringFixed(2))
	}}, nil
}
