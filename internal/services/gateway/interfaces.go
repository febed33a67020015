package gateway

import (
	"context"
	"time"

	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"
	"pearlbingo/internal/services/fraud"
	"pearlbingo/internal/services/wallet"
)

// Service fronts the payment gateway and owns the deposit lifecycle.
type Service interface {
	// Client payment attempts
	InitiateDeposit(ctx context.Context, req PaymentRequest) (*Result, error)
	CreateCardCharge(ctx context.Context, req PaymentRequest) (*Result, error)
	CreateBankTransfer(ctx context.Context, req PaymentRequest) (*Result, error)

	// Deposit lifecycle
	AutoApproveDeposit(ctx context.Context, depositID, gatewayTxID uint) (*Approval, error)
	ApproveDeposit(ctx context.Context, depositID uint, notes string) (*Approval, error)
	RejectDeposit(ctx context.Context, depositID uint, notes string) (*models.DepositRequest, error)
	CancelDeposit(ctx context.Context, userID, depositID uint) (*models.DepositRequest, error)
	ExpireStaleDeposits(ctx context.Context, now time.Time) (int, error)

	// Webhook support
	VerifyWebhookSignature(signature, timestamp string, payload []byte) error
	LookupCharge(ctx context.Context, chargeID string, depositHint uint) (*models.GatewayTransaction, error)
	RecordChargeStatus(ctx context.Context, gtx *models.GatewayTransaction, update ChargeUpdate) error
	CloseDeposit(ctx context.Context, depositID uint, status, notes string) (*models.DepositRequest, bool, error)
	RefundCharge(ctx context.Context, gtx *models.GatewayTransaction, refundedMinor int64) (*wallet.Receipt, error)

	// WithTx returns a Service whose store operations join tx. Joined services
	// never publish notifications; the caller does that after commit.
	WithTx(tx repositories.Store) Service
}

// Ledger is the part of the wallet service deposits need.
type Ledger interface {
	Credit(ctx context.Context, e wallet.Entry) (*wallet.Receipt, error)
	FindByExternalReference(ctx context.Context, userID uint, txType models.TransactionType, ref string) (*models.Transaction, error)
	WithTx(tx repositories.Store) wallet.Service
}

// Screener vets payment attempts before any gateway call.
type Screener interface {
	Screen(ctx context.Context, attempt fraud.PaymentAttempt) (*fraud.Assessment, error)
}
