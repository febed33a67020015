package wallet

import (
	"context"

	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"

	"github.com/shopspring/decimal"
)

// Service defines the main wallet service interface
type Service interface {
	// Core ledger operations
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	GetBalance(ctx context.Context, userID uint) (*Balance, error)
	Debit(ctx context.Context, e Entry) (*Receipt, error)
	Credit(ctx context.Context, e Entry) (*Receipt, error)
	CreditOnce(ctx context.Context, e Entry) (*Receipt, error)
	TransferPearls(ctx context.Context, req TransferRequest) (*TransferResult, error)
	CommissionFor(amount decimal.Decimal) decimal.Decimal

	// History and reconciliation
	ListTransactions(ctx context.Context, userID uint, q HistoryQuery) ([]models.Transaction, int64, error)
	FindByExternalReference(ctx context.Context, userID uint, txType models.TransactionType, ref string) (*models.Transaction, error)
	VerifyLedger(ctx context.Context, userID uint) (*LedgerReport, error)

	// Administration
	FreezeWallet(ctx context.Context, userID uint, reason string) error
	UnfreezeWallet(ctx context.Context, userID uint) error
	SetActive(ctx context.Context, userID uint, active bool) error
	ClearReconciliationHold(ctx context.Context, userID uint) error
	AdminAdjust(ctx context.Context, userID uint, amount decimal.Decimal, reason string) (*Receipt, error)

	// WithTx returns a Service whose operations join tx instead of opening their own.
	WithTx(tx repositories.Store) Service
}
