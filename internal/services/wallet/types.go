package wallet

import (
	"time"

	"pearlbingo/internal/models"

	"github.com/shopspring/decimal"
)

// Config holds ledger policy. Zero spend limits mean unlimited.
type Config struct {
	DailySpendLimit   decimal.Decimal
	MonthlySpendLimit decimal.Decimal
	CommissionRate    decimal.Decimal
	// StrictCheck re-verifies the ledger sum inside every mutation.
	StrictCheck       bool
	ProcessingTimeout time.Duration
}

// Entry describes one single-wallet ledger effect.
type Entry struct {
	UserID            uint
	Amount            decimal.Decimal
	Type              models.TransactionType
	Description       string
	ExternalReference string
	Metadata          models.JSON
}

// Receipt is the committed entry and the balance it produced. Replayed marks
// an entry that already existed when CreditOnce was called.
type Receipt struct {
	Transaction *models.Transaction `json:"transaction"`
	Balance     decimal.Decimal     `json:"balance"`
	Replayed    bool                `json:"replayed,omitempty"`
}

type TransferRequest struct {
	FromUserID  uint
	ToUserID    uint
	Amount      decimal.Decimal
	Commission  decimal.Decimal
	Description string
}

// TransferResult carries both sides of a completed transfer. Commission is nil
// when no commission was charged.
type TransferResult struct {
	FromTransaction  *models.Transaction `json:"from_transaction"`
	CommissionEntry  *models.Transaction `json:"commission_transaction,omitempty"`
	ToTransaction    *models.Transaction `json:"to_transaction"`
	SenderBalance    decimal.Decimal     `json:"sender_balance"`
	RecipientBalance decimal.Decimal     `json:"recipient_balance"`
}

// Balance is the read model returned by GetBalance.
type Balance struct {
	UserID             uint            `json:"user_id"`
	Balance            decimal.Decimal `json:"balance"`
	DailySpendLimit    decimal.Decimal `json:"daily_spend_limit"`
	MonthlySpendLimit  decimal.Decimal `json:"monthly_spend_limit"`
	DailySpent         decimal.Decimal `json:"daily_spent"`
	MonthlySpent       decimal.Decimal `json:"monthly_spent"`
	IsActive           bool            `json:"is_active"`
	IsFrozen           bool            `json:"is_frozen"`
	ReconciliationHold bool            `json:"reconciliation_hold"`
}

// HistoryQuery filters ListTransactions. Limit is clamped to MaxHistoryLimit.
type HistoryQuery struct {
	Types  []models.TransactionType
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// LedgerReport compares the stored balance with the signed sum of COMPLETED entries.
type LedgerReport struct {
	UserID     uint            `json:"user_id"`
	Balance    decimal.Decimal `json:"balance"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Consistent bool            `json:"consistent"`
}

// MetricsCollector defines the interface for collecting wallet metrics
type MetricsCollector interface {
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)
	RecordError(operation, code string)
	RecordTransaction(txType string, amount float64)
	RecordInvariantViolation(userID uint)
}
