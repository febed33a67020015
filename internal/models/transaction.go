package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeCardPurchase TransactionType = "CARD_PURCHASE"
	TransactionTypePrizePayout  TransactionType = "PRIZE_PAYOUT"
	TransactionTypeDeposit      TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal   TransactionType = "WITHDRAWAL"
	TransactionTypeTransferOut  TransactionType = "P2P_TRANSFER_OUT"
	TransactionTypeTransferIn   TransactionType = "P2P_TRANSFER_IN"
	TransactionTypeCommission   TransactionType = "COMMISSION"
	TransactionTypeRefund       TransactionType = "REFUND"
)

const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
	TransactionStatusRefunded  = "REFUNDED"
)

// Sign is +1 for types that add to the balance and -1 for types that remove from it.
func (t TransactionType) Sign() int {
	switch t {
	case TransactionTypePrizePayout, TransactionTypeDeposit, TransactionTypeTransferIn, TransactionTypeRefund:
		return 1
	case TransactionTypeCardPurchase, TransactionTypeWithdrawal, TransactionTypeTransferOut, TransactionTypeCommission:
		return -1
	}
	return 0
}

func (t TransactionType) IsCredit() bool { return t.Sign() > 0 }
func (t TransactionType) IsDebit() bool  { return t.Sign() < 0 }

// SpendTypes count toward daily and monthly spend limits.
var SpendTypes = []TransactionType{
	TransactionTypeCardPurchase,
	TransactionTypeTransferOut,
	TransactionTypeCommission,
}

// Transaction is an append-only ledger entry. Amount is always positive; Type carries the sign.
type Transaction struct {
	ID                uint            `gorm:"primarykey" json:"id"`
	Reference         string          `gorm:"uniqueIndex;size:64;not null" json:"reference"`
	UserID            uint            `gorm:"index;not null" json:"user_id"`
	Type              TransactionType `gorm:"size:32;index;not null" json:"type"`
	Amount            decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	CounterpartyID    *uint           `json:"counterparty_id,omitempty"`
	Status            string          `gorm:"size:16;not null;default:'PENDING'" json:"status"`
	ExternalReference string          `gorm:"size:128;index" json:"external_reference,omitempty"`
	Description       string          `json:"description"`
	Metadata          JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// SignedAmount is the effect of a completed entry on the owner's balance.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Status != TransactionStatusCompleted {
		return decimal.Zero
	}
	return t.Amount.Mul(decimal.NewFromInt(int64(t.Type.Sign())))
}
