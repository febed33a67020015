package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DepositStatusPending   = "PENDING"
	DepositStatusApproved  = "APPROVED"
	DepositStatusRejected  = "REJECTED"
	DepositStatusCancelled = "CANCELLED"
	DepositStatusExpired   = "EXPIRED"

	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
)

// DepositRequest is a user's intent to add balance through the gateway or a bank transfer.
type DepositRequest struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	Reference     string          `gorm:"uniqueIndex;size:64;not null" json:"reference"`
	UserID        uint            `gorm:"index;not null" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	PearlAmount   decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"pearl_amount"`
	PaymentMethod string          `gorm:"size:32;not null" json:"payment_method"`
	Status        string          `gorm:"size:16;index;not null;default:'PENDING'" json:"status"`
	ExpiresAt     time.Time       `gorm:"index" json:"expires_at"`
	AdminNotes    string          `json:"admin_notes,omitempty"`
	TransactionID *uint           `json:"transaction_id,omitempty"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (d *DepositRequest) IsPending() bool { return d.Status == DepositStatusPending }

// IsExpired reports whether a still-pending request has outlived its window.
func (d *DepositRequest) IsExpired(now time.Time) bool {
	return d.IsPending() && !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt)
}
