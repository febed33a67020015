package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the single balance row per user. Only the wallet service writes Balance.
type Wallet struct {
	ID                 uint            `gorm:"primarykey" json:"id"`
	UserID             uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance            decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"balance"`
	DailySpendLimit    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"daily_spend_limit"`
	MonthlySpendLimit  decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"monthly_spend_limit"`
	IsFrozen           bool            `gorm:"not null;default:false" json:"is_frozen"`
	IsActive           bool            `gorm:"not null;default:true" json:"is_active"`
	ReconciliationHold bool            `gorm:"not null;default:false" json:"reconciliation_hold"`
	StatusReason       string          `gorm:"default:''" json:"status_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// CanSpend reports whether debits and outgoing transfers are allowed.
func (w *Wallet) CanSpend() bool {
	return w.IsActive && !w.IsFrozen && !w.ReconciliationHold
}
