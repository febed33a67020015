package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gateway-reported charge statuses, normalised.
const (
	GatewayStatusInProgress = "in_progress"
	GatewayStatusSucceeded  = "succeeded"
	GatewayStatusFailed     = "failed"
	GatewayStatusCancelled  = "cancelled"
	GatewayStatusRefunded   = "refunded"
	GatewayStatusUnknown    = "unknown"
)

// GatewayTransaction is one attempted charge. ExternalChargeID is the webhook dedup key.
type GatewayTransaction struct {
	ID                uint            `gorm:"primarykey" json:"id"`
	DepositRequestID  uint            `gorm:"index;not null" json:"deposit_request_id"`
	ExternalChargeID  string          `gorm:"uniqueIndex;size:128;not null" json:"external_charge_id"`
	CustomerID        string          `gorm:"size:128" json:"customer_id,omitempty"`
	Method            string          `gorm:"size:32" json:"method"`
	Amount            decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Status            string          `gorm:"size:32;not null" json:"status"`
	ErrorCode         string          `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	AuthorizationCode string          `gorm:"size:64" json:"authorization_code,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsSettled reports whether the gateway has captured the charge. A settled
// charge only moves from succeeded to refunded.
func (g *GatewayTransaction) IsSettled() bool {
	return g.Status == GatewayStatusSucceeded || g.Status == GatewayStatusRefunded
}
