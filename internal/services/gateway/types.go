package gateway

import (
	"time"

	"pearlbingo/internal/models"
	"pearlbingo/internal/services/wallet"

	"github.com/shopspring/decimal"
)

// Config holds gateway and deposit policy.
type Config struct {
	Currency              string
	Timeout               time.Duration
	MaxRetries            int
	RetryBackoff          time.Duration
	DepositExpiry         time.Duration
	PearlsPerCurrencyUnit decimal.Decimal
	MinDeposit            decimal.Decimal
	MaxDeposit            decimal.Decimal
	WebhookSecret         string
	WebhookTolerance      time.Duration
	BankName              string
	BankAccount           string
}

// PaymentRequest is a client's request to add balance.
type PaymentRequest struct {
	UserID      uint            `validate:"required"`
	Amount      decimal.Decimal `validate:"-"`
	Method      string          `validate:"required,oneof=card bank_transfer"`
	CardToken   string          `validate:"required_if=Method card,max=255"`
	Description string          `validate:"max=500"`
	IP          string          `validate:"omitempty,ip"`
	UserAgent   string
}

// BankInstructions tell the user where to send a bank transfer.
type BankInstructions struct {
	BankName  string    `json:"bank_name"`
	Account   string    `json:"account"`
	Reference string    `json:"reference"`
	Amount    string    `json:"amount"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Result is returned for every payment attempt. Gateway failures are reported
// here rather than as an error.
type Result struct {
	Success           bool              `json:"success"`
	DepositID         uint              `json:"deposit_id,omitempty"`
	Reference         string            `json:"reference,omitempty"`
	Status            string            `json:"status,omitempty"`
	GatewayStatus     string            `json:"gateway_status,omitempty"`
	ChargeID          string            `json:"charge_id,omitempty"`
	AuthorizationCode string            `json:"authorization_code,omitempty"`
	PearlAmount       decimal.Decimal   `json:"pearl_amount"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
	Instructions      *BankInstructions `json:"instructions,omitempty"`
	Flags             []string          `json:"-"`
	ErrorCode         string            `json:"error_code,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	Retryable         bool              `json:"retryable,omitempty"`
}

// Approval is the outcome of AutoApproveDeposit. Applied is false when the
// deposit had already left PENDING or had expired. Expired is set when this
// call moved the deposit to EXPIRED.
type Approval struct {
	Deposit *models.DepositRequest
	Receipt *wallet.Receipt
	Applied bool
	Expired bool
}

// ChargeUpdate is a charge status reported by the gateway.
type ChargeUpdate struct {
	Status            string
	FailureCode       string
	FailureMessage    string
	AuthorizationCode string
}
