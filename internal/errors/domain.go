// Package errors defines the typed failures returned across the ledger core.
//
// Expected business failures travel as *DomainError values; callers match them
// with errors.Is against the sentinel values below, which compares by Code.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeWalletUnavailable   = "WALLET_FROZEN_OR_INACTIVE"
	CodeWalletNotFound      = "WALLET_NOT_FOUND"
	CodeSpendLimitExceeded  = "SPEND_LIMIT_EXCEEDED"
	CodeRecipientInvalid    = "RECIPIENT_INVALID"
	CodeRecipientInactive   = "RECIPIENT_INACTIVE"
	CodeSelfTransfer        = "SELF_TRANSFER"
	CodeReconciliationHold  = "RECONCILIATION_HOLD"
	CodeInvariantViolation  = "INTERNAL_INVARIANT_VIOLATION"
	CodeDuplicateWebhook    = "DUPLICATE_WEBHOOK_EVENT"
	CodeSignatureInvalid    = "SIGNATURE_INVALID"
	CodeGatewayUnavailable  = "GATEWAY_UNAVAILABLE"
	CodeGatewayTimeout      = "GATEWAY_TIMEOUT"
	CodeRateLimited         = "RATE_LIMITED"
	CodeGameNotJoinable     = "GAME_NOT_JOINABLE"
	CodeDepositNotPending   = "DEPOSIT_NOT_PENDING"
	CodeWebhookFailed       = "WEBHOOK_PROCESSING_FAILED"
)

type DomainError struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New builds a DomainError with a custom message for a known code.
func New(code, format string, args ...interface{}) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation reports bad input shape or range; the message is shown verbatim.
func Validation(format string, args ...interface{}) *DomainError {
	return New(CodeValidation, format, args...)
}

// Wrap attaches an underlying cause to a known code.
func Wrap(code string, err error, format string, args ...interface{}) *DomainError {
	d := New(code, format, args...)
	d.Err = err
	d.Retryable = code == CodeGatewayUnavailable || code == CodeGatewayTimeout || code == CodeWebhookFailed
	return d
}

// CodeOf returns the DomainError code in err's chain, or "" for plain errors.
func CodeOf(err error) string {
	var d *DomainError
	if errors.As(err, &d) {
		return d.Code
	}
	return ""
}

// IsRetryable reports whether err is a transient infrastructure failure.
func IsRetryable(err error) bool {
	var d *DomainError
	if errors.As(err, &d) {
		return d.Retryable
	}
	return false
}
