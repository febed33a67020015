package gateway

import (
	"context"
	"errors"
	"fmt"

	"pearlbingo/internal/models"
)

// ChargeClient is the slice of the payment gateway the adapter needs.
type ChargeClient interface {
	EnsureCustomer(ctx context.Context, user *models.User) (string, error)
	CreateCharge(ctx context.Context, params ChargeParams) (*Charge, error)
	GetCharge(ctx context.Context, chargeID string) (*Charge, error)
}

type ChargeParams struct {
	CustomerID     string
	Token          string
	AmountMinor    int64
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// Charge is the gateway's view of one charge.
type Charge struct {
	ID                  string
	Status              string
	AmountMinor         int64
	AmountRefundedMinor int64
	FailureCode         string
	FailureMessage      string
	AuthorizationCode   string
}

type ErrorKind int

const (
	KindUnavailable ErrorKind = iota
	KindTimeout
	KindDeclined
	KindInvalid
)

// Error is a classified gateway failure.
type Error struct {
	Kind     ErrorKind
	Code     string
	Message  string
	ChargeID string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindUnavailable
}

// classify turns any client error into a *Error.
func classify(err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Code: "timeout", Message: "gateway request timed out", Err: err}
	}
	return &Error{Kind: KindUnavailable, Code: "unavailable", Message: "gateway request failed", Err: err}
}

func chargeStatus(gatewayStatus string) string {
	switch gatewayStatus {
	case "succeeded", "paid":
		return models.GatewayStatusSucceeded
	case "failed", "declined":
		return models.GatewayStatusFailed
	case "pending", "in_progress":
		return models.GatewayStatusInProgress
	case "cancelled", "canceled":
		return models.GatewayStatusCancelled
	case "refunded":
		return models.GatewayStatusRefunded
	}
	return models.GatewayStatusUnknown
}
