package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"pearlbingo/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestTranslateStripeError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      ErrorKind
		code      string
		retryable bool
	}{
		{
			name: "card declined",
			err:  &stripe.Error{Type: stripe.ErrorType("card_error"), Code: stripe.ErrorCode("card_declined"), ChargeID: "ch_1", HTTPStatusCode: http.StatusPaymentRequired},
			kind: KindDeclined,
			code: "card_declined",
		},
		{
			name: "invalid request",
			err:  &stripe.Error{Type: stripe.ErrorType("invalid_request_error"), HTTPStatusCode: http.StatusBadRequest},
			kind: KindInvalid,
			code: "invalid_request_error",
		},
		{
			name:      "server error",
			err:       &stripe.Error{Type: stripe.ErrorType("api_error"), HTTPStatusCode: http.StatusServiceUnavailable},
			kind:      KindUnavailable,
			code:      "api_error",
			retryable: true,
		},
		{
			name:      "rate limited",
			err:       &stripe.Error{Type: stripe.ErrorType("invalid_request_error"), Code: stripe.ErrorCode("rate_limit"), HTTPStatusCode: http.StatusTooManyRequests},
			kind:      KindUnavailable,
			code:      "rate_limit",
			retryable: true,
		},
		{
			name:      "network timeout",
			err:       timeoutError{},
			kind:      KindTimeout,
			code:      "timeout",
			retryable: true,
		},
		{
			name:      "deadline",
			err:       context.DeadlineExceeded,
			kind:      KindTimeout,
			code:      "timeout",
			retryable: true,
		},
		{
			name:      "connection refused",
			err:       errors.New("dial tcp: connection refused"),
			kind:      KindUnavailable,
			code:      "unavailable",
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gerr *Error
			require.ErrorAs(t, translateStripeError(tt.err), &gerr)
			assert.Equal(t, tt.kind, gerr.Kind)
			assert.Equal(t, tt.code, gerr.Code)
			assert.Equal(t, tt.retryable, gerr.Retryable())
		})
	}
}

func TestChargeStatus(t *testing.T) {
	assert.Equal(t, models.GatewayStatusSucceeded, chargeStatus("succeeded"))
	assert.Equal(t, models.GatewayStatusFailed, chargeStatus("failed"))
	assert.Equal(t, models.GatewayStatusInProgress, chargeStatus("pending"))
	assert.Equal(t, models.GatewayStatusCancelled, chargeStatus("canceled"))
	assert.Equal(t, models.GatewayStatusUnknown, chargeStatus("weird"))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(25050), toMinorUnits(mustDecimal("250.50")))
	assert.Equal(t, "12.34", fromMinorUnits(1234).StringFixed(2))
}

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }
