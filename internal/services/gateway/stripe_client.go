package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"pearlbingo/internal/models"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// StripeClient implements ChargeClient with the Stripe Charges API.
type StripeClient struct {
	api *client.API
}

// NewStripeClient builds a client with its own HTTP timeout. Retries are left
// to the adapter so that every attempt reuses the deposit's idempotency key.
func NewStripeClient(secretKey string, timeout time.Duration) *StripeClient {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
	})
	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{API: backend})
	return &StripeClient{api: api}
}

func (c *StripeClient) EnsureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.GatewayCustomerID != "" {
		return user.GatewayCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email:       stripe.String(user.Email),
		Description: stripe.String(user.Username),
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatUint(uint64(user.ID), 10))
	params.SetIdempotencyKey(fmt.Sprintf("customer-%d", user.ID))

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", translateStripeError(err)
	}
	return cust.ID, nil
}

func (c *StripeClient) CreateCharge(ctx context.Context, p ChargeParams) (*Charge, error) {
	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(p.AmountMinor),
		Currency:    stripe.String(p.Currency),
		Description: stripe.String(p.Description),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	if err := params.SetSource(p.Token); err != nil {
		return nil, &Error{Kind: KindInvalid, Code: "invalid_source", Message: "invalid card token", Err: err}
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.IdempotencyKey)
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	ch, err := c.api.Charges.New(params)
	if err != nil {
		return nil, translateStripeError(err)
	}
	return fromStripeCharge(ch), nil
}

func (c *StripeClient) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx
	ch, err := c.api.Charges.Get(chargeID, params)
	if err != nil {
		return nil, translateStripeError(err)
	}
	return fromStripeCharge(ch), nil
}

func fromStripeCharge(ch *stripe.Charge) *Charge {
	return &Charge{
		ID:                  ch.ID,
		Status:              string(ch.Status),
		AmountMinor:         ch.Amount,
		AmountRefundedMinor: ch.AmountRefunded,
		FailureCode:         ch.FailureCode,
		FailureMessage:      ch.FailureMessage,
		AuthorizationCode:   ch.AuthorizationCode,
	}
}

func translateStripeError(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		gerr := &Error{
			Code:     string(serr.Code),
			Message:  serr.Msg,
			ChargeID: serr.ChargeID,
			Err:      err,
		}
		if gerr.Code == "" {
			gerr.Code = string(serr.Type)
		}
		switch {
		case string(serr.Type) == "card_error":
			gerr.Kind = KindDeclined
		case serr.HTTPStatusCode == http.StatusTooManyRequests, serr.HTTPStatusCode >= 500:
			gerr.Kind = KindUnavailable
		case string(serr.Type) == "invalid_request_error", string(serr.Type) == "idempotency_error":
			gerr.Kind = KindInvalid
		default:
			gerr.Kind = KindUnavailable
		}
		return gerr
	}

	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &Error{Kind: KindTimeout, Code: "timeout", Message: "gateway request timed out", Err: err}
	}
	return &Error{Kind: KindUnavailable, Code: "unavailable", Message: "gateway unreachable", Err: err}
}
