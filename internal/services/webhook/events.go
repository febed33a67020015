package webhook

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/validation"
)

// Gateway event types the pipeline acts on.
const (
	TypeChargeSucceeded = "charge.succeeded"
	TypeChargeFailed    = "charge.failed"
	TypeChargeCancelled = "charge.cancelled"
	TypeChargeCanceled  = "charge.canceled"
	TypeChargeRefunded  = "charge.refunded"
	TypeChargePending   = "charge.pending"
	payoutPrefix        = "payout."
)

// Event is one of ChargeEvent, PayoutEvent or UnknownEvent.
type Event interface {
	EventID() string
	EventType() string
}

type Meta struct {
	ID      string
	Type    string
	Created time.Time
}

func (m Meta) EventID() string   { return m.ID }
func (m Meta) EventType() string { return m.Type }

type ChargeEvent struct {
	Meta
	ChargeID            string
	AmountMinor         int64
	AmountRefundedMinor int64
	Status              string
	FailureCode         string
	FailureMessage      string
	AuthorizationCode   string
	// DepositID comes from the charge metadata; zero when absent.
	DepositID uint
}

type PayoutEvent struct {
	Meta
	PayoutID    string
	AmountMinor int64
	Status      string
}

type UnknownEvent struct {
	Meta
}

type envelope struct {
	ID      string `json:"id" validate:"required,max=128"`
	Type    string `json:"type" validate:"required,max=64"`
	Created int64  `json:"created"`
	Data    struct {
		Object object `json:"object"`
	} `json:"data"`
}

type object struct {
	ID                string            `json:"id"`
	Amount            int64             `json:"amount"`
	AmountRefunded    int64             `json:"amount_refunded"`
	Status            string            `json:"status"`
	FailureCode       string            `json:"failure_code"`
	FailureMessage    string            `json:"failure_message"`
	AuthorizationCode string            `json:"authorization_code"`
	Metadata          map[string]string `json:"metadata"`
}

// Parse validates a gateway payload and returns its typed event.
func Parse(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, apperrors.Validation("malformed webhook payload")
	}

	v := validation.New()
	v.Struct(env)
	if err := v.Err(); err != nil {
		return nil, err
	}

	meta := Meta{ID: env.ID, Type: env.Type}
	if env.Created > 0 {
		meta.Created = time.Unix(env.Created, 0).UTC()
	}
	obj := env.Data.Object

	switch {
	case strings.HasPrefix(env.Type, "charge."):
		if obj.ID == "" {
			return nil, apperrors.Validation("charge event %s has no charge id", env.ID)
		}
		event := &ChargeEvent{
			Meta:                meta,
			ChargeID:            obj.ID,
			AmountMinor:         obj.Amount,
			AmountRefundedMinor: obj.AmountRefunded,
			Status:              obj.Status,
			FailureCode:         obj.FailureCode,
			FailureMessage:      obj.FailureMessage,
			AuthorizationCode:   obj.AuthorizationCode,
		}
		if raw := obj.Metadata["deposit_id"]; raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, apperrors.Validation("charge event %s has invalid deposit_id", env.ID)
			}
			event.DepositID = uint(id)
		}
		return event, nil
	case strings.HasPrefix(env.Type, payoutPrefix):
		return &PayoutEvent{Meta: meta, PayoutID: obj.ID, AmountMinor: obj.Amount, Status: obj.Status}, nil
	}
	return &UnknownEvent{Meta: meta}, nil
}
