// Package webhook ingests gateway callbacks exactly once per external event id.
//
// An event moves pending -> processed, or pending -> failed when its handler
// errors. A failed delivery leaves no ledger effect behind and is retried by
// the gateway; a processed one is acknowledged without re-running handlers.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/logger"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"
	"pearlbingo/internal/services/gateway"
	"pearlbingo/internal/services/notification"

	"go.uber.org/zap"
)

const (
	StatusProcessed        = "processed"
	StatusAlreadyProcessed = "already_processed"
)

// Outcome is reported back to the gateway on success. Code is set for
// redelivered events.
type Outcome struct {
	Status    string `json:"status"`
	Code      string `json:"code,omitempty"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}

type Pipeline struct {
	store    repositories.Store
	gateway  gateway.Service
	notifier notification.Notifier
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewPipeline(
	store repositories.Store,
	gw gateway.Service,
	notifier notification.Notifier,
	metrics *Metrics,
	log *zap.Logger,
) *Pipeline {
	if store == nil {
		panic("store is required")
	}
	if gw == nil {
		panic("gateway service is required")
	}
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Pipeline{
		store:    store,
		gateway:  gw,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.OrNop(log).Named("webhook"),
		now:      time.Now,
	}
}

// effect runs after the event's transaction commits.
type effect func(ctx context.Context)

// Process verifies, records and applies one delivery.
func (p *Pipeline) Process(ctx context.Context, signature, timestamp string, payload []byte) (*Outcome, error) {
	if err := p.gateway.VerifyWebhookSignature(signature, timestamp, payload); err != nil {
		p.metrics.observe("unverified", "rejected")
		p.logger.Warn("webhook signature rejected", zap.Error(err))
		return nil, err
	}

	event, err := Parse(payload)
	if err != nil {
		p.metrics.observe("unparsed", "rejected")
		return nil, err
	}
	label := metricLabel(event)
	log := p.logger.With(zap.String("event_id", event.EventID()), zap.String("event_type", event.EventType()))

	record, err := p.record(ctx, event, payload)
	if err != nil {
		return nil, err
	}
	if record.Status == models.WebhookStatusProcessed {
		log.Info("webhook already processed")
		return p.duplicate(event, label), nil
	}

	var effects []effect
	err = p.store.WithinTx(ctx, func(tx repositories.Store) error {
		locked, err := tx.WebhookEvents().LockByExternalID(ctx, event.EventID())
		if err != nil {
			return fmt.Errorf("failed to lock webhook event: %w", err)
		}
		if locked.Status == models.WebhookStatusProcessed {
			return apperrors.ErrDuplicateWebhookEvent
		}

		effects, err = p.dispatch(ctx, p.gateway.WithTx(tx), event, log)
		if err != nil {
			return err
		}

		now := p.now()
		locked.Status = models.WebhookStatusProcessed
		locked.Attempts++
		locked.ErrorMessage = ""
		locked.ProcessedAt = &now
		return tx.WebhookEvents().Update(ctx, locked)
	})
	if errors.Is(err, apperrors.ErrDuplicateWebhookEvent) {
		log.Info("webhook processed concurrently")
		return p.duplicate(event, label), nil
	}
	if err != nil {
		p.markFailed(ctx, event, err, log)
		p.metrics.observe(label, models.WebhookStatusFailed)
		return nil, apperrors.Wrap(apperrors.CodeWebhookFailed, err, "webhook processing failed")
	}
	for _, fire := range effects {
		fire(ctx)
	}
	p.metrics.observe(label, StatusProcessed)
	log.Info("webhook processed")
	return p.outcome(event, StatusProcessed), nil
}

// record returns the stored event, inserting it as pending on first delivery.
func (p *Pipeline) record(ctx context.Context, event Event, payload []byte) (*models.WebhookEvent, error) {
	existing, err := p.store.WebhookEvents().GetByExternalID(ctx, event.EventID())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	record := &models.WebhookEvent{
		ExternalEventID: event.EventID(),
		EventType:       event.EventType(),
		Payload:         string(payload),
		Status:          models.WebhookStatusPending,
		ReceivedAt:      p.now(),
	}
	err = p.store.WebhookEvents().Create(ctx, record)
	if errors.Is(err, repositories.ErrDuplicate) {
		return p.store.WebhookEvents().GetByExternalID(ctx, event.EventID())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return record, nil
}

func (p *Pipeline) markFailed(ctx context.Context, event Event, cause error, log *zap.Logger) {
	log.Error("webhook processing failed", zap.Error(cause))

	ctx = context.WithoutCancel(ctx)
	record, err := p.store.WebhookEvents().GetByExternalID(ctx, event.EventID())
	if err != nil {
		log.Error("failed to load webhook event", zap.Error(err))
		return
	}
	if record.Status == models.WebhookStatusProcessed {
		return
	}
	record.Status = models.WebhookStatusFailed
	record.Attempts++
	record.ErrorMessage = cause.Error()
	if err := p.store.WebhookEvents().Update(ctx, record); err != nil {
		log.Error("failed to mark webhook event failed", zap.Error(err))
	}
}

func (p *Pipeline) outcome(event Event, status string) *Outcome {
	return &Outcome{Status: status, EventID: event.EventID(), EventType: event.EventType()}
}

// duplicate acknowledges a redelivered event without applying it again.
func (p *Pipeline) duplicate(event Event, label string) *Outcome {
	p.metrics.observe(label, StatusAlreadyProcessed)
	out := p.outcome(event, StatusAlreadyProcessed)
	out.Code = apperrors.ErrDuplicateWebhookEvent.Code
	return out
}

func metricLabel(event Event) string {
	if _, ok := event.(*UnknownEvent); ok {
		return "unknown"
	}
	return event.EventType()
}
