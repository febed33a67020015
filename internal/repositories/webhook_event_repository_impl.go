package repositories

import (
	"context"
	"fmt"

	"pearlbingo/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookEventRepository struct {
	db *gorm.DB
}

func (r *webhookEventRepository) GetByExternalID(ctx context.Context, externalID string) (*models.WebhookEvent, error) {
	var e models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("external_event_id = ?", externalID).First(&e).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

// Create returns ErrDuplicate when the external event id is already recorded.
func (r *webhookEventRepository) Create(ctx context.Context, e *models.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *webhookEventRepository) LockByExternalID(ctx context.Context, externalID string) (*models.WebhookEvent, error) {
	var e models.WebhookEvent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_event_id = ?", externalID).
		First(&e).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r *webhookEventRepository) Update(ctx context.Context, e *models.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Save(e).Error; err != nil {
		return fmt.Errorf("failed to update webhook event: %w", err)
	}
	return nil
}
