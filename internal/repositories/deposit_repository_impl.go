package repositories

import (
	"context"
	"fmt"
	"time"

	"pearlbingo/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type depositRepository struct {
	db *gorm.DB
}

func (r *depositRepository) Create(ctx context.Context, d *models.DepositRequest) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create deposit request: %w", translate(err))
	}
	return nil
}

func (r *depositRepository) GetByID(ctx context.Context, id uint) (*models.DepositRequest, error) {
	var d models.DepositRequest
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *depositRepository) LockByID(ctx context.Context, id uint) (*models.DepositRequest, error) {
	var d models.DepositRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&d, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *depositRepository) Update(ctx context.Context, d *models.DepositRequest) error {
	if err := r.db.WithContext(ctx).Save(d).Error; err != nil {
		return fmt.Errorf("failed to update deposit request: %w", err)
	}
	return nil
}

func (r *depositRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.DepositRequest, error) {
	var items []models.DepositRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.DepositStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired deposits: %w", err)
	}
	return items, nil
}
