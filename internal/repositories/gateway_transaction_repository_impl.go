package repositories

import (
	"context"
	"fmt"

	"pearlbingo/internal/models"

	"gorm.io/gorm"
)

type gatewayTransactionRepository struct {
	db *gorm.DB
}

func (r *gatewayTransactionRepository) Create(ctx context.Context, g *models.GatewayTransaction) error {
	if err := r.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("failed to create gateway transaction: %w", translate(err))
	}
	return nil
}

func (r *gatewayTransactionRepository) GetByID(ctx context.Context, id uint) (*models.GatewayTransaction, error) {
	var g models.GatewayTransaction
	if err := r.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (r *gatewayTransactionRepository) GetByExternalChargeID(ctx context.Context, chargeID string) (*models.GatewayTransaction, error) {
	var g models.GatewayTransaction
	if err := r.db.WithContext(ctx).Where("external_charge_id = ?", chargeID).First(&g).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (r *gatewayTransactionRepository) ListByDepositRequestID(ctx context.Context, depositID uint) ([]models.GatewayTransaction, error) {
	var items []models.GatewayTransaction
	err := r.db.WithContext(ctx).
		Where("deposit_request_id = ?", depositID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list gateway transactions: %w", err)
	}
	return items, nil
}

func (r *gatewayTransactionRepository) Update(ctx context.Context, g *models.GatewayTransaction) error {
	if err := r.db.WithContext(ctx).Save(g).Error; err != nil {
		return fmt.Errorf("failed to update gateway transaction: %w", err)
	}
	return nil
}
