package repositories

import (
	"context"
	"fmt"

	"pearlbingo/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type walletRepository struct {
	db *gorm.DB
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, translate(err)
	}
	return &wallet, nil
}

func (r *walletRepository) Ensure(ctx context.Context, wallet *models.Wallet) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(wallet).Error
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", translate(err))
	}
	return nil
}

func (r *walletRepository) LockByUserIDs(ctx context.Context, userIDs ...uint) ([]*models.Wallet, error) {
	var wallets []*models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id IN ?", userIDs).
		Order("id ASC").
		Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallets: %w", err)
	}
	if len(wallets) != len(distinct(userIDs)) {
		return nil, ErrNotFound
	}
	return wallets, nil
}

func (r *walletRepository) Update(ctx context.Context, wallet *models.Wallet) error {
	if err := r.db.WithContext(ctx).Save(wallet).Error; err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	return nil
}

func distinct(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
