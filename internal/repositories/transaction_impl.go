package repositories

import (
	"context"
	"fmt"
	"time"

	"pearlbingo/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", translate(err))
	}
	return nil
}

// UpdateStatus is the only mutation allowed on a ledger entry.
func (r *transactionRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update transaction status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *transactionRepository) List(ctx context.Context, f TransactionFilter) ([]models.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", f.UserID)
	if len(f.Types) > 0 {
		q = q.Where("type IN ?", f.Types)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	var items []models.Transaction
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return items, total, nil
}

func (r *transactionRepository) SumSigned(ctx context.Context, userID uint) (decimal.Decimal, error) {
	credit := []models.TransactionType{
		models.TransactionTypePrizePayout, models.TransactionTypeDeposit,
		models.TransactionTypeTransferIn, models.TransactionTypeRefund,
	}

	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COALESCE(SUM(CASE WHEN type IN ? THEN amount ELSE -amount END), 0)", credit).
		Where("user_id = ? AND status = ?", userID, models.TransactionStatusCompleted).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return total, nil
}

func (r *transactionRepository) SumByTypes(ctx context.Context, userID uint, types []models.TransactionType, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND status = ? AND type IN ? AND created_at >= ? AND created_at < ?",
			userID, models.TransactionStatusCompleted, types, from, to).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return total, nil
}

func (r *transactionRepository) FindByExternalReference(ctx context.Context, userID uint, txType models.TransactionType, ref string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND external_reference = ?", userID, txType, ref).
		First(&tx).Error
	if err != nil {
		return nil, translate(err)
	}
	return &tx, nil
}
