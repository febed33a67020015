package repositories

import (
	"context"
	"fmt"

	"pearlbingo/internal/models"

	"gorm.io/gorm"
)

type gameRepository struct {
	db *gorm.DB
}

func (r *gameRepository) Create(ctx context.Context, g *models.Game) error {
	if err := r.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

func (r *gameRepository) GetByID(ctx context.Context, id uint) (*models.Game, error) {
	var g models.Game
	if err := r.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

// CountPlayers counts distinct users holding at least one card in the game.
func (r *gameRepository) CountPlayers(ctx context.Context, gameID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.BingoCard{}).
		Where("game_id = ?", gameID).
		Distinct("user_id").
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return n, nil
}

func (r *gameRepository) HasPlayer(ctx context.Context, gameID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.BingoCard{}).
		Where("game_id = ? AND user_id = ?", gameID, userID).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check player: %w", err)
	}
	return n > 0, nil
}

func (r *gameRepository) CreateCards(ctx context.Context, cards []*models.BingoCard) error {
	if len(cards) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&cards).Error; err != nil {
		return fmt.Errorf("failed to create bingo cards: %w", err)
	}
	return nil
}

func (r *gameRepository) ListCards(ctx context.Context, gameID, userID uint) ([]models.BingoCard, error) {
	var cards []models.BingoCard
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND user_id = ?", gameID, userID).
		Order("id ASC").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bingo cards: %w", err)
	}
	return cards, nil
}
