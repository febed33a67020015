package purchase

import (
	"context"

	"pearlbingo/internal/models"
	"pearlbingo/internal/services/wallet"

	"github.com/shopspring/decimal"
)

// Service sells bingo cards and pays out prizes on top of the wallet ledger.
type Service interface {
	PurchaseCards(ctx context.Context, userID, gameID uint, count int) (*PurchaseResult, error)
	// AwardPrize is admin-only. Repeating the same user/game/pattern returns the original payout.
	AwardPrize(ctx context.Context, req PrizeRequest) (*wallet.Receipt, error)
}

// Dependencies required by the purchase service
type WalletService interface {
	Debit(ctx context.Context, e wallet.Entry) (*wallet.Receipt, error)
	Credit(ctx context.Context, e wallet.Entry) (*wallet.Receipt, error)
	// CreditOnce is keyed by the entry's external reference.
	CreditOnce(ctx context.Context, e wallet.Entry) (*wallet.Receipt, error)
}

type Config struct {
	MaxCardsPerPurchase int
	DefaultCardPrice    decimal.Decimal
}

type PurchaseResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Cards       []models.BingoCard  `json:"cards"`
	Balance     decimal.Decimal     `json:"balance"`
}

type PrizeRequest struct {
	UserID  uint            `json:"user_id" validate:"required"`
	GameID  uint            `json:"game_id" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Pattern string          `json:"pattern" validate:"required,max=64"`
}
