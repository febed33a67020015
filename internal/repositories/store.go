package repositories

import (
	"context"
	"errors"
	"time"

	"pearlbingo/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the ledger's unit-of-work boundary. Repositories obtained from a Store
// returned by WithinTx share that transaction.
type Store interface {
	Wallets() WalletRepository
	Transactions() TransactionRepository
	Deposits() DepositRepository
	GatewayTransactions() GatewayTransactionRepository
	WebhookEvents() WebhookEventRepository
	Users() UserRepository
	Games() GameRepository

	// WithinTx runs fn atomically. Calling it on a Store that is already inside a
	// transaction joins that transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type WalletRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.Wallet, error)
	// Ensure inserts the wallet unless one already exists for its user.
	Ensure(ctx context.Context, wallet *models.Wallet) error
	// LockByUserIDs takes row locks on the wallets, always in ascending wallet id order.
	LockByUserIDs(ctx context.Context, userIDs ...uint) ([]*models.Wallet, error)
	Update(ctx context.Context, wallet *models.Wallet) error
}

// TransactionFilter narrows a history query. Zero values mean "no filter".
type TransactionFilter struct {
	UserID uint
	Types  []models.TransactionType
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	UpdateStatus(ctx context.Context, id uint, status string) error
	List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error)
	// SumSigned returns the signed total of the user's COMPLETED entries.
	SumSigned(ctx context.Context, userID uint) (decimal.Decimal, error)
	// SumByTypes totals COMPLETED entries of the given types in [from, to).
	SumByTypes(ctx context.Context, userID uint, types []models.TransactionType, from, to time.Time) (decimal.Decimal, error)
	FindByExternalReference(ctx context.Context, userID uint, txType models.TransactionType, ref string) (*models.Transaction, error)
}

type DepositRepository interface {
	Create(ctx context.Context, d *models.DepositRequest) error
	GetByID(ctx context.Context, id uint) (*models.DepositRequest, error)
	LockByID(ctx context.Context, id uint) (*models.DepositRequest, error)
	Update(ctx context.Context, d *models.DepositRequest) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.DepositRequest, error)
}

type GatewayTransactionRepository interface {
	Create(ctx context.Context, g *models.GatewayTransaction) error
	GetByID(ctx context.Context, id uint) (*models.GatewayTransaction, error)
	GetByExternalChargeID(ctx context.Context, chargeID string) (*models.GatewayTransaction, error)
	ListByDepositRequestID(ctx context.Context, depositID uint) ([]models.GatewayTransaction, error)
	Update(ctx context.Context, g *models.GatewayTransaction) error
}

type WebhookEventRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.WebhookEvent, error)
	Create(ctx context.Context, e *models.WebhookEvent) error
	LockByExternalID(ctx context.Context, externalID string) (*models.WebhookEvent, error)
	Update(ctx context.Context, e *models.WebhookEvent) error
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
}

type GameRepository interface {
	Create(ctx context.Context, g *models.Game) error
	GetByID(ctx context.Context, id uint) (*models.Game, error)
	CountPlayers(ctx context.Context, gameID uint) (int64, error)
	HasPlayer(ctx context.Context, gameID, userID uint) (bool, error)
	CreateCards(ctx context.Context, cards []*models.BingoCard) error
	ListCards(ctx context.Context, gameID, userID uint) ([]models.BingoCard, error)
}
