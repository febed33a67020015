package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type gormStore struct {
	db   *gorm.DB
	inTx bool
}

// NewGormStore returns a Postgres-backed Store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Wallets() WalletRepository             { return &walletRepository{db: s.db} }
func (s *gormStore) Transactions() TransactionRepository   { return &transactionRepository{db: s.db} }
func (s *gormStore) Deposits() DepositRepository           { return &depositRepository{db: s.db} }
func (s *gormStore) WebhookEvents() WebhookEventRepository { return &webhookEventRepository{db: s.db} }
func (s *gormStore) Users() UserRepository                 { return &userRepository{db: s.db} }
func (s *gormStore) Games() GameRepository                 { return &gameRepository{db: s.db} }
func (s *gormStore) GatewayTransactions() GatewayTransactionRepository {
	return &gatewayTransactionRepository{db: s.db}
}

func (s *gormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, inTx: true})
	})
}

// translate maps gorm sentinel errors onto the repository ones.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
