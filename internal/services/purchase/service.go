package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/logger"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"
	"pearlbingo/internal/services/cards"
	"pearlbingo/internal/services/notification"
	"pearlbingo/internal/services/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultMaxCards = 10

type service struct {
	store    repositories.Store
	wallets  WalletService
	cards    cards.Generator
	notifier notification.Notifier
	config   Config
	logger   *zap.Logger
}

// NewService creates a new purchase service
func NewService(
	store repositories.Store,
	wallets WalletService,
	generator cards.Generator,
	notifier notification.Notifier,
	config Config,
	log *zap.Logger,
) Service {
	if store == nil {
		panic("store is required")
	}
	if wallets == nil {
		panic("wallet service is required")
	}
	if generator == nil {
		panic("card generator is required")
	}
	if notifier == nil {
		notifier = notification.Nop{}
	}
	if config.MaxCardsPerPurchase <= 0 {
		config.MaxCardsPerPurchase = defaultMaxCards
	}

	return &service{
		store:    store,
		wallets:  wallets,
		cards:    generator,
		notifier: notifier,
		config:   config,
		logger:   logger.OrNop(log).Named("purchase"),
	}
}

// PurchaseCards debits the price, then asks the generator for cards. If
// generation or storage fails the debit is compensated with a REFUND entry.
func (s *service) PurchaseCards(ctx context.Context, userID, gameID uint, count int) (*PurchaseResult, error) {
	if count < 1 || count > s.config.MaxCardsPerPurchase {
		return nil, apperrors.Validation("card count must be between 1 and %d", s.config.MaxCardsPerPurchase)
	}

	game, err := s.joinableGame(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}

	unitPrice := game.CardPrice
	if !unitPrice.IsPositive() {
		unitPrice = s.config.DefaultCardPrice
	}
	total := unitPrice.Mul(decimal.NewFromInt(int64(count)))

	debit, err := s.wallets.Debit(ctx, wallet.Entry{
		UserID:            userID,
		Amount:            total,
		Type:              models.TransactionTypeCardPurchase,
		Description:       fmt.Sprintf("%d bingo card(s) for game #%d", count, gameID),
		ExternalReference: fmt.Sprintf("game:%d", gameID),
		Metadata: models.JSON{
			"game_id":    gameID,
			"card_count": count,
			"unit_price": unitPrice.StringFixed(2),
		},
	})
	if err != nil {
		return nil, err
	}

	issued, err := s.issueCards(ctx, gameID, userID, debit.Transaction.ID, count)
	if err != nil {
		return nil, s.compensate(ctx, debit, err)
	}

	s.notifier.BalanceChanged(ctx, userID, debit.Transaction, debit.Balance.StringFixed(2))
	s.logger.Info("cards purchased",
		zap.Uint("user_id", userID),
		zap.Uint("game_id", gameID),
		zap.Int("count", count),
		zap.String("total", total.StringFixed(2)))

	return &PurchaseResult{
		Transaction: debit.Transaction,
		Cards:       issued,
		Balance:     debit.Balance,
	}, nil
}

func (s *service) joinableGame(ctx context.Context, gameID, userID uint) (*models.Game, error) {
	game, err := s.store.Games().GetByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "game %d not found", gameID)
		}
		return nil, err
	}
	if !game.IsJoinable() {
		return nil, apperrors.ErrGameNotJoinable
	}
	if game.MaxPlayers <= 0 {
		return game, nil
	}

	joined, err := s.store.Games().HasPlayer(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	if joined {
		return game, nil
	}
	players, err := s.store.Games().CountPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if players >= int64(game.MaxPlayers) {
		return nil, apperrors.New(apperrors.CodeGameNotJoinable, "game is full")
	}
	return game, nil
}

func (s *service) issueCards(ctx context.Context, gameID, userID, transactionID uint, count int) ([]models.BingoCard, error) {
	grids, err := s.cards.Generate(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("card generation failed: %w", err)
	}
	if len(grids) != count {
		return nil, fmt.Errorf("card generation returned %d of %d cards", len(grids), count)
	}

	rows := make([]*models.BingoCard, 0, count)
	for _, g := range grids {
		rows = append(rows, &models.BingoCard{
			GameID:        gameID,
			UserID:        userID,
			TransactionID: transactionID,
			Numbers:       g,
		})
	}
	if err := s.store.Games().CreateCards(ctx, rows); err != nil {
		return nil, err
	}

	issued := make([]models.BingoCard, 0, len(rows))
	for _, r := range rows {
		issued = append(issued, *r)
	}
	return issued, nil
}

// compensate refunds a purchase debit after a later step failed.
func (s *service) compensate(ctx context.Context, debit *wallet.Receipt, cause error) error {
	tx := debit.Transaction
	ctx = context.WithoutCancel(ctx)

	refund, err := s.wallets.Credit(ctx, wallet.Entry{
		UserID:            tx.UserID,
		Amount:            tx.Amount,
		Type:              models.TransactionTypeRefund,
		Description:       "Refund: card generation failed",
		ExternalReference: "refund:" + tx.Reference,
		Metadata:          models.JSON{"refunded_transaction": tx.Reference},
	})
	if err != nil {
		s.logger.Error("purchase compensation failed, manual refund required",
			zap.Uint("user_id", tx.UserID),
			zap.String("transaction", tx.Reference),
			zap.String("amount", tx.Amount.StringFixed(2)),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return fmt.Errorf("%w; refund failed: %v", cause, err)
	}

	s.logger.Warn("card purchase refunded",
		zap.Uint("user_id", tx.UserID),
		zap.String("transaction", tx.Reference),
		zap.Error(cause))
	s.notifier.BalanceChanged(ctx, tx.UserID, refund.Transaction, refund.Balance.StringFixed(2))
	return fmt.Errorf("purchase refunded: %w", cause)
}

func (s *service) AwardPrize(ctx context.Context, req PrizeRequest) (*wallet.Receipt, error) {
	pattern := strings.TrimSpace(req.Pattern)
	if pattern == "" {
		return nil, apperrors.Validation("winning pattern is required")
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}

	if _, err := s.store.Games().GetByID(ctx, req.GameID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "game %d not found", req.GameID)
		}
		return nil, err
	}

	receipt, err := s.wallets.CreditOnce(ctx, wallet.Entry{
		UserID:            req.UserID,
		Amount:            req.Amount,
		Type:              models.TransactionTypePrizePayout,
		Description:       fmt.Sprintf("Prize for %s in game #%d", pattern, req.GameID),
		ExternalReference: fmt.Sprintf("prize:%d:%s", req.GameID, pattern),
		Metadata:          models.JSON{"game_id": req.GameID, "pattern": pattern},
	})
	if err != nil {
		return nil, err
	}
	if receipt.Replayed {
		return receipt, nil
	}

	s.notifier.BalanceChanged(ctx, req.UserID, receipt.Transaction, receipt.Balance.StringFixed(2))
	s.logger.Info("prize awarded",
		zap.Uint("user_id", req.UserID),
		zap.Uint("game_id", req.GameID),
		zap.String("pattern", pattern),
		zap.String("amount", req.Amount.StringFixed(2)))
	return receipt, nil
}
