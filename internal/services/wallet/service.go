package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/logger"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type service struct {
	root    repositories.Store
	store   repositories.Store
	joined  bool
	config  Config
	logger  *zap.Logger
	metrics MetricsCollector
	now     func() time.Time
}

// NewService creates a new wallet service
func NewService(
	store repositories.Store,
	config Config,
	log *zap.Logger,
	metrics MetricsCollector,
) Service {
	if store == nil {
		panic("store is required")
	}

	if config.ProcessingTimeout == 0 {
		config.ProcessingTimeout = DefaultTimeout
	}
	if config.CommissionRate.IsNegative() {
		config.CommissionRate = decimal.Zero
	}

	// Metrics is optional, create no-op collector if nil
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &service{
		root:    store,
		store:   store,
		config:  config,
		logger:  logger.OrNop(log).Named("wallet"),
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *service) WithTx(tx repositories.Store) Service {
	joined := *s
	joined.store = tx
	joined.joined = true
	return &joined
}

func (s *service) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	wallet, err := s.store.Wallets().GetByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		return s.ensureWallet(ctx, tx, userID, apperrors.ErrWalletNotFound)
	})
	if err != nil {
		return nil, err
	}
	wallet, err = s.store.Wallets().GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

func (s *service) GetBalance(ctx context.Context, userID uint) (*Balance, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	dayStart, monthStart := s.windows()
	daily, err := s.store.Transactions().SumByTypes(ctx, userID, models.SpendTypes, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	monthly, err := s.store.Transactions().SumByTypes(ctx, userID, models.SpendTypes, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}

	return &Balance{
		UserID:             wallet.UserID,
		Balance:            wallet.Balance,
		DailySpendLimit:    wallet.DailySpendLimit,
		MonthlySpendLimit:  wallet.MonthlySpendLimit,
		DailySpent:         daily,
		MonthlySpent:       monthly,
		IsActive:           wallet.IsActive,
		IsFrozen:           wallet.IsFrozen,
		ReconciliationHold: wallet.ReconciliationHold,
	}, nil
}

func (s *service) Debit(ctx context.Context, e Entry) (*Receipt, error) {
	if err := validateAmount(e.Amount); err != nil {
		return nil, err
	}
	if !e.Type.IsDebit() {
		return nil, apperrors.Validation("%s is not a debit type", e.Type)
	}

	var receipt *Receipt
	var violated []uint
	err := s.run(ctx, OpDebit, func(tx repositories.Store) error {
		if err := s.ensureWallet(ctx, tx, e.UserID, apperrors.ErrWalletNotFound); err != nil {
			return err
		}
		wallets, err := s.lockWallets(ctx, tx, e.UserID)
		if err != nil {
			return err
		}
		w := wallets[e.UserID]

		if w.ReconciliationHold {
			return apperrors.ErrReconciliationHold
		}
		if !w.CanSpend() {
			return apperrors.ErrWalletUnavailable
		}
		if err := s.checkSpendLimits(ctx, tx, w, e.Amount); err != nil {
			return err
		}
		if w.Balance.LessThan(e.Amount) {
			return apperrors.ErrInsufficientBalance
		}

		w.Balance = w.Balance.Sub(e.Amount)
		t, err := s.appendEntry(ctx, tx, e, nil)
		if err != nil {
			return err
		}
		if err := tx.Wallets().Update(ctx, w); err != nil {
			return err
		}
		if err := s.checkInvariant(ctx, tx, &violated, w); err != nil {
			return err
		}
		receipt = &Receipt{Transaction: t, Balance: w.Balance}
		return nil
	})
	if err != nil {
		s.afterFailure(ctx, err, violated)
		return nil, err
	}

	s.metrics.RecordTransaction(string(e.Type), e.Amount.InexactFloat64())
	return receipt, nil
}

// Credit is allowed on frozen and inactive wallets; only a reconciliation hold blocks it.
func (s *service) Credit(ctx context.Context, e Entry) (*Receipt, error) {
	return s.credit(ctx, e, false)
}

// CreditOnce credits e unless an entry of the same type and external reference
// already exists for the user. The lookup runs under the wallet lock.
func (s *service) CreditOnce(ctx context.Context, e Entry) (*Receipt, error) {
	if e.ExternalReference == "" {
		return nil, apperrors.Validation("external reference is required")
	}
	return s.credit(ctx, e, true)
}

func (s *service) credit(ctx context.Context, e Entry, once bool) (*Receipt, error) {
	if err := validateAmount(e.Amount); err != nil {
		return nil, err
	}
	if !e.Type.IsCredit() {
		return nil, apperrors.Validation("%s is not a credit type", e.Type)
	}

	var receipt *Receipt
	var violated []uint
	err := s.run(ctx, OpCredit, func(tx repositories.Store) error {
		if err := s.ensureWallet(ctx, tx, e.UserID, apperrors.ErrWalletNotFound); err != nil {
			return err
		}
		wallets, err := s.lockWallets(ctx, tx, e.UserID)
		if err != nil {
			return err
		}
		w := wallets[e.UserID]

		if once {
			existing, err := tx.Transactions().FindByExternalReference(ctx, e.UserID, e.Type, e.ExternalReference)
			if err == nil {
				receipt = &Receipt{Transaction: existing, Balance: w.Balance, Replayed: true}
				return nil
			}
			if !errors.Is(err, repositories.ErrNotFound) {
				return err
			}
		}
		if w.ReconciliationHold {
			return apperrors.ErrReconciliationHold
		}

		w.Balance = w.Balance.Add(e.Amount)
		t, err := s.appendEntry(ctx, tx, e, nil)
		if err != nil {
			return err
		}
		if err := tx.Wallets().Update(ctx, w); err != nil {
			return err
		}
		if err := s.checkInvariant(ctx, tx, &violated, w); err != nil {
			return err
		}
		receipt = &Receipt{Transaction: t, Balance: w.Balance}
		return nil
	})
	if err != nil {
		s.afterFailure(ctx, err, violated)
		return nil, err
	}

	if !receipt.Replayed {
		s.metrics.RecordTransaction(string(e.Type), e.Amount.InexactFloat64())
	}
	return receipt, nil
}

func (s *service) CommissionFor(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.config.CommissionRate).Round(2)
}

func (s *service) TransferPearls(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.FromUserID == req.ToUserID {
		return nil, apperrors.ErrSelfTransfer
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.Commission.IsNegative() || !req.Commission.Equal(req.Commission.Round(2)) {
		return nil, apperrors.Validation("commission must be a non-negative amount with at most two decimal places")
	}

	total := req.Amount.Add(req.Commission)
	transferID := "p2p:" + uuid.NewString()
	from, to := req.FromUserID, req.ToUserID
	description := req.Description
	if description == "" {
		description = "P2P transfer"
	}

	var result *TransferResult
	var violated []uint
	err := s.run(ctx, OpTransfer, func(tx repositories.Store) error {
		if err := s.ensureWallet(ctx, tx, from, apperrors.ErrWalletNotFound); err != nil {
			return err
		}
		if err := s.ensureWallet(ctx, tx, to, apperrors.ErrRecipientInvalid); err != nil {
			return err
		}
		wallets, err := s.lockWallets(ctx, tx, from, to)
		if err != nil {
			return err
		}
		sender, recipient := wallets[from], wallets[to]

		if sender.ReconciliationHold || recipient.ReconciliationHold {
			return apperrors.ErrReconciliationHold
		}
		if !sender.CanSpend() {
			return apperrors.ErrWalletUnavailable
		}
		if !recipient.IsActive {
			return apperrors.ErrRecipientInactive
		}
		if err := s.checkSpendLimits(ctx, tx, sender, total); err != nil {
			return err
		}
		if sender.Balance.LessThan(total) {
			return apperrors.ErrInsufficientBalance
		}

		result = &TransferResult{}
		sender.Balance = sender.Balance.Sub(total)
		recipient.Balance = recipient.Balance.Add(req.Amount)

		result.FromTransaction, err = s.appendEntry(ctx, tx, Entry{
			UserID:            from,
			Amount:            req.Amount,
			Type:              models.TransactionTypeTransferOut,
			Description:       description,
			ExternalReference: transferID,
		}, &to)
		if err != nil {
			return err
		}
		if req.Commission.IsPositive() {
			result.CommissionEntry, err = s.appendEntry(ctx, tx, Entry{
				UserID:            from,
				Amount:            req.Commission,
				Type:              models.TransactionTypeCommission,
				Description:       "P2P transfer commission",
				ExternalReference: transferID,
			}, &to)
			if err != nil {
				return err
			}
		}
		result.ToTransaction, err = s.appendEntry(ctx, tx, Entry{
			UserID:            to,
			Amount:            req.Amount,
			Type:              models.TransactionTypeTransferIn,
			Description:       description,
			ExternalReference: transferID,
		}, &from)
		if err != nil {
			return err
		}

		for _, w := range []*models.Wallet{sender, recipient} {
			if err := tx.Wallets().Update(ctx, w); err != nil {
				return err
			}
		}
		if err := s.checkInvariant(ctx, tx, &violated, sender, recipient); err != nil {
			return err
		}
		result.SenderBalance = sender.Balance
		result.RecipientBalance = recipient.Balance
		return nil
	})
	if err != nil {
		s.afterFailure(ctx, err, violated)
		return nil, err
	}

	s.logger.Info("transfer completed",
		zap.Uint("from_user_id", from),
		zap.Uint("to_user_id", to),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("commission", req.Commission.StringFixed(2)),
		zap.String("transfer_id", transferID))
	s.metrics.RecordTransaction(string(models.TransactionTypeTransferOut), req.Amount.InexactFloat64())
	if req.Commission.IsPositive() {
		s.metrics.RecordTransaction(string(models.TransactionTypeCommission), req.Commission.InexactFloat64())
	}
	return result, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uint, q HistoryQuery) ([]models.Transaction, int64, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultHistoryLimit
	}
	if q.Limit > MaxHistoryLimit {
		q.Limit = MaxHistoryLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, 0, apperrors.Validation("'to' must not be before 'from'")
	}

	return s.store.Transactions().List(ctx, repositories.TransactionFilter{
		UserID: userID,
		Types:  q.Types,
		From:   q.From,
		To:     q.To,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

func (s *service) FindByExternalReference(ctx context.Context, userID uint, txType models.TransactionType, ref string) (*models.Transaction, error) {
	t, err := s.store.Transactions().FindByExternalReference(ctx, userID, txType, ref)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.ErrNotFound
	}
	return t, err
}

// Helper methods

// run executes fn as one unit of work and records the outcome.
func (s *service) run(ctx context.Context, op string, fn func(tx repositories.Store) error) error {
	start := time.Now()
	if !s.joined {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ProcessingTimeout)
		defer cancel()
	}

	err := s.store.WithinTx(ctx, fn)
	s.metrics.RecordOperationDuration(op, time.Since(start))
	if err != nil {
		code := apperrors.CodeOf(err)
		if code == "" {
			code = "internal"
			s.logger.Error("wallet operation failed", zap.String("operation", op), zap.Error(err))
		}
		s.metrics.RecordOperationResult(op, "failure")
		s.metrics.RecordError(op, code)
		return err
	}
	s.metrics.RecordOperationResult(op, "success")
	return nil
}

// ensureWallet creates the user's wallet on first use. missing is returned when the user does not exist.
func (s *service) ensureWallet(ctx context.Context, tx repositories.Store, userID uint, missing error) error {
	_, err := tx.Wallets().GetByUserID(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to get wallet: %w", err)
	}

	if _, err := tx.Users().GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return missing
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	wallet := &models.Wallet{
		UserID:            userID,
		Balance:           decimal.Zero,
		DailySpendLimit:   s.config.DailySpendLimit,
		MonthlySpendLimit: s.config.MonthlySpendLimit,
		IsActive:          true,
	}
	if err := tx.Wallets().Ensure(ctx, wallet); err != nil {
		return err
	}
	s.logger.Info("wallet created", zap.Uint("user_id", userID))
	return nil
}

// lockWallets locks the wallets of userIDs in ascending wallet id order.
func (s *service) lockWallets(ctx context.Context, tx repositories.Store, userIDs ...uint) (map[uint]*models.Wallet, error) {
	locked, err := tx.Wallets().LockByUserIDs(ctx, userIDs...)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrWalletNotFound
		}
		return nil, err
	}
	byUser := make(map[uint]*models.Wallet, len(locked))
	for _, w := range locked {
		byUser[w.UserID] = w
	}
	return byUser, nil
}

func (s *service) appendEntry(ctx context.Context, tx repositories.Store, e Entry, counterparty *uint) (*models.Transaction, error) {
	description := e.Description
	if description == "" {
		description = defaultDescription(e.Type)
	}
	t := &models.Transaction{
		Reference:         uuid.NewString(),
		UserID:            e.UserID,
		Type:              e.Type,
		Amount:            e.Amount,
		CounterpartyID:    counterparty,
		Status:            models.TransactionStatusCompleted,
		ExternalReference: e.ExternalReference,
		Description:       description,
		Metadata:          e.Metadata,
	}
	if err := tx.Transactions().Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", e.Type, err)
	}
	return t, nil
}

func (s *service) windows() (dayStart, monthStart time.Time) {
	now := s.now().UTC()
	dayStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return dayStart, monthStart
}

func (s *service) checkSpendLimits(ctx context.Context, tx repositories.Store, w *models.Wallet, amount decimal.Decimal) error {
	dayStart, monthStart := s.windows()

	if w.DailySpendLimit.IsPositive() {
		spent, err := tx.Transactions().SumByTypes(ctx, w.UserID, models.SpendTypes, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return fmt.Errorf("failed to check daily limit: %w", err)
		}
		if spent.Add(amount).GreaterThan(w.DailySpendLimit) {
			return apperrors.New(apperrors.CodeSpendLimitExceeded,
				"daily spend limit of %s exceeded", w.DailySpendLimit.StringFixed(2))
		}
	}

	if w.MonthlySpendLimit.IsPositive() {
		spent, err := tx.Transactions().SumByTypes(ctx, w.UserID, models.SpendTypes, monthStart, monthStart.AddDate(0, 1, 0))
		if err != nil {
			return fmt.Errorf("failed to check monthly limit: %w", err)
		}
		if spent.Add(amount).GreaterThan(w.MonthlySpendLimit) {
			return apperrors.New(apperrors.CodeSpendLimitExceeded,
				"monthly spend limit of %s exceeded", w.MonthlySpendLimit.StringFixed(2))
		}
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return apperrors.ErrInvalidAmount
	}
	return nil
}

func defaultDescription(t models.TransactionType) string {
	switch t {
	case models.TransactionTypeCardPurchase:
		return "Card purchase"
	case models.TransactionTypePrizePayout:
		return "Prize payout"
	case models.TransactionTypeDeposit:
		return "Deposit"
	case models.TransactionTypeRefund:
		return "Refund"
	case models.TransactionTypeWithdrawal:
		return "Withdrawal"
	}
	return string(t)
}
