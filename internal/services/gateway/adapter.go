// Package gateway talks to the external card gateway and owns deposit requests
// from creation until they are approved, rejected, cancelled or expired.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/logger"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"
	"pearlbingo/internal/services/fraud"
	"pearlbingo/internal/services/notification"
	"pearlbingo/internal/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultRetryBackoff  = 500 * time.Millisecond
	defaultDepositExpiry = 24 * time.Hour
	expiryBatchSize      = 100
)

var minorUnitsPerUnit = decimal.NewFromInt(100)

type service struct {
	store    repositories.Store
	joined   bool
	client   ChargeClient
	ledger   Ledger
	screener Screener
	bank     *BankReferences
	verifier *Verifier
	notifier notification.Notifier
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the gateway adapter.
func NewService(
	store repositories.Store,
	client ChargeClient,
	ledger Ledger,
	screener Screener,
	bank *BankReferences,
	notifier notification.Notifier,
	config Config,
	log *zap.Logger,
) Service {
	if store == nil {
		panic("store is required")
	}
	if client == nil {
		panic("charge client is required")
	}
	if ledger == nil {
		panic("ledger is required")
	}
	if screener == nil {
		panic("screener is required")
	}
	if bank == nil {
		panic("bank references are required")
	}
	if notifier == nil {
		notifier = notification.Nop{}
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaultRetryBackoff
	}
	if config.DepositExpiry <= 0 {
		config.DepositExpiry = defaultDepositExpiry
	}
	if !config.PearlsPerCurrencyUnit.IsPositive() {
		config.PearlsPerCurrencyUnit = decimal.NewFromInt(1)
	}
	if config.Currency == "" {
		config.Currency = "mxn"
	}

	return &service{
		store:    store,
		client:   client,
		ledger:   ledger,
		screener: screener,
		bank:     bank,
		verifier: NewVerifier(config.WebhookSecret, config.WebhookTolerance),
		notifier: notifier,
		config:   config,
		logger:   logger.OrNop(log).Named("gateway"),
		now:      time.Now,
	}
}

func (s *service) WithTx(tx repositories.Store) Service {
	joined := *s
	joined.store = tx
	joined.joined = true
	return &joined
}

func (s *service) VerifyWebhookSignature(signature, timestamp string, payload []byte) error {
	return s.verifier.Verify(signature, timestamp, payload)
}

// InitiateDeposit routes the request to the handler for its payment method.
func (s *service) InitiateDeposit(ctx context.Context, req PaymentRequest) (*Result, error) {
	switch req.Method {
	case models.PaymentMethodCard:
		return s.CreateCardCharge(ctx, req)
	case models.PaymentMethodBankTransfer:
		return s.CreateBankTransfer(ctx, req)
	}
	return nil, apperrors.Validation("method must be one of: card bank_transfer")
}

func (s *service) CreateCardCharge(ctx context.Context, req PaymentRequest) (*Result, error) {
	req.Method = models.PaymentMethodCard
	user, assessment, err := s.screen(ctx, req)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		gerr := classify(err)
		s.logger.Warn("customer setup failed",
			zap.Uint("user_id", user.ID),
			zap.String("code", gerr.Code),
			zap.Error(err))
		return failureResult(gerr), nil
	}

	deposit, err := s.newDeposit(ctx, req)
	if err != nil {
		return nil, err
	}

	var charge *Charge
	err = s.withRetry(ctx, "create_charge", func(ctx context.Context) error {
		var err error
		charge, err = s.client.CreateCharge(ctx, ChargeParams{
			CustomerID:     customerID,
			Token:          req.CardToken,
			AmountMinor:    toMinorUnits(req.Amount),
			Currency:       s.config.Currency,
			Description:    chargeDescription(req.Description, deposit),
			IdempotencyKey: fmt.Sprintf("deposit-%d", deposit.ID),
			Metadata: map[string]string{
				"deposit_id": strconv.FormatUint(uint64(deposit.ID), 10),
				"user_id":    strconv.FormatUint(uint64(user.ID), 10),
			},
		})
		return err
	})

	var result *Result
	if err != nil {
		result, err = s.chargeFailed(ctx, deposit, customerID, err)
	} else {
		result, err = s.chargeCreated(ctx, deposit, customerID, charge)
	}
	if result != nil {
		result.Flags = assessment.Flags
	}
	return result, err
}

func (s *service) CreateBankTransfer(ctx context.Context, req PaymentRequest) (*Result, error) {
	req.Method = models.PaymentMethodBankTransfer
	req.CardToken = ""
	_, assessment, err := s.screen(ctx, req)
	if err != nil {
		return nil, err
	}

	var deposit *models.DepositRequest
	var code string
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		deposit, err = s.createDeposit(ctx, tx, req)
		if err != nil {
			return err
		}
		code, err = s.bank.Encode(deposit.ID)
		if err != nil {
			return fmt.Errorf("failed to encode bank reference: %w", err)
		}
		return tx.GatewayTransactions().Create(ctx, &models.GatewayTransaction{
			DepositRequestID: deposit.ID,
			ExternalChargeID: BankChargeID(code),
			Method:           models.PaymentMethodBankTransfer,
			Amount:           deposit.Amount,
			Status:           models.GatewayStatusInProgress,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bank transfer deposit created",
		zap.Uint("deposit_id", deposit.ID),
		zap.Uint("user_id", deposit.UserID),
		zap.String("bank_reference", code))

	expiresAt := deposit.ExpiresAt
	return &Result{
		Success:       true,
		DepositID:     deposit.ID,
		Reference:     deposit.Reference,
		Status:        deposit.Status,
		GatewayStatus: models.GatewayStatusInProgress,
		ChargeID:      BankChargeID(code),
		PearlAmount:   deposit.PearlAmount,
		ExpiresAt:     &expiresAt,
		Flags:         assessment.Flags,
		Instructions: &BankInstructions{
			BankName:  s.config.BankName,
			Account:   s.config.BankAccount,
			Reference: code,
			Amount:    deposit.Amount.StringFixed(2),
			ExpiresAt: expiresAt,
		},
	}, nil
}

// BankChargeID is the gateway transaction id recorded for a bank transfer reference.
func BankChargeID(code string) string { return "bt_" + code }

func (s *service) screen(ctx context.Context, req PaymentRequest) (*models.User, *fraud.Assessment, error) {
	v := validation.New()
	v.Struct(req)
	v.Amount("amount", req.Amount, s.config.MinDeposit, s.config.MaxDeposit)
	if err := v.Err(); err != nil {
		return nil, nil, err
	}

	user, err := s.store.Users().GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	assessment, err := s.screener.Screen(ctx, fraud.PaymentAttempt{
		UserID:           user.ID,
		Email:            user.Email,
		Amount:           req.Amount,
		Method:           req.Method,
		MethodID:         req.CardToken,
		IP:               req.IP,
		UserAgent:        req.UserAgent,
		Description:      req.Description,
		AccountCreatedAt: user.CreatedAt,
	})
	if err != nil {
		return nil, nil, err
	}
	return user, assessment, nil
}

func (s *service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.GatewayCustomerID != "" {
		return user.GatewayCustomerID, nil
	}

	var customerID string
	err := s.withRetry(ctx, "ensure_customer", func(ctx context.Context) error {
		var err error
		customerID, err = s.client.EnsureCustomer(ctx, user)
		return err
	})
	if err != nil {
		return "", err
	}

	user.GatewayCustomerID = customerID
	if err := s.store.Users().Update(ctx, user); err != nil {
		s.logger.Warn("failed to save gateway customer id", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return customerID, nil
}

func (s *service) newDeposit(ctx context.Context, req PaymentRequest) (*models.DepositRequest, error) {
	var deposit *models.DepositRequest
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		deposit, err = s.createDeposit(ctx, tx, req)
		return err
	})
	return deposit, err
}

func (s *service) createDeposit(ctx context.Context, tx repositories.Store, req PaymentRequest) (*models.DepositRequest, error) {
	deposit := &models.DepositRequest{
		Reference:     uuid.NewString(),
		UserID:        req.UserID,
		Amount:        req.Amount,
		PearlAmount:   req.Amount.Mul(s.config.PearlsPerCurrencyUnit).Round(2),
		PaymentMethod: req.Method,
		Status:        models.DepositStatusPending,
		ExpiresAt:     s.now().Add(s.config.DepositExpiry),
	}
	if err := tx.Deposits().Create(ctx, deposit); err != nil {
		return nil, fmt.Errorf("failed to create deposit request: %w", err)
	}
	return deposit, nil
}

// chargeCreated records the charge and resolves the deposit when the gateway
// already reports a final status.
func (s *service) chargeCreated(ctx context.Context, deposit *models.DepositRequest, customerID string, charge *Charge) (*Result, error) {
	gtx := &models.GatewayTransaction{
		DepositRequestID:  deposit.ID,
		ExternalChargeID:  charge.ID,
		CustomerID:        customerID,
		Method:            models.PaymentMethodCard,
		Amount:            deposit.Amount,
		Status:            chargeStatus(charge.Status),
		ErrorCode:         charge.FailureCode,
		ErrorMessage:      charge.FailureMessage,
		AuthorizationCode: charge.AuthorizationCode,
	}
	if err := s.store.GatewayTransactions().Create(ctx, gtx); err != nil {
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("failed to record gateway transaction: %w", err)
		}
		// A webhook linked the charge through its metadata first.
		gtx, deposit, err = s.adoptLinkedCharge(ctx, deposit, customerID, charge)
		if err != nil {
			return nil, err
		}
	}

	result := &Result{
		DepositID:         deposit.ID,
		Reference:         deposit.Reference,
		Status:            deposit.Status,
		GatewayStatus:     gtx.Status,
		ChargeID:          gtx.ExternalChargeID,
		AuthorizationCode: gtx.AuthorizationCode,
		PearlAmount:       deposit.PearlAmount,
	}

	switch gtx.Status {
	case models.GatewayStatusSucceeded:
		approval, err := s.AutoApproveDeposit(ctx, deposit.ID, gtx.ID)
		if err != nil {
			return nil, err
		}
		result.Status = approval.Deposit.Status
		result.Success = result.Status == models.DepositStatusApproved
	case models.GatewayStatusFailed, models.GatewayStatusCancelled:
		closed, _, err := s.CloseDeposit(ctx, deposit.ID, models.DepositStatusRejected, charge.FailureMessage)
		if err != nil {
			return nil, err
		}
		result.Status = closed.Status
		result.ErrorCode = charge.FailureCode
		result.ErrorMessage = charge.FailureMessage
	default:
		result.Success = true
		expiresAt := deposit.ExpiresAt
		result.ExpiresAt = &expiresAt
	}
	return result, nil
}

// adoptLinkedCharge loads the gateway transaction a webhook created for charge
// and the deposit as it stands now.
func (s *service) adoptLinkedCharge(ctx context.Context, deposit *models.DepositRequest, customerID string, charge *Charge) (*models.GatewayTransaction, *models.DepositRequest, error) {
	gtx, err := s.store.GatewayTransactions().GetByExternalChargeID(ctx, charge.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get gateway transaction: %w", err)
	}
	if gtx.DepositRequestID != deposit.ID {
		return nil, nil, fmt.Errorf("charge %s already belongs to deposit %d", charge.ID, gtx.DepositRequestID)
	}
	if gtx.CustomerID == "" {
		gtx.CustomerID = customerID
	}
	if err := s.RecordChargeStatus(ctx, gtx, ChargeUpdate{
		Status:            charge.Status,
		FailureCode:       charge.FailureCode,
		FailureMessage:    charge.FailureMessage,
		AuthorizationCode: charge.AuthorizationCode,
	}); err != nil {
		return nil, nil, err
	}

	current, err := s.store.Deposits().GetByID(ctx, deposit.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get deposit request: %w", err)
	}
	s.logger.Info("charge already linked by webhook",
		zap.String("charge_id", charge.ID),
		zap.Uint("deposit_id", deposit.ID),
		zap.String("deposit_status", current.Status))
	return gtx, current, nil
}

// chargeFailed turns a gateway error into a structured result. Transient
// failures leave the deposit PENDING for the webhook or the expiry sweep.
func (s *service) chargeFailed(ctx context.Context, deposit *models.DepositRequest, customerID string, err error) (*Result, error) {
	gerr := classify(err)
	result := failureResult(gerr)
	result.DepositID = deposit.ID
	result.Reference = deposit.Reference
	result.PearlAmount = deposit.PearlAmount

	if gerr.Retryable() {
		s.logger.Warn("charge outcome unknown, deposit left pending",
			zap.Uint("deposit_id", deposit.ID),
			zap.String("code", gerr.Code),
			zap.Error(err))
		result.Status = deposit.Status
		expiresAt := deposit.ExpiresAt
		result.ExpiresAt = &expiresAt
		return result, nil
	}

	s.logger.Info("charge declined",
		zap.Uint("deposit_id", deposit.ID),
		zap.String("code", gerr.Code),
		zap.String("message", gerr.Message))

	if gerr.ChargeID != "" {
		gtx := &models.GatewayTransaction{
			DepositRequestID: deposit.ID,
			ExternalChargeID: gerr.ChargeID,
			CustomerID:       customerID,
			Method:           models.PaymentMethodCard,
			Amount:           deposit.Amount,
			Status:           models.GatewayStatusFailed,
			ErrorCode:        gerr.Code,
			ErrorMessage:     gerr.Message,
		}
		if err := s.store.GatewayTransactions().Create(ctx, gtx); err != nil && !errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("failed to record gateway transaction: %w", err)
		}
		result.ChargeID = gerr.ChargeID
		result.GatewayStatus = models.GatewayStatusFailed
	}

	closed, _, err := s.CloseDeposit(ctx, deposit.ID, models.DepositStatusRejected, gerr.Message)
	if err != nil {
		return nil, err
	}
	result.Status = closed.Status
	return result, nil
}

func failureResult(gerr *Error) *Result {
	result := &Result{
		ErrorCode:    gerr.Code,
		ErrorMessage: gerr.Message,
		Retryable:    gerr.Retryable(),
	}
	switch gerr.Kind {
	case KindTimeout:
		result.ErrorCode = apperrors.CodeGatewayTimeout
	case KindUnavailable:
		result.ErrorCode = apperrors.CodeGatewayUnavailable
	}
	return result
}

// withRetry runs call with a per-attempt timeout, retrying transient failures
// up to MaxRetries times with linear backoff.
func (s *service) withRetry(ctx context.Context, op string, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		err := call(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}

		gerr := classify(err)
		if !gerr.Retryable() {
			return gerr
		}
		lastErr = gerr
		s.logger.Warn("gateway call failed",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.String("code", gerr.Code),
			zap.Error(err))

		if attempt == s.config.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return classify(ctx.Err())
		case <-time.After(s.config.RetryBackoff * time.Duration(attempt+1)):
		}
	}
	return lastErr
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitsPerUnit).Round(0).IntPart()
}

func fromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(minorUnitsPerUnit)
}

func chargeDescription(description string, deposit *models.DepositRequest) string {
	if description != "" {
		return description
	}
	return "Pearl deposit " + deposit.Reference
}
