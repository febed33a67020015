package gateway

import (
	"context"
	"strconv"
	"testing"
	"time"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"
	"pearlbingo/internal/repositories/cache"
	"pearlbingo/internal/repositories/memory"
	"pearlbingo/internal/services/fraud"
	"pearlbingo/internal/services/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChargeClient struct {
	mock.Mock
}

func (m *MockChargeClient) EnsureCustomer(ctx context.Context, user *models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockChargeClient) CreateCharge(ctx context.Context, params ChargeParams) (*Charge, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Charge), args.Error(1)
}

func (m *MockChargeClient) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Charge), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) BalanceChanged(ctx context.Context, userID uint, tx *models.Transaction, balance string) {
	m.Called(ctx, userID, tx, balance)
}

func (m *MockNotifier) DepositResolved(ctx context.Context, d *models.DepositRequest) {
	m.Called(ctx, d)
}

type fixture struct {
	store    *memory.Store
	client   *MockChargeClient
	notifier *MockNotifier
	wallets  wallet.Service
	svc      *service
	userID   uint
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	u := &models.User{Username: "player", Email: "player@example.com", Password: "x"}
	require.NoError(t, store.Users().Create(ctx, u))

	client := new(MockChargeClient)
	client.On("EnsureCustomer", mock.Anything, mock.Anything).Return("cus_1", nil).Maybe()

	notifier := new(MockNotifier)
	notifier.On("BalanceChanged", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	notifier.On("DepositResolved", mock.Anything, mock.Anything).Return().Maybe()

	wallets := wallet.NewService(store, wallet.Config{}, nil, nil)
	guard := fraud.NewGuard(cache.NewMemoryCounter(), fraud.Config{
		MinAmount: decimal.NewFromInt(10),
		MaxAmount: decimal.NewFromInt(10000),
	}, nil)
	bank, err := NewBankReferences("test-salt")
	require.NoError(t, err)

	svc := NewService(store, client, wallets, guard, bank, notifier, Config{
		Timeout:               time.Second,
		MaxRetries:            2,
		RetryBackoff:          time.Millisecond,
		DepositExpiry:         time.Hour,
		PearlsPerCurrencyUnit: decimal.NewFromInt(1),
		MinDeposit:            decimal.NewFromInt(10),
		MaxDeposit:            decimal.NewFromInt(10000),
		WebhookSecret:         "whsec",
		BankName:              "Banco Perla",
		BankAccount:           "012345678901234567",
	}, nil)

	return &fixture{
		store:    store,
		client:   client,
		notifier: notifier,
		wallets:  wallets,
		svc:      svc.(*service),
		userID:   u.ID,
	}
}

func (f *fixture) cardRequest(amount string) PaymentRequest {
	return PaymentRequest{
		UserID:    f.userID,
		Amount:    decimal.RequireFromString(amount),
		Method:    models.PaymentMethodCard,
		CardToken: "tok_visa",
		IP:        "203.0.113.9",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0",
	}
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	b, err := f.wallets.GetBalance(context.Background(), f.userID)
	require.NoError(t, err)
	return b.Balance
}

func (f *fixture) deposit(t *testing.T, id uint) *models.DepositRequest {
	d, err := f.store.Deposits().GetByID(context.Background(), id)
	require.NoError(t, err)
	return d
}

func (f *fixture) ledger(t *testing.T) []models.Transaction {
	txs, _, err := f.store.Transactions().List(context.Background(), repositories.TransactionFilter{UserID: f.userID})
	require.NoError(t, err)
	return txs
}

func TestCreateCardCharge_SucceededChargeIsApproved(t *testing.T) {
	f := setup(t)
	f.client.On("CreateCharge", mock.Anything, mock.MatchedBy(func(p ChargeParams) bool {
		return p.AmountMinor == 25050 && p.CustomerID == "cus_1" && p.Token == "tok_visa" &&
			p.IdempotencyKey != "" && p.Metadata["deposit_id"] != ""
	})).Return(&Charge{ID: "ch_123", Status: "succeeded", AuthorizationCode: "A1"}, nil).Once()

	res, err := f.svc.CreateCardCharge(context.Background(), f.cardRequest("250.50"))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, models.DepositStatusApproved, res.Status)
	assert.Equal(t, "ch_123", res.ChargeID)
	assert.Equal(t, "A1", res.AuthorizationCode)
	assert.True(t, f.balance(t).Equal(decimal.RequireFromString("250.50")))

	txs := f.ledger(t)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionTypeDeposit, txs[0].Type)
	assert.Equal(t, "ch_123", txs[0].ExternalReference)

	d := f.deposit(t, res.DepositID)
	require.NotNil(t, d.TransactionID)
	assert.Equal(t, txs[0].ID, *d.TransactionID)

	u, err := f.store.Users().GetByID(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", u.GatewayCustomerID)
	f.notifier.AssertCalled(t, "BalanceChanged", mock.Anything, f.userID, mock.Anything, "250.50")
}

func TestCreateCardCharge_DeclineIsStructured(t *testing.T) {
	f := setup(t)
	f.client.On("CreateCharge", mock.Anything, mock.Anything).
		Return(nil, &Error{Kind: KindDeclined, Code: "card_declined", Message: "Your card was declined.", ChargeID: "ch_bad"}).Once()

	res, err := f.svc.CreateCardCharge(context.Background(), f.cardRequest("100"))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.False(t, res.Retryable)
	assert.Equal(t, "card_declined", res.ErrorCode)
	assert.Equal(t, models.DepositStatusRejected, res.Status)
	assert.Equal(t, models.DepositStatusRejected, f.deposit(t, res.DepositID).Status)

	gtx, err := f.store.GatewayTransactions().GetByExternalChargeID(context.Background(), "ch_bad")
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusFailed, gtx.Status)
	assert.True(t, f.balance(t).IsZero())
	f.client.AssertNumberOfCalls(t, "CreateCharge", 1)
}

func TestCreateCardCharge_TimeoutLeavesDepositPending(t *testing.T) {
	f := setup(t)
	f.client.On("CreateCharge", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

	res, err := f.svc.CreateCardCharge(context.Background(), f.cardRequest("100"))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.True(t, res.Retryable)
	assert.Equal(t, apperrors.CodeGatewayTimeout, res.ErrorCode)
	assert.Equal(t, models.DepositStatusPending, res.Status)
	require.NotNil(t, res.ExpiresAt)
	f.client.AssertNumberOfCalls(t, "CreateCharge", 3)
	assert.Equal(t, models.DepositStatusPending, f.deposit(t, res.DepositID).Status)
	assert.Empty(t, f.ledger(t))
}

func TestCreateCardCharge_RetryReusesIdempotencyKey(t *testing.T) {
	f := setup(t)
	var keys []string
	record := func(args mock.Arguments) { keys = append(keys, args.Get(1).(ChargeParams).IdempotencyKey) }
	f.client.On("CreateCharge", mock.Anything, mock.Anything).
		Return(nil, &Error{Kind: KindUnavailable, Code: "api_error"}).Run(record).Once()
	f.client.On("CreateCharge", mock.Anything, mock.Anything).
		Return(&Charge{ID: "ch_retry", Status: "succeeded"}, nil).Run(record).Once()

	res, err := f.svc.CreateCardCharge(context.Background(), f.cardRequest("40"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1])
}

func TestCreateCardCharge_PendingChargeAwaitsWebhook(t *testing.T) {
	f := setup(t)
	f.client.On("CreateCharge", mock.Anything, mock.Anything).
		Return(&Charge{ID: "ch_pending", Status: "pending"}, nil).Once()

	res, err := f.svc.CreateCardCharge(context.Background(), f.cardRequest("40"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.DepositStatusPending, res.Status)
	assert.Equal(t, models.GatewayStatusInProgress, res.GatewayStatus)
	assert.True(t, f.balance(t).IsZero())
}

func TestCreateCardCharge_CustomerFailure(t *testing.T) {
	f := setup(t)
	f.client.ExpectedCalls = nil
	f.client.On("EnsureCustomer", mock.Anything, mock.Anything).
		Return("", &Error{Kind: KindUnavailable, Code: "api_error", Message: "down"})

	res, err := f.svc.CreateCardCharge(context.Background(), f.cardRequest("40"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.CodeGatewayUnavailable, res.ErrorCode)
	assert.Zero(t, res.DepositID)
	f.client.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything)
}

func TestInitiateDeposit_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.InitiateDeposit(ctx, PaymentRequest{UserID: f.userID, Amount: decimal.NewFromInt(50), Method: "crypto"})
	assert.ErrorIs(t, err, &apperrors.DomainError{Code: apperrors.CodeValidation})

	req := f.cardRequest("5")
	_, err = f.svc.InitiateDeposit(ctx, req)
	assert.ErrorIs(t, err, &apperrors.DomainError{Code: apperrors.CodeValidation})

	req = f.cardRequest("50")
	req.CardToken = ""
	_, err = f.svc.InitiateDeposit(ctx, req)
	assert.ErrorIs(t, err, &apperrors.DomainError{Code: apperrors.CodeValidation})

	req = f.cardRequest("50")
	req.UserID = 999
	_, err = f.svc.InitiateDeposit(ctx, req)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	f.client.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything)
}

func TestInitiateDeposit_RateLimited(t *testing.T) {
	f := setup(t)
	req := PaymentRequest{UserID: f.userID, Amount: decimal.NewFromInt(20), Method: models.PaymentMethodBankTransfer}

	for i := 0; i < 5; i++ {
		_, err := f.svc.InitiateDeposit(context.Background(), req)
		require.NoError(t, err)
	}
	_, err := f.svc.InitiateDeposit(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestBankTransfer_ManualApproval(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.InitiateDeposit(ctx, PaymentRequest{
		UserID: f.userID,
		Amount: decimal.NewFromInt(300),
		Method: models.PaymentMethodBankTransfer,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Instructions)
	assert.Equal(t, "Banco Perla", res.Instructions.BankName)
	assert.Equal(t, "300.00", res.Instructions.Amount)
	assert.Equal(t, BankChargeID(res.Instructions.Reference), res.ChargeID)

	id, err := f.svc.bank.Decode(res.Instructions.Reference)
	require.NoError(t, err)
	assert.Equal(t, res.DepositID, id)

	approval, err := f.svc.ApproveDeposit(ctx, res.DepositID, "transfer received")
	require.NoError(t, err)
	assert.True(t, approval.Applied)
	assert.Equal(t, "transfer received", approval.Deposit.AdminNotes)
	assert.Equal(t, res.ChargeID, approval.Receipt.Transaction.ExternalReference)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(300)))

	gtx, err := f.store.GatewayTransactions().GetByExternalChargeID(ctx, res.ChargeID)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusSucceeded, gtx.Status)

	_, err = f.svc.ApproveDeposit(ctx, res.DepositID, "")
	assert.ErrorIs(t, err, apperrors.ErrDepositNotPending)
	assert.Len(t, f.ledger(t), 1)
}

func TestRejectAndCancelDeposit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bankReq := PaymentRequest{UserID: f.userID, Amount: decimal.NewFromInt(50), Method: models.PaymentMethodBankTransfer}

	first, err := f.svc.InitiateDeposit(ctx, bankReq)
	require.NoError(t, err)
	rejected, err := f.svc.RejectDeposit(ctx, first.DepositID, "no funds received")
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusRejected, rejected.Status)
	assert.NotNil(t, rejected.ResolvedAt)

	gtx, err := f.store.GatewayTransactions().GetByExternalChargeID(ctx, first.ChargeID)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusCancelled, gtx.Status)

	_, err = f.svc.RejectDeposit(ctx, first.DepositID, "")
	assert.ErrorIs(t, err, apperrors.ErrDepositNotPending)

	second, err := f.svc.InitiateDeposit(ctx, bankReq)
	require.NoError(t, err)
	_, err = f.svc.CancelDeposit(ctx, f.userID+1, second.DepositID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	cancelled, err := f.svc.CancelDeposit(ctx, f.userID, second.DepositID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusCancelled, cancelled.Status)

	_, err = f.svc.CancelDeposit(ctx, f.userID, second.DepositID)
	assert.ErrorIs(t, err, apperrors.ErrDepositNotPending)
	assert.Empty(t, f.ledger(t))
}

func TestAutoApproveDeposit_Idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.client.On("CreateCharge", mock.Anything, mock.Anything).
		Return(&Charge{ID: "ch_twice", Status: "pending"}, nil).Once()

	res, err := f.svc.CreateCardCharge(ctx, f.cardRequest("80"))
	require.NoError(t, err)
	gtx, err := f.store.GatewayTransactions().GetByExternalChargeID(ctx, "ch_twice")
	require.NoError(t, err)

	first, err := f.svc.AutoApproveDeposit(ctx, res.DepositID, gtx.ID)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := f.svc.AutoApproveDeposit(ctx, res.DepositID, gtx.ID)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, models.DepositStatusApproved, second.Deposit.Status)

	assert.Len(t, f.ledger(t), 1)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(80)))
}

func TestAutoApproveDeposit_ExpiredIsNotCredited(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.client.On("CreateCharge", mock.Anything, mock.Anything).
		Return(&Charge{ID: "ch_late", Status: "pending"}, nil).Once()

	res, err := f.svc.CreateCardCharge(ctx, f.cardRequest("80"))
	require.NoError(t, err)
	gtx, err := f.store.GatewayTransactions().GetByExternalChargeID(ctx, "ch_late")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	approval, err := f.svc.AutoApproveDeposit(ctx, res.DepositID, gtx.ID)
	require.NoError(t, err)

	assert.False(t, approval.Applied)
	assert.Equal(t, models.DepositStatusExpired, approval.Deposit.Status)
	assert.Empty(t, f.ledger(t))
	assert.True(t, f.balance(t).IsZero())
}

func TestExpireStaleDeposits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bankReq := PaymentRequest{UserID: f.userID, Amount: decimal.NewFromInt(50), Method: models.PaymentMethodBankTransfer}

	stale, err := f.svc.InitiateDeposit(ctx, bankReq)
	require.NoError(t, err)
	approved, err := f.svc.InitiateDeposit(ctx, bankReq)
	require.NoError(t, err)
	_, err = f.svc.ApproveDeposit(ctx, approved.DepositID, "")
	require.NoError(t, err)

	n, err := f.svc.ExpireStaleDeposits(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.ExpireStaleDeposits(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.DepositStatusExpired, f.deposit(t, stale.DepositID).Status)
	assert.Equal(t, models.DepositStatusApproved, f.deposit(t, approved.DepositID).Status)
}

func TestLookupCharge_LinksUnknownChargeByHint(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.client.On("CreateCharge", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

	res, err := f.svc.CreateCardCharge(ctx, f.cardRequest("60"))
	require.NoError(t, err)

	_, err = f.svc.LookupCharge(ctx, "ch_lost", 0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	gtx, err := f.svc.LookupCharge(ctx, "ch_lost", res.DepositID)
	require.NoError(t, err)
	assert.Equal(t, res.DepositID, gtx.DepositRequestID)
	assert.Equal(t, models.GatewayStatusInProgress, gtx.Status)

	again, err := f.svc.LookupCharge(ctx, "ch_lost", res.DepositID)
	require.NoError(t, err)
	assert.Equal(t, gtx.ID, again.ID)
}

func TestRefundCharge_CreditsOncePerCharge(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.client.On("CreateCharge", mock.Anything, mock.Anything).
		Return(&Charge{ID: "ch_refund", Status: "succeeded"}, nil).Once()

	_, err := f.svc.CreateCardCharge(ctx, f.cardRequest("100"))
	require.NoError(t, err)
	gtx, err := f.store.GatewayTransactions().GetByExternalChargeID(ctx, "ch_refund")
	require.NoError(t, err)

	receipt, err := f.svc.RefundCharge(ctx, gtx, 2500)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, models.TransactionTypeRefund, receipt.Transaction.Type)
	assert.True(t, receipt.Transaction.Amount.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, models.GatewayStatusRefunded, gtx.Status)

	receipt, err = f.svc.RefundCharge(ctx, gtx, 2500)
	require.NoError(t, err)
	assert.Nil(t, receipt)
	assert.Len(t, f.ledger(t), 2)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(125)))
}

func TestRecordChargeStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.client.On("CreateCharge", mock.Anything, mock.Anything).
		Return(&Charge{ID: "ch_status", Status: "pending"}, nil).Once()
	_, err := f.svc.CreateCardCharge(ctx, f.cardRequest("30"))
	require.NoError(t, err)

	gtx, err := f.store.GatewayTransactions().GetByExternalChargeID(ctx, "ch_status")
	require.NoError(t, err)
	require.NoError(t, f.svc.RecordChargeStatus(ctx, gtx, ChargeUpdate{
		Status:         "failed",
		FailureCode:    "insufficient_funds",
		FailureMessage: "not enough money",
	}))

	stored, err := f.store.GatewayTransactions().GetByID(ctx, gtx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusFailed, stored.Status)
	assert.Equal(t, "insufficient_funds", stored.ErrorCode)
}

func TestCreateCardCharge_WebhookApprovedBeforeChargeReturned(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.client.On("CreateCharge", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			params := args.Get(1).(ChargeParams)
			depositID, err := strconv.ParseUint(params.Metadata["deposit_id"], 10, 64)
			require.NoError(t, err)
			gtx, err := f.svc.LookupCharge(ctx, "ch_race", uint(depositID))
			require.NoError(t, err)
			require.NoError(t, f.svc.RecordChargeStatus(ctx, gtx, ChargeUpdate{Status: "succeeded"}))
			approval, err := f.svc.AutoApproveDeposit(ctx, uint(depositID), gtx.ID)
			require.NoError(t, err)
			require.True(t, approval.Applied)
		}).
		Return(&Charge{ID: "ch_race", Status: "succeeded", AuthorizationCode: "A9"}, nil).Once()

	res, err := f.svc.CreateCardCharge(ctx, f.cardRequest("100"))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Success)
	assert.Equal(t, models.DepositStatusApproved, res.Status)
	assert.Equal(t, "ch_race", res.ChargeID)
	assert.Equal(t, models.GatewayStatusSucceeded, res.GatewayStatus)
	assert.Equal(t, "A9", res.AuthorizationCode)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(100)))
	assert.Len(t, f.ledger(t), 1)

	gtx, err := f.store.GatewayTransactions().GetByExternalChargeID(ctx, "ch_race")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", gtx.CustomerID)
}

func TestRecordChargeStatus_SettledChargeKeepsStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.client.On("CreateCharge", mock.Anything, mock.Anything).
		Return(&Charge{ID: "ch_settled", Status: "succeeded"}, nil).Once()
	res, err := f.svc.CreateCardCharge(ctx, f.cardRequest("40"))
	require.NoError(t, err)

	gtx, err := f.store.GatewayTransactions().GetByExternalChargeID(ctx, "ch_settled")
	require.NoError(t, err)
	require.NoError(t, f.svc.RecordChargeStatus(ctx, gtx, ChargeUpdate{Status: "pending"}))
	require.NoError(t, f.svc.RecordChargeStatus(ctx, gtx, ChargeUpdate{Status: "failed", FailureCode: "late"}))

	stored, err := f.store.GatewayTransactions().GetByID(ctx, gtx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusSucceeded, stored.Status)
	assert.Empty(t, stored.ErrorCode)
	assert.Equal(t, models.DepositStatusApproved, f.deposit(t, res.DepositID).Status)

	_, err = f.svc.RefundCharge(ctx, stored, 0)
	require.NoError(t, err)
	require.NoError(t, f.svc.RecordChargeStatus(ctx, stored, ChargeUpdate{Status: "succeeded"}))
	stored, err = f.store.GatewayTransactions().GetByID(ctx, gtx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusRefunded, stored.Status)
}
