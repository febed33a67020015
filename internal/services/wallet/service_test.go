package wallet

import (
	"context"
	"fmt"
	"sync"
	"testing"

	apperrors "pearlbingo/internal/errors"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"
	"pearlbingo/internal/repositories/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store *memory.Store
	svc   Service
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store := memory.NewStore()
	return &fixture{store: store, svc: NewService(store, cfg, nil, nil)}
}

func (f *fixture) user(t *testing.T, name string) uint {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "x"}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u.ID
}

func (f *fixture) fund(t *testing.T, userID uint, amount string) {
	t.Helper()
	_, err := f.svc.Credit(context.Background(), Entry{
		UserID: userID,
		Amount: d(amount),
		Type:   models.TransactionTypeDeposit,
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	w, err := f.store.Wallets().GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) assertConserved(t *testing.T, userIDs ...uint) {
	t.Helper()
	for _, id := range userIDs {
		sum, err := f.store.Transactions().SumSigned(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, sum.Equal(f.balance(t, id)), "user %d: ledger %s balance %s", id, sum, f.balance(t, id))
	}
}

func TestWalletService_GetBalanceCreatesWallet(t *testing.T) {
	f := newFixture(t, Config{DailySpendLimit: d("500")})
	ctx := context.Background()
	alice := f.user(t, "alice")

	bal, err := f.svc.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.True(t, bal.Balance.IsZero())
	assert.True(t, bal.IsActive)
	assert.False(t, bal.IsFrozen)
	assert.True(t, bal.DailySpendLimit.Equal(d("500")))

	_, err = f.svc.GetBalance(ctx, 9999)
	assert.ErrorIs(t, err, apperrors.ErrWalletNotFound)
}

func TestWalletService_CreditDebit(t *testing.T) {
	tests := []struct {
		name    string
		funded  string
		entry   func(userID uint) Entry
		credit  bool
		wantErr error
		want    string
	}{
		{
			name:   "debit within balance",
			funded: "100",
			entry: func(id uint) Entry {
				return Entry{UserID: id, Amount: d("30.50"), Type: models.TransactionTypeCardPurchase}
			},
			want: "69.50",
		},
		{
			name:   "debit exact balance",
			funded: "100",
			entry: func(id uint) Entry {
				return Entry{UserID: id, Amount: d("100"), Type: models.TransactionTypeCardPurchase}
			},
			want: "0",
		},
		{
			name:   "insufficient balance",
			funded: "10",
			entry: func(id uint) Entry {
				return Entry{UserID: id, Amount: d("10.01"), Type: models.TransactionTypeCardPurchase}
			},
			wantErr: apperrors.ErrInsufficientBalance,
			want:    "10",
		},
		{
			name:   "zero amount",
			funded: "10",
			entry: func(id uint) Entry {
				return Entry{UserID: id, Amount: decimal.Zero, Type: models.TransactionTypeCardPurchase}
			},
			wantErr: apperrors.ErrInvalidAmount,
			want:    "10",
		},
		{
			name:   "three decimal places",
			funded: "10",
			credit: true,
			entry: func(id uint) Entry {
				return Entry{UserID: id, Amount: d("1.005"), Type: models.TransactionTypePrizePayout}
			},
			wantErr: apperrors.ErrInvalidAmount,
			want:    "10",
		},
		{
			name:   "debit type passed to credit",
			funded: "10",
			credit: true,
			entry: func(id uint) Entry {
				return Entry{UserID: id, Amount: d("1"), Type: models.TransactionTypeCardPurchase}
			},
			wantErr: &apperrors.DomainError{Code: apperrors.CodeValidation},
			want:    "10",
		},
		{
			name:   "prize credit",
			funded: "10",
			credit: true,
			entry: func(id uint) Entry {
				return Entry{UserID: id, Amount: d("50"), Type: models.TransactionTypePrizePayout}
			},
			want: "60",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			id := f.user(t, "player")
			f.fund(t, id, tt.funded)

			var err error
			if tt.credit {
				_, err = f.svc.Credit(context.Background(), tt.entry(id))
			} else {
				_, err = f.svc.Debit(context.Background(), tt.entry(id))
			}

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.True(t, f.balance(t, id).Equal(d(tt.want)), "balance %s", f.balance(t, id))
			f.assertConserved(t, id)
		})
	}
}

func TestWalletService_TransferPearls(t *testing.T) {
	f := newFixture(t, Config{CommissionRate: d("0.125")})
	ctx := context.Background()
	sender := f.user(t, "sender")
	recipient := f.user(t, "recipient")
	f.fund(t, sender, "100")

	res, err := f.svc.TransferPearls(ctx, TransferRequest{
		FromUserID: sender,
		ToUserID:   recipient,
		Amount:     d("20"),
		Commission: f.svc.CommissionFor(d("20")),
	})
	require.NoError(t, err)

	assert.True(t, res.SenderBalance.Equal(d("77.5")))
	assert.True(t, res.RecipientBalance.Equal(d("20")))
	require.NotNil(t, res.CommissionEntry)
	assert.True(t, res.CommissionEntry.Amount.Equal(d("2.5")))
	assert.Equal(t, res.FromTransaction.ExternalReference, res.ToTransaction.ExternalReference)

	senderTxs, _, err := f.svc.ListTransactions(ctx, sender, HistoryQuery{
		Types: []models.TransactionType{models.TransactionTypeTransferOut, models.TransactionTypeCommission},
	})
	require.NoError(t, err)
	assert.Len(t, senderTxs, 2)

	recipientTxs, total, err := f.svc.ListTransactions(ctx, recipient, HistoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, models.TransactionTypeTransferIn, recipientTxs[0].Type)
	assert.Equal(t, sender, *recipientTxs[0].CounterpartyID)

	f.assertConserved(t, sender, recipient)
}

func TestWalletService_TransferPearlsFailuresLeaveBalances(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture, sender, recipient uint)
		req     func(sender, recipient uint) TransferRequest
		wantErr error
	}{
		{
			name: "self transfer",
			req: func(s, _ uint) TransferRequest {
				return TransferRequest{FromUserID: s, ToUserID: s, Amount: d("10")}
			},
			wantErr: apperrors.ErrSelfTransfer,
		},
		{
			name: "commission pushes over balance",
			req: func(s, r uint) TransferRequest {
				return TransferRequest{FromUserID: s, ToUserID: r, Amount: d("99"), Commission: d("2")}
			},
			wantErr: apperrors.ErrInsufficientBalance,
		},
		{
			name: "unknown recipient",
			req: func(s, _ uint) TransferRequest {
				return TransferRequest{FromUserID: s, ToUserID: 4242, Amount: d("10")}
			},
			wantErr: apperrors.ErrRecipientInvalid,
		},
		{
			name: "inactive recipient",
			setup: func(f *fixture, _, r uint) {
				require.NoError(t, f.svc.SetActive(context.Background(), r, false))
			},
			req: func(s, r uint) TransferRequest {
				return TransferRequest{FromUserID: s, ToUserID: r, Amount: d("10")}
			},
			wantErr: apperrors.ErrRecipientInactive,
		},
		{
			name: "frozen sender",
			setup: func(f *fixture, s, _ uint) {
				require.NoError(t, f.svc.FreezeWallet(context.Background(), s, "chargeback"))
			},
			req: func(s, r uint) TransferRequest {
				return TransferRequest{FromUserID: s, ToUserID: r, Amount: d("10")}
			},
			wantErr: apperrors.ErrWalletUnavailable,
		},
		{
			name: "negative commission",
			req: func(s, r uint) TransferRequest {
				return TransferRequest{FromUserID: s, ToUserID: r, Amount: d("10"), Commission: d("-1")}
			},
			wantErr: &apperrors.DomainError{Code: apperrors.CodeValidation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			sender := f.user(t, "sender")
			recipient := f.user(t, "recipient")
			f.fund(t, sender, "100")
			f.fund(t, recipient, "5")
			if tt.setup != nil {
				tt.setup(f, sender, recipient)
			}

			_, err := f.svc.TransferPearls(context.Background(), tt.req(sender, recipient))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, f.balance(t, sender).Equal(d("100")))
			assert.True(t, f.balance(t, recipient).Equal(d("5")))
			f.assertConserved(t, sender, recipient)
		})
	}
}

// The memory store serialises whole transactions, so the two tests below check
// service-level outcomes only. Row locking order against Postgres is covered by
// service_postgres_test.go (build tag integration).
func TestWalletService_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t, Config{})
	id := f.user(t, "racer")
	f.fund(t, id, "100")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Debit(context.Background(), Entry{
				UserID: id,
				Amount: d("60"),
				Type:   models.TransactionTypeCardPurchase,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	}
	assert.Equal(t, 1, succeeded)
	assert.True(t, f.balance(t, id).Equal(d("40")))
	f.assertConserved(t, id)
}

func TestWalletService_OppositeTransfersDoNotDeadlock(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.user(t, "a")
	b := f.user(t, "b")
	f.fund(t, a, "1000")
	f.fund(t, b, "1000")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.TransferPearls(context.Background(), TransferRequest{FromUserID: a, ToUserID: b, Amount: d("1")})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.TransferPearls(context.Background(), TransferRequest{FromUserID: b, ToUserID: a, Amount: d("2")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, f.balance(t, a).Equal(d("1020")))
	assert.True(t, f.balance(t, b).Equal(d("980")))
	f.assertConserved(t, a, b)
}

func TestWalletService_FrozenWalletStillReceivesCredits(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	id := f.user(t, "winner")
	f.fund(t, id, "10")
	require.NoError(t, f.svc.FreezeWallet(ctx, id, "review"))

	receipt, err := f.svc.Credit(ctx, Entry{UserID: id, Amount: d("50"), Type: models.TransactionTypePrizePayout})
	require.NoError(t, err)
	assert.True(t, receipt.Balance.Equal(d("60")))

	_, err = f.svc.Debit(ctx, Entry{UserID: id, Amount: d("1"), Type: models.TransactionTypeCardPurchase})
	assert.ErrorIs(t, err, apperrors.ErrWalletUnavailable)

	require.NoError(t, f.svc.UnfreezeWallet(ctx, id))
	_, err = f.svc.Debit(ctx, Entry{UserID: id, Amount: d("1"), Type: models.TransactionTypeCardPurchase})
	assert.NoError(t, err)
}

func TestWalletService_SpendLimits(t *testing.T) {
	f := newFixture(t, Config{DailySpendLimit: d("50"), MonthlySpendLimit: d("70")})
	ctx := context.Background()
	id := f.user(t, "spender")
	other := f.user(t, "other")
	f.fund(t, id, "500")

	_, err := f.svc.Debit(ctx, Entry{UserID: id, Amount: d("40"), Type: models.TransactionTypeCardPurchase})
	require.NoError(t, err)

	_, err = f.svc.TransferPearls(ctx, TransferRequest{FromUserID: id, ToUserID: other, Amount: d("10"), Commission: d("0.01")})
	assert.ErrorIs(t, err, apperrors.ErrSpendLimitExceeded)

	_, err = f.svc.TransferPearls(ctx, TransferRequest{FromUserID: id, ToUserID: other, Amount: d("10")})
	assert.NoError(t, err)

	bal, err := f.svc.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.True(t, bal.DailySpent.Equal(d("50")))
	assert.True(t, bal.Balance.Equal(d("450")))
}

func TestWalletService_StrictCheckPlacesHold(t *testing.T) {
	f := newFixture(t, Config{StrictCheck: true})
	ctx := context.Background()
	id := f.user(t, "drifted")
	f.fund(t, id, "100")

	// corrupt the stored balance behind the ledger's back
	w, err := f.store.Wallets().GetByUserID(ctx, id)
	require.NoError(t, err)
	w.Balance = d("150")
	require.NoError(t, f.store.Wallets().Update(ctx, w))

	_, err = f.svc.Debit(ctx, Entry{UserID: id, Amount: d("10"), Type: models.TransactionTypeCardPurchase})
	assert.ErrorIs(t, err, apperrors.ErrInvariantViolation)

	w, err = f.store.Wallets().GetByUserID(ctx, id)
	require.NoError(t, err)
	assert.True(t, w.ReconciliationHold)
	assert.True(t, w.Balance.Equal(d("150")), "balance must not be silently fixed")

	_, err = f.svc.Credit(ctx, Entry{UserID: id, Amount: d("5"), Type: models.TransactionTypePrizePayout})
	assert.ErrorIs(t, err, apperrors.ErrReconciliationHold)

	report, err := f.svc.VerifyLedger(ctx, id)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.True(t, report.LedgerSum.Equal(d("100")))
}

func TestWalletService_VerifyLedger(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	id := f.user(t, "audited")
	f.fund(t, id, "25")

	report, err := f.svc.VerifyLedger(ctx, id)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.True(t, report.Balance.Equal(d("25")))

	w, _ := f.store.Wallets().GetByUserID(ctx, id)
	w.Balance = d("26")
	require.NoError(t, f.store.Wallets().Update(ctx, w))

	report, err = f.svc.VerifyLedger(ctx, id)
	require.NoError(t, err)
	assert.False(t, report.Consistent)

	w, _ = f.store.Wallets().GetByUserID(ctx, id)
	assert.True(t, w.ReconciliationHold)

	require.NoError(t, f.svc.ClearReconciliationHold(ctx, id))
	w, _ = f.store.Wallets().GetByUserID(ctx, id)
	assert.False(t, w.ReconciliationHold)
}

func TestWalletService_AdminAdjust(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	id := f.user(t, "adjusted")
	f.fund(t, id, "10")
	require.NoError(t, f.svc.FreezeWallet(ctx, id, "investigation"))

	receipt, err := f.svc.AdminAdjust(ctx, id, d("-4"), "duplicate bonus")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeWithdrawal, receipt.Transaction.Type)
	assert.True(t, receipt.Balance.Equal(d("6")))

	receipt, err = f.svc.AdminAdjust(ctx, id, d("1.5"), "goodwill")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeRefund, receipt.Transaction.Type)
	assert.Contains(t, receipt.Transaction.Description, "goodwill")

	_, err = f.svc.AdminAdjust(ctx, id, d("-100"), "too much")
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	_, err = f.svc.AdminAdjust(ctx, id, d("1"), " ")
	assert.Error(t, err)

	f.assertConserved(t, id)
}

func TestWalletService_ListTransactionsPaging(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	id := f.user(t, "pager")
	for i := 0; i < 5; i++ {
		f.fund(t, id, fmt.Sprintf("%d", i+1))
	}

	items, total, err := f.svc.ListTransactions(ctx, id, HistoryQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, items, 2)

	items, _, err = f.svc.ListTransactions(ctx, id, HistoryQuery{Types: []models.TransactionType{models.TransactionTypeRefund}})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestWalletService_WithTxJoinsCallerUnitOfWork(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	id := f.user(t, "joined")

	boom := fmt.Errorf("later step failed")
	err := f.store.WithinTx(ctx, func(tx repositories.Store) error {
		_, err := f.svc.WithTx(tx).Credit(ctx, Entry{UserID: id, Amount: d("30"), Type: models.TransactionTypeDeposit})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = f.store.Wallets().GetByUserID(ctx, id)
	assert.ErrorIs(t, err, repositories.ErrNotFound, "lazily created wallet rolls back with the caller")

	items, _, err := f.svc.ListTransactions(ctx, id, HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestWalletService_CommissionFor(t *testing.T) {
	svc := NewService(memory.NewStore(), Config{CommissionRate: d("0.025")}, nil, nil)
	assert.True(t, svc.CommissionFor(d("100")).Equal(d("2.5")))
	assert.True(t, svc.CommissionFor(d("0.10")).Equal(d("0")))
	assert.True(t, svc.CommissionFor(d("33.33")).Equal(d("0.83")))
}

func TestWalletService_CreditOnce(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	id := f.user(t, "winner")
	entry := Entry{
		UserID:            id,
		Amount:            d("50"),
		Type:              models.TransactionTypePrizePayout,
		ExternalReference: "prize:7:line",
	}

	var wg sync.WaitGroup
	receipts := make([]*Receipt, 5)
	for i := range receipts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.svc.CreditOnce(ctx, entry)
			if assert.NoError(t, err) {
				receipts[i] = r
			}
		}(i)
	}
	wg.Wait()

	replayed := 0
	for _, r := range receipts {
		require.NotNil(t, r)
		assert.Equal(t, receipts[0].Transaction.ID, r.Transaction.ID)
		if r.Replayed {
			replayed++
		}
	}
	assert.Equal(t, len(receipts)-1, replayed)
	assert.True(t, f.balance(t, id).Equal(d("50")))
	f.assertConserved(t, id)

	other := entry
	other.ExternalReference = "prize:7:full_house"
	r, err := f.svc.CreditOnce(ctx, other)
	require.NoError(t, err)
	assert.False(t, r.Replayed)
	assert.True(t, r.Balance.Equal(d("100")))

	_, err = f.svc.CreditOnce(ctx, Entry{UserID: id, Amount: d("1"), Type: models.TransactionTypePrizePayout})
	assert.ErrorIs(t, err, &apperrors.DomainError{Code: apperrors.CodeValidation})
}
