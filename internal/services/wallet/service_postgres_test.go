//go:build integration

package wallet

import (
	"context"
	"os"
	"sync"
	"testing"

	"pearlbingo/internal/config"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: DB_HOST=localhost go test -tags integration ./internal/services/wallet/
func newPostgresFixture(t *testing.T) (repositories.Store, Service) {
	t.Helper()
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST not set")
	}
	db, err := repositories.OpenPostgres(config.Load())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repositories.Close(db) })

	store := repositories.NewGormStore(db)
	return store, NewService(store, Config{}, nil, nil)
}

func postgresUser(t *testing.T, store repositories.Store) uint {
	t.Helper()
	name := "it-" + uuid.NewString()[:8]
	u := &models.User{Username: name, Email: name + "@example.com", Password: "x"}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u.ID
}

func TestPostgres_OppositeTransfersDoNotDeadlock(t *testing.T) {
	store, svc := newPostgresFixture(t)
	ctx := context.Background()
	a, b := postgresUser(t, store), postgresUser(t, store)
	for _, id := range []uint{a, b} {
		_, err := svc.Credit(ctx, Entry{UserID: id, Amount: d("1000"), Type: models.TransactionTypeDeposit})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.TransferPearls(ctx, TransferRequest{FromUserID: a, ToUserID: b, Amount: d("1")})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.TransferPearls(ctx, TransferRequest{FromUserID: b, ToUserID: a, Amount: d("2")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for id, want := range map[uint]string{a: "1025", b: "975"} {
		report, err := svc.VerifyLedger(ctx, id)
		require.NoError(t, err)
		assert.True(t, report.Balance.Equal(d(want)), "user %d balance %s", id, report.Balance)
		assert.True(t, report.Consistent)
	}
}

func TestPostgres_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	store, svc := newPostgresFixture(t)
	ctx := context.Background()
	id := postgresUser(t, store)
	_, err := svc.Credit(ctx, Entry{UserID: id, Amount: d("100"), Type: models.TransactionTypeDeposit})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Debit(ctx, Entry{UserID: id, Amount: d("60"), Type: models.TransactionTypeCardPurchase})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	report, err := svc.VerifyLedger(ctx, id)
	require.NoError(t, err)
	assert.True(t, report.Balance.Equal(d("40")))
	assert.True(t, report.Consistent)
}
