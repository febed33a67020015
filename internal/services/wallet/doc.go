/*
Package wallet is the only writer of wallet balances and ledger entries.

Every mutation runs in one unit of work: the affected wallet rows are locked
in ascending id order, the balance is changed, and one COMPLETED transaction
per effect is appended. Callers that need to join a larger unit of work (the
deposit approval path) use WithTx.

Usage:

	svc := wallet.NewService(store, wallet.Config{CommissionRate: rate}, logger, nil)

	receipt, err := svc.Debit(ctx, wallet.Entry{
	    UserID: userID,
	    Amount: price,
	    Type:   models.TransactionTypeCardPurchase,
	})

	result, err := svc.TransferPearls(ctx, wallet.TransferRequest{
	    FromUserID: from,
	    ToUserID:   to,
	    Amount:     amount,
	    Commission: svc.CommissionFor(amount),
	})

Failures are typed *errors.DomainError values from internal/errors; match them
with errors.Is. A ledger mismatch found in strict mode aborts the operation
with ErrInvariantViolation and puts the wallet on reconciliation hold.
*/
package wallet
